// Package server initializes and runs the reference document-store server:
// PostgreSQL storage with migrations, the HTTP API, and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mpetrenko/homeledger/internal/logging"
	"github.com/mpetrenko/homeledger/internal/server/backup"
	"github.com/mpetrenko/homeledger/internal/server/config"
	"github.com/mpetrenko/homeledger/internal/server/httpapi"
	"github.com/mpetrenko/homeledger/internal/server/migrations"
	"github.com/mpetrenko/homeledger/internal/server/repositories/documents"
	"github.com/mpetrenko/homeledger/internal/server/repositories/users"
)

type App struct {
	config *config.Config
	db     *sql.DB
	log    logging.Logger
	srv    *http.Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, err
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var snapshots backup.Snapshotter
	if cfg.BackupBucket != "" {
		snapshots, err = backup.NewS3Snapshotter(ctx, cfg.BackupBucket)
		if err != nil {
			return nil, fmt.Errorf("backup init error: %w", err)
		}
	}

	handler := httpapi.NewHandler(
		documents.NewPostgresRepository(db),
		users.NewPostgresRepository(db),
		snapshots,
		[]byte(cfg.JWTSecret),
		cfg.JWTExpiry,
		logger,
	)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.Router(handler, cfg.RateRPS, cfg.RateBurst),
	}

	return &App{config: cfg, db: db, log: logger, srv: srv}, nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.initSignalHandler(cancel)

	errCh := make(chan error, 1)
	go func() {
		app.log.Info(ctx, "starting server", "addr", app.config.Addr)
		if err := app.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		app.log.Error(ctx, "shutdown error", "error", err)
	}
	return app.db.Close()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}
