// Package app wires the agent together: local database and migrations,
// repositories, reconciliation engine, recurring materializer, connectivity
// monitor and the mutation services.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mpetrenko/homeledger/internal/client/config"
	"github.com/mpetrenko/homeledger/internal/client/connectivity"
	"github.com/mpetrenko/homeledger/internal/client/identity"
	"github.com/mpetrenko/homeledger/internal/client/locking"
	"github.com/mpetrenko/homeledger/internal/client/migrations"
	"github.com/mpetrenko/homeledger/internal/client/recurring"
	"github.com/mpetrenko/homeledger/internal/client/remote"
	"github.com/mpetrenko/homeledger/internal/client/repositories/metadata"
	"github.com/mpetrenko/homeledger/internal/client/repositories/outbox"
	"github.com/mpetrenko/homeledger/internal/client/repositories/records"
	"github.com/mpetrenko/homeledger/internal/client/services"
	syncengine "github.com/mpetrenko/homeledger/internal/client/sync"
	"github.com/mpetrenko/homeledger/internal/logging"
)

type App struct {
	config  *config.Config
	db      *sql.DB
	store   *remote.HTTPStore
	id      *identity.SessionProvider
	meta    metadata.Repository
	engine  *syncengine.Engine
	monitor *connectivity.Monitor
	gen     *recurring.Materializer
	ledger  *services.LedgerService
	log     logging.Logger
}

// RunMigrations applies the embedded client migrations to the local database.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatal("failed to set goose dialect:", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the local SQLite database and migrates it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	db, err := InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	var locks locking.Manager = locking.NoopManager{}
	if cfg.LockDir != "" {
		fm, err := locking.NewFileManager(cfg.LockDir)
		if err != nil {
			// Degrade to lockless mode; the materializer's throttle and
			// watermark still bound duplicate work in one process.
			logger.Warn(ctx, "advisory locks unavailable, degrading", "error", err)
		} else {
			locks = fm
		}
	}

	store := remote.NewHTTPStore(cfg.ServerAddr)
	id := identity.NewSessionProvider()
	meta := metadata.NewSQLiteRepository(db)

	app := &App{
		config: cfg,
		db:     db,
		store:  store,
		id:     id,
		meta:   meta,
		ledger: services.NewLedgerService(db, logger, nil),
		log:    logger,
	}

	app.gen = recurring.NewMaterializer(recurring.Params{
		DB:             db,
		Metadata:       meta,
		Locks:          locks,
		Logger:         logger,
		Throttle:       cfg.GeneratorThrottle.Milliseconds(),
		MaxPerRun:      cfg.MaxCreatedPerRun,
		MaxPerTemplate: cfg.MaxOccurrencesPerTemplate,
	})

	app.monitor = connectivity.NewMonitor(store, cfg.OnlineCheckInterval, func(ctx context.Context) error {
		_, err := app.engine.FullSync(ctx)
		return err
	}, logger)

	app.engine = syncengine.NewEngine(syncengine.Params{
		Records:    records.NewSQLiteRepository(db),
		Outbox:     outbox.NewSQLiteRepository(db),
		Metadata:   meta,
		Store:      store,
		Identity:   id,
		Online:     app.monitor.Online,
		Logger:     logger,
		MaxRetries: cfg.OutboxMaxRetries,
	})

	return app, nil
}

// Ledger exposes the mutation service to the UI layer.
func (a *App) Ledger() *services.LedgerService { return a.ledger }

// Sync triggers an explicit fullSync.
func (a *App) Sync(ctx context.Context) error {
	_, err := a.engine.FullSync(ctx)
	return err
}

// Login authenticates against the remote store and persists the session.
func (a *App) Login(ctx context.Context, username, password string) error {
	session, err := a.store.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	a.id.SetUser(session.UserID)

	if err := a.meta.SetString(ctx, metadata.KeySessionToken, session.Token); err != nil {
		return err
	}
	return a.meta.SetString(ctx, metadata.KeyUserID, session.UserID)
}

// RestoreSession loads a previously persisted session, if any.
func (a *App) RestoreSession(ctx context.Context) (bool, error) {
	token, err := a.meta.GetString(ctx, metadata.KeySessionToken)
	if err != nil {
		return false, err
	}
	uid, err := a.meta.GetString(ctx, metadata.KeyUserID)
	if err != nil {
		return false, err
	}
	if token == "" || uid == "" {
		return false, nil
	}
	a.store.SetToken(token)
	a.id.SetUser(uid)
	return true, nil
}

// Run starts the background loops and blocks until a signal or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.initSignalHandler(cancel)

	go a.monitor.Run(ctx)

	// Startup pass: generate anything missed while the app was closed.
	if res, err := a.gen.Run(ctx); err != nil {
		a.log.Error(ctx, "startup materializer run failed", "error", err)
	} else if res.Created > 0 {
		a.log.Info(ctx, "materialized missed occurrences", "created", res.Created)
	}

	ticker := time.NewTicker(a.config.GeneratorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := a.gen.Run(ctx); err != nil {
				a.log.Error(ctx, "materializer run failed", "error", err)
			}
		case <-ctx.Done():
			return a.db.Close()
		}
	}
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}
