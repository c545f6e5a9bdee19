// Package services is the mutation entry point the UI layer talks to. Every
// mutation stamps the record envelope (updatedAt=now, syncStatus=pending) and
// enqueues the matching outbox operation inside one SQL transaction, so a
// crash can never persist the record change without its queued mutation.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mpetrenko/homeledger/internal/client/models"
	"github.com/mpetrenko/homeledger/internal/client/repositories/outbox"
	"github.com/mpetrenko/homeledger/internal/client/repositories/records"
	"github.com/mpetrenko/homeledger/internal/dbx"
	"github.com/mpetrenko/homeledger/internal/logging"
	"github.com/mpetrenko/homeledger/internal/timex"
)

type LedgerService struct {
	db  *sql.DB
	log logging.Logger
	now timex.Clock
}

func NewLedgerService(db *sql.DB, log logging.Logger, clock timex.Clock) *LedgerService {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &LedgerService{db: db, log: log, now: clock}
}

// Create stores a new record. An empty id gets a generated UUID.
func (s *LedgerService) Create(ctx context.Context, collection, id string, fields any) (*models.Record, error) {
	if id == "" {
		id = uuid.NewString()
	}
	return s.write(ctx, models.OpCreate, collection, id, fields)
}

// Update overwrites an existing record's domain fields.
func (s *LedgerService) Update(ctx context.Context, collection, id string, fields any) (*models.Record, error) {
	if id == "" {
		return nil, fmt.Errorf("update requires a record id")
	}
	return s.write(ctx, models.OpUpdate, collection, id, fields)
}

// Delete tombstones a record and enqueues the delete for sync. The record
// stays in place so the tombstone can propagate.
func (s *LedgerService) Delete(ctx context.Context, collection, id string) error {
	now := timex.UnixMillis(s.now())

	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		recRepo := records.NewSQLiteRepository(tx)
		obRepo := outbox.NewSQLiteRepository(tx)

		if err := recRepo.Delete(ctx, collection, id, now); err != nil {
			return fmt.Errorf("failed to tombstone %s/%s: %w", collection, id, err)
		}
		rec, err := recRepo.Get(ctx, collection, id)
		if err != nil {
			return fmt.Errorf("failed to re-read tombstone %s/%s: %w", collection, id, err)
		}
		return s.enqueue(ctx, obRepo, models.OpDelete, collection, rec, now)
	})
}

// CreateTransaction stores a ledger transaction.
func (s *LedgerService) CreateTransaction(ctx context.Context, txn models.Transaction) (*models.Record, error) {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	if txn.Date == 0 {
		txn.Date = timex.UnixMillis(s.now())
	}
	return s.write(ctx, models.OpCreate, models.CollectionTransactions, txn.ID, txn)
}

// CreateTemplate stores a recurring template. NextRunAt defaults to the
// start date so the first occurrence materializes on schedule.
func (s *LedgerService) CreateTemplate(ctx context.Context, tpl models.RecurringTemplate) (*models.Record, error) {
	if !tpl.Interval.Valid() {
		return nil, fmt.Errorf("invalid template interval %q", tpl.Interval)
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.StartDate == 0 {
		tpl.StartDate = timex.UnixMillis(s.now())
	}
	if tpl.NextRunAt == 0 {
		tpl.NextRunAt = tpl.StartDate
	}
	tpl.IsActive = true
	return s.write(ctx, models.OpCreate, models.CollectionTemplates, tpl.ID, tpl)
}

// SetTemplateActive pauses or resumes a template.
func (s *LedgerService) SetTemplateActive(ctx context.Context, id string, active bool) error {
	now := timex.UnixMillis(s.now())

	return dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		recRepo := records.NewSQLiteRepository(tx)
		obRepo := outbox.NewSQLiteRepository(tx)

		rec, err := recRepo.Get(ctx, models.CollectionTemplates, id)
		if err != nil {
			return fmt.Errorf("failed to load template %s: %w", id, err)
		}
		tpl, err := models.TemplateFromRecord(rec)
		if err != nil {
			return err
		}
		tpl.IsActive = active

		updated, err := models.NewRecord(id, tpl, now)
		if err != nil {
			return err
		}
		if err := recRepo.Put(ctx, models.CollectionTemplates, updated); err != nil {
			return err
		}
		return s.enqueue(ctx, obRepo, models.OpUpdate, models.CollectionTemplates, updated, now)
	})
}

func (s *LedgerService) write(ctx context.Context, opType models.OpType, collection, id string, fields any) (*models.Record, error) {
	now := timex.UnixMillis(s.now())

	rec, err := models.NewRecord(id, fields, now)
	if err != nil {
		return nil, err
	}

	err = dbx.WithTx(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) error {
		recRepo := records.NewSQLiteRepository(tx)
		obRepo := outbox.NewSQLiteRepository(tx)

		if err := recRepo.Put(ctx, collection, rec); err != nil {
			return err
		}
		return s.enqueue(ctx, obRepo, opType, collection, rec, now)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

func (s *LedgerService) enqueue(ctx context.Context, repo outbox.Repository, opType models.OpType, collection string, rec *models.Record, now int64) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode outbox payload: %w", err)
	}
	return repo.Enqueue(ctx, &models.Operation{
		Type:       opType,
		Collection: collection,
		RecordID:   rec.ID,
		Payload:    payload,
		Timestamp:  now,
	})
}
