// Package recurring implements the materializer for scheduled transactions:
// it scans recurring templates, creates one transaction per missed occurrence
// up to "now", and advances each template's schedule. The advisory lock plus
// the hourly throttle make each occurrence materialize exactly once
// system-wide, no matter how many processes are running.
package recurring

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mpetrenko/homeledger/internal/client/locking"
	"github.com/mpetrenko/homeledger/internal/client/models"
	"github.com/mpetrenko/homeledger/internal/client/repositories/metadata"
	"github.com/mpetrenko/homeledger/internal/client/repositories/outbox"
	"github.com/mpetrenko/homeledger/internal/client/repositories/records"
	"github.com/mpetrenko/homeledger/internal/common"
	"github.com/mpetrenko/homeledger/internal/dbx"
	"github.com/mpetrenko/homeledger/internal/logging"
	"github.com/mpetrenko/homeledger/internal/timex"
)

// LockName is the advisory lock guarding materializer runs across processes.
const LockName = "recurring-generator"

// SkipReason explains why a run did nothing. Both cases are defined no-ops,
// not errors.
type SkipReason string

const (
	SkipNone      SkipReason = ""
	SkipLocked    SkipReason = "locked"    // another context holds the lock
	SkipThrottled SkipReason = "throttled" // a run completed within the throttle window
)

// Result summarizes one materializer invocation.
type Result struct {
	Created   int
	Templates int
	Skipped   SkipReason
}

// Materializer generates missed recurring transactions. It writes through
// the same record-plus-outbox path as user mutations, one SQL transaction per
// occurrence, so occurrence N is durable before occurrence N+1 starts.
type Materializer struct {
	db    *sql.DB
	meta  metadata.Repository
	locks locking.Manager
	log   logging.Logger
	now   timex.Clock

	throttle       int64 // millis
	maxPerRun      int
	maxPerTemplate int
}

type Params struct {
	DB             *sql.DB
	Metadata       metadata.Repository
	Locks          locking.Manager
	Logger         logging.Logger
	Clock          timex.Clock
	Throttle       int64 // millis
	MaxPerRun      int
	MaxPerTemplate int
}

func NewMaterializer(p Params) *Materializer {
	if p.Clock == nil {
		p.Clock = timex.SystemClock
	}
	if p.Locks == nil {
		p.Locks = locking.NoopManager{}
	}
	return &Materializer{
		db:             p.DB,
		meta:           p.Metadata,
		locks:          p.Locks,
		log:            p.Logger,
		now:            p.Clock,
		throttle:       p.Throttle,
		maxPerRun:      p.MaxPerRun,
		maxPerTemplate: p.MaxPerTemplate,
	}
}

// Run executes one materializer pass. Lock contention and the throttle yield
// a skipped Result, not an error.
func (m *Materializer) Run(ctx context.Context) (*Result, error) {
	if m.throttled(ctx) {
		return &Result{Skipped: SkipThrottled}, nil
	}

	result := &Result{}
	err := m.locks.WithLock(ctx, LockName, locking.Options{IfAvailable: true}, func(ctx context.Context) error {
		// Re-check after acquisition: another process may have completed
		// a run while this one was contending for the lock.
		if m.throttled(ctx) {
			result.Skipped = SkipThrottled
			return nil
		}
		return m.materialize(ctx, result)
	})
	if errors.Is(err, common.ErrLockNotAcquired) {
		return &Result{Skipped: SkipLocked}, nil
	}
	return result, err
}

func (m *Materializer) throttled(ctx context.Context) bool {
	last, err := m.meta.GetTime(ctx, metadata.KeyGeneratorLastRunAt)
	if err != nil {
		m.log.Warn(ctx, "failed to read generator watermark", "error", err)
		return false
	}
	now := timex.UnixMillis(m.now())
	return last > 0 && now-last < m.throttle
}

func (m *Materializer) materialize(ctx context.Context, result *Result) error {
	// The watermark is written regardless of outcome so the throttle
	// applies even after a partial failure.
	defer func() {
		if err := m.meta.SetTime(ctx, metadata.KeyGeneratorLastRunAt, timex.UnixMillis(m.now())); err != nil {
			m.log.Warn(ctx, "failed to record generator watermark", "error", err)
		}
	}()

	templates, err := m.dueTemplates(ctx)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		return nil
	}
	m.log.Info(ctx, "materializing recurring templates", "due", len(templates))

	for _, tpl := range templates {
		if result.Created >= m.maxPerRun {
			m.log.Warn(ctx, "per-run transaction cap reached, deferring remaining templates",
				"cap", m.maxPerRun)
			break
		}
		created, err := m.materializeTemplate(ctx, tpl, m.maxPerRun-result.Created)
		result.Created += created
		if err != nil {
			// Isolated per-template failure: log and move on, the next
			// run picks the template up where its nextRunAt stands.
			m.log.Error(ctx, "template materialization failed", "template", tpl.ID, "error", err)
			continue
		}
		result.Templates++
	}
	return nil
}

func (m *Materializer) dueTemplates(ctx context.Context) ([]*models.RecurringTemplate, error) {
	repo := records.NewSQLiteRepository(m.db)
	recs, err := repo.GetAllByIndex(ctx, models.CollectionTemplates, "isActive", 1)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	now := timex.UnixMillis(m.now())
	var due []*models.RecurringTemplate
	for i := range recs {
		tpl, err := models.TemplateFromRecord(&recs[i])
		if err != nil {
			m.log.Warn(ctx, "skipping malformed template", "id", recs[i].ID, "error", err)
			continue
		}
		if tpl.Due(now) {
			due = append(due, tpl)
		}
	}
	return due, nil
}

// materializeTemplate produces one transaction per missed occurrence, oldest
// first, bounded by the per-template cap and the remaining global budget.
// Each occurrence commits transaction, outbox entries and the advanced
// template in a single SQL transaction before the next occurrence starts.
func (m *Materializer) materializeTemplate(ctx context.Context, tpl *models.RecurringTemplate, budget int) (int, error) {
	now := timex.UnixMillis(m.now())
	created := 0

	for tpl.NextRunAt <= now && created < m.maxPerTemplate && created < budget {
		if err := m.materializeOccurrence(ctx, tpl); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (m *Materializer) materializeOccurrence(ctx context.Context, tpl *models.RecurringTemplate) error {
	now := timex.UnixMillis(m.now())

	txn := models.Transaction{
		ID:          uuid.NewString(),
		AccountID:   tpl.AccountID,
		Description: tpl.Description,
		Amount:      tpl.Amount,
		Kind:        tpl.Kind,
		Category:    tpl.Category,
		Date:        tpl.NextRunAt,
		TemplateID:  tpl.ID,
	}
	if err := tpl.Advance(); err != nil {
		return err
	}

	return dbx.WithTx(ctx, m.db, func(ctx context.Context, tx dbx.DBTX) error {
		recRepo := records.NewSQLiteRepository(tx)
		obRepo := outbox.NewSQLiteRepository(tx)

		txnRec, err := models.NewRecord(txn.ID, txn, now)
		if err != nil {
			return err
		}
		if err := recRepo.Put(ctx, models.CollectionTransactions, txnRec); err != nil {
			return err
		}
		if err := enqueue(ctx, obRepo, models.OpCreate, models.CollectionTransactions, txnRec, now); err != nil {
			return err
		}

		tplRec, err := models.NewRecord(tpl.ID, tpl, now)
		if err != nil {
			return err
		}
		if err := recRepo.Put(ctx, models.CollectionTemplates, tplRec); err != nil {
			return err
		}
		return enqueue(ctx, obRepo, models.OpUpdate, models.CollectionTemplates, tplRec, now)
	})
}

func enqueue(ctx context.Context, repo outbox.Repository, opType models.OpType, collection string, rec *models.Record, now int64) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	return repo.Enqueue(ctx, &models.Operation{
		Type:       opType,
		Collection: collection,
		RecordID:   rec.ID,
		Payload:    payload,
		Timestamp:  now,
	})
}
