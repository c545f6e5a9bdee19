// Package sync implements the reconciliation engine: draining local
// mutations to the remote document store (push), folding remote changes into
// the local store (pull), and the combined fullSync. Conflicts are resolved
// by a single rule — last-write-wins on the record's updatedAt timestamp.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/mpetrenko/homeledger/internal/client/identity"
	"github.com/mpetrenko/homeledger/internal/client/models"
	"github.com/mpetrenko/homeledger/internal/client/remote"
	"github.com/mpetrenko/homeledger/internal/client/repositories/metadata"
	"github.com/mpetrenko/homeledger/internal/client/repositories/outbox"
	"github.com/mpetrenko/homeledger/internal/client/repositories/records"
	"github.com/mpetrenko/homeledger/internal/common"
	"github.com/mpetrenko/homeledger/internal/logging"
	"github.com/mpetrenko/homeledger/internal/timex"
)

// CollectionResult reports the outcome of pushing or pulling one collection.
// One collection failing never aborts the others.
type CollectionResult struct {
	Collection string
	Count      int
	Err        error
}

func (r CollectionResult) Success() bool { return r.Err == nil }

// Report is the outcome of a fullSync.
type Report struct {
	Push []CollectionResult
	Pull []CollectionResult
}

// FirstError returns the first per-collection error, push phase first.
func (r *Report) FirstError() error {
	for _, res := range r.Push {
		if res.Err != nil {
			return res.Err
		}
	}
	for _, res := range r.Pull {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// Engine reconciles the local store with the remote document store.
type Engine struct {
	records     records.Repository
	outbox      outbox.Repository
	meta        metadata.Repository
	store       remote.Store
	id          identity.Provider
	online      func() bool
	log         logging.Logger
	now         timex.Clock
	collections []string
	maxRetries  int

	// inFlight is the single-flight guard: the CompareAndSwap at FullSync
	// entry is the check-and-set, done as one atomic step.
	inFlight atomic.Bool
}

type Params struct {
	Records     records.Repository
	Outbox      outbox.Repository
	Metadata    metadata.Repository
	Store       remote.Store
	Identity    identity.Provider
	Online      func() bool
	Logger      logging.Logger
	Clock       timex.Clock
	Collections []string
	MaxRetries  int
}

func NewEngine(p Params) *Engine {
	if p.Clock == nil {
		p.Clock = timex.SystemClock
	}
	if len(p.Collections) == 0 {
		p.Collections = models.SyncableCollections
	}
	return &Engine{
		records:     p.Records,
		outbox:      p.Outbox,
		meta:        p.Metadata,
		store:       p.Store,
		id:          p.Identity,
		online:      p.Online,
		log:         p.Logger,
		now:         p.Clock,
		collections: p.Collections,
		maxRetries:  p.MaxRetries,
	}
}

// ready enforces the availability precondition: network reachability and an
// authenticated identity. Failures here are fail-fast and never retried by
// the engine itself.
func (e *Engine) ready() error {
	if e.online != nil && !e.online() {
		return common.ErrOffline
	}
	if !e.id.Authenticated() {
		return common.ErrUnauthorized
	}
	return nil
}

// FullSync pushes then pulls, in that order: local changes are durably sent
// before remote state may overwrite anything. A second concurrent call is
// rejected immediately with common.ErrSyncInProgress, not queued.
func (e *Engine) FullSync(ctx context.Context) (*Report, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, common.ErrSyncInProgress
	}
	defer e.inFlight.Store(false)

	if err := e.ready(); err != nil {
		return nil, fmt.Errorf("sync not ready: %w", err)
	}

	report := &Report{}
	report.Push = e.push(ctx)
	report.Pull = e.pull(ctx)

	if err := report.FirstError(); err != nil {
		return report, err
	}

	if err := e.meta.SetTime(ctx, metadata.KeyLastSyncAt, timex.UnixMillis(e.now())); err != nil {
		e.log.Warn(ctx, "failed to record sync watermark", "error", err)
	}
	return report, nil
}

// Push sends the local records of every collection with queued mutations to
// the remote store. Not guarded by the single-flight latch; use FullSync for
// that.
func (e *Engine) Push(ctx context.Context) ([]CollectionResult, error) {
	if err := e.ready(); err != nil {
		return nil, fmt.Errorf("sync not ready: %w", err)
	}
	results := e.push(ctx)
	for _, r := range results {
		if r.Err != nil {
			return results, r.Err
		}
	}
	return results, nil
}

// Pull folds remote documents into the local store under last-write-wins.
func (e *Engine) Pull(ctx context.Context) ([]CollectionResult, error) {
	if err := e.ready(); err != nil {
		return nil, fmt.Errorf("sync not ready: %w", err)
	}
	results := e.pull(ctx)
	for _, r := range results {
		if r.Err != nil {
			return results, r.Err
		}
	}
	return results, nil
}

func (e *Engine) push(ctx context.Context) []CollectionResult {
	uid := e.id.UserID()

	// The outbox decides what needs pushing: a collection with no pending
	// operations is already in sync and gets skipped. Operations that
	// exhausted their retry budget have dropped out of this list and stay
	// parked in the outbox for inspection.
	dirty := map[string]bool{}
	ops, listErr := e.outbox.ListPending(ctx, e.maxRetries)
	if listErr != nil {
		e.log.Warn(ctx, "failed to read outbox, pushing all collections", "error", listErr)
	}
	for _, op := range ops {
		dirty[op.Collection] = true
	}

	results := make([]CollectionResult, 0, len(e.collections))
	for _, collection := range e.collections {
		res := CollectionResult{Collection: collection}

		if listErr == nil && !dirty[collection] {
			results = append(results, res)
			continue
		}

		recs, err := e.records.GetAll(ctx, collection)
		if err != nil {
			res.Err = fmt.Errorf("read %s: %w", collection, err)
			results = append(results, res)
			continue
		}

		pushErr := error(nil)
		for i := range recs {
			if err := e.store.Put(ctx, uid, collection, &recs[i]); err != nil {
				pushErr = fmt.Errorf("push %s/%s: %w", collection, recs[i].ID, err)
				break
			}
			res.Count++
		}

		if pushErr != nil {
			res.Err = pushErr
			e.log.Error(ctx, "collection push failed", "collection", collection, "error", pushErr)
			if err := e.outbox.FailCollection(ctx, collection, pushErr.Error()); err != nil {
				e.log.Warn(ctx, "failed to mark outbox operations failed", "collection", collection, "error", err)
			}
			results = append(results, res)
			continue
		}

		if err := e.records.MarkSynced(ctx, collection); err != nil {
			e.log.Warn(ctx, "failed to mark records synced", "collection", collection, "error", err)
		}
		if err := e.outbox.CompleteCollection(ctx, collection); err != nil {
			e.log.Warn(ctx, "failed to complete outbox operations", "collection", collection, "error", err)
		}
		results = append(results, res)
	}

	if err := e.outbox.ClearCompleted(ctx); err != nil {
		e.log.Warn(ctx, "failed to compact outbox", "error", err)
	}
	return results
}

func (e *Engine) pull(ctx context.Context) []CollectionResult {
	uid := e.id.UserID()

	results := make([]CollectionResult, 0, len(e.collections))
	for _, collection := range e.collections {
		res := CollectionResult{Collection: collection}

		docs, err := e.store.List(ctx, uid, collection)
		if err != nil {
			res.Err = fmt.Errorf("list %s: %w", collection, err)
			e.log.Error(ctx, "collection pull failed", "collection", collection, "error", err)
			results = append(results, res)
			continue
		}

		for i := range docs {
			applied, err := e.applyRemote(ctx, collection, &docs[i])
			if err != nil {
				res.Err = err
				e.log.Error(ctx, "failed to apply remote record", "collection", collection, "id", docs[i].ID, "error", err)
				break
			}
			if applied {
				res.Count++
			}
		}
		results = append(results, res)
	}
	return results
}

// applyRemote applies the conflict rule: the remote document overwrites the
// local record iff its updatedAt is strictly greater. A missing local record
// counts as updatedAt 0.
func (e *Engine) applyRemote(ctx context.Context, collection string, doc *models.Record) (bool, error) {
	var localUpdatedAt int64
	local, err := e.records.Get(ctx, collection, doc.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		localUpdatedAt = 0
	case err != nil:
		return false, fmt.Errorf("read local %s/%s: %w", collection, doc.ID, err)
	default:
		localUpdatedAt = local.UpdatedAt
	}

	if doc.UpdatedAt <= localUpdatedAt {
		return false, nil
	}

	doc.SyncStatus = models.SyncSynced
	if err := e.records.Put(ctx, collection, doc); err != nil {
		return false, fmt.Errorf("apply remote %s/%s: %w", collection, doc.ID, err)
	}
	return true, nil
}
