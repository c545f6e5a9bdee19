// Package records implements the local record store: durable on-device
// storage of syncable entities, keyed by (collection, id), each row carrying
// the sync envelope (updatedAt, syncStatus, tombstone).
package records

import (
	"context"

	"github.com/mpetrenko/homeledger/internal/client/models"
)

// Repository is the local record store contract. Writes are local-only and
// unconditional: there is no version check at this layer, conflict
// resolution happens in the reconciliation engine.
type Repository interface {
	// Get returns one record, tombstoned or not. Missing records yield
	// common.ErrNotFound.
	Get(ctx context.Context, collection, id string) (*models.Record, error)

	// Put upserts the record as-is, envelope included.
	Put(ctx context.Context, collection string, rec *models.Record) error

	// GetAll returns every record in the collection, tombstones included —
	// push needs them so deletions propagate.
	GetAll(ctx context.Context, collection string) ([]models.Record, error)

	// GetAllByIndex returns live records whose named domain field equals
	// value.
	GetAllByIndex(ctx context.Context, collection, field string, value any) ([]models.Record, error)

	// Delete tombstones a record: deleted=1, deletedAt=now, updatedAt=now,
	// syncStatus=pending. The row is never physically removed.
	Delete(ctx context.Context, collection, id string, now int64) error

	// MarkSynced flips every pending record in the collection to synced.
	// Called after a successful push of that collection.
	MarkSynced(ctx context.Context, collection string) error
}
