// Package documents stores per-user, per-collection documents. Upsert is a
// field-level merge-write: pushed fields replace their stored counterparts,
// everything else in the stored document stays.
package documents

import (
	"context"

	"github.com/mpetrenko/homeledger/internal/server/models"
)

type Repository interface {
	// Upsert merge-writes one document.
	Upsert(ctx context.Context, doc *models.Document) error

	// Get returns one document or common.ErrNotFound.
	Get(ctx context.Context, userID, collection, id string) (*models.Document, error)

	// List returns the whole collection, tombstones included.
	List(ctx context.Context, userID, collection string) ([]models.Document, error)

	// ListAll returns every document of the user grouped by collection.
	// Used by the snapshot backup.
	ListAll(ctx context.Context, userID string) (map[string][]models.Document, error)
}
