// Package outbox implements the mutation outbox: a durable queue of local
// mutations awaiting transmission to the remote store. Operations are written
// in the same transaction as the record change they describe and stay visible
// to ListPending until explicitly completed.
package outbox

import (
	"context"

	"github.com/mpetrenko/homeledger/internal/client/models"
)

type Repository interface {
	// Enqueue appends the operation and fills in its sequence ID.
	Enqueue(ctx context.Context, op *models.Operation) error

	// ListPending returns operations with status pending or failed whose
	// retry count is below maxRetries, in enqueue order.
	ListPending(ctx context.Context, maxRetries int) ([]models.Operation, error)

	// MarkCompleted transitions one operation to completed.
	MarkCompleted(ctx context.Context, id int64) error

	// MarkFailed transitions one operation to failed, records the error and
	// increments its retry count.
	MarkFailed(ctx context.Context, id int64, errMsg string) error

	// CompleteCollection marks every pending/failed operation of the
	// collection completed. Used after the collection pushed clean.
	CompleteCollection(ctx context.Context, collection string) error

	// FailCollection fails every pending operation of the collection,
	// incrementing retry counts.
	FailCollection(ctx context.Context, collection, errMsg string) error

	// ClearCompleted compacts the queue by deleting completed operations.
	ClearCompleted(ctx context.Context) error
}
