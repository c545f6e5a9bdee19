package outbox

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrenko/homeledger/internal/client/models"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE outbox (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  type        TEXT NOT NULL,
  collection  TEXT NOT NULL,
  record_id   TEXT NOT NULL,
  payload     TEXT NOT NULL,
  status      TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  last_error  TEXT NOT NULL DEFAULT '',
  timestamp   INTEGER NOT NULL
);
`)
	require.NoError(t, err)

	return db
}

func enqueue(t *testing.T, r *SQLiteRepository, collection, recordID string) *models.Operation {
	t.Helper()
	op := &models.Operation{
		Type:       models.OpCreate,
		Collection: collection,
		RecordID:   recordID,
		Payload:    []byte(`{"id":"` + recordID + `"}`),
		Timestamp:  100,
	}
	require.NoError(t, r.Enqueue(context.Background(), op))
	return op
}

func TestEnqueue_AssignsSequentialIDs(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	op1 := enqueue(t, r, "accounts", "a1")
	op2 := enqueue(t, r, "accounts", "a2")

	assert.Equal(t, models.OpPending, op1.Status)
	assert.Greater(t, op2.ID, op1.ID)
}

func TestListPending_OrderAndRetryBound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	op1 := enqueue(t, r, "accounts", "a1")
	op2 := enqueue(t, r, "habits", "h1")
	op3 := enqueue(t, r, "habits", "h2")

	// op2 fails three times and drops below the retry bound
	for i := 0; i < 3; i++ {
		require.NoError(t, r.MarkFailed(ctx, op2.ID, "boom"))
	}

	pending, err := r.ListPending(ctx, 3)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, op1.ID, pending[0].ID)
	assert.Equal(t, op3.ID, pending[1].ID)

	// with a higher bound the failed operation is retried
	pending, err = r.ListPending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, models.OpFailed, pending[1].Status)
	assert.Equal(t, 3, pending[1].RetryCount)
	assert.Equal(t, "boom", pending[1].LastError)
}

func TestOperation_VisibleUntilCompleted(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	op := enqueue(t, r, "accounts", "a1")

	// still pending after a failure — never silently lost
	require.NoError(t, r.MarkFailed(ctx, op.ID, "network"))
	pending, err := r.ListPending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, r.MarkCompleted(ctx, op.ID))
	pending, err = r.ListPending(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCompleteCollection(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	enqueue(t, r, "accounts", "a1")
	failed := enqueue(t, r, "accounts", "a2")
	require.NoError(t, r.MarkFailed(ctx, failed.ID, "x"))
	other := enqueue(t, r, "habits", "h1")

	require.NoError(t, r.CompleteCollection(ctx, "accounts"))

	pending, err := r.ListPending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, other.ID, pending[0].ID)
}

func TestFailCollection_IncrementsRetries(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	enqueue(t, r, "accounts", "a1")
	enqueue(t, r, "accounts", "a2")

	require.NoError(t, r.FailCollection(ctx, "accounts", "push failed"))
	require.NoError(t, r.FailCollection(ctx, "accounts", "push failed"))

	pending, err := r.ListPending(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, op := range pending {
		assert.Equal(t, models.OpFailed, op.Status)
		assert.Equal(t, 2, op.RetryCount)
	}
}

func TestClearCompleted_Compacts(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	op1 := enqueue(t, r, "accounts", "a1")
	enqueue(t, r, "accounts", "a2")
	require.NoError(t, r.MarkCompleted(ctx, op1.ID))

	require.NoError(t, r.ClearCompleted(ctx))

	var count int
	require.NoError(t, r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&count))
	assert.Equal(t, 1, count)
}
