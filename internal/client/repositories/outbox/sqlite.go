package outbox

import (
	"context"
	"fmt"

	"github.com/mpetrenko/homeledger/internal/client/models"
	"github.com/mpetrenko/homeledger/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, op *models.Operation) error {
	query := `INSERT INTO outbox (type, collection, record_id, payload, status, retry_count, last_error, timestamp)
		VALUES (?, ?, ?, ?, ?, 0, '', ?)`
	res, err := r.db.ExecContext(ctx, query,
		op.Type, op.Collection, op.RecordID, string(op.Payload), models.OpPending, op.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get operation id: %w", err)
	}
	op.ID = id
	op.Status = models.OpPending
	return nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context, maxRetries int) ([]models.Operation, error) {
	query := `SELECT id, type, collection, record_id, payload, status, retry_count, last_error, timestamp
		FROM outbox
		WHERE status IN (?, ?) AND retry_count < ?
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, models.OpPending, models.OpFailed, maxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	var result []models.Operation
	for rows.Next() {
		var op models.Operation
		var payload string
		if err := rows.Scan(&op.ID, &op.Type, &op.Collection, &op.RecordID, &payload,
			&op.Status, &op.RetryCount, &op.LastError, &op.Timestamp); err != nil {
			return nil, err
		}
		op.Payload = []byte(payload)
		result = append(result, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) MarkCompleted(ctx context.Context, id int64) error {
	query := `UPDATE outbox SET status = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, models.OpCompleted, id); err != nil {
		return fmt.Errorf("failed to complete operation %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	query := `UPDATE outbox SET status = ?, retry_count = retry_count + 1, last_error = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, models.OpFailed, errMsg, id); err != nil {
		return fmt.Errorf("failed to fail operation %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) CompleteCollection(ctx context.Context, collection string) error {
	query := `UPDATE outbox SET status = ? WHERE collection = ? AND status IN (?, ?)`
	_, err := r.db.ExecContext(ctx, query, models.OpCompleted, collection, models.OpPending, models.OpFailed)
	if err != nil {
		return fmt.Errorf("failed to complete operations for %s: %w", collection, err)
	}
	return nil
}

func (r *SQLiteRepository) FailCollection(ctx context.Context, collection, errMsg string) error {
	query := `UPDATE outbox SET status = ?, retry_count = retry_count + 1, last_error = ?
		WHERE collection = ? AND status IN (?, ?)`
	_, err := r.db.ExecContext(ctx, query, models.OpFailed, errMsg, collection, models.OpPending, models.OpFailed)
	if err != nil {
		return fmt.Errorf("failed to fail operations for %s: %w", collection, err)
	}
	return nil
}

func (r *SQLiteRepository) ClearCompleted(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM outbox WHERE status = ?`, models.OpCompleted); err != nil {
		return fmt.Errorf("failed to clear completed operations: %w", err)
	}
	return nil
}
