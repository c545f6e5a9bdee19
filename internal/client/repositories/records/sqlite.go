package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/mpetrenko/homeledger/internal/client/models"
	"github.com/mpetrenko/homeledger/internal/common"
	"github.com/mpetrenko/homeledger/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// fieldName restricts GetAllByIndex fields to plain identifiers; the field
// is interpolated into a json_extract path and must not carry quoting.
var fieldName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (r *SQLiteRepository) Get(ctx context.Context, collection, id string) (*models.Record, error) {
	query := `SELECT id, fields, updated_at, sync_status, deleted, deleted_at
		FROM records WHERE collection = ? AND id = ?`
	row := r.db.QueryRowContext(ctx, query, collection, id)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, collection string, rec *models.Record) error {
	query := `INSERT INTO records (collection, id, fields, updated_at, sync_status, deleted, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at,
			sync_status = excluded.sync_status,
			deleted = excluded.deleted,
			deleted_at = excluded.deleted_at`
	_, err := r.db.ExecContext(ctx, query,
		collection, rec.ID, string(rec.Fields), rec.UpdatedAt, rec.SyncStatus, boolToInt(rec.Deleted), rec.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s/%s: %w", collection, rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context, collection string) ([]models.Record, error) {
	query := `SELECT id, fields, updated_at, sync_status, deleted, deleted_at
		FROM records WHERE collection = ?`
	return r.queryRecords(ctx, query, collection)
}

func (r *SQLiteRepository) GetAllByIndex(ctx context.Context, collection, field string, value any) ([]models.Record, error) {
	if !fieldName.MatchString(field) {
		return nil, fmt.Errorf("invalid index field %q", field)
	}
	query := fmt.Sprintf(`SELECT id, fields, updated_at, sync_status, deleted, deleted_at
		FROM records WHERE collection = ? AND deleted = 0 AND json_extract(fields, '$.%s') = ?`, field)
	return r.queryRecords(ctx, query, collection, value)
}

func (r *SQLiteRepository) Delete(ctx context.Context, collection, id string, now int64) error {
	query := `UPDATE records SET deleted = 1, deleted_at = ?, updated_at = ?, sync_status = ?
		WHERE collection = ? AND id = ? AND deleted = 0`
	res, err := r.db.ExecContext(ctx, query, now, now, models.SyncPending, collection, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", collection, id, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, collection string) error {
	query := `UPDATE records SET sync_status = ? WHERE collection = ? AND sync_status = ?`
	_, err := r.db.ExecContext(ctx, query, models.SyncSynced, collection, models.SyncPending)
	if err != nil {
		return fmt.Errorf("failed to mark records synced in %s: %w", collection, err)
	}
	return nil
}

func (r *SQLiteRepository) queryRecords(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRecord(scan func(dest ...any) error) (*models.Record, error) {
	var rec models.Record
	var fields string
	var deleted int
	if err := scan(&rec.ID, &fields, &rec.UpdatedAt, &rec.SyncStatus, &deleted, &rec.DeletedAt); err != nil {
		return nil, err
	}
	rec.Fields = []byte(fields)
	rec.Deleted = deleted != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
