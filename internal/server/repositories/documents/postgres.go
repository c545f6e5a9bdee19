package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mpetrenko/homeledger/internal/common"
	"github.com/mpetrenko/homeledger/internal/dbx"
	"github.com/mpetrenko/homeledger/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert merges fields into any existing row with the JSONB || operator; the
// envelope columns are replaced wholesale.
func (r *PostgresRepository) Upsert(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (user_id, collection, id, fields, updated_at, deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, collection, id)
		DO UPDATE SET
			fields = documents.fields || EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			deleted_at = EXCLUDED.deleted_at
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.UserID, doc.Collection, doc.ID, string(doc.Fields), doc.UpdatedAt, doc.Deleted, doc.DeletedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, collection, id string) (*models.Document, error) {
	query := `SELECT id, fields, updated_at, deleted, deleted_at
		FROM documents WHERE user_id = $1 AND collection = $2 AND id = $3`
	row := r.db.QueryRowContext(ctx, query, userID, collection, id)

	doc := models.Document{UserID: userID, Collection: collection}
	var fields string
	err := row.Scan(&doc.ID, &fields, &doc.UpdatedAt, &doc.Deleted, &doc.DeletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	doc.Fields = []byte(fields)
	return &doc, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID, collection string) ([]models.Document, error) {
	query := `SELECT id, fields, updated_at, deleted, deleted_at
		FROM documents WHERE user_id = $1 AND collection = $2 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.Document
	for rows.Next() {
		doc := models.Document{UserID: userID, Collection: collection}
		var fields string
		if err := rows.Scan(&doc.ID, &fields, &doc.UpdatedAt, &doc.Deleted, &doc.DeletedAt); err != nil {
			return nil, err
		}
		doc.Fields = []byte(fields)
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context, userID string) (map[string][]models.Document, error) {
	query := `SELECT collection, id, fields, updated_at, deleted, deleted_at
		FROM documents WHERE user_id = $1 ORDER BY collection, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.Document)
	for rows.Next() {
		doc := models.Document{UserID: userID}
		var fields string
		if err := rows.Scan(&doc.Collection, &doc.ID, &fields, &doc.UpdatedAt, &doc.Deleted, &doc.DeletedAt); err != nil {
			return nil, err
		}
		doc.Fields = []byte(fields)
		result[doc.Collection] = append(result[doc.Collection], doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
