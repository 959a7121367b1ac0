package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"naskahsync/internal/document/model"
	"naskahsync/pkg/apperr"
	"naskahsync/pkg/logger"
	"time"

	"github.com/lib/pq"
)

const documentColumns = `id, name, description, type, content, owner_id, shared_with, created_at, last_modified`

type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO documents (`+documentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		doc.ID, doc.Name, doc.Description, string(doc.Type), []byte(doc.Content), doc.Owner, pq.Array(doc.SharedWith), doc.CreatedAt, doc.LastModified)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
		return storeErr(err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*model.Document, error) {
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.Sugar.Errorf("Failed to get doc %s: %v", id, err)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return doc, nil
}

// UpdateContent replaces the content unconditionally.
func (r *DocumentRepository) UpdateContent(ctx context.Context, id string, content json.RawMessage, at time.Time) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE documents SET content = $1, last_modified = $2 WHERE id = $3`, []byte(content), at, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to update content for doc %s: %v", id, err)
		return storeErr(err)
	}
	return requireRow(result)
}

// AddShare unions email into shared_with. An email already present leaves the
// row untouched.
func (r *DocumentRepository) AddShare(ctx context.Context, id, email string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE documents SET shared_with = array_append(shared_with, $1::text), last_modified = $2
		WHERE id = $3 AND NOT ($1::text = ANY(shared_with))`, email, at, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to share doc %s with %s: %v", id, email, err)
		return storeErr(err)
	}
	return nil
}

func (r *DocumentRepository) UpdateName(ctx context.Context, id, name string, at time.Time) error {
	result, err := r.DB.ExecContext(ctx, `UPDATE documents SET name = $1, last_modified = $2 WHERE id = $3`, name, at, id)
	if err != nil {
		logger.Sugar.Errorf("Failed to update name for doc %s: %v", id, err)
		return storeErr(err)
	}
	return requireRow(result)
}

// ListForUser returns documents owned by userID or shared with email, newest
// first. Both predicates are served by indexes (owner btree, shared_with GIN).
func (r *DocumentRepository) ListForUser(ctx context.Context, userID, email string) ([]model.Document, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE owner_id = $1 OR shared_with @> ARRAY[$2::text]
		ORDER BY last_modified DESC`, userID, email)
	if err != nil {
		logger.Sugar.Errorf("Failed to get documents for user %s: %v", userID, err)
		return nil, storeErr(err)
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			logger.Sugar.Errorf("Failed to scan document row: %v", err)
			return nil, storeErr(err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc     model.Document
		docType string
		content []byte
		shared  pq.StringArray
	)
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Description, &docType, &content, &doc.Owner, &shared, &doc.CreatedAt, &doc.LastModified); err != nil {
		return nil, err
	}
	doc.Type = model.DocType(docType)
	doc.Content = json.RawMessage(content)
	doc.SharedWith = model.NormalizeShares(shared)
	return &doc, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// storeErr maps driver errors onto the service taxonomy. Cancellation is
// passed through untouched.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return apperr.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
}
