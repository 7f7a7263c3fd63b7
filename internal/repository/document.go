package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/pagination"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, name, size_bytes, status, failure_reason, created_at, updated_at`

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	if err := domain.ValidateDocument(d); err != nil {
		return domain.NewInputError("%v", err)
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, name, size_bytes, status, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.Name, d.SizeBytes, d.Status, nullableString(d.FailureReason), d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return d, nil
}

// ListWithCursor lists documents newest first. An empty status lists all.
func (r *DocumentRepository) ListWithCursor(ctx context.Context, status domain.DocumentStatus, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error

	switch {
	case cursor != nil && status != "":
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE status = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			status, cursor.Timestamp, cursor.LastID, limit+1,
		)
	case cursor != nil:
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	case status != "":
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 WHERE status = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			status, limit+1,
		)
	default:
		rows, err = r.db.Query(ctx,
			`SELECT `+documentColumns+`
			 FROM documents
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, next, hasMore := pagination.Page(items, limit, func(d *domain.Document) (string, time.Time) {
		return d.ID, d.CreatedAt
	})
	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: next,
		HasMore:    hasMore,
	}, nil
}

// UpdateStatus applies a forward transition only when the stored status is
// still from, so concurrent writers cannot move a document backwards.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus, reason string) error {
	if !domain.CanTransition(from, to) {
		return domain.ErrInvalidStatusTransition.Wrap(fmt.Errorf("%s -> %s", from, to))
	}
	if to == domain.DocumentStatusFailed && reason == "" {
		return domain.NewInputError("failure reason is required")
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, failure_reason = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		to, nullableString(reason), time.Now().UTC(), id, from,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return domain.ErrInvalidStatusTransition.Wrap(fmt.Errorf("document %s is %s, not %s", id, current.Status, from))
}

// Delete removes a document with its segments, artifacts and index jobs.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var reason *string
	if err := row.Scan(&d.ID, &d.Name, &d.SizeBytes, &d.Status, &reason, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if reason != nil {
		d.FailureReason = *reason
	}
	return &d, nil
}
