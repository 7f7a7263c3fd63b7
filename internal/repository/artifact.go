package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/pagination"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const artifactColumns = `id, document_id, kind, payload, item_count, metadata, created_at`

type ArtifactRepository struct {
	db dbtx
}

func NewArtifactRepository(pool *pgxpool.Pool) *ArtifactRepository {
	return &ArtifactRepository{db: pool}
}

// SaveArtifact inserts a validated artifact and returns the ID read back
// from the insert.
func (r *ArtifactRepository) SaveArtifact(ctx context.Context, a *domain.Artifact) (string, error) {
	if err := domain.ValidateArtifact(a); err != nil {
		return "", err
	}
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", fmt.Errorf("encode artifact metadata: %w", err)
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id string
	err = r.db.QueryRow(ctx,
		`INSERT INTO artifacts (id, document_id, kind, payload, item_count, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.ID, a.DocumentID, a.Kind, []byte(a.Payload), a.ItemCount, metadata, createdAt,
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ArtifactRepository) GetByID(ctx context.Context, id string) (*domain.Artifact, error) {
	row := r.db.QueryRow(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = $1`, id)
	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, err
	}
	return a, nil
}

// ListByDocumentWithCursor lists a document's artifacts newest first. An
// empty kind lists every kind.
func (r *ArtifactRepository) ListByDocumentWithCursor(ctx context.Context, documentID string, kind domain.ArtifactKind, cursor *pagination.Cursor, limit int) (*service.ArtifactPageResult, error) {
	limit = pagination.ClampLimit(limit)

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+artifactColumns+`
			 FROM artifacts
			 WHERE document_id = $1 AND ($2 = '' OR kind = $2) AND (created_at, id) < ($3, $4)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $5`,
			documentID, string(kind), cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+artifactColumns+`
			 FROM artifacts
			 WHERE document_id = $1 AND ($2 = '' OR kind = $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			documentID, string(kind), limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, next, hasMore := pagination.Page(items, limit, func(a *domain.Artifact) (string, time.Time) {
		return a.ID, a.CreatedAt
	})
	return &service.ArtifactPageResult{
		Items:      items,
		NextCursor: next,
		HasMore:    hasMore,
	}, nil
}

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	var a domain.Artifact
	var payload, metadata []byte
	if err := row.Scan(&a.ID, &a.DocumentID, &a.Kind, &payload, &a.ItemCount, &metadata, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Payload = json.RawMessage(payload)
	if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
		return nil, fmt.Errorf("decode artifact %s metadata: %w", a.ID, err)
	}
	return &a, nil
}
