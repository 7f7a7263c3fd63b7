package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorRecordRepository stores the durable copy of index entries. The
// embedding column lets a lost or stale snapshot be rebuilt.
type VectorRecordRepository struct {
	db dbtx
}

func NewVectorRecordRepository(pool *pgxpool.Pool) *VectorRecordRepository {
	return &VectorRecordRepository{db: pool}
}

// SaveVectorRecords inserts the batch atomically and returns the number of
// records stored for the document. Records already stored are kept as is,
// so retrying a batch is safe.
func (r *VectorRecordRepository) SaveVectorRecords(ctx context.Context, documentID string, records []domain.VectorRecord) (int, error) {
	var count int
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			if rec.DocumentID != documentID {
				return domain.NewInputError("vector record %s belongs to document %s, not %s", rec.ID, rec.DocumentID, documentID)
			}
			createdAt := rec.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			batch.Queue(
				`INSERT INTO vector_records (id, segment_id, document_id, position, embedding, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (id) DO NOTHING`,
				rec.ID, rec.SegmentID, rec.DocumentID, rec.Position, pgvector.NewVector(rec.Embedding), createdAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM vector_records WHERE document_id = $1`, documentID).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetDocumentVectorScope returns the committed record IDs of a ready document.
// Documents in any other state, or deleted ones, have an empty scope.
func (r *VectorRecordRepository) GetDocumentVectorScope(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT v.id
		 FROM vector_records v
		 JOIN documents d ON d.id = v.document_id
		 WHERE v.document_id = $1 AND d.status = $2
		 ORDER BY v.position ASC`,
		documentID, domain.DocumentStatusReady,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListVectorRecordsFrom returns records at or after position, in position order.
func (r *VectorRecordRepository) ListVectorRecordsFrom(ctx context.Context, position int) ([]domain.VectorRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, segment_id, document_id, position, embedding, created_at
		 FROM vector_records
		 WHERE position >= $1
		 ORDER BY position ASC`,
		position,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.VectorRecord
	for rows.Next() {
		var rec domain.VectorRecord
		var embedding pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.SegmentID, &rec.DocumentID, &rec.Position, &embedding, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Embedding = embedding.Slice()
		records = append(records, rec)
	}
	return records, rows.Err()
}
