package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const segmentColumns = `id, document_id, sequence_index, text, label, topic, page_number,
	start_offset, end_offset, overlap_chars, created_at`

type SegmentRepository struct {
	db dbtx
}

func NewSegmentRepository(pool *pgxpool.Pool) *SegmentRepository {
	return &SegmentRepository{db: pool}
}

func NewSegmentRepositoryWithTx(tx pgx.Tx) *SegmentRepository {
	return &SegmentRepository{db: tx}
}

// SaveSegments inserts the batch atomically and returns the number of
// segments stored for the document afterwards.
func (r *SegmentRepository) SaveSegments(ctx context.Context, documentID string, segments []domain.Segment) (int, error) {
	if err := domain.ValidateSegmentBatch(documentID, segments); err != nil {
		return 0, domain.NewInputError("%v", err)
	}

	var count int
	err := withTx(ctx, r.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range segments {
			createdAt := s.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			batch.Queue(
				`INSERT INTO segments
					(id, document_id, sequence_index, text, label, topic, page_number, start_offset, end_offset, overlap_chars, created_at)
				 VALUES
					($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				s.ID,
				s.DocumentID,
				s.SequenceIndex,
				s.Text,
				nullableString(string(s.Label)),
				nullableString(s.Topic),
				s.PageNumber,
				s.StartOffset,
				s.EndOffset,
				s.OverlapChars,
				createdAt,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrSegmentsAlreadyExist
			}
			return err
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM segments WHERE document_id = $1`, documentID).Scan(&count)
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SegmentRepository) GetSegment(ctx context.Context, id string) (*domain.Segment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id)
	s, err := scanSegment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSegmentNotFound
		}
		return nil, err
	}
	return s, nil
}

// ListByDocument returns every segment of a document in sequence order.
func (r *SegmentRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Segment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE document_id = $1 ORDER BY sequence_index ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSegmentRows(rows)
}

// ListFirstByDocument returns the first limit segments of a document.
func (r *SegmentRepository) ListFirstByDocument(ctx context.Context, documentID string, limit int) ([]domain.Segment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE document_id = $1 ORDER BY sequence_index ASC LIMIT $2`,
		documentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSegmentRows(rows)
}

func scanSegment(row pgx.Row) (*domain.Segment, error) {
	var s domain.Segment
	var label, topic *string
	err := row.Scan(&s.ID, &s.DocumentID, &s.SequenceIndex, &s.Text, &label, &topic, &s.PageNumber,
		&s.StartOffset, &s.EndOffset, &s.OverlapChars, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	if label != nil {
		s.Label = domain.SegmentLabel(*label)
	}
	if topic != nil {
		s.Topic = *topic
	}
	return &s, nil
}

func scanSegmentRows(rows pgx.Rows) ([]domain.Segment, error) {
	segments := []domain.Segment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *s)
	}
	return segments, rows.Err()
}
