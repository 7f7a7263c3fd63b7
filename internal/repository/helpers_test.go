//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func createDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, status domain.DocumentStatus) *domain.Document {
	t.Helper()
	d := domain.NewDocument(uuid.NewString(), "lecture-notes.txt", 2048, now())
	d.Status = status
	if status == domain.DocumentStatusFailed {
		d.FailureReason = "no extractable text"
	}
	require.NoError(t, repo.Create(ctx, d))
	return d
}

func buildSegments(documentID string, texts ...string) []domain.Segment {
	segments := make([]domain.Segment, len(texts))
	offset := 0
	for i, text := range texts {
		n := len([]rune(text))
		segments[i] = domain.Segment{
			ID:            uuid.NewString(),
			DocumentID:    documentID,
			SequenceIndex: i,
			Text:          text,
			Label:         domain.SegmentLabelParagraph,
			Topic:         "Memory",
			PageNumber:    1,
			StartOffset:   offset,
			EndOffset:     offset + n,
			CreatedAt:     now(),
		}
		offset += n
	}
	return segments
}
