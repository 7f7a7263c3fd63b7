package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/pagination"
)

const schedulingText = `# Scheduling

Round robin gives each process a fixed time slice and preempts it when the slice expires.

Shortest job first minimises average waiting time but needs to know burst lengths in advance.`

type documentFixture struct {
	docs     *MockDocumentRepository
	txDocs   *MockDocumentRepository
	segments *MockSegmentRepository
	txSegs   *MockSegmentRepository
	jobs     *MockIndexJobRepository
	index    *MockTombstoner
	txRunner *testTxRunner
	service  *DocumentService
}

func newDocumentFixture(uuids ...string) *documentFixture {
	f := &documentFixture{
		docs:     new(MockDocumentRepository),
		txDocs:   new(MockDocumentRepository),
		segments: new(MockSegmentRepository),
		txSegs:   new(MockSegmentRepository),
		jobs:     new(MockIndexJobRepository),
		index:    new(MockTombstoner),
	}
	f.txRunner = &testTxRunner{repos: &testTxRepos{
		documents: f.txDocs,
		segments:  f.txSegs,
		indexJobs: f.jobs,
	}}
	f.service = NewDocumentServiceWithUUIDGen(
		f.txRunner, f.docs, f.segments, f.index, DefaultSegmentConfig(), nil, NewMockUUIDGenerator(uuids...),
	)
	return f
}

func TestDocumentService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("stores document, segments and index job in one transaction", func(t *testing.T) {
		f := newDocumentFixture("doc-1", "seg-1", "seg-2", "seg-3", "seg-4", "job-1")
		expected := Segment(schedulingText, DefaultTargetChunkSize, DefaultChunkOverlap)
		require.NotEmpty(t, expected)

		f.txDocs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.ID == "doc-1" && d.Name == "os-notes.txt" && d.Status == domain.DocumentStatusReceived
		})).Return(nil)
		f.txSegs.On("SaveSegments", mock.Anything, "doc-1", mock.MatchedBy(func(segs []domain.Segment) bool {
			for i, s := range segs {
				if s.DocumentID != "doc-1" || s.SequenceIndex != i || s.ID == "" {
					return false
				}
			}
			return len(segs) == len(expected)
		})).Return(len(expected), nil)
		f.txDocs.On("UpdateStatus", mock.Anything, "doc-1", domain.DocumentStatusReceived, domain.DocumentStatusSegmented, "").Return(nil)
		f.jobs.On("Create", mock.Anything, mock.MatchedBy(func(j *domain.IndexJob) bool {
			return j.DocumentID == "doc-1" && j.Status == domain.IndexJobStatusPending
		})).Return(nil)

		doc, err := f.service.Ingest(ctx, IngestInput{Name: " os-notes.txt ", Text: schedulingText})

		require.NoError(t, err)
		assert.True(t, f.txRunner.called)
		assert.Equal(t, "doc-1", doc.ID)
		assert.Equal(t, domain.DocumentStatusSegmented, doc.Status)
		assert.Equal(t, int64(len(schedulingText)), doc.SizeBytes)
		f.txDocs.AssertExpectations(t)
		f.txSegs.AssertExpectations(t)
		f.jobs.AssertExpectations(t)
	})

	t.Run("text without content becomes a failed document", func(t *testing.T) {
		f := newDocumentFixture("doc-2")
		f.docs.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Document) bool {
			return d.Status == domain.DocumentStatusFailed && d.FailureReason == NoExtractableTextReason
		})).Return(nil)

		doc, err := f.service.Ingest(ctx, IngestInput{Name: "scan.pdf", Text: " \n\n\t "})

		require.NoError(t, err)
		assert.Equal(t, domain.DocumentStatusFailed, doc.Status)
		assert.False(t, f.txRunner.called)
		f.docs.AssertExpectations(t)
	})

	t.Run("name is required", func(t *testing.T) {
		f := newDocumentFixture()

		_, err := f.service.Ingest(ctx, IngestInput{Text: schedulingText})

		assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
	})

	t.Run("short read-back fails the transaction", func(t *testing.T) {
		f := newDocumentFixture("doc-3")
		f.txDocs.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.txSegs.On("SaveSegments", mock.Anything, "doc-3", mock.Anything).Return(0, nil)

		_, err := f.service.Ingest(ctx, IngestInput{Name: "n", Text: schedulingText})

		assert.ErrorIs(t, err, domain.ErrPersistenceFailed)
		f.txDocs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.jobs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("repository error is reported as persistence failure", func(t *testing.T) {
		f := newDocumentFixture("doc-4")
		f.txDocs.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		_, err := f.service.Ingest(ctx, IngestInput{Name: "n", Text: schedulingText})

		assert.ErrorIs(t, err, domain.ErrPersistenceFailed)
	})
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("passes status, cursor and clamped limit", func(t *testing.T) {
		f := newDocumentFixture()
		cursor := pagination.EncodeCursor("doc-9", fixedTime)
		f.docs.On("ListWithCursor", mock.Anything, domain.DocumentStatusReady, mock.MatchedBy(func(c *pagination.Cursor) bool {
			return c != nil && c.LastID == "doc-9"
		}), pagination.MaxLimit).Return(&DocumentPageResult{
			Items:      []*domain.Document{{ID: "doc-8"}},
			NextCursor: "next",
			HasMore:    true,
		}, nil)

		out, err := f.service.List(ctx, ListDocumentsInput{Status: "ready", Cursor: cursor, Limit: 500})

		require.NoError(t, err)
		assert.Len(t, out.Items, 1)
		assert.Equal(t, "next", out.Cursor)
		assert.True(t, out.HasMore)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newDocumentFixture()

		_, err := f.service.List(ctx, ListDocumentsInput{Status: "archived"})

		assert.ErrorIs(t, err, domain.ErrInvalidDocumentStatus)
	})

	t.Run("rejects malformed cursor", func(t *testing.T) {
		f := newDocumentFixture()

		_, err := f.service.List(ctx, ListDocumentsInput{Cursor: "%%%"})

		assert.Equal(t, domain.ErrCodeValidation, domain.CodeOf(err))
	})
}

func TestDocumentService_Segments(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture()
	f.docs.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrDocumentNotFound)
	f.docs.On("GetByID", mock.Anything, "doc-1").Return(&domain.Document{ID: "doc-1"}, nil)
	f.segments.On("ListByDocument", mock.Anything, "doc-1").Return([]domain.Segment{{ID: "s0"}}, nil)

	_, err := f.service.Segments(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	segs, err := f.service.Segments(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, segs, 1)
}

func TestDocumentService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes rows then tombstones vectors", func(t *testing.T) {
		f := newDocumentFixture()
		f.docs.On("Delete", mock.Anything, "doc-1").Return(nil)
		f.index.On("Tombstone", mock.Anything, "doc-1").Return(nil)

		require.NoError(t, f.service.Delete(ctx, "doc-1"))
		f.index.AssertExpectations(t)
	})

	t.Run("tombstone failure does not fail the delete", func(t *testing.T) {
		f := newDocumentFixture()
		f.docs.On("Delete", mock.Anything, "doc-1").Return(nil)
		f.index.On("Tombstone", mock.Anything, "doc-1").Return(errors.New("disk full"))

		assert.NoError(t, f.service.Delete(ctx, "doc-1"))
	})

	t.Run("missing document is not tombstoned", func(t *testing.T) {
		f := newDocumentFixture()
		f.docs.On("Delete", mock.Anything, "doc-x").Return(domain.ErrDocumentNotFound)

		err := f.service.Delete(ctx, "doc-x")

		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
		f.index.AssertNotCalled(t, "Tombstone", mock.Anything, mock.Anything)
	})
}
