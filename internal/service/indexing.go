package service

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
)

// VectorIndex is the write side of the vector index used by IndexService
type VectorIndex interface {
	Add(ctx context.Context, segments []domain.Segment) ([]domain.VectorRecord, error)
	RecordsForDocument(documentID string) []domain.VectorRecord
}

// IndexService embeds a document's segments and commits the vector records
// that make them searchable. It is called by the background worker.
type IndexService struct {
	docs     DocumentRepositoryInterface
	segments SegmentRepositoryInterface
	vectors  VectorRecordRepositoryInterface
	index    VectorIndex
	log      *logger.Logger
}

// NewIndexService creates a new IndexService instance
func NewIndexService(
	docs DocumentRepositoryInterface,
	segments SegmentRepositoryInterface,
	vectors VectorRecordRepositoryInterface,
	index VectorIndex,
	log *logger.Logger,
) *IndexService {
	if log == nil {
		log = logger.Nop()
	}
	return &IndexService{
		docs:     docs,
		segments: segments,
		vectors:  vectors,
		index:    index,
		log:      log,
	}
}

// IndexDocument moves a segmented document to ready. It is idempotent: a
// retry after a partial run reuses vectors the index already holds for the
// document instead of embedding them again.
func (s *IndexService) IndexDocument(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexService.IndexDocument", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "index",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}

	switch doc.Status {
	case domain.DocumentStatusReady, domain.DocumentStatusFailed:
		return nil
	case domain.DocumentStatusReceived:
		return domain.NewDomainError(domain.ErrCodeInvalidOperation, "document has no committed segments")
	}

	segments, err := s.segments.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return s.MarkFailed(ctx, documentID, NoExtractableTextReason)
	}

	records := s.index.RecordsForDocument(documentID)
	switch {
	case len(records) == 0:
		records, err = s.index.Add(ctx, segments)
		if err != nil {
			span.SetError(err)
			return err
		}
		s.log.Debug("segments embedded", "document_id", documentID, "records", len(records))
	case len(records) != len(segments):
		err := domain.ErrIndexWriteFailed.Wrap(fmt.Errorf("index holds %d records for %d segments", len(records), len(segments)))
		span.SetError(err)
		return err
	}

	if doc.Status == domain.DocumentStatusSegmented {
		if err := s.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusSegmented, domain.DocumentStatusIndexed, ""); err != nil {
			return err
		}
	}

	committed, err := s.vectors.SaveVectorRecords(ctx, documentID, records)
	if err != nil {
		span.SetError(err)
		return domain.ErrPersistenceFailed.Wrap(err)
	}
	if committed != len(records) {
		return domain.ErrPersistenceFailed.Wrap(fmt.Errorf("committed %d of %d vector records", committed, len(records)))
	}

	if err := s.docs.UpdateStatus(ctx, documentID, domain.DocumentStatusIndexed, domain.DocumentStatusReady, ""); err != nil {
		return err
	}

	s.log.Info("document ready", "document_id", documentID, "records", committed)
	return nil
}

// MarkFailed moves a document to failed with the given reason. Documents
// already ready or failed are left untouched.
func (s *IndexService) MarkFailed(ctx context.Context, documentID, reason string) error {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(doc.Status, domain.DocumentStatusFailed) {
		return nil
	}
	if err := s.docs.UpdateStatus(ctx, documentID, doc.Status, domain.DocumentStatusFailed, reason); err != nil {
		return err
	}
	s.log.Warn("document failed", "document_id", documentID, "reason", reason)
	return nil
}
