package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/pagination"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
)

// NoExtractableTextReason is recorded on documents that produced no segments
const NoExtractableTextReason = "no extractable text"

// DocumentTombstoner hides a deleted document's vectors from search
type DocumentTombstoner interface {
	Tombstone(ctx context.Context, documentID string) error
}

// DocumentService ingests documents and serves document queries
type DocumentService struct {
	txRunner TxRunner
	docs     DocumentRepositoryInterface
	segments SegmentRepositoryInterface
	index    DocumentTombstoner
	segCfg   SegmentConfig
	uuidGen  UUIDGenerator
	log      *logger.Logger
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	txRunner TxRunner,
	docs DocumentRepositoryInterface,
	segments SegmentRepositoryInterface,
	index DocumentTombstoner,
	segCfg SegmentConfig,
	log *logger.Logger,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(txRunner, docs, segments, index, segCfg, log, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	txRunner TxRunner,
	docs DocumentRepositoryInterface,
	segments SegmentRepositoryInterface,
	index DocumentTombstoner,
	segCfg SegmentConfig,
	log *logger.Logger,
	uuidGen UUIDGenerator,
) *DocumentService {
	if log == nil {
		log = logger.Nop()
	}
	return &DocumentService{
		txRunner: txRunner,
		docs:     docs,
		segments: segments,
		index:    index,
		segCfg:   segCfg.normalized(),
		uuidGen:  uuidGen,
		log:      log,
	}
}

// IngestInput is the extracted text of one uploaded source
type IngestInput struct {
	Name string
	Text string
}

type ListDocumentsInput struct {
	Status string
	Cursor string
	Limit  int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// Ingest segments the text and stores the document, its segments and an
// index job in one transaction. A text that yields no segments is stored as
// a failed document rather than returned as an error.
func (s *DocumentService) Ingest(ctx context.Context, input IngestInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Ingest", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domain.NewInputError("document name is required")
	}

	now := time.Now().UTC()
	docID := s.uuidGen.NewString()
	doc := domain.NewDocument(docID, name, int64(len(input.Text)), now)

	segments := Segment(input.Text, s.segCfg.TargetChunkSize, s.segCfg.Overlap)
	if len(segments) == 0 {
		doc.Status = domain.DocumentStatusFailed
		doc.FailureReason = NoExtractableTextReason
		if err := s.docs.Create(ctx, doc); err != nil {
			span.SetError(err)
			return nil, domain.ErrPersistenceFailed.Wrap(err)
		}
		s.log.Warn("document has no extractable text", "document_id", docID, "name", name)
		return doc, nil
	}

	for i := range segments {
		segments[i].ID = s.uuidGen.NewString()
		segments[i].DocumentID = docID
		segments[i].CreatedAt = now
	}
	if err := domain.ValidateSegmentBatch(docID, segments); err != nil {
		span.SetError(err)
		return nil, err
	}

	job := domain.NewIndexJob(s.uuidGen.NewString(), docID, domain.IndexJobStatusPending, 0, "", now, nil)

	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().Create(ctx, doc); err != nil {
			return err
		}
		committed, err := repos.Segments().SaveSegments(ctx, docID, segments)
		if err != nil {
			return err
		}
		if committed != len(segments) {
			return domain.NewDomainError(domain.ErrCodePersistenceFailed, "segment count mismatch after save")
		}
		if err := repos.Documents().UpdateStatus(ctx, docID, domain.DocumentStatusReceived, domain.DocumentStatusSegmented, ""); err != nil {
			return err
		}
		return repos.IndexJobs().Create(ctx, job)
	})
	if err != nil {
		span.SetError(err)
		if domain.CodeOf(err) == "" {
			err = domain.ErrPersistenceFailed.Wrap(err)
		}
		return nil, err
	}

	doc.Status = domain.DocumentStatusSegmented
	s.log.Info("document ingested", "document_id", docID, "segments", len(segments))
	return doc, nil
}

// Get returns a document by ID
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	if id == "" {
		return nil, domain.NewInputError("document id is required")
	}
	return s.docs.GetByID(ctx, id)
}

// List returns documents newest first, optionally filtered by status
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	var status domain.DocumentStatus
	if input.Status != "" {
		parsed, err := domain.ParseDocumentStatus(input.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewInputError("invalid cursor")
	}
	limit := pagination.ClampLimit(input.Limit)

	result, err := s.docs.ListWithCursor(ctx, status, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Segments returns the segments of a document in sequence order
func (s *DocumentService) Segments(ctx context.Context, documentID string) ([]domain.Segment, error) {
	if _, err := s.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.segments.ListByDocument(ctx, documentID)
}

// Delete removes the document with its segments, vector records and
// artifacts, then hides its vectors from search.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	if id == "" {
		return domain.NewInputError("document id is required")
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		span.SetError(err)
		return err
	}

	if s.index != nil {
		// The committed scope is already gone, so search cannot reach these vectors.
		if err := s.index.Tombstone(ctx, id); err != nil {
			s.log.Warn("failed to tombstone document vectors", "document_id", id, "error", err)
		}
	}
	s.log.Info("document deleted", "document_id", id)
	return nil
}
