package service

import (
	"context"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/pagination"
	"github.com/google/uuid"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, status domain.DocumentStatus, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	// UpdateStatus moves a document from one status to another. It fails with
	// ErrInvalidStatusTransition when the stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus, reason string) error
	Delete(ctx context.Context, id string) error
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// SegmentRepositoryInterface defines the repository interface for segment persistence
type SegmentRepositoryInterface interface {
	// SaveSegments stores the batch and returns the number of segments
	// committed for the document, read back after the write.
	SaveSegments(ctx context.Context, documentID string, segments []domain.Segment) (int, error)
	GetSegment(ctx context.Context, id string) (*domain.Segment, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.Segment, error)
	ListFirstByDocument(ctx context.Context, documentID string, limit int) ([]domain.Segment, error)
}

// VectorRecordRepositoryInterface defines the repository interface for vector records
type VectorRecordRepositoryInterface interface {
	SaveVectorRecords(ctx context.Context, documentID string, records []domain.VectorRecord) (int, error)
	// GetDocumentVectorScope returns the IDs of the committed vector records of a document
	GetDocumentVectorScope(ctx context.Context, documentID string) ([]string, error)
	ListVectorRecordsFrom(ctx context.Context, position int) ([]domain.VectorRecord, error)
}

// ArtifactRepositoryInterface defines the repository interface for artifact persistence
type ArtifactRepositoryInterface interface {
	// SaveArtifact stores a validated artifact and returns its stored ID
	SaveArtifact(ctx context.Context, a *domain.Artifact) (string, error)
	GetByID(ctx context.Context, id string) (*domain.Artifact, error)
	ListByDocumentWithCursor(ctx context.Context, documentID string, kind domain.ArtifactKind, cursor *pagination.Cursor, limit int) (*ArtifactPageResult, error)
}

type ArtifactPageResult struct {
	Items      []*domain.Artifact
	NextCursor string
	HasMore    bool
}

// IndexJobRepositoryInterface defines the repository interface for index job persistence
type IndexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IndexJob) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}
