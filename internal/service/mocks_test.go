package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/pagination"
	"github.com/cloo-solutions/studyforge/internal/provider"
	"github.com/cloo-solutions/studyforge/internal/vectorindex"
)

// MockDocumentRepository is a mock implementation of DocumentRepositoryInterface
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepository) ListWithCursor(ctx context.Context, status domain.DocumentStatus, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	args := m.Called(ctx, status, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*DocumentPageResult), args.Error(1)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id string, from, to domain.DocumentStatus, reason string) error {
	args := m.Called(ctx, id, from, to, reason)
	return args.Error(0)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSegmentRepository is a mock implementation of SegmentRepositoryInterface
type MockSegmentRepository struct {
	mock.Mock
}

func (m *MockSegmentRepository) SaveSegments(ctx context.Context, documentID string, segments []domain.Segment) (int, error) {
	args := m.Called(ctx, documentID, segments)
	return args.Int(0), args.Error(1)
}

func (m *MockSegmentRepository) GetSegment(ctx context.Context, id string) (*domain.Segment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Segment), args.Error(1)
}

func (m *MockSegmentRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Segment, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Segment), args.Error(1)
}

func (m *MockSegmentRepository) ListFirstByDocument(ctx context.Context, documentID string, limit int) ([]domain.Segment, error) {
	args := m.Called(ctx, documentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Segment), args.Error(1)
}

// MockVectorRecordRepository is a mock implementation of VectorRecordRepositoryInterface
type MockVectorRecordRepository struct {
	mock.Mock
}

func (m *MockVectorRecordRepository) SaveVectorRecords(ctx context.Context, documentID string, records []domain.VectorRecord) (int, error) {
	args := m.Called(ctx, documentID, records)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorRecordRepository) GetDocumentVectorScope(ctx context.Context, documentID string) ([]string, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVectorRecordRepository) ListVectorRecordsFrom(ctx context.Context, position int) ([]domain.VectorRecord, error) {
	args := m.Called(ctx, position)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VectorRecord), args.Error(1)
}

// MockArtifactRepository is a mock implementation of ArtifactRepositoryInterface
type MockArtifactRepository struct {
	mock.Mock
}

func (m *MockArtifactRepository) SaveArtifact(ctx context.Context, a *domain.Artifact) (string, error) {
	args := m.Called(ctx, a)
	return args.String(0), args.Error(1)
}

func (m *MockArtifactRepository) GetByID(ctx context.Context, id string) (*domain.Artifact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artifact), args.Error(1)
}

func (m *MockArtifactRepository) ListByDocumentWithCursor(ctx context.Context, documentID string, kind domain.ArtifactKind, cursor *pagination.Cursor, limit int) (*ArtifactPageResult, error) {
	args := m.Called(ctx, documentID, kind, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ArtifactPageResult), args.Error(1)
}

// MockIndexJobRepository is a mock implementation of IndexJobRepositoryInterface
type MockIndexJobRepository struct {
	mock.Mock
}

func (m *MockIndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockVectorSearcher is a mock implementation of VectorSearcher
type MockVectorSearcher struct {
	mock.Mock
}

func (m *MockVectorSearcher) Search(ctx context.Context, query []float32, scope vectorindex.Scope, k int) ([]vectorindex.Hit, error) {
	args := m.Called(ctx, query, scope, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vectorindex.Hit), args.Error(1)
}

// MockVectorIndex is a mock implementation of VectorIndex
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Add(ctx context.Context, segments []domain.Segment) ([]domain.VectorRecord, error) {
	args := m.Called(ctx, segments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VectorRecord), args.Error(1)
}

func (m *MockVectorIndex) RecordsForDocument(documentID string) []domain.VectorRecord {
	args := m.Called(documentID)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]domain.VectorRecord)
}

// MockTombstoner is a mock implementation of DocumentTombstoner
type MockTombstoner struct {
	mock.Mock
}

func (m *MockTombstoner) Tombstone(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

// MockTextGateway is a mock implementation of TextGateway
type MockTextGateway struct {
	mock.Mock
}

func (m *MockTextGateway) Generate(ctx context.Context, kind domain.ArtifactKind, prompt string, opts provider.Options) (*provider.Result, error) {
	args := m.Called(ctx, kind, prompt, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Result), args.Error(1)
}

// MockContextRetriever is a mock implementation of ContextRetriever
type MockContextRetriever struct {
	mock.Mock
}

func (m *MockContextRetriever) Retrieve(ctx context.Context, input RetrieveInput) (*domain.RetrievalResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetrievalResult), args.Error(1)
}
