package service

import (
	"context"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
	"github.com/cloo-solutions/studyforge/internal/vectorindex"
)

const (
	DefaultTopK            = 6
	DefaultMaxContextChars = 4000

	defaultQueryCacheSize = 256
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher is the read side of the vector index
type VectorSearcher interface {
	Search(ctx context.Context, query []float32, scope vectorindex.Scope, k int) ([]vectorindex.Hit, error)
}

// SegmentReader resolves segments for retrieval
type SegmentReader interface {
	GetSegment(ctx context.Context, id string) (*domain.Segment, error)
	ListFirstByDocument(ctx context.Context, documentID string, limit int) ([]domain.Segment, error)
}

// VectorScopeReader returns the committed vector record IDs of a document
type VectorScopeReader interface {
	GetDocumentVectorScope(ctx context.Context, documentID string) ([]string, error)
}

// RetrievalConfig holds retrieval defaults
type RetrievalConfig struct {
	TopK            int
	MaxContextChars int
	QueryCacheSize  int
}

// DefaultRetrievalConfig returns the stock retrieval settings
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:            DefaultTopK,
		MaxContextChars: DefaultMaxContextChars,
		QueryCacheSize:  defaultQueryCacheSize,
	}
}

// RetrieveInput describes one retrieval call. Zero K and MaxContextChars
// fall back to the configured defaults.
type RetrieveInput struct {
	DocumentID      string
	Query           string
	K               int
	MaxContextChars int
}

// Retriever returns the segments of one document most relevant to a query,
// bounded by count and total characters.
type Retriever struct {
	embedder EmbeddingClient
	index    VectorSearcher
	segments SegmentReader
	scopes   VectorScopeReader
	cache    *lru.Cache[string, []float32]
	cfg      RetrievalConfig
	log      *logger.Logger
}

// NewRetriever creates a new Retriever instance
func NewRetriever(
	embedder EmbeddingClient,
	index VectorSearcher,
	segments SegmentReader,
	scopes VectorScopeReader,
	cfg RetrievalConfig,
	log *logger.Logger,
) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultMaxContextChars
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = defaultQueryCacheSize
	}
	if log == nil {
		log = logger.Nop()
	}
	cache, _ := lru.New[string, []float32](cfg.QueryCacheSize)
	return &Retriever{
		embedder: embedder,
		index:    index,
		segments: segments,
		scopes:   scopes,
		cache:    cache,
		cfg:      cfg,
		log:      log,
	}
}

// Retrieve ranks segments by score descending, ties broken by sequence
// index, and keeps a prefix whose total length fits MaxContextChars. An
// empty query returns the document's first segments in sequence order.
// A document with no committed vectors yields an empty result.
func (r *Retriever) Retrieve(ctx context.Context, input RetrieveInput) (*domain.RetrievalResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "Retriever.Retrieve", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "retrieve",
	})
	defer span.End()

	if input.DocumentID == "" {
		return nil, domain.NewInputError("document id is required")
	}
	if input.K < 0 {
		return nil, domain.NewInputError("k must be positive, got %d", input.K)
	}
	if input.MaxContextChars < 0 {
		return nil, domain.NewInputError("max context chars must be positive, got %d", input.MaxContextChars)
	}
	k := input.K
	if k == 0 {
		k = r.cfg.TopK
	}
	maxChars := input.MaxContextChars
	if maxChars == 0 {
		maxChars = r.cfg.MaxContextChars
	}

	query := strings.TrimSpace(input.Query)
	result := &domain.RetrievalResult{DocumentID: input.DocumentID, Query: query}

	var candidates []domain.RetrievedSegment
	var err error
	if query == "" {
		candidates, err = r.leadingSegments(ctx, input.DocumentID, k)
	} else {
		candidates, err = r.rankedSegments(ctx, input.DocumentID, query, k)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result.Items = fitContext(candidates, maxChars)
	r.log.Debug("retrieved context",
		"document_id", input.DocumentID,
		"candidates", len(candidates),
		"kept", len(result.Items),
		"chars", result.TotalChars(),
	)
	return result, nil
}

func (r *Retriever) leadingSegments(ctx context.Context, documentID string, k int) ([]domain.RetrievedSegment, error) {
	segments, err := r.segments.ListFirstByDocument(ctx, documentID, k)
	if err != nil {
		return nil, err
	}
	items := make([]domain.RetrievedSegment, 0, len(segments))
	for _, seg := range segments {
		items = append(items, domain.RetrievedSegment{Segment: seg})
	}
	return items, nil
}

func (r *Retriever) rankedSegments(ctx context.Context, documentID, query string, k int) ([]domain.RetrievedSegment, error) {
	scope, err := r.scopes.GetDocumentVectorScope(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(scope) == 0 {
		return nil, nil
	}

	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Search(ctx, vec, vectorindex.Scope{DocumentID: documentID, RecordIDs: scope}, k)
	if err != nil {
		return nil, err
	}

	items := make([]domain.RetrievedSegment, 0, len(hits))
	for _, hit := range hits {
		seg, err := r.segments.GetSegment(ctx, hit.Record.SegmentID)
		if err != nil {
			return nil, err
		}
		if seg.DocumentID != documentID {
			r.log.Warn("dropping hit from another document",
				"document_id", documentID,
				"segment_id", seg.ID,
				"segment_document_id", seg.DocumentID,
			)
			continue
		}
		items = append(items, domain.RetrievedSegment{Segment: *seg, Score: hit.Score})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Segment.SequenceIndex < items[j].Segment.SequenceIndex
	})
	return items, nil
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if vec, ok := r.cache.Get(query); ok {
		return vec, nil
	}
	vec, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, domain.ErrEmbeddingUnavailable.Wrap(err)
	}
	r.cache.Add(query, vec)
	return vec, nil
}

// fitContext keeps the longest prefix of items whose combined length stays
// within maxChars. The first segment that would overflow ends the prefix.
func fitContext(items []domain.RetrievedSegment, maxChars int) []domain.RetrievedSegment {
	kept := make([]domain.RetrievedSegment, 0, len(items))
	total := 0
	for _, item := range items {
		n := item.Segment.CharCount()
		if total+n > maxChars {
			break
		}
		total += n
		kept = append(kept, item)
	}
	return kept
}
