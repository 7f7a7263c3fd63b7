package handlers

import (
	"context"
	"net/http"

	"github.com/cloo-solutions/studyforge/internal/api"
	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/go-chi/chi/v5"
)

type Retriever interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) (*domain.RetrievalResult, error)
}

type SearchHandler struct {
	retriever Retriever
}

func NewSearchHandler(retriever Retriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

type SearchHitResponse struct {
	Score   float32         `json:"score"`
	Segment SegmentResponse `json:"segment"`
}

type SearchResponse struct {
	DocumentID string              `json:"document_id"`
	Query      string              `json:"query"`
	TotalChars int                 `json:"total_chars"`
	Results    []SearchHitResponse `json:"results"`
}

func retrievalToResponse(result *domain.RetrievalResult) SearchResponse {
	hits := make([]SearchHitResponse, len(result.Items))
	for i, item := range result.Items {
		hits[i] = SearchHitResponse{
			Score:   item.Score,
			Segment: segmentToResponse(item.Segment),
		}
	}
	return SearchResponse{
		DocumentID: result.DocumentID,
		Query:      result.Query,
		TotalChars: result.TotalChars(),
		Results:    hits,
	}
}

// Search returns the segments of one document most relevant to q. An empty
// q returns the document's leading segments.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	input := service.RetrieveInput{
		DocumentID:      chi.URLParam(r, "documentID"),
		Query:           r.URL.Query().Get("q"),
		K:               queryInt(r, "k", 0),
		MaxContextChars: queryInt(r, "max_chars", 0),
	}

	result, err := h.retriever.Retrieve(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, retrievalToResponse(result))
}
