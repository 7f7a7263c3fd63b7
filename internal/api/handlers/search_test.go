package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSearchHandler_Search(t *testing.T) {
	retriever := new(MockRetriever)
	handler := NewSearchHandler(retriever)

	retriever.On("Retrieve", mock.Anything, service.RetrieveInput{DocumentID: "doc-1", Query: "page tables", K: 3}).
		Return(&domain.RetrievalResult{
			DocumentID: "doc-1",
			Query:      "page tables",
			Items: []domain.RetrievedSegment{
				{Segment: domain.Segment{ID: "s2", SequenceIndex: 2, Text: "Page tables map."}, Score: 0.91},
				{Segment: domain.Segment{ID: "s0", SequenceIndex: 0, Text: "Memory."}, Score: 0.5},
			},
		}, nil)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-1/search?q=page+tables&k=3", nil), "documentID", "doc-1")
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, "s2", resp.Data.Results[0].Segment.ID)
	assert.InDelta(t, 0.91, resp.Data.Results[0].Score, 1e-6)
	assert.Equal(t, 23, resp.Data.TotalChars)
	retriever.AssertExpectations(t)
}

func TestSearchHandler_EmbeddingUnavailable(t *testing.T) {
	retriever := new(MockRetriever)
	handler := NewSearchHandler(retriever)

	retriever.On("Retrieve", mock.Anything, mock.Anything).Return(nil, domain.ErrEmbeddingUnavailable)

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/documents/doc-1/search?q=x", nil), "documentID", "doc-1")
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
