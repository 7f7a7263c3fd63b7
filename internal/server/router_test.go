package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/studyforge/internal/api/handlers"
	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Ingest(ctx context.Context, input service.IngestInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) Segments(ctx context.Context, documentID string) ([]domain.Segment, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Segment), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, input service.RetrieveInput) (*domain.RetrievalResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetrievalResult), args.Error(1)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Create(ctx context.Context, input service.GenerateInput) (*domain.Artifact, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artifact), args.Error(1)
}

type MockArtifactService struct {
	mock.Mock
}

func (m *MockArtifactService) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Artifact), args.Error(1)
}

func (m *MockArtifactService) List(ctx context.Context, input service.ListArtifactsInput) (*service.ListArtifactsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListArtifactsOutput), args.Error(1)
}

func (m *MockArtifactService) EvaluateQuizAnswer(ctx context.Context, artifactID string, index, selected int) (bool, error) {
	args := m.Called(ctx, artifactID, index, selected)
	return args.Bool(0), args.Error(1)
}

func (m *MockArtifactService) UpcomingRevisions(ctx context.Context, artifactID string, days int) (*service.UpcomingRevisions, error) {
	args := m.Called(ctx, artifactID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UpcomingRevisions), args.Error(1)
}

type testRouter struct {
	handler   http.Handler
	documents *MockDocumentService
	retriever *MockRetriever
	generator *MockGenerator
	artifacts *MockArtifactService
}

func setupRouter(maxBodyBytes, maxUploadBytes int64) *testRouter {
	tr := &testRouter{
		documents: new(MockDocumentService),
		retriever: new(MockRetriever),
		generator: new(MockGenerator),
		artifacts: new(MockArtifactService),
	}
	tr.handler = NewRouter(RouterConfig{
		MaxBodyBytes:    maxBodyBytes,
		MaxUploadBytes:  maxUploadBytes,
		DocumentHandler: handlers.NewDocumentHandler(tr.documents),
		SearchHandler:   handlers.NewSearchHandler(tr.retriever),
		ArtifactHandler: handlers.NewArtifactHandler(tr.generator, tr.artifacts),
	})
	return tr
}

func TestRouter_HealthEndpoint(t *testing.T) {
	tr := setupRouter(0, 0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	tr.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_DocumentRoutes(t *testing.T) {
	tr := setupRouter(0, 0)
	doc := domain.NewDocument("doc-1", "notes.txt", 5, time.Now())

	tr.documents.On("Get", mock.Anything, "doc-1").Return(doc, nil)
	tr.documents.On("Segments", mock.Anything, "doc-1").Return([]domain.Segment{}, nil)
	tr.documents.On("Delete", mock.Anything, "doc-1").Return(nil)
	tr.documents.On("List", mock.Anything, service.ListDocumentsInput{}).
		Return(&service.ListDocumentsOutput{Items: []*domain.Document{doc}}, nil)

	routes := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/documents", http.StatusOK},
		{http.MethodGet, "/documents/doc-1", http.StatusOK},
		{http.MethodGet, "/documents/doc-1/segments", http.StatusOK},
		{http.MethodDelete, "/documents/doc-1", http.StatusNoContent},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()

			tr.handler.ServeHTTP(w, req)

			assert.Equal(t, route.want, w.Code)
		})
	}
	tr.documents.AssertExpectations(t)
}

func TestRouter_SearchRoutesDocumentID(t *testing.T) {
	tr := setupRouter(0, 0)

	tr.retriever.On("Retrieve", mock.Anything, service.RetrieveInput{DocumentID: "doc-7", Query: "tlb"}).
		Return(&domain.RetrievalResult{DocumentID: "doc-7", Query: "tlb"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-7/search?q=tlb", nil)
	w := httptest.NewRecorder()

	tr.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	tr.retriever.AssertExpectations(t)
}

func TestRouter_ArtifactRoutes(t *testing.T) {
	tr := setupRouter(0, 0)
	artifact := &domain.Artifact{
		ID:         "art-1",
		DocumentID: "doc-1",
		Kind:       domain.ArtifactKindFlashcards,
		Payload:    json.RawMessage(`[]`),
		CreatedAt:  time.Now(),
	}

	tr.generator.On("Create", mock.Anything, mock.MatchedBy(func(in service.GenerateInput) bool {
		return in.DocumentID == "doc-1" && in.Kind == domain.ArtifactKindFlashcards
	})).Return(artifact, nil)
	tr.artifacts.On("Get", mock.Anything, "art-1").Return(artifact, nil)
	tr.artifacts.On("EvaluateQuizAnswer", mock.Anything, "art-1", 0, 2).Return(false, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/artifacts", strings.NewReader(`{"kind":"flashcards"}`))
	w := httptest.NewRecorder()
	tr.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/artifacts/art-1", nil)
	w = httptest.NewRecorder()
	tr.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/artifacts/art-1/answers", strings.NewReader(`{"question_index":0,"selected":2}`))
	w = httptest.NewRecorder()
	tr.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"correct":false}}`, w.Body.String())

	tr.artifacts.On("UpcomingRevisions", mock.Anything, "art-1", 14).
		Return(&service.UpcomingRevisions{ArtifactID: "art-1", From: "2026-10-19", To: "2026-11-02"}, nil)
	req = httptest.NewRequest(http.MethodGet, "/artifacts/art-1/upcoming?days=14", nil)
	w = httptest.NewRecorder()
	tr.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"artifact_id":"art-1","from":"2026-10-19","to":"2026-11-02","items":[]}}`, w.Body.String())

	tr.generator.AssertExpectations(t)
	tr.artifacts.AssertExpectations(t)
}

func TestRouter_BodyLimits(t *testing.T) {
	upload := func(textLen int) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"name":"big.txt","text":"`+strings.Repeat("a", textLen)+`"}`))
		req.Header.Set("Content-Type", "application/json")
		return req
	}
	answer := func(pad int) *http.Request {
		body := `{"question_index":0,"selected":2,"pad":"` + strings.Repeat(" ", pad) + `"}`
		return httptest.NewRequest(http.MethodPost, "/artifacts/art-1/answers", strings.NewReader(body))
	}

	t.Run("upload over upload limit", func(t *testing.T) {
		tr := setupRouter(16, 128)
		w := httptest.NewRecorder()
		tr.handler.ServeHTTP(w, upload(256))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		tr.documents.AssertNotCalled(t, "Ingest", mock.Anything, mock.Anything)
	})

	t.Run("upload above request limit uses upload limit", func(t *testing.T) {
		tr := setupRouter(16, 128)
		doc := domain.NewDocument("doc-1", "big.txt", 64, time.Now())
		tr.documents.On("Ingest", mock.Anything, mock.Anything).Return(doc, nil)

		w := httptest.NewRecorder()
		tr.handler.ServeHTTP(w, upload(64))

		assert.Equal(t, http.StatusCreated, w.Code)
		tr.documents.AssertExpectations(t)
	})

	t.Run("json body over request limit", func(t *testing.T) {
		tr := setupRouter(16, 128)
		w := httptest.NewRecorder()
		tr.handler.ServeHTTP(w, answer(64))

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		tr.artifacts.AssertNotCalled(t, "EvaluateQuizAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRouter_UnknownRoute(t *testing.T) {
	tr := setupRouter(0, 0)

	req := httptest.NewRequest(http.MethodGet, "/knowledge", nil)
	w := httptest.NewRecorder()

	tr.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
