package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var result map[string]string
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "value", result["key"])
}

func TestJSON_NilData(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNoContent, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Empty(t, w.Body.String())
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "123"})

	assert.Equal(t, http.StatusCreated, w.Code)

	var result SuccessResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)

	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "123", data["id"])
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusBadRequest, "invalid input")

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Equal(t, "invalid input", result.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	attempts := []domain.ProviderAttempt{{Provider: "gemini", Outcome: domain.AttemptOutcomeTimeout}}
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", domain.NewInputError("invalid"), http.StatusBadRequest},
		{"not found error", domain.ErrDocumentNotFound, http.StatusNotFound},
		{"already exists error", domain.ErrSegmentsAlreadyExist, http.StatusConflict},
		{"document not ready", domain.ErrDocumentNotReady, http.StatusConflict},
		{"wrapped not found", fmt.Errorf("load: %w", domain.ErrArtifactNotFound), http.StatusNotFound},
		{"providers exhausted", &domain.ExhaustedError{Kind: domain.ArtifactKindQuiz, Attempts: attempts}, http.StatusBadGateway},
		{"invalid output", &domain.InvalidOutputError{Kind: domain.ArtifactKindQuiz}, http.StatusBadGateway},
		{"embedding unavailable", domain.ErrEmbeddingUnavailable, http.StatusServiceUnavailable},
		{"provider unavailable", domain.ErrProviderUnavailable, http.StatusServiceUnavailable},
		{"deadline", &domain.DeadlineError{Attempts: attempts}, http.StatusGatewayTimeout},
		{"persistence", domain.ErrPersistenceFailed, http.StatusInternalServerError},
		{"body too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge},
		{"unknown domain error", domain.NewDomainError("UNKNOWN", "unknown"), http.StatusInternalServerError},
		{"non-domain error", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := DomainErrorToHTTP(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrDocumentNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var result ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &result)
	require.NoError(t, err)
	assert.Contains(t, result.Error, "not found")
	assert.Equal(t, domain.ErrCodeNotFound, result.Code)
	assert.Empty(t, result.Attempts)
}

func TestHandleError_CarriesAttempts(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, &domain.ExhaustedError{
		Kind: domain.ArtifactKindFlashcards,
		Attempts: []domain.ProviderAttempt{
			{Provider: "gemini", Outcome: domain.AttemptOutcomeTimeout, Elapsed: 1500 * time.Millisecond},
			{Provider: "groq", Outcome: domain.AttemptOutcomeRejected, Error: "401"},
		},
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var result ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.ErrCodeProvidersExhausted, result.Code)
	require.Len(t, result.Attempts, 2)
	assert.Equal(t, "gemini", result.Attempts[0].Provider)
	assert.Equal(t, int64(1500), result.Attempts[0].ElapsedMS)
	assert.Equal(t, "rejected", result.Attempts[1].Outcome)
}
