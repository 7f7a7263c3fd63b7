package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse represents an error API response. Attempts is set for
// generation failures so callers can see which providers were tried.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Code     string            `json:"code,omitempty"`
	Attempts []AttemptResponse `json:"attempts,omitempty"`
}

// AttemptResponse is one provider call in an error or artifact response
type AttemptResponse struct {
	Provider  string `json:"provider"`
	Outcome   string `json:"outcome"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

// AttemptsToResponse converts provider attempts for JSON output
func AttemptsToResponse(attempts []domain.ProviderAttempt) []AttemptResponse {
	if len(attempts) == 0 {
		return nil
	}
	out := make([]AttemptResponse, len(attempts))
	for i, a := range attempts {
		out[i] = AttemptResponse{
			Provider:  a.Provider,
			Outcome:   string(a.Outcome),
			ElapsedMS: a.Elapsed.Milliseconds(),
			Error:     a.Error,
		}
	}
	return out
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch domain.CodeOf(err) {
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeAlreadyExists, domain.ErrCodeInvalidOperation:
		return http.StatusConflict
	case domain.ErrCodeProvidersExhausted, domain.ErrCodeInvalidOutput:
		return http.StatusBadGateway
	case domain.ErrCodeProviderUnavailable, domain.ErrCodeEmbeddingFailed:
		return http.StatusServiceUnavailable
	case domain.ErrCodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an appropriate error response based on the error type
func HandleError(w http.ResponseWriter, err error) {
	status := DomainErrorToHTTP(err)
	JSON(w, status, ErrorResponse{
		Error:    err.Error(),
		Code:     domain.CodeOf(err),
		Attempts: AttemptsToResponse(domain.AttemptsOf(err)),
	})
}

// FormatTime renders timestamps in API responses
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
