package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped copies of a sentinel still match it.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// Wrap returns a copy of the error carrying cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return NewDomainErrorWithCause(e.Code, e.Message, cause)
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInputError reports a malformed request. Input errors are never retried.
func NewInputError(format string, args ...any) *DomainError {
	return NewDomainError(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// Common domain error codes
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeAlreadyExists       = "ALREADY_EXISTS"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeInvalidOperation    = "INVALID_OPERATION"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeProvidersExhausted  = "ALL_PROVIDERS_EXHAUSTED"
	ErrCodeDeadlineExceeded    = "DEADLINE_EXCEEDED"
	ErrCodeInvalidOutput       = "INVALID_GENERATION_OUTPUT"
	ErrCodeIndexWriteFailed    = "INDEX_WRITE_FAILED"
	ErrCodeEmbeddingFailed     = "EMBEDDING_UNAVAILABLE"
	ErrCodePersistenceFailed   = "PERSISTENCE_FAILED"
)

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Validation errors
var (
	ErrInvalidArtifactKind    = NewDomainError(ErrCodeValidation, "invalid artifact kind")
	ErrInvalidDocumentStatus  = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidIndexJobStatus  = NewDomainError(ErrCodeValidation, "invalid index job status")
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidPayload         = NewDomainError(ErrCodeValidation, "payload does not match artifact schema")
	ErrInvalidQuizAnswerIndex = NewDomainError(ErrCodeValidation, "quiz answer index out of range")
)

// Not found errors
var (
	ErrDocumentNotFound     = NewDomainError(ErrCodeNotFound, "document not found")
	ErrSegmentNotFound      = NewDomainError(ErrCodeNotFound, "segment not found")
	ErrArtifactNotFound     = NewDomainError(ErrCodeNotFound, "artifact not found")
	ErrVectorRecordNotFound = NewDomainError(ErrCodeNotFound, "vector record not found")
	ErrIndexJobNotFound     = NewDomainError(ErrCodeNotFound, "index job not found")
)

// Operation errors
var (
	ErrInvalidStatusTransition = NewDomainError(ErrCodeInvalidOperation, "invalid document status transition")
	ErrDocumentNotReady        = NewDomainError(ErrCodeInvalidOperation, "document is not ready for generation")
	ErrSegmentsAlreadyExist    = NewDomainError(ErrCodeAlreadyExists, "document already has segments")
)

// Pipeline errors
var (
	ErrProviderUnavailable     = NewDomainError(ErrCodeProviderUnavailable, "provider unavailable")
	ErrAllProvidersExhausted   = NewDomainError(ErrCodeProvidersExhausted, "all providers exhausted")
	ErrDeadlineExceeded        = NewDomainError(ErrCodeDeadlineExceeded, "deadline exceeded")
	ErrInvalidGenerationOutput = NewDomainError(ErrCodeInvalidOutput, "invalid generation output")
	ErrIndexWriteFailed        = NewDomainError(ErrCodeIndexWriteFailed, "index write failed")
	ErrEmbeddingUnavailable    = NewDomainError(ErrCodeEmbeddingFailed, "embedding unavailable")
	ErrPersistenceFailed       = NewDomainError(ErrCodePersistenceFailed, "persistence failed")
)

// ExhaustedError is returned when every provider in a chain failed.
type ExhaustedError struct {
	Kind     ArtifactKind
	Attempts []ProviderAttempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("[%s] all providers exhausted for %s: %s",
		ErrCodeProvidersExhausted, e.Kind, describeAttempts(e.Attempts))
}

func (e *ExhaustedError) Unwrap() error {
	return ErrAllProvidersExhausted
}

// DeadlineError is returned when the caller's deadline expired mid-fallback.
type DeadlineError struct {
	Attempts []ProviderAttempt
	Err      error
}

func (e *DeadlineError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("[%s] deadline exceeded before any provider answered", ErrCodeDeadlineExceeded)
	}
	return fmt.Sprintf("[%s] deadline exceeded after %s", ErrCodeDeadlineExceeded, describeAttempts(e.Attempts))
}

func (e *DeadlineError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDeadlineExceeded}
	}
	return []error{ErrDeadlineExceeded, e.Err}
}

// InvalidOutputError is returned when the provider output failed schema
// validation after the deterministic retry.
type InvalidOutputError struct {
	Kind       ArtifactKind
	Provider   string
	RetryCount int
	Attempts   []ProviderAttempt
	Preview    string
	Err        error
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("[%s] %s output from %s rejected after %d retry: %v (preview: %q)",
		ErrCodeInvalidOutput, e.Kind, e.Provider, e.RetryCount, e.Err, e.Preview)
}

func (e *InvalidOutputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidGenerationOutput}
	}
	return []error{ErrInvalidGenerationOutput, e.Err}
}

// AttemptsOf extracts provider attempts carried by a gateway or generator error.
func AttemptsOf(err error) []ProviderAttempt {
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Attempts
	}
	var deadline *DeadlineError
	if errors.As(err, &deadline) {
		return deadline.Attempts
	}
	var invalid *InvalidOutputError
	if errors.As(err, &invalid) {
		return invalid.Attempts
	}
	return nil
}

func describeAttempts(attempts []ProviderAttempt) string {
	if len(attempts) == 0 {
		return "no providers configured"
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s=%s (%s)", a.Provider, a.Outcome, a.Elapsed.Round(time.Millisecond)))
	}
	return strings.Join(parts, ", ")
}
