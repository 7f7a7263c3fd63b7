// Package provider talks to text-generation backends and falls back across
// them in a fixed order.
package provider

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/cloo-solutions/studyforge/internal/domain"
)

// Schema is a JSON schema the provider is asked to honour natively.
type Schema struct {
	Name       string
	Definition jsonschema.Definition
}

// Request is one completion call sent to a single provider.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Schema      *Schema
}

// Provider is a single generation backend.
//
// Complete returns an error wrapping context.DeadlineExceeded when the call
// timed out, and any other error when the provider refused or failed the
// request. An empty string with a nil error is treated as invalid output.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Options tune a gateway call.
type Options struct {
	System          string
	Temperature     float64
	MaxOutputTokens int
	ResponseSchema  *Schema
}

// Result is the raw text of the first provider that answered.
type Result struct {
	Text     string
	Provider string
	Model    string
	Attempts []domain.ProviderAttempt
}

// Member is one provider in a chain with its per-call timeout.
type Member struct {
	Provider Provider
	Timeout  time.Duration
}
