package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ChatAPI is the subset of the go-openai client used by OpenAICompatible
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CompatConfig configures a provider that speaks the OpenAI chat API. Gemini,
// Groq, DeepSeek, OpenAI and Ollama all expose such an endpoint.
type CompatConfig struct {
	Name             string
	BaseURL          string
	APIKey           string
	Model            string
	MaxRetries       int
	StructuredOutput bool
}

// OpenAICompatible is a Provider backed by an OpenAI-compatible chat endpoint.
type OpenAICompatible struct {
	name       string
	model      string
	api        ChatAPI
	maxRetries int
	structured bool
}

// NewOpenAICompatible builds a provider from cfg.
func NewOpenAICompatible(cfg CompatConfig) *OpenAICompatible {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return newOpenAICompatible(openai.NewClientWithConfig(clientCfg), cfg)
}

func newOpenAICompatible(api ChatAPI, cfg CompatConfig) *OpenAICompatible {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &OpenAICompatible{
		name:       cfg.Name,
		model:      cfg.Model,
		api:        api,
		maxRetries: retries,
		structured: cfg.StructuredOutput,
	}
}

func (p *OpenAICompatible) Name() string  { return p.name }
func (p *OpenAICompatible) Model() string { return p.model }

// Complete sends one chat completion. Server errors are retried up to
// maxRetries times; client errors are returned at once.
func (p *OpenAICompatible) Complete(ctx context.Context, req Request) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	temperature := float32(req.Temperature)
	if temperature == 0 {
		// A zero temperature is dropped by omitempty and the server default applies.
		temperature = math.SmallestNonzeroFloat32
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   req.MaxTokens,
	}
	if p.structured && req.Schema != nil {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.Schema.Name,
				Schema: &req.Schema.Definition,
			},
		}
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, err = p.api.CreateChatCompletion(ctx, chatReq)
		if err == nil || !isServerError(err) || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("%s: chat completion failed: %w", p.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func isServerError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return false
}
