package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/logger"
	"github.com/cloo-solutions/studyforge/internal/provider"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
)

const (
	DefaultFlashcardCount = 10
	DefaultQuizCount      = 5
	DefaultTemperature    = 0.7
	MaxTemperature        = 2.0

	defaultMaxOutputTokens = 4096
	errorPreviewChars      = 200
)

// GenerationStage is a state of one Create call
type GenerationStage string

const (
	StagePrompting        GenerationStage = "PROMPTING"
	StageAwaitingProvider GenerationStage = "AWAITING_PROVIDER"
	StageValidating       GenerationStage = "VALIDATING"
	StagePersisting       GenerationStage = "PERSISTING"
	StageDone             GenerationStage = "DONE"
	StageFailed           GenerationStage = "FAILED"
)

// TextGateway produces raw text for a prompt, falling back across providers
type TextGateway interface {
	Generate(ctx context.Context, kind domain.ArtifactKind, prompt string, opts provider.Options) (*provider.Result, error)
}

// ContextRetriever returns bounded context for a document
type ContextRetriever interface {
	Retrieve(ctx context.Context, input RetrieveInput) (*domain.RetrievalResult, error)
}

// DocumentReader loads documents
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ArtifactWriter stores generated artifacts
type ArtifactWriter interface {
	SaveArtifact(ctx context.Context, a *domain.Artifact) (string, error)
}

// GeneratorConfig holds generation defaults. Zero sizes select the stock
// values; DefaultTemperature 0 is honoured and only a negative one is replaced.
type GeneratorConfig struct {
	TopK               int
	MaxContextChars    int
	DefaultTemperature float64
	MaxOutputTokens    int
}

// DefaultGeneratorConfig returns the stock generation settings
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		TopK:               DefaultTopK,
		MaxContextChars:    DefaultMaxContextChars,
		DefaultTemperature: DefaultTemperature,
		MaxOutputTokens:    defaultMaxOutputTokens,
	}
}

// GenerateInput requests one artifact. NumItems 0 selects the kind's default
// count. Temperature overrides the default for non-deterministic kinds.
// Difficulty applies to quizzes only and defaults to medium.
type GenerateInput struct {
	DocumentID  string
	Kind        domain.ArtifactKind
	NumItems    int
	TopicFilter string
	Temperature *float64
	Question    string
	Difficulty  string
}

// Generator turns retrieved context into validated, persisted artifacts.
type Generator struct {
	docs      DocumentReader
	retriever ContextRetriever
	gateway   TextGateway
	artifacts ArtifactWriter
	cfg       GeneratorConfig
	uuidGen   UUIDGenerator
	now       func() time.Time
	log       *logger.Logger
}

// NewGenerator creates a new Generator instance
func NewGenerator(
	docs DocumentReader,
	retriever ContextRetriever,
	gateway TextGateway,
	artifacts ArtifactWriter,
	cfg GeneratorConfig,
	log *logger.Logger,
) *Generator {
	return NewGeneratorWithUUIDGen(docs, retriever, gateway, artifacts, cfg, log, &DefaultUUIDGenerator{})
}

// NewGeneratorWithUUIDGen creates a new Generator with custom UUID generator (for testing)
func NewGeneratorWithUUIDGen(
	docs DocumentReader,
	retriever ContextRetriever,
	gateway TextGateway,
	artifacts ArtifactWriter,
	cfg GeneratorConfig,
	log *logger.Logger,
	uuidGen UUIDGenerator,
) *Generator {
	defaults := DefaultGeneratorConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = defaults.MaxContextChars
	}
	if cfg.DefaultTemperature < 0 {
		cfg.DefaultTemperature = defaults.DefaultTemperature
	}
	cfg.DefaultTemperature = min(cfg.DefaultTemperature, MaxTemperature)
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Generator{
		docs:      docs,
		retriever: retriever,
		gateway:   gateway,
		artifacts: artifacts,
		cfg:       cfg,
		uuidGen:   uuidGen,
		now:       time.Now,
		log:       log,
	}
}

// Temperature returns the sampling temperature for kind: 0 for deterministic
// kinds, else the override when given, else the configured default.
func (g *Generator) Temperature(kind domain.ArtifactKind, override *float64) float64 {
	if kind.IsDeterministic() {
		return 0
	}
	if override != nil {
		return *override
	}
	return g.cfg.DefaultTemperature
}

func (g *Generator) normalize(input GenerateInput) (GenerateInput, error) {
	if input.DocumentID == "" {
		return input, domain.NewInputError("document id is required")
	}
	if !domain.IsValidArtifactKind(input.Kind) {
		return input, domain.NewInputError("unknown artifact kind %q", input.Kind)
	}
	if input.NumItems < 0 {
		return input, domain.NewInputError("num_items must not be negative, got %d", input.NumItems)
	}
	if input.Temperature != nil && (*input.Temperature < 0 || *input.Temperature > MaxTemperature) {
		return input, domain.NewInputError("temperature must be between 0 and %.1f", MaxTemperature)
	}
	input.TopicFilter = strings.TrimSpace(input.TopicFilter)
	input.Question = strings.TrimSpace(input.Question)
	if input.Kind != domain.ArtifactKindQuiz {
		input.Difficulty = ""
	}

	switch input.Kind {
	case domain.ArtifactKindFlashcards:
		if input.NumItems == 0 {
			input.NumItems = DefaultFlashcardCount
		}
	case domain.ArtifactKindQuiz:
		if input.NumItems == 0 {
			input.NumItems = DefaultQuizCount
		}
		if strings.TrimSpace(input.Difficulty) == "" {
			input.Difficulty = domain.DifficultyMedium
		}
		level, ok := domain.NormalizeDifficulty(input.Difficulty)
		if !ok {
			return input, domain.NewInputError("difficulty must be easy, medium or hard, got %q", input.Difficulty)
		}
		input.Difficulty = level
	case domain.ArtifactKindChatAnswer:
		if input.Question == "" {
			return input, domain.NewInputError("question is required for chat answers")
		}
		input.NumItems = 0
	}
	return input, nil
}

// Create generates one artifact of the requested kind from a ready document.
//
// The call moves through PROMPTING, AWAITING_PROVIDER, VALIDATING and
// PERSISTING to DONE, or to FAILED. Output that fails validation is retried
// exactly once with a stricter prompt at temperature 0; a second failure
// returns *domain.InvalidOutputError. Nothing is persisted on failure.
func (g *Generator) Create(ctx context.Context, input GenerateInput) (*domain.Artifact, error) {
	ctx, span := telemetry.StartSpan(ctx, "Generator.Create", telemetry.SpanAttributes{
		DocumentID:   input.DocumentID,
		ArtifactKind: string(input.Kind),
		Operation:    "create",
	})
	defer span.End()

	input, err := g.normalize(input)
	if err != nil {
		return nil, err
	}
	log := g.log.With("document_id", input.DocumentID, "kind", input.Kind)

	fail := func(err error) (*domain.Artifact, error) {
		log.Error("generation failed", "stage", StageFailed, "error", err)
		span.SetData("stage", string(StageFailed))
		span.SetError(err)
		return nil, err
	}
	enter := func(stage GenerationStage, kv ...any) {
		span.SetData("stage", string(stage))
		log.Debug("generation stage", append([]any{"stage", stage}, kv...)...)
	}

	doc, err := g.docs.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.Status != domain.DocumentStatusReady {
		return nil, domain.ErrDocumentNotReady.Wrap(fmt.Errorf("document %s is %s", doc.ID, doc.Status))
	}

	query := input.TopicFilter
	if input.Kind == domain.ArtifactKindChatAnswer {
		query = input.Question
	}
	retrieval, err := g.retriever.Retrieve(ctx, RetrieveInput{
		DocumentID:      input.DocumentID,
		Query:           query,
		K:               g.cfg.TopK,
		MaxContextChars: g.cfg.MaxContextChars,
	})
	if err != nil {
		return fail(err)
	}
	if len(retrieval.Items) == 0 {
		return fail(domain.NewDomainError(domain.ErrCodeInvalidOperation, "no context retrieved for document"))
	}

	temperature := g.Temperature(input.Kind, input.Temperature)
	segmentIDs := retrieval.SegmentIDs()
	params := promptParams{
		NumItems:    input.NumItems,
		TopicFilter: input.TopicFilter,
		Question:    input.Question,
		Difficulty:  input.Difficulty,
		Today:       g.now().UTC(),
	}
	parse := parseParams{
		NumItems:     input.NumItems,
		SegmentIDs:   segmentIDs,
		ContextChars: retrieval.TotalChars(),
	}

	var (
		attempts []domain.ProviderAttempt
		result   *provider.Result
		payload  domain.Payload
	)
	for retry := 0; ; retry++ {
		params.Strict = retry > 0
		enter(StagePrompting, "retry", retry, "temperature", temperature)
		prompt := buildPrompt(input.Kind, retrieval, params)

		enter(StageAwaitingProvider)
		result, err = g.gateway.Generate(ctx, input.Kind, prompt, provider.Options{
			System:          systemPrompt,
			Temperature:     temperature,
			MaxOutputTokens: g.cfg.MaxOutputTokens,
			ResponseSchema:  responseSchema(input.Kind),
		})
		if err != nil {
			return fail(withAttempts(err, slices.Concat(attempts, domain.AttemptsOf(err))))
		}
		attempts = append(attempts, result.Attempts...)

		enter(StageValidating, "provider", result.Provider)
		payload, err = parsePayload(input.Kind, result.Text, parse)
		if err == nil {
			break
		}

		attempts[len(attempts)-1].Outcome = domain.AttemptOutcomeInvalidOutput
		attempts[len(attempts)-1].Error = err.Error()
		if retry == 1 {
			return fail(&domain.InvalidOutputError{
				Kind:       input.Kind,
				Provider:   result.Provider,
				RetryCount: retry,
				Attempts:   attempts,
				Preview:    preview(result.Text, errorPreviewChars),
				Err:        err,
			})
		}
		log.Warn("invalid provider output, retrying deterministically",
			"provider", result.Provider,
			"error", err,
			"preview", preview(result.Text, errorPreviewChars),
		)
		temperature = 0
	}

	enter(StagePersisting)
	body, err := json.Marshal(payload)
	if err != nil {
		return fail(domain.ErrPersistenceFailed.Wrap(err))
	}
	retryCount := 0
	if params.Strict {
		retryCount = 1
	}
	artifact := &domain.Artifact{
		ID:         g.uuidGen.NewString(),
		DocumentID: input.DocumentID,
		Kind:       input.Kind,
		Payload:    body,
		ItemCount:  payload.Len(),
		Metadata: domain.GenerationMetadata{
			Provider:    result.Provider,
			Model:       result.Model,
			Temperature: temperature,
			RetryCount:  retryCount,
			GeneratedAt: g.now().UTC(),
			NumItems:    input.NumItems,
			TopicFilter: input.TopicFilter,
			Difficulty:  input.Difficulty,
			SegmentIDs:  segmentIDs,
			Attempts:    attempts,
		},
	}
	artifact.CreatedAt = artifact.Metadata.GeneratedAt
	if err := domain.ValidateArtifact(artifact); err != nil {
		return fail(domain.ErrPersistenceFailed.Wrap(err))
	}

	storedID, err := g.artifacts.SaveArtifact(ctx, artifact)
	if err != nil {
		return fail(domain.ErrPersistenceFailed.Wrap(err))
	}
	if storedID != artifact.ID {
		return fail(domain.ErrPersistenceFailed.Wrap(fmt.Errorf("stored id %q does not match %q", storedID, artifact.ID)))
	}

	enter(StageDone, "artifact_id", artifact.ID, "items", artifact.ItemCount)
	log.Info("artifact generated",
		"artifact_id", artifact.ID,
		"provider", result.Provider,
		"retry_count", retryCount,
		"items", artifact.ItemCount,
	)
	return artifact, nil
}

// withAttempts rebuilds gateway errors so they carry every attempt of the
// Create call, including those of an earlier invalid answer.
func withAttempts(err error, attempts []domain.ProviderAttempt) error {
	var deadline *domain.DeadlineError
	if errors.As(err, &deadline) {
		return &domain.DeadlineError{Attempts: attempts, Err: deadline.Err}
	}
	var exhausted *domain.ExhaustedError
	if errors.As(err, &exhausted) {
		return &domain.ExhaustedError{Kind: exhausted.Kind, Attempts: attempts}
	}
	return err
}
