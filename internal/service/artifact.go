package service

import (
	"context"
	"time"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/pagination"
	"github.com/cloo-solutions/studyforge/internal/telemetry"
)

const (
	DefaultUpcomingDays = 7
	MaxUpcomingDays     = 365
)

// ArtifactService serves stored artifacts
type ArtifactService struct {
	artifacts ArtifactRepositoryInterface
	docs      DocumentReader
	now       func() time.Time
}

// NewArtifactService creates a new ArtifactService instance
func NewArtifactService(artifacts ArtifactRepositoryInterface, docs DocumentReader) *ArtifactService {
	return &ArtifactService{artifacts: artifacts, docs: docs, now: time.Now}
}

type ListArtifactsInput struct {
	DocumentID string
	Kind       string
	Cursor     string
	Limit      int
}

type ListArtifactsOutput struct {
	Items   []*domain.Artifact
	Cursor  string
	HasMore bool
}

// UpcomingRevisions is the slice of a revision plan due in a date window
type UpcomingRevisions struct {
	ArtifactID string
	From       string
	To         string
	Tasks      []domain.RevisionTask
}

// Get returns an artifact by ID
func (s *ArtifactService) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	if id == "" {
		return nil, domain.NewInputError("artifact id is required")
	}
	return s.artifacts.GetByID(ctx, id)
}

// List returns a document's artifacts newest first, optionally of one kind
func (s *ArtifactService) List(ctx context.Context, input ListArtifactsInput) (*ListArtifactsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ArtifactService.List", telemetry.SpanAttributes{
		DocumentID:   input.DocumentID,
		ArtifactKind: input.Kind,
		Operation:    "list",
	})
	defer span.End()

	if input.DocumentID == "" {
		return nil, domain.NewInputError("document id is required")
	}
	var kind domain.ArtifactKind
	if input.Kind != "" {
		parsed, err := domain.ParseArtifactKind(input.Kind)
		if err != nil {
			return nil, err
		}
		kind = parsed
	}
	if _, err := s.docs.GetByID(ctx, input.DocumentID); err != nil {
		return nil, err
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewInputError("invalid cursor")
	}
	limit := pagination.ClampLimit(input.Limit)

	result, err := s.artifacts.ListByDocumentWithCursor(ctx, input.DocumentID, kind, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &ListArtifactsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// EvaluateQuizAnswer reports whether selected is the correct option of
// question index in a stored quiz artifact.
func (s *ArtifactService) EvaluateQuizAnswer(ctx context.Context, artifactID string, index, selected int) (bool, error) {
	a, err := s.Get(ctx, artifactID)
	if err != nil {
		return false, err
	}
	if a.Kind != domain.ArtifactKindQuiz {
		return false, domain.NewDomainError(domain.ErrCodeInvalidOperation, "artifact is not a quiz")
	}
	payload, err := domain.DecodePayload(a.Kind, a.Payload)
	if err != nil {
		return false, err
	}
	return (*payload.(*domain.Quiz)).Evaluate(index, selected)
}

// UpcomingRevisions returns the revisions of a stored plan due from today
// through today+days. days 0 selects DefaultUpcomingDays.
func (s *ArtifactService) UpcomingRevisions(ctx context.Context, artifactID string, days int) (*UpcomingRevisions, error) {
	if days < 0 || days > MaxUpcomingDays {
		return nil, domain.NewInputError("days must be between 0 and %d, got %d", MaxUpcomingDays, days)
	}
	if days == 0 {
		days = DefaultUpcomingDays
	}
	a, err := s.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if a.Kind != domain.ArtifactKindPlan {
		return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "artifact is not a revision plan")
	}
	payload, err := domain.DecodePayload(a.Kind, a.Payload)
	if err != nil {
		return nil, err
	}

	today := s.now()
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return &UpcomingRevisions{
		ArtifactID: a.ID,
		From:       from.Format(domain.DateLayout),
		To:         from.AddDate(0, 0, days).Format(domain.DateLayout),
		Tasks:      (*payload.(*domain.RevisionPlan)).Upcoming(today, days),
	}, nil
}
