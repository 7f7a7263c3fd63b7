package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ArtifactKind identifies the schema of an artifact payload
type ArtifactKind string

const (
	ArtifactKindFlashcards ArtifactKind = "flashcards"
	ArtifactKindQuiz       ArtifactKind = "quiz"
	ArtifactKindPlan       ArtifactKind = "plan"
	ArtifactKindChatAnswer ArtifactKind = "chat_answer"
)

// ArtifactKinds lists every supported kind in a stable order
var ArtifactKinds = []ArtifactKind{
	ArtifactKindFlashcards,
	ArtifactKindQuiz,
	ArtifactKindPlan,
	ArtifactKindChatAnswer,
}

// ParseArtifactKind converts a raw string into an ArtifactKind
func ParseArtifactKind(s string) (ArtifactKind, error) {
	kind := ArtifactKind(s)
	if !IsValidArtifactKind(kind) {
		return "", ErrInvalidArtifactKind
	}
	return kind, nil
}

// IsValidArtifactKind reports whether k is a supported kind
func IsValidArtifactKind(k ArtifactKind) bool {
	switch k {
	case ArtifactKindFlashcards, ArtifactKindQuiz, ArtifactKindPlan, ArtifactKindChatAnswer:
		return true
	}
	return false
}

// IsDeterministic reports whether the kind is always generated at temperature 0.
func (k ArtifactKind) IsDeterministic() bool {
	return k == ArtifactKindFlashcards
}

// GenerationMetadata records how an artifact was produced
type GenerationMetadata struct {
	Provider    string            `json:"provider"`
	Model       string            `json:"model,omitempty"`
	Temperature float64           `json:"temperature"`
	RetryCount  int               `json:"retry_count"`
	GeneratedAt time.Time         `json:"generated_at"`
	NumItems    int               `json:"num_items,omitempty"`
	TopicFilter string            `json:"topic_filter,omitempty"`
	Difficulty  string            `json:"difficulty,omitempty"`
	SegmentIDs  []string          `json:"segment_ids,omitempty"`
	Attempts    []ProviderAttempt `json:"attempts,omitempty"`
}

// Artifact is a generated, schema-valid study object tied to one document
type Artifact struct {
	ID         string
	DocumentID string
	Kind       ArtifactKind
	Payload    json.RawMessage
	ItemCount  int
	Metadata   GenerationMetadata
	CreatedAt  time.Time
}

// ValidateArtifact checks the artifact envelope and decodes the payload
// against the kind's schema.
func ValidateArtifact(a *Artifact) error {
	if a == nil {
		return fmt.Errorf("artifact cannot be nil")
	}

	if a.ID == "" {
		return fmt.Errorf("artifact ID is required")
	}

	if a.DocumentID == "" {
		return fmt.Errorf("artifact DocumentID is required")
	}

	if !IsValidArtifactKind(a.Kind) {
		return fmt.Errorf("artifact Kind is invalid: %s", a.Kind)
	}

	if a.Metadata.Provider == "" {
		return fmt.Errorf("artifact Metadata.Provider is required")
	}

	payload, err := DecodePayload(a.Kind, a.Payload)
	if err != nil {
		return err
	}
	return payload.Validate()
}
