package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the processing status of a document
type DocumentStatus string

const (
	DocumentStatusReceived  DocumentStatus = "received"
	DocumentStatusSegmented DocumentStatus = "segmented"
	DocumentStatusIndexed   DocumentStatus = "indexed"
	DocumentStatusReady     DocumentStatus = "ready"
	DocumentStatusFailed    DocumentStatus = "failed"
)

// Document represents one ingested source
type Document struct {
	ID            string
	Name          string
	SizeBytes     int64
	Status        DocumentStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewDocument creates a new Document in the received state
func NewDocument(id, name string, sizeBytes int64, createdAt time.Time) *Document {
	return &Document{
		ID:        id,
		Name:      name,
		SizeBytes: sizeBytes,
		Status:    DocumentStatusReceived,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}

	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if d.Status == DocumentStatusFailed && d.FailureReason == "" {
		return fmt.Errorf("failed document must carry a FailureReason")
	}

	return nil
}

// IsSearchable reports whether the document's vectors are committed.
func (d *Document) IsSearchable() bool {
	return d.Status == DocumentStatusReady
}

// CanTransition reports whether a document may move from one status to another.
// Statuses only move forward; failed is terminal and reachable from any
// non-terminal status.
func CanTransition(from, to DocumentStatus) bool {
	if from == DocumentStatusFailed || from == DocumentStatusReady {
		return false
	}
	if to == DocumentStatusFailed {
		return isValidDocumentStatus(from)
	}
	fromRank, ok := statusRank(from)
	if !ok {
		return false
	}
	toRank, ok := statusRank(to)
	if !ok {
		return false
	}
	return toRank > fromRank
}

func statusRank(s DocumentStatus) (int, bool) {
	switch s {
	case DocumentStatusReceived:
		return 0, true
	case DocumentStatusSegmented:
		return 1, true
	case DocumentStatusIndexed:
		return 2, true
	case DocumentStatusReady:
		return 3, true
	}
	return 0, false
}

// ParseDocumentStatus converts a raw string into a DocumentStatus
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	status := DocumentStatus(s)
	if !isValidDocumentStatus(status) {
		return "", ErrInvalidDocumentStatus
	}
	return status, nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusReceived, DocumentStatusSegmented, DocumentStatusIndexed,
		DocumentStatusReady, DocumentStatusFailed:
		return true
	}
	return false
}
