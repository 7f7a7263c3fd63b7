package client

import (
	"encoding/json"
	"fmt"
	"io"
)

// Document is a document as returned by the API.
type Document struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SizeBytes     int64  `json:"size_bytes"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// DocumentList is one page of documents.
type DocumentList struct {
	Items   []Document `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

// Segment is one stored segment of a document.
type Segment struct {
	ID            string `json:"id"`
	SequenceIndex int    `json:"sequence_index"`
	Text          string `json:"text"`
	Label         string `json:"label"`
	Topic         string `json:"topic,omitempty"`
	PageNumber    int    `json:"page_number"`
}

// SearchHit is one retrieved segment with its similarity score.
type SearchHit struct {
	Score   float32 `json:"score"`
	Segment Segment `json:"segment"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	DocumentID string      `json:"document_id"`
	Query      string      `json:"query"`
	TotalChars int         `json:"total_chars"`
	Results    []SearchHit `json:"results"`
}

// Metadata describes how an artifact was generated.
type Metadata struct {
	Provider    string            `json:"provider"`
	Model       string            `json:"model,omitempty"`
	Temperature float64           `json:"temperature"`
	RetryCount  int               `json:"retry_count"`
	GeneratedAt string            `json:"generated_at"`
	Difficulty  string            `json:"difficulty,omitempty"`
	SegmentIDs  []string          `json:"segment_ids,omitempty"`
	Attempts    []AttemptResponse `json:"attempts,omitempty"`
}

// Artifact is a generated study artifact.
type Artifact struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	Kind       string          `json:"kind"`
	ItemCount  int             `json:"item_count"`
	Payload    json.RawMessage `json:"payload"`
	Metadata   Metadata        `json:"metadata"`
	CreatedAt  string          `json:"created_at"`
}

// ArtifactList is one page of artifacts.
type ArtifactList struct {
	Items   []Artifact `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

func writeJSON(w io.Writer, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// RevisionTask is one scheduled revision of a plan topic.
type RevisionTask struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Date       string `json:"date"`
	First      bool   `json:"first"`
}

// UpcomingRevisions is the response of GET /artifacts/{id}/upcoming.
type UpcomingRevisions struct {
	ArtifactID string         `json:"artifact_id"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	Items      []RevisionTask `json:"items"`
}
