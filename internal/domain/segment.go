package domain

import (
	"fmt"
	"time"
)

// SegmentLabel is the structural role of a segment's leading block
type SegmentLabel string

const (
	SegmentLabelHeading   SegmentLabel = "heading"
	SegmentLabelParagraph SegmentLabel = "paragraph"
	SegmentLabelList      SegmentLabel = "list"
)

// Segment is an ordered chunk of a document's text.
//
// StartOffset and EndOffset are rune offsets of the range the segment owns.
// Owned ranges of one document are sorted and disjoint. They tile the source
// text except for whitespace runs too long to fit any segment.
// Text additionally starts with OverlapChars runes copied from the tail of the
// previous segment, so Text == source[StartOffset-OverlapChars : EndOffset].
type Segment struct {
	ID            string
	DocumentID    string
	SequenceIndex int
	Text          string
	Label         SegmentLabel
	Topic         string
	PageNumber    int
	StartOffset   int
	EndOffset     int
	OverlapChars  int
	CreatedAt     time.Time
}

// CharCount returns the length of the segment text in runes
func (s *Segment) CharCount() int {
	return len([]rune(s.Text))
}

// ValidateSegment validates a Segment instance
func ValidateSegment(s *Segment) error {
	if s == nil {
		return fmt.Errorf("segment cannot be nil")
	}

	if s.ID == "" {
		return fmt.Errorf("segment ID is required")
	}

	if s.DocumentID == "" {
		return fmt.Errorf("segment DocumentID is required")
	}

	if s.SequenceIndex < 0 {
		return fmt.Errorf("segment SequenceIndex cannot be negative")
	}

	if s.Text == "" {
		return fmt.Errorf("segment Text is required")
	}

	if s.StartOffset < 0 || s.EndOffset <= s.StartOffset {
		return fmt.Errorf("segment offsets are invalid: [%d,%d)", s.StartOffset, s.EndOffset)
	}

	if s.OverlapChars < 0 || s.OverlapChars > s.StartOffset {
		return fmt.Errorf("segment OverlapChars is invalid: %d", s.OverlapChars)
	}

	if s.Label != "" && !isValidSegmentLabel(s.Label) {
		return fmt.Errorf("segment Label is invalid: %s", s.Label)
	}

	return nil
}

// ValidateSegmentBatch checks the ordering invariants of one document's batch:
// dense sequence indices from zero and sorted, non-overlapping owned ranges.
func ValidateSegmentBatch(documentID string, segments []Segment) error {
	prevEnd := 0
	for i := range segments {
		s := &segments[i]
		if err := ValidateSegment(s); err != nil {
			return err
		}
		if s.DocumentID != documentID {
			return fmt.Errorf("segment %s belongs to document %s, not %s", s.ID, s.DocumentID, documentID)
		}
		if s.SequenceIndex != i {
			return fmt.Errorf("segment sequence index %d at position %d", s.SequenceIndex, i)
		}
		if s.StartOffset < prevEnd {
			return fmt.Errorf("segment %d overlaps its predecessor", i)
		}
		prevEnd = s.EndOffset
	}
	return nil
}

func isValidSegmentLabel(l SegmentLabel) bool {
	switch l {
	case SegmentLabelHeading, SegmentLabelParagraph, SegmentLabelList:
		return true
	}
	return false
}

// VectorRecord is the embedding of one segment plus its slot in the index
type VectorRecord struct {
	ID         string
	SegmentID  string
	DocumentID string
	Position   int
	Embedding  []float32
	CreatedAt  time.Time
}

// RetrievedSegment pairs a segment with its relevance score
type RetrievedSegment struct {
	Segment Segment
	Score   float32
}

// RetrievalResult is the ranked, bounded context for one retrieval call
type RetrievalResult struct {
	DocumentID string
	Query      string
	Items      []RetrievedSegment
}

// TotalChars returns the combined rune length of all retrieved segments
func (r *RetrievalResult) TotalChars() int {
	total := 0
	for i := range r.Items {
		total += r.Items[i].Segment.CharCount()
	}
	return total
}

// SegmentIDs returns the IDs of the retrieved segments in rank order
func (r *RetrievalResult) SegmentIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for i := range r.Items {
		ids = append(ids, r.Items[i].Segment.ID)
	}
	return ids
}
