package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// DateLayout is the format of revision plan dates
const DateLayout = "2006-01-02"

// Payload is a kind-specific artifact body
type Payload interface {
	Validate() error
	Len() int
}

// Flashcard is one question/answer pair
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Topic    string `json:"topic"`
}

type FlashcardSet []Flashcard

func (s FlashcardSet) Len() int { return len(s) }

func (s FlashcardSet) Validate() error {
	if len(s) == 0 {
		return payloadError("flashcards: no cards")
	}
	for i, c := range s {
		if strings.TrimSpace(c.Question) == "" {
			return payloadError("flashcards[%d]: question is required", i)
		}
		if strings.TrimSpace(c.Answer) == "" {
			return payloadError("flashcards[%d]: answer is required", i)
		}
	}
	return nil
}

// QuizQuestion is a four-option multiple choice question
type QuizQuestion struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
	Difficulty   string   `json:"difficulty"`
}

type Quiz []QuizQuestion

func (q Quiz) Len() int { return len(q) }

func (q Quiz) Validate() error {
	if len(q) == 0 {
		return payloadError("quiz: no questions")
	}
	for i, question := range q {
		if strings.TrimSpace(question.Question) == "" {
			return payloadError("quiz[%d]: question is required", i)
		}
		if len(question.Options) != 4 {
			return payloadError("quiz[%d]: expected 4 options, got %d", i, len(question.Options))
		}
		for j, opt := range question.Options {
			if strings.TrimSpace(opt) == "" {
				return payloadError("quiz[%d]: option %d is empty", i, j)
			}
		}
		if question.CorrectIndex < 0 || question.CorrectIndex >= len(question.Options) {
			return payloadError("quiz[%d]: correct_index %d out of range", i, question.CorrectIndex)
		}
		if !isValidDifficulty(question.Difficulty) {
			return payloadError("quiz[%d]: invalid difficulty %q", i, question.Difficulty)
		}
	}
	return nil
}

// Evaluate reports whether selected is the correct option of question i.
func (q Quiz) Evaluate(i, selected int) (bool, error) {
	if i < 0 || i >= len(q) {
		return false, ErrInvalidQuizAnswerIndex
	}
	if selected < 0 || selected >= len(q[i].Options) {
		return false, ErrInvalidQuizAnswerIndex
	}
	return q[i].CorrectIndex == selected, nil
}

// PlanEntry schedules revisions of one topic
type PlanEntry struct {
	Topic                   string   `json:"topic"`
	Difficulty              string   `json:"difficulty"`
	FirstRevisionDate       string   `json:"first_revision_date"`
	SubsequentRevisionDates []string `json:"subsequent_revision_dates"`
}

type RevisionPlan []PlanEntry

func (p RevisionPlan) Len() int { return len(p) }

func (p RevisionPlan) Validate() error {
	if len(p) == 0 {
		return payloadError("plan: no topics")
	}
	for i, e := range p {
		if strings.TrimSpace(e.Topic) == "" {
			return payloadError("plan[%d]: topic is required", i)
		}
		if !isValidDifficulty(e.Difficulty) {
			return payloadError("plan[%d]: invalid difficulty %q", i, e.Difficulty)
		}
		prev, err := time.Parse(DateLayout, e.FirstRevisionDate)
		if err != nil {
			return payloadError("plan[%d]: first_revision_date %q is not YYYY-MM-DD", i, e.FirstRevisionDate)
		}
		for j, raw := range e.SubsequentRevisionDates {
			d, err := time.Parse(DateLayout, raw)
			if err != nil {
				return payloadError("plan[%d]: subsequent_revision_dates[%d] %q is not YYYY-MM-DD", i, j, raw)
			}
			if !d.After(prev) {
				return payloadError("plan[%d]: subsequent_revision_dates[%d] is not after the previous revision", i, j)
			}
			prev = d
		}
	}
	return nil
}

// RevisionTask is one scheduled revision of a plan topic
type RevisionTask struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Date       string `json:"date"`
	First      bool   `json:"first"`
}

// Upcoming lists the revisions dated from today through today+days, ordered
// by date and then by plan order. Only the calendar date of today counts.
func (p RevisionPlan) Upcoming(today time.Time, days int) []RevisionTask {
	if days < 0 {
		return nil
	}
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, days)

	var tasks []RevisionTask
	add := func(e PlanEntry, raw string, first bool) {
		d, err := time.Parse(DateLayout, raw)
		if err != nil || d.Before(from) || d.After(to) {
			return
		}
		tasks = append(tasks, RevisionTask{Topic: e.Topic, Difficulty: e.Difficulty, Date: raw, First: first})
	}
	for _, e := range p {
		add(e, e.FirstRevisionDate, true)
		for _, raw := range e.SubsequentRevisionDates {
			add(e, raw, false)
		}
	}
	slices.SortStableFunc(tasks, func(a, b RevisionTask) int { return strings.Compare(a.Date, b.Date) })
	return tasks
}

// ChatAnswer is a grounded answer to a question about a document
type ChatAnswer struct {
	Answer          string   `json:"answer"`
	CitedSegmentIDs []string `json:"cited_segment_ids"`
	Confidence      string   `json:"confidence"`
}

func (c *ChatAnswer) Len() int { return 1 }

func (c *ChatAnswer) Validate() error {
	if strings.TrimSpace(c.Answer) == "" {
		return payloadError("chat_answer: answer is required")
	}
	switch strings.ToLower(c.Confidence) {
	case "high", "medium", "low":
	default:
		return payloadError("chat_answer: invalid confidence %q", c.Confidence)
	}
	return nil
}

// CitesOnly reports whether every cited segment is in allowed.
func (c *ChatAnswer) CitesOnly(allowed []string) error {
	for _, id := range c.CitedSegmentIDs {
		if !slices.Contains(allowed, id) {
			return payloadError("chat_answer: cited segment %s is not in the retrieved context", id)
		}
	}
	return nil
}

// NewPayload returns an empty payload value for kind, ready to be decoded into.
func NewPayload(kind ArtifactKind) (Payload, error) {
	switch kind {
	case ArtifactKindFlashcards:
		return &FlashcardSet{}, nil
	case ArtifactKindQuiz:
		return &Quiz{}, nil
	case ArtifactKindPlan:
		return &RevisionPlan{}, nil
	case ArtifactKindChatAnswer:
		return &ChatAnswer{}, nil
	}
	return nil, ErrInvalidArtifactKind
}

// DecodePayload decodes stored payload JSON for kind without validating it.
func DecodePayload(kind ArtifactKind, raw json.RawMessage) (Payload, error) {
	p, err := NewPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, ErrInvalidPayload.Wrap(err)
	}
	return p, nil
}

// Difficulty levels of quiz questions and plan topics
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// NormalizeDifficulty lowercases d and reports whether it is a known level.
func NormalizeDifficulty(d string) (string, bool) {
	d = strings.ToLower(strings.TrimSpace(d))
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return d, false
}

func isValidDifficulty(d string) bool {
	_, ok := NormalizeDifficulty(d)
	return ok
}

func payloadError(format string, args ...any) error {
	return ErrInvalidPayload.Wrap(fmt.Errorf(format, args...))
}
