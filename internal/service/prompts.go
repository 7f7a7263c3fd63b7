package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/provider"
)

const (
	systemPrompt = "You are a study assistant. Work only from the study material you are given and answer in JSON."

	strictJSONInstruction = "Respond with JSON only (no commentary, no markdown)."
)

// RevisionIntervalsDays are the spaced-repetition gaps suggested for plans
var RevisionIntervalsDays = []int{1, 3, 7, 14}

type promptParams struct {
	NumItems    int
	TopicFilter string
	Question    string
	Difficulty  string
	Today       time.Time
	Strict      bool
}

// formatContext renders retrieved segments one per line. Chat prompts carry
// segment IDs so answers can cite them.
func formatContext(result *domain.RetrievalResult, withIDs bool) string {
	var b strings.Builder
	for _, item := range result.Items {
		seg := item.Segment
		if seg.PageNumber > 0 {
			fmt.Fprintf(&b, "PAGE %d ", seg.PageNumber)
		}
		fmt.Fprintf(&b, "SEG %d", seg.SequenceIndex)
		if withIDs {
			fmt.Fprintf(&b, " ID %s", seg.ID)
		}
		fmt.Fprintf(&b, " [%s]: %s\n", seg.Topic, strings.TrimSpace(seg.Text))
	}
	return b.String()
}

func buildPrompt(kind domain.ArtifactKind, result *domain.RetrievalResult, p promptParams) string {
	var b strings.Builder

	switch kind {
	case domain.ArtifactKindFlashcards:
		fmt.Fprintf(&b, "Create %d flashcards from the study material below.\n", p.NumItems)
		b.WriteString(`Return a JSON array of objects with "question", "answer" and "topic". `)
		b.WriteString("Questions must be answerable from the material alone.\n")
	case domain.ArtifactKindQuiz:
		fmt.Fprintf(&b, "Create %d multiple-choice questions from the study material below.\n", p.NumItems)
		b.WriteString(`Return a JSON array of objects with "question", "options" (exactly 4 strings), `)
		b.WriteString(`"correct_index" (0 to 3), "explanation" and "difficulty" (easy, medium or hard).` + "\n")
		if p.Difficulty != "" {
			fmt.Fprintf(&b, "Difficulty level: %s. Adjust question complexity accordingly.\n", p.Difficulty)
		}
	case domain.ArtifactKindPlan:
		fmt.Fprintf(&b, "Today is %s. Build a spaced-repetition revision plan for the main topics of the study material below.\n",
			p.Today.Format(domain.DateLayout))
		if p.NumItems > 0 {
			fmt.Fprintf(&b, "Cover at most %d topics.\n", p.NumItems)
		}
		fmt.Fprintf(&b, "Space revisions %s days apart, starting from tomorrow.\n", joinInts(RevisionIntervalsDays))
		b.WriteString(`Return a JSON array of objects with "topic", "difficulty" (easy, medium or hard), `)
		b.WriteString(`"first_revision_date" (YYYY-MM-DD) and "subsequent_revision_dates" `)
		b.WriteString("(YYYY-MM-DD, ascending, all after the first revision).\n")
	case domain.ArtifactKindChatAnswer:
		b.WriteString("Answer the question using only the study material below.\n")
		b.WriteString(`Return a JSON object with "answer", "cited_segment_ids" (the ID of every excerpt you used) `)
		b.WriteString(`and "confidence" (high, medium or low).` + "\n")
		fmt.Fprintf(&b, "\nQuestion: %s\n", p.Question)
	}

	if p.TopicFilter != "" && kind != domain.ArtifactKindChatAnswer {
		fmt.Fprintf(&b, "Focus on: %s\n", p.TopicFilter)
	}

	b.WriteString("\nStudy material:\n")
	b.WriteString(formatContext(result, kind == domain.ArtifactKindChatAnswer))

	if p.Strict {
		b.WriteString("\n")
		b.WriteString(strictJSONInstruction)
	}
	return b.String()
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}

// responseSchema returns the structured-output schema for kind. Providers
// without structured output ignore it and follow the prompt instead.
func responseSchema(kind domain.ArtifactKind) *provider.Schema {
	str := jsonschema.Definition{Type: jsonschema.String}
	difficulty := jsonschema.Definition{Type: jsonschema.String, Enum: []string{"easy", "medium", "hard"}}

	var def jsonschema.Definition
	switch kind {
	case domain.ArtifactKindFlashcards:
		def = wrappedArray("flashcards", jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"question": str,
				"answer":   str,
				"topic":    str,
			},
			Required: []string{"question", "answer", "topic"},
		})
	case domain.ArtifactKindQuiz:
		def = wrappedArray("questions", jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"question":      str,
				"options":       {Type: jsonschema.Array, Items: &str},
				"correct_index": {Type: jsonschema.Integer},
				"explanation":   str,
				"difficulty":    difficulty,
			},
			Required: []string{"question", "options", "correct_index", "explanation", "difficulty"},
		})
	case domain.ArtifactKindPlan:
		def = wrappedArray("topics", jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"topic":                     str,
				"difficulty":                difficulty,
				"first_revision_date":       str,
				"subsequent_revision_dates": {Type: jsonschema.Array, Items: &str},
			},
			Required: []string{"topic", "difficulty", "first_revision_date", "subsequent_revision_dates"},
		})
	case domain.ArtifactKindChatAnswer:
		def = jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"answer":            str,
				"cited_segment_ids": {Type: jsonschema.Array, Items: &str},
				"confidence":        {Type: jsonschema.String, Enum: []string{"high", "medium", "low"}},
			},
			Required: []string{"answer", "cited_segment_ids", "confidence"},
		}
	default:
		return nil
	}
	return &provider.Schema{Name: string(kind), Definition: def}
}

// wrappedArray puts a list under key, since structured output needs an
// object at the root. unwrapList accepts the wrapper.
func wrappedArray(key string, item jsonschema.Definition) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			key: {Type: jsonschema.Array, Items: &item},
		},
		Required: []string{key},
	}
}
