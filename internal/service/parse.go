package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloo-solutions/studyforge/internal/domain"
)

const defaultFlashcardTopic = "General"

var errNoJSON = errors.New("no JSON value found in output")

// listWrapperKeys are the object keys providers commonly wrap list payloads in
var listWrapperKeys = map[domain.ArtifactKind][]string{
	domain.ArtifactKindFlashcards: {"flashcards", "cards", "items"},
	domain.ArtifactKindQuiz:       {"questions", "quiz", "items"},
	domain.ArtifactKindPlan:       {"topics", "plan", "revision_plan", "items"},
}

// extractJSON pulls the JSON value out of raw provider output, dropping
// markdown fences and any prose around it.
func extractJSON(raw string) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}
	if json.Valid([]byte(text)) {
		return []byte(text), nil
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil, errNoJSON
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return nil, errNoJSON
	}
	candidate := []byte(text[start : end+1])
	if !json.Valid(candidate) {
		return nil, fmt.Errorf("%w: malformed JSON", errNoJSON)
	}
	return candidate, nil
}

// unwrapList returns the JSON array of a list payload, accepting a bare
// array, a known wrapper object, an object with a single array field, or a
// single item object.
func unwrapList(kind domain.ArtifactKind, data []byte) []byte {
	if bytes.HasPrefix(data, []byte("[")) {
		return data
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return data
	}
	for _, key := range listWrapperKeys[kind] {
		if v, ok := obj[key]; ok {
			return v
		}
	}
	if len(obj) == 1 {
		for _, v := range obj {
			if bytes.HasPrefix(bytes.TrimSpace(v), []byte("[")) {
				return v
			}
		}
	}
	return append(append([]byte("["), data...), ']')
}

type parseParams struct {
	NumItems     int
	SegmentIDs   []string
	ContextChars int
}

// parsePayload decodes provider output for kind and validates it. List
// payloads longer than NumItems are truncated.
func parsePayload(kind domain.ArtifactKind, raw string, params parseParams) (domain.Payload, error) {
	data, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	if kind != domain.ArtifactKindChatAnswer {
		data = unwrapList(kind, data)
	}

	payload, err := domain.NewPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	switch p := payload.(type) {
	case *domain.FlashcardSet:
		*p = truncate(*p, params.NumItems)
		for i := range *p {
			if strings.TrimSpace((*p)[i].Topic) == "" {
				(*p)[i].Topic = defaultFlashcardTopic
			}
		}
	case *domain.Quiz:
		*p = truncate(*p, params.NumItems)
		for i := range *p {
			(*p)[i].Difficulty = strings.ToLower(strings.TrimSpace((*p)[i].Difficulty))
		}
	case *domain.RevisionPlan:
		*p = truncate(*p, params.NumItems)
		for i := range *p {
			(*p)[i].Difficulty = strings.ToLower(strings.TrimSpace((*p)[i].Difficulty))
		}
	case *domain.ChatAnswer:
		if p.Confidence == "" {
			p.Confidence = "medium"
			if params.ContextChars > 500 {
				p.Confidence = "high"
			}
		}
		p.Confidence = strings.ToLower(p.Confidence)
		if p.CitedSegmentIDs == nil {
			p.CitedSegmentIDs = []string{}
		}
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if chat, ok := payload.(*domain.ChatAnswer); ok {
		if err := chat.CitesOnly(params.SegmentIDs); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func truncate[S ~[]E, E any](s S, n int) S {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// preview returns at most n runes of s for error reports
func preview(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n])
}
