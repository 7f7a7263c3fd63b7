package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/studyforge/internal/api"
	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/go-chi/chi/v5"
)

type ArtifactGenerator interface {
	Create(ctx context.Context, input service.GenerateInput) (*domain.Artifact, error)
}

type ArtifactService interface {
	Get(ctx context.Context, id string) (*domain.Artifact, error)
	List(ctx context.Context, input service.ListArtifactsInput) (*service.ListArtifactsOutput, error)
	EvaluateQuizAnswer(ctx context.Context, artifactID string, index, selected int) (bool, error)
	UpcomingRevisions(ctx context.Context, artifactID string, days int) (*service.UpcomingRevisions, error)
}

type ArtifactHandler struct {
	generator ArtifactGenerator
	svc       ArtifactService
}

func NewArtifactHandler(generator ArtifactGenerator, svc ArtifactService) *ArtifactHandler {
	return &ArtifactHandler{generator: generator, svc: svc}
}

type GenerateRequest struct {
	Kind        string   `json:"kind"`
	NumItems    int      `json:"num_items"`
	TopicFilter string   `json:"topic_filter"`
	Temperature *float64 `json:"temperature"`
	Question    string   `json:"question"`
	Difficulty  string   `json:"difficulty"`
}

type QuizAnswerRequest struct {
	QuestionIndex int `json:"question_index"`
	Selected      int `json:"selected"`
}

type QuizAnswerResponse struct {
	Correct bool `json:"correct"`
}

type RevisionTaskResponse struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Date       string `json:"date"`
	First      bool   `json:"first"`
}

type UpcomingRevisionsResponse struct {
	ArtifactID string                 `json:"artifact_id"`
	From       string                 `json:"from"`
	To         string                 `json:"to"`
	Items      []RevisionTaskResponse `json:"items"`
}

type MetadataResponse struct {
	Provider    string                `json:"provider"`
	Model       string                `json:"model,omitempty"`
	Temperature float64               `json:"temperature"`
	RetryCount  int                   `json:"retry_count"`
	GeneratedAt string                `json:"generated_at"`
	NumItems    int                   `json:"num_items,omitempty"`
	TopicFilter string                `json:"topic_filter,omitempty"`
	Difficulty  string                `json:"difficulty,omitempty"`
	SegmentIDs  []string              `json:"segment_ids,omitempty"`
	Attempts    []api.AttemptResponse `json:"attempts,omitempty"`
}

type ArtifactResponse struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Kind       string           `json:"kind"`
	ItemCount  int              `json:"item_count"`
	Payload    json.RawMessage  `json:"payload"`
	Metadata   MetadataResponse `json:"metadata"`
	CreatedAt  string           `json:"created_at"`
}

type ArtifactListResponse struct {
	Items   []*ArtifactResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func artifactToResponse(a *domain.Artifact) *ArtifactResponse {
	m := a.Metadata
	return &ArtifactResponse{
		ID:         a.ID,
		DocumentID: a.DocumentID,
		Kind:       string(a.Kind),
		ItemCount:  a.ItemCount,
		Payload:    a.Payload,
		Metadata: MetadataResponse{
			Provider:    m.Provider,
			Model:       m.Model,
			Temperature: m.Temperature,
			RetryCount:  m.RetryCount,
			GeneratedAt: api.FormatTime(m.GeneratedAt),
			NumItems:    m.NumItems,
			TopicFilter: m.TopicFilter,
			Difficulty:  m.Difficulty,
			SegmentIDs:  m.SegmentIDs,
			Attempts:    api.AttemptsToResponse(m.Attempts),
		},
		CreatedAt: api.FormatTime(a.CreatedAt),
	}
}

// Generate creates one artifact of the requested kind for a document.
func (h *ArtifactHandler) Generate(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Kind == "" {
		api.Error(w, http.StatusBadRequest, "kind is required")
		return
	}
	kind, err := domain.ParseArtifactKind(req.Kind)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	artifact, err := h.generator.Create(r.Context(), service.GenerateInput{
		DocumentID:  documentID,
		Kind:        kind,
		NumItems:    req.NumItems,
		TopicFilter: req.TopicFilter,
		Temperature: req.Temperature,
		Question:    req.Question,
		Difficulty:  req.Difficulty,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, artifactToResponse(artifact))
}

func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	output, err := h.svc.List(r.Context(), service.ListArtifactsInput{
		DocumentID: chi.URLParam(r, "documentID"),
		Kind:       r.URL.Query().Get("kind"),
		Cursor:     r.URL.Query().Get("cursor"),
		Limit:      queryInt(r, "limit", 0),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ArtifactResponse, len(output.Items))
	for i, a := range output.Items {
		responses[i] = artifactToResponse(a)
	}

	api.Success(w, http.StatusOK, ArtifactListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *ArtifactHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	artifact, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, artifactToResponse(artifact))
}

// AnswerQuiz checks one answer against a stored quiz.
func (h *ArtifactHandler) AnswerQuiz(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req QuizAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	correct, err := h.svc.EvaluateQuizAnswer(r.Context(), id, req.QuestionIndex, req.Selected)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, QuizAnswerResponse{Correct: correct})
}

// Upcoming lists the revisions of a plan artifact due in the next ?days days.
func (h *ArtifactHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	out, err := h.svc.UpcomingRevisions(r.Context(), id, queryInt(r, "days", 0))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]RevisionTaskResponse, len(out.Tasks))
	for i, t := range out.Tasks {
		items[i] = RevisionTaskResponse{Topic: t.Topic, Difficulty: t.Difficulty, Date: t.Date, First: t.First}
	}
	api.Success(w, http.StatusOK, UpcomingRevisionsResponse{
		ArtifactID: out.ArtifactID,
		From:       out.From,
		To:         out.To,
		Items:      items,
	})
}
