package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/studyforge/internal/api"
	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/cloo-solutions/studyforge/internal/service"
	"github.com/go-chi/chi/v5"
)

const multipartMemory = 8 << 20

// Uploaded files must already be text; binary formats are rejected.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".text": true, "": true,
}

type DocumentService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	Segments(ctx context.Context, documentID string) ([]domain.Segment, error)
	Delete(ctx context.Context, id string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type CreateDocumentRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type DocumentResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SizeBytes     int64  `json:"size_bytes"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

type SegmentResponse struct {
	ID            string `json:"id"`
	SequenceIndex int    `json:"sequence_index"`
	Text          string `json:"text"`
	Label         string `json:"label"`
	Topic         string `json:"topic,omitempty"`
	PageNumber    int    `json:"page_number"`
	StartOffset   int    `json:"start_offset"`
	EndOffset     int    `json:"end_offset"`
	OverlapChars  int    `json:"overlap_chars"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:            d.ID,
		Name:          d.Name,
		SizeBytes:     d.SizeBytes,
		Status:        string(d.Status),
		FailureReason: d.FailureReason,
		CreatedAt:     api.FormatTime(d.CreatedAt),
		UpdatedAt:     api.FormatTime(d.UpdatedAt),
	}
}

func segmentToResponse(s domain.Segment) SegmentResponse {
	return SegmentResponse{
		ID:            s.ID,
		SequenceIndex: s.SequenceIndex,
		Text:          s.Text,
		Label:         string(s.Label),
		Topic:         s.Topic,
		PageNumber:    s.PageNumber,
		StartOffset:   s.StartOffset,
		EndOffset:     s.EndOffset,
		OverlapChars:  s.OverlapChars,
	}
}

// Create ingests a document sent either as JSON {name, text} or as a
// multipart form with a "file" part holding plain text.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, status, msg := readDocumentInput(r)
	if status != 0 {
		api.Error(w, status, msg)
		return
	}

	doc, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func readDocumentInput(r *http.Request) (service.IngestInput, int, string) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			if isBodyTooLarge(err) {
				return service.IngestInput{}, http.StatusRequestEntityTooLarge, "request body too large"
			}
			return service.IngestInput{}, http.StatusBadRequest, "invalid multipart form"
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return service.IngestInput{}, http.StatusBadRequest, "file is required"
		}
		defer file.Close()

		if !textExtensions[strings.ToLower(filepath.Ext(header.Filename))] {
			return service.IngestInput{}, http.StatusUnsupportedMediaType, "only plain text uploads are supported"
		}
		data, err := io.ReadAll(file)
		if err != nil {
			return service.IngestInput{}, http.StatusBadRequest, "failed to read file"
		}
		if !utf8.Valid(data) {
			return service.IngestInput{}, http.StatusUnsupportedMediaType, "file is not valid UTF-8 text"
		}
		name := r.FormValue("name")
		if name == "" {
			name = header.Filename
		}
		return service.IngestInput{Name: name, Text: string(data)}, 0, ""
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			return service.IngestInput{}, http.StatusRequestEntityTooLarge, "request body too large"
		}
		return service.IngestInput{}, http.StatusBadRequest, "invalid request body"
	}
	if strings.TrimSpace(req.Name) == "" {
		return service.IngestInput{}, http.StatusBadRequest, "name is required"
	}
	return service.IngestInput{Name: req.Name, Text: req.Text}, 0, ""
}

func isBodyTooLarge(err error) bool {
	return api.DomainErrorToHTTP(err) == http.StatusRequestEntityTooLarge
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	input := service.ListDocumentsInput{
		Status: r.URL.Query().Get("status"),
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  queryInt(r, "limit", 0),
	}

	output, err := h.svc.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *DocumentHandler) Segments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")

	segments, err := h.svc.Segments(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]SegmentResponse, len(segments))
	for i, s := range segments {
		responses[i] = segmentToResponse(s)
	}
	api.Success(w, http.StatusOK, responses)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryInt parses an integer query parameter, returning def when it is
// absent or malformed.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
