package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/weftware/weft/internal/api"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
)

type FragmentService interface {
	Create(ctx context.Context, input service.CreateFragmentInput) (*domain.Fragment, error)
	GetByID(ctx context.Context, id string) (*domain.Fragment, error)
	ListPage(ctx context.Context, input service.ListFragmentsInput) (*service.ListFragmentsOutput, error)
	Delete(ctx context.Context, id string) (bool, error)
	Related(ctx context.Context, id string, limit int) ([]*service.RelatedFragment, error)
}

type FragmentHandler struct {
	svc FragmentService
}

func NewFragmentHandler(svc FragmentService) *FragmentHandler {
	return &FragmentHandler{svc: svc}
}

type CreateFragmentRequest struct {
	RawContent   string   `json:"raw_content"`
	SourceType   string   `json:"source_type"`
	SourceRef    string   `json:"source_ref"`
	Participants []string `json:"participants"`
	Topics       []string `json:"topics"`
	Project      string   `json:"project"`
	CapturedAt   string   `json:"captured_at"`
}

type FragmentResponse struct {
	ID           string   `json:"id"`
	RawContent   string   `json:"raw_content"`
	Summary      string   `json:"summary,omitempty"`
	SourceType   string   `json:"source_type"`
	SourceRef    string   `json:"source_ref,omitempty"`
	CapturedAt   string   `json:"captured_at"`
	Participants []string `json:"participants"`
	Topics       []string `json:"topics"`
	Project      string   `json:"project,omitempty"`
}

func fragmentToResponse(f *domain.Fragment) *FragmentResponse {
	return &FragmentResponse{
		ID:           f.ID,
		RawContent:   f.RawContent,
		Summary:      f.Summary,
		SourceType:   string(f.SourceType),
		SourceRef:    f.SourceRef,
		CapturedAt:   f.CapturedAt.UTC().Format(time.RFC3339),
		Participants: f.Participants,
		Topics:       f.Topics,
		Project:      f.Project,
	}
}

func (h *FragmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFragmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RawContent == "" {
		api.Error(w, http.StatusBadRequest, "raw_content is required")
		return
	}

	sourceType := req.SourceType
	if sourceType == "" {
		sourceType = string(domain.SourceTypeQuickCapture)
	}

	var capturedAt *time.Time
	if req.CapturedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.CapturedAt)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "captured_at must be RFC 3339")
			return
		}
		capturedAt = &parsed
	}

	input := service.CreateFragmentInput{
		RawContent:   req.RawContent,
		SourceType:   domain.SourceType(sourceType),
		SourceRef:    req.SourceRef,
		Participants: req.Participants,
		Topics:       req.Topics,
		Project:      req.Project,
		CapturedAt:   capturedAt,
	}

	fragment, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, fragmentToResponse(fragment))
}

func (h *FragmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	fragment, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, fragmentToResponse(fragment))
}

type FragmentListResponse struct {
	Items   []*FragmentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *FragmentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.FragmentFilter{
		Project:    r.URL.Query().Get("project"),
		SourceType: domain.SourceType(r.URL.Query().Get("source_type")),
	}

	since, err := parseTimeParam(r, "since")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "since must be RFC 3339")
		return
	}
	filter.Since = since

	until, err := parseTimeParam(r, "until")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "until must be RFC 3339")
		return
	}
	filter.Until = until

	input := service.ListFragmentsInput{
		Filter: filter,
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  parseLimitParam(r, 20),
	}

	output, err := h.svc.ListPage(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*FragmentResponse, len(output.Items))
	for i, f := range output.Items {
		responses[i] = fragmentToResponse(f)
	}

	api.Success(w, http.StatusOK, FragmentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

type DeleteFragmentResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (h *FragmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	deleted, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if !deleted {
		api.Error(w, http.StatusNotFound, "fragment not found")
		return
	}

	api.Success(w, http.StatusOK, DeleteFragmentResponse{ID: id, Deleted: true})
}

type RelatedFragmentResponse struct {
	Fragment  *FragmentResponse `json:"fragment"`
	Kind      string            `json:"kind"`
	Strength  float64           `json:"strength"`
	Direction string            `json:"direction"`
}

type RelatedListResponse struct {
	Items []*RelatedFragmentResponse `json:"items"`
}

func (h *FragmentHandler) Related(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	related, err := h.svc.Related(r.Context(), id, parseLimitParam(r, 10))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*RelatedFragmentResponse, len(related))
	for i, rel := range related {
		responses[i] = &RelatedFragmentResponse{
			Fragment:  fragmentToResponse(rel.Fragment),
			Kind:      string(rel.Kind),
			Strength:  rel.Strength,
			Direction: string(rel.Direction),
		}
	}

	api.Success(w, http.StatusOK, RelatedListResponse{Items: responses})
}

// parseTimeParam reads an optional RFC 3339 query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseLimitParam reads an optional positive limit query parameter.
func parseLimitParam(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
