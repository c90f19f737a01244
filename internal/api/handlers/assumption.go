package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/weftware/weft/internal/api"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
)

type AssumptionService interface {
	Create(ctx context.Context, input service.CreateAssumptionInput) (*domain.Assumption, error)
	GetByID(ctx context.Context, id string) (*domain.Assumption, error)
	List(ctx context.Context, filter service.AssumptionFilter) ([]*domain.Assumption, error)
	Invalidate(ctx context.Context, id, invalidatedBy string) (*domain.Assumption, error)
	MarkValid(ctx context.Context, id string) (*domain.Assumption, error)
}

type AssumptionHandler struct {
	svc AssumptionService
}

func NewAssumptionHandler(svc AssumptionService) *AssumptionHandler {
	return &AssumptionHandler{svc: svc}
}

type CreateAssumptionRequest struct {
	FragmentID string `json:"fragment_id"`
	Statement  string `json:"statement"`
	Explicit   bool   `json:"explicit"`
}

type AssumptionResponse struct {
	ID            string `json:"id"`
	FragmentID    string `json:"fragment_id"`
	Statement     string `json:"statement"`
	Explicit      bool   `json:"explicit"`
	Validity      string `json:"validity"`
	InvalidatedBy string `json:"invalidated_by,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func assumptionToResponse(a *domain.Assumption) *AssumptionResponse {
	return &AssumptionResponse{
		ID:            a.ID,
		FragmentID:    a.FragmentID,
		Statement:     a.Statement,
		Explicit:      a.Explicit,
		Validity:      string(a.Validity),
		InvalidatedBy: a.InvalidatedBy,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *AssumptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAssumptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FragmentID == "" {
		api.Error(w, http.StatusBadRequest, "fragment_id is required")
		return
	}
	if req.Statement == "" {
		api.Error(w, http.StatusBadRequest, "statement is required")
		return
	}

	input := service.CreateAssumptionInput{
		FragmentID: req.FragmentID,
		Statement:  req.Statement,
		Explicit:   req.Explicit,
	}

	assumption, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, assumptionToResponse(assumption))
}

func (h *AssumptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	assumption, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, assumptionToResponse(assumption))
}

type AssumptionListResponse struct {
	Items []*AssumptionResponse `json:"items"`
}

func (h *AssumptionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.AssumptionFilter{
		FragmentID: r.URL.Query().Get("fragment_id"),
		Project:    r.URL.Query().Get("project"),
		ValidOnly:  r.URL.Query().Get("valid_only") == "true",
		Limit:      parseLimitParam(r, 50),
	}

	since, err := parseTimeParam(r, "since")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "since must be RFC 3339")
		return
	}
	filter.Since = since

	assumptions, err := h.svc.List(r.Context(), filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*AssumptionResponse, len(assumptions))
	for i, a := range assumptions {
		responses[i] = assumptionToResponse(a)
	}

	api.Success(w, http.StatusOK, AssumptionListResponse{Items: responses})
}

type InvalidateAssumptionRequest struct {
	InvalidatedBy string `json:"invalidated_by"`
}

func (h *AssumptionHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req InvalidateAssumptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.InvalidatedBy == "" {
		api.Error(w, http.StatusBadRequest, "invalidated_by is required")
		return
	}

	assumption, err := h.svc.Invalidate(r.Context(), id, req.InvalidatedBy)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, assumptionToResponse(assumption))
}

func (h *AssumptionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	assumption, err := h.svc.MarkValid(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, assumptionToResponse(assumption))
}
