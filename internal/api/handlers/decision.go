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

type DecisionService interface {
	Create(ctx context.Context, input service.CreateDecisionInput) (*domain.Decision, error)
	GetByID(ctx context.Context, id string) (*domain.Decision, error)
	List(ctx context.Context, filter service.DecisionFilter) ([]*domain.Decision, error)
}

type DecisionHandler struct {
	svc DecisionService
}

func NewDecisionHandler(svc DecisionService) *DecisionHandler {
	return &DecisionHandler{svc: svc}
}

type CreateDecisionRequest struct {
	FragmentID string  `json:"fragment_id"`
	What       string  `json:"what"`
	Why        string  `json:"why"`
	Confidence float64 `json:"confidence"`
}

type DecisionResponse struct {
	ID         string  `json:"id"`
	FragmentID string  `json:"fragment_id"`
	What       string  `json:"what"`
	Why        string  `json:"why,omitempty"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

func decisionToResponse(d *domain.Decision) *DecisionResponse {
	return &DecisionResponse{
		ID:         d.ID,
		FragmentID: d.FragmentID,
		What:       d.What,
		Why:        d.Why,
		Confidence: d.Confidence,
		CreatedAt:  d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *DecisionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FragmentID == "" {
		api.Error(w, http.StatusBadRequest, "fragment_id is required")
		return
	}
	if req.What == "" {
		api.Error(w, http.StatusBadRequest, "what is required")
		return
	}

	input := service.CreateDecisionInput{
		FragmentID: req.FragmentID,
		What:       req.What,
		Why:        req.Why,
		Confidence: req.Confidence,
	}

	decision, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, decisionToResponse(decision))
}

func (h *DecisionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	decision, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, decisionToResponse(decision))
}

type DecisionListResponse struct {
	Items []*DecisionResponse `json:"items"`
}

func (h *DecisionHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.DecisionFilter{
		FragmentID: r.URL.Query().Get("fragment_id"),
		Project:    r.URL.Query().Get("project"),
		Limit:      parseLimitParam(r, 50),
	}

	since, err := parseTimeParam(r, "since")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "since must be RFC 3339")
		return
	}
	filter.Since = since

	decisions, err := h.svc.List(r.Context(), filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DecisionResponse, len(decisions))
	for i, d := range decisions {
		responses[i] = decisionToResponse(d)
	}

	api.Success(w, http.StatusOK, DecisionListResponse{Items: responses})
}
