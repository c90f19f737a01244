package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/weftware/weft/internal/api"
	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/service"
)

type GraphService interface {
	Build(ctx context.Context, input service.GraphInput) (*service.Graph, error)
}

type GraphHandler struct {
	svc GraphService
}

func NewGraphHandler(svc GraphService) *GraphHandler {
	return &GraphHandler{svc: svc}
}

type GraphNodeResponse struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	SourceType  string   `json:"source_type"`
	Project     string   `json:"project,omitempty"`
	CapturedAt  string   `json:"captured_at"`
	Topics      []string `json:"topics"`
	Connections int      `json:"connections"`
}

type GraphEdgeResponse struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Kind     string  `json:"kind"`
	Strength float64 `json:"strength"`
}

type GraphResponse struct {
	Nodes []*GraphNodeResponse `json:"nodes"`
	Edges []*GraphEdgeResponse `json:"edges"`
}

func (h *GraphHandler) Get(w http.ResponseWriter, r *http.Request) {
	input := service.GraphInput{
		Project:    r.URL.Query().Get("project"),
		SourceType: domain.SourceType(r.URL.Query().Get("source_type")),
		Limit:      parseLimitParam(r, 0),
	}

	since, err := parseTimeParam(r, "since")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "since must be RFC 3339")
		return
	}
	input.Since = since

	until, err := parseTimeParam(r, "until")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "until must be RFC 3339")
		return
	}
	input.Until = until

	graph, err := h.svc.Build(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	nodes := make([]*GraphNodeResponse, len(graph.Nodes))
	for i, n := range graph.Nodes {
		nodes[i] = &GraphNodeResponse{
			ID:          n.ID,
			Label:       n.Label,
			SourceType:  string(n.SourceType),
			Project:     n.Project,
			CapturedAt:  n.CapturedAt.UTC().Format(time.RFC3339),
			Topics:      n.Topics,
			Connections: n.Connections,
		}
	}

	edges := make([]*GraphEdgeResponse, len(graph.Edges))
	for i, e := range graph.Edges {
		edges[i] = &GraphEdgeResponse{
			ID:       e.ID,
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Kind:     string(e.Kind),
			Strength: e.Strength,
		}
	}

	api.Success(w, http.StatusOK, GraphResponse{Nodes: nodes, Edges: edges})
}
