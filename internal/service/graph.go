package service

import (
	"context"
	"strings"
	"time"

	"github.com/weftware/weft/internal/domain"
	"github.com/weftware/weft/internal/telemetry"
)

const (
	graphDefaultNodeLimit = 500
	graphLinkFetchLimit   = 5000
	graphLabelMaxLen      = 60
)

// GraphNode is a fragment in the link graph view.
type GraphNode struct {
	ID          string
	Label       string
	SourceType  domain.SourceType
	Project     string
	CapturedAt  time.Time
	Topics      []string
	Connections int
}

// GraphEdge is a link between two nodes of the graph view.
type GraphEdge struct {
	ID       string
	SourceID string
	TargetID string
	Kind     domain.LinkKind
	Strength float64
}

// Graph is the fragment link graph in a shape visualization libraries can
// consume directly.
type Graph struct {
	Nodes []*GraphNode
	Edges []*GraphEdge
}

// GraphInput narrows which fragments become graph nodes.
type GraphInput struct {
	Project    string
	SourceType domain.SourceType
	Since      *time.Time
	Until      *time.Time
	Limit      int
}

// GraphService assembles the fragment link graph.
type GraphService struct {
	fragmentRepo FragmentRepositoryInterface
	linkRepo     LinkRepositoryInterface
}

// NewGraphService creates a new GraphService instance
func NewGraphService(fragmentRepo FragmentRepositoryInterface, linkRepo LinkRepositoryInterface) *GraphService {
	return &GraphService{
		fragmentRepo: fragmentRepo,
		linkRepo:     linkRepo,
	}
}

// Build returns nodes for the fragments matching the input and edges for
// links whose endpoints are both in the node set. Connection counts also
// include links reaching outside the set, so a node on the boundary still
// shows its true degree.
func (s *GraphService) Build(ctx context.Context, input GraphInput) (*Graph, error) {
	ctx, span := telemetry.StartSpan(ctx, "GraphService.Build", telemetry.SpanAttributes{
		Project:   input.Project,
		Operation: "graph",
	})
	defer span.End()

	limit := input.Limit
	if limit <= 0 {
		limit = graphDefaultNodeLimit
	}

	fragments, err := s.fragmentRepo.List(ctx, FragmentFilter{
		Project:    input.Project,
		SourceType: input.SourceType,
		Since:      input.Since,
		Until:      input.Until,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}

	links, err := s.linkRepo.ListAll(ctx, graphLinkFetchLimit)
	if err != nil {
		return nil, err
	}

	inSet := make(map[string]bool, len(fragments))
	for _, f := range fragments {
		inSet[f.ID] = true
	}

	connections := make(map[string]int)
	edges := make([]*GraphEdge, 0)
	for _, l := range links {
		if inSet[l.SourceID] {
			connections[l.SourceID]++
		}
		if inSet[l.TargetID] {
			connections[l.TargetID]++
		}
		if inSet[l.SourceID] && inSet[l.TargetID] {
			edges = append(edges, &GraphEdge{
				ID:       l.ID,
				SourceID: l.SourceID,
				TargetID: l.TargetID,
				Kind:     l.Kind,
				Strength: l.Strength,
			})
		}
	}

	nodes := make([]*GraphNode, 0, len(fragments))
	for _, f := range fragments {
		nodes = append(nodes, &GraphNode{
			ID:          f.ID,
			Label:       truncateLabel(f.RawContent, graphLabelMaxLen),
			SourceType:  f.SourceType,
			Project:     f.Project,
			CapturedAt:  f.CapturedAt,
			Topics:      f.Topics,
			Connections: connections[f.ID],
		})
	}

	return &Graph{Nodes: nodes, Edges: edges}, nil
}

// truncateLabel flattens newlines and cuts the text to maxLen runes with
// an ellipsis.
func truncateLabel(text string, maxLen int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen-3]) + "..."
}
