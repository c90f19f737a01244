package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// GraphNode represents a fragment node in the graph API response.
type GraphNode struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	SourceType  string   `json:"source_type"`
	Project     string   `json:"project,omitempty"`
	CapturedAt  string   `json:"captured_at"`
	Topics      []string `json:"topics"`
	Connections int      `json:"connections"`
}

// GraphEdge represents a link between two fragments.
type GraphEdge struct {
	ID       string  `json:"id"`
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Kind     string  `json:"kind"`
	Strength float64 `json:"strength"`
}

// GraphResponse represents the graph API response.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphCmd creates the graph command.
func GraphCmd() *cobra.Command {
	var (
		project    string
		sourceType string
		since      string
		until      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the fragment connection graph",
		Long:  "Fetches the graph of fragments and the links between them.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGraph(cmd, project, sourceType, since, until, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Filter by project")
	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Filter by source type")
	cmd.Flags().StringVar(&since, "since", "", "Only fragments captured after this time (RFC3339)")
	cmd.Flags().StringVar(&until, "until", "", "Only fragments captured before this time (RFC3339)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of nodes (0 for no limit)")

	return cmd
}

func runGraph(cmd *cobra.Command, project, sourceType, since, until string, limit int, outputJSON bool) error {
	if project == "" {
		project = projectFromConfig()
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	query := url.Values{}
	if project != "" {
		query.Set("project", project)
	}
	if sourceType != "" {
		query.Set("source_type", sourceType)
	}
	if since != "" {
		query.Set("since", since)
	}
	if until != "" {
		query.Set("until", until)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/graph"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("failed to fetch graph: %w", err)
	}

	var graphResp GraphResponse
	if err := json.Unmarshal(resp.Data, &graphResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(graphResp, "", "  ")
		fmt.Println(string(output))
	} else {
		if len(graphResp.Nodes) == 0 {
			fmt.Println("No fragments found.")
			return nil
		}

		fmt.Printf("Graph: %d fragments, %d connections\n\n", len(graphResp.Nodes), len(graphResp.Edges))
		for _, node := range graphResp.Nodes {
			fmt.Printf("• %s (%d connections)\n", truncate(node.Label, 80), node.Connections)
			fmt.Printf("  %s • %s • %s\n", node.SourceType, node.CapturedAt, node.ID)
		}

		if len(graphResp.Edges) > 0 {
			kinds := make(map[string]int)
			for _, edge := range graphResp.Edges {
				kinds[edge.Kind]++
			}
			fmt.Println("\nConnections by kind:")
			for kind, count := range kinds {
				fmt.Printf("  %s: %d\n", kind, count)
			}
		}
	}

	return nil
}
