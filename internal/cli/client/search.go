package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest represents the search API request.
type SearchRequest struct {
	Query      string `json:"query"`
	Project    string `json:"project,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// SearchResult represents a search result.
type SearchResult struct {
	Fragment   Fragment `json:"fragment"`
	Similarity float64  `json:"similarity"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		project    string
		sourceType string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search captured fragments",
		Long:  "Searches fragments by meaning using semantic search.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSearch(cmd, args[0], project, sourceType, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Filter by project")
	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Filter by source type (quick_capture, zoom, teams, notes)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")

	return cmd
}

func runSearch(cmd *cobra.Command, query, project, sourceType string, limit int, outputJSON bool) error {
	if project == "" {
		project = projectFromConfig()
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := SearchRequest{
		Query:      query,
		Project:    project,
		SourceType: sourceType,
		Limit:      limit,
	}

	resp, err := api.Post("/api/search", req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Println(string(output))
	} else {
		if len(searchResp.Results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		fmt.Printf("Found %d results:\n\n", len(searchResp.Results))
		for i, result := range searchResp.Results {
			fmt.Printf("%d. %s (%.2f)\n", i+1, fragmentLabel(result.Fragment), result.Similarity)
			fmt.Printf("   %s • %s\n", result.Fragment.SourceType, result.Fragment.CapturedAt)
			if result.Fragment.Project != "" {
				fmt.Printf("   Project: %s\n", result.Fragment.Project)
			}
			fmt.Printf("   ID: %s\n", result.Fragment.ID)
			if i < len(searchResp.Results)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}

	return nil
}

// fragmentLabel returns a one-line label for a fragment: the summary when
// enrichment has produced one, otherwise the start of the raw content.
func fragmentLabel(f Fragment) string {
	label := f.Summary
	if label == "" {
		label = f.RawContent
	}
	label = strings.ReplaceAll(label, "\n", " ")
	if len(label) > 100 {
		label = label[:97] + "..."
	}
	return label
}
