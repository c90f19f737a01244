package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Decision represents a decision returned by the API.
type Decision struct {
	ID         string  `json:"id"`
	FragmentID string  `json:"fragment_id"`
	What       string  `json:"what"`
	Why        string  `json:"why,omitempty"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

// DecisionListResponse represents the decision list API response.
type DecisionListResponse struct {
	Items []Decision `json:"items"`
}

// DecisionsCmd creates the decisions command.
func DecisionsCmd() *cobra.Command {
	var (
		project    string
		fragmentID string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "decisions [id]",
		Short: "List extracted decisions",
		Long:  "Lists decisions extracted from captured fragments, newest first. Pass an ID to show a single decision.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if len(args) == 1 {
				return runGetDecision(cmd, args[0], outputJSON)
			}
			return runListDecisions(cmd, project, fragmentID, since, limit, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Filter by project")
	cmd.Flags().StringVar(&fragmentID, "fragment", "", "Filter by source fragment ID")
	cmd.Flags().StringVar(&since, "since", "", "Only decisions captured after this time (RFC3339)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")

	return cmd
}

func runGetDecision(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/api/decisions/" + id)
	if err != nil {
		return fmt.Errorf("failed to fetch decision: %w", err)
	}

	var decision Decision
	if err := json.Unmarshal(resp.Data, &decision); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(decision, "", "  ")
		fmt.Println(string(output))
	} else {
		printDecision(decision)
	}

	return nil
}

func runListDecisions(cmd *cobra.Command, project, fragmentID, since string, limit int, outputJSON bool) error {
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
	if fragmentID != "" {
		query.Set("fragment_id", fragmentID)
	}
	if since != "" {
		query.Set("since", since)
	}
	query.Set("limit", strconv.Itoa(limit))

	resp, err := api.Get("/api/decisions?" + query.Encode())
	if err != nil {
		return fmt.Errorf("failed to fetch decisions: %w", err)
	}

	var listResp DecisionListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
	} else {
		if len(listResp.Items) == 0 {
			fmt.Println("No decisions found.")
			return nil
		}

		fmt.Printf("Found %d decisions:\n\n", len(listResp.Items))
		for i, decision := range listResp.Items {
			fmt.Printf("%d. %s\n", i+1, truncate(decision.What, 100))
			if decision.Why != "" {
				fmt.Printf("   Why: %s\n", truncate(decision.Why, 100))
			}
			fmt.Printf("   Confidence: %.2f • %s\n", decision.Confidence, decision.CreatedAt)
			fmt.Printf("   ID: %s (fragment %s)\n", decision.ID, decision.FragmentID)
			if i < len(listResp.Items)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}

	return nil
}

func printDecision(d Decision) {
	fmt.Printf("Decision: %s\n", d.What)
	if d.Why != "" {
		fmt.Printf("Why: %s\n", d.Why)
	}
	fmt.Printf("Confidence: %.2f\n", d.Confidence)
	fmt.Printf("Captured: %s\n", d.CreatedAt)
	fmt.Printf("ID: %s\n", d.ID)
	fmt.Printf("Fragment: %s\n", d.FragmentID)
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
