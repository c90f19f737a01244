package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// RelatedItem represents a linked fragment in the related API response.
type RelatedItem struct {
	Fragment  Fragment `json:"fragment"`
	Kind      string   `json:"kind"`
	Strength  float64  `json:"strength"`
	Direction string   `json:"direction"`
}

// RelatedResponse represents the related API response.
type RelatedResponse struct {
	Items []RelatedItem `json:"items"`
}

// RelatedCmd creates the related command.
func RelatedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "related <fragment-id>",
		Short: "Show fragments linked to a fragment",
		Long:  "Lists fragments connected to the given fragment, strongest links first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runRelated(cmd, args[0], limit, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")

	return cmd
}

func runRelated(cmd *cobra.Command, fragmentID string, limit int, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/api/fragments/%s/related?limit=%d", fragmentID, limit))
	if err != nil {
		return fmt.Errorf("failed to fetch related fragments: %w", err)
	}

	var relatedResp RelatedResponse
	if err := json.Unmarshal(resp.Data, &relatedResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(relatedResp, "", "  ")
		fmt.Println(string(output))
	} else {
		if len(relatedResp.Items) == 0 {
			fmt.Println("No related fragments found.")
			return nil
		}

		fmt.Printf("Found %d related fragments:\n\n", len(relatedResp.Items))
		for i, item := range relatedResp.Items {
			fmt.Printf("%d. %s (%s, %.2f)\n", i+1, fragmentLabel(item.Fragment), item.Kind, item.Strength)
			fmt.Printf("   %s • %s\n", item.Fragment.SourceType, item.Fragment.CapturedAt)
			fmt.Printf("   ID: %s\n", item.Fragment.ID)
			if i < len(relatedResp.Items)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}

	return nil
}
