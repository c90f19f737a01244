package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DeleteResponse represents the fragment deletion API response.
type DeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteCmd creates the delete command.
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <fragment-id>",
		Short: "Delete a fragment",
		Long:  "Deletes a fragment along with its extracted decisions, assumptions, and links.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDelete(cmd, args[0], outputJSON)
		},
	}

	return cmd
}

func runDelete(cmd *cobra.Command, fragmentID string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Delete("/api/fragments/" + fragmentID)
	if err != nil {
		return fmt.Errorf("failed to delete fragment: %w", err)
	}

	var deleteResp DeleteResponse
	if err := json.Unmarshal(resp.Data, &deleteResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(deleteResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Deleted fragment: %s\n", deleteResp.ID)
	}

	return nil
}
