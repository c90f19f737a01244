package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Assumption represents an assumption returned by the API.
type Assumption struct {
	ID            string `json:"id"`
	FragmentID    string `json:"fragment_id"`
	Statement     string `json:"statement"`
	Explicit      bool   `json:"explicit"`
	Validity      string `json:"validity"`
	InvalidatedBy string `json:"invalidated_by,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// AssumptionListResponse represents the assumption list API response.
type AssumptionListResponse struct {
	Items []Assumption `json:"items"`
}

// InvalidateRequest represents the invalidate API request.
type InvalidateRequest struct {
	InvalidatedBy string `json:"invalidated_by"`
}

// AssumptionsCmd creates the assumptions command.
func AssumptionsCmd() *cobra.Command {
	var (
		project      string
		fragmentID   string
		validOnly    bool
		since        string
		limit        int
		invalidateID string
		byFragment   string
		validateID   string
	)

	cmd := &cobra.Command{
		Use:   "assumptions [id]",
		Short: "List and manage tracked assumptions",
		Long: `Lists assumptions extracted from captured fragments. Pass an ID to show
a single assumption.

Examples:
  weft assumptions
  weft assumptions --valid-only
  weft assumptions --invalidate <id> --by <fragment-id>
  weft assumptions --validate <id>`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			switch {
			case invalidateID != "":
				if byFragment == "" {
					return fmt.Errorf("--by is required with --invalidate (the fragment that contradicts the assumption)")
				}
				return runInvalidateAssumption(cmd, invalidateID, byFragment, outputJSON)
			case validateID != "":
				return runValidateAssumption(cmd, validateID, outputJSON)
			case len(args) == 1:
				return runGetAssumption(cmd, args[0], outputJSON)
			default:
				return runListAssumptions(cmd, project, fragmentID, validOnly, since, limit, outputJSON)
			}
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Filter by project")
	cmd.Flags().StringVar(&fragmentID, "fragment", "", "Filter by source fragment ID")
	cmd.Flags().BoolVar(&validOnly, "valid-only", false, "Only assumptions still believed valid")
	cmd.Flags().StringVar(&since, "since", "", "Only assumptions captured after this time (RFC3339)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")
	cmd.Flags().StringVar(&invalidateID, "invalidate", "", "Mark an assumption as invalidated")
	cmd.Flags().StringVar(&byFragment, "by", "", "Fragment ID that invalidates the assumption")
	cmd.Flags().StringVar(&validateID, "validate", "", "Mark an assumption as valid again")

	return cmd
}

func runListAssumptions(cmd *cobra.Command, project, fragmentID string, validOnly bool, since string, limit int, outputJSON bool) error {
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
	if validOnly {
		query.Set("valid_only", "true")
	}
	if since != "" {
		query.Set("since", since)
	}
	query.Set("limit", strconv.Itoa(limit))

	resp, err := api.Get("/api/assumptions?" + query.Encode())
	if err != nil {
		return fmt.Errorf("failed to fetch assumptions: %w", err)
	}

	var listResp AssumptionListResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
	} else {
		if len(listResp.Items) == 0 {
			fmt.Println("No assumptions found.")
			return nil
		}

		fmt.Printf("Found %d assumptions:\n\n", len(listResp.Items))
		for i, assumption := range listResp.Items {
			fmt.Printf("%d. [%s] %s\n", i+1, assumption.Validity, truncate(assumption.Statement, 100))
			fmt.Printf("   %s • %s\n", explicitLabel(assumption.Explicit), assumption.CreatedAt)
			if assumption.InvalidatedBy != "" {
				fmt.Printf("   Invalidated by: %s\n", assumption.InvalidatedBy)
			}
			fmt.Printf("   ID: %s (fragment %s)\n", assumption.ID, assumption.FragmentID)
			if i < len(listResp.Items)-1 {
				fmt.Println(strings.Repeat("-", 40))
			}
		}
	}

	return nil
}

func runGetAssumption(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/api/assumptions/" + id)
	if err != nil {
		return fmt.Errorf("failed to fetch assumption: %w", err)
	}

	return printAssumptionResponse(resp, outputJSON)
}

func runInvalidateAssumption(cmd *cobra.Command, id, byFragment string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	req := InvalidateRequest{InvalidatedBy: byFragment}
	resp, err := api.Post(fmt.Sprintf("/api/assumptions/%s/invalidate", id), req)
	if err != nil {
		return fmt.Errorf("failed to invalidate assumption: %w", err)
	}

	if !outputJSON {
		fmt.Printf("Invalidated assumption %s\n", id)
	}
	return printAssumptionResponse(resp, outputJSON)
}

func runValidateAssumption(cmd *cobra.Command, id string, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post(fmt.Sprintf("/api/assumptions/%s/validate", id), nil)
	if err != nil {
		return fmt.Errorf("failed to validate assumption: %w", err)
	}

	if !outputJSON {
		fmt.Printf("Marked assumption %s as valid\n", id)
	}
	return printAssumptionResponse(resp, outputJSON)
}

func printAssumptionResponse(resp *APIResponse, outputJSON bool) error {
	var assumption Assumption
	if err := json.Unmarshal(resp.Data, &assumption); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(assumption, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Assumption: %s\n", assumption.Statement)
		fmt.Printf("Validity: %s\n", assumption.Validity)
		fmt.Printf("Stated: %s\n", explicitLabel(assumption.Explicit))
		if assumption.InvalidatedBy != "" {
			fmt.Printf("Invalidated by: %s\n", assumption.InvalidatedBy)
		}
		fmt.Printf("Captured: %s\n", assumption.CreatedAt)
		fmt.Printf("ID: %s\n", assumption.ID)
		fmt.Printf("Fragment: %s\n", assumption.FragmentID)
	}

	return nil
}

func explicitLabel(explicit bool) string {
	if explicit {
		return "explicit"
	}
	return "implied"
}
