package client

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/capture"
)

// CaptureRequest represents the fragment creation API request.
type CaptureRequest struct {
	RawContent   string   `json:"raw_content"`
	SourceType   string   `json:"source_type,omitempty"`
	SourceRef    string   `json:"source_ref,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Topics       []string `json:"topics,omitempty"`
	Project      string   `json:"project,omitempty"`
	CapturedAt   string   `json:"captured_at,omitempty"`
}

// Fragment represents a fragment returned by the API.
type Fragment struct {
	ID           string   `json:"id"`
	RawContent   string   `json:"raw_content"`
	Summary      string   `json:"summary,omitempty"`
	SourceType   string   `json:"source_type"`
	SourceRef    string   `json:"source_ref,omitempty"`
	CapturedAt   string   `json:"captured_at"`
	Participants []string `json:"participants"`
	Topics       []string `json:"topics"`
	Project      string   `json:"project,omitempty"`
}

var validSourceTypes = map[string]bool{
	"quick_capture": true,
	"zoom":          true,
	"teams":         true,
	"notes":         true,
}

// CaptureCmd creates the capture command.
func CaptureCmd() *cobra.Command {
	var (
		file       string
		sourceType string
		project    string
		topics     []string
		link       string
	)

	cmd := &cobra.Command{
		Use:   "capture [text]",
		Short: "Capture a context fragment",
		Long: `Captures a context fragment from an argument, a file, or stdin.

Examples:
  weft capture "chose Redis for sessions"
  weft capture -p billing -t architecture "separating payment service"
  weft capture --link https://github.com/org/repo/pull/42 "this PR implements..."
  weft capture --file meeting.vtt
  git log -1 --format=%B | weft capture`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runCapture(cmd, text, file, sourceType, project, topics, link, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Capture a transcript or note file")
	cmd.Flags().StringVar(&sourceType, "source-type", "", "Override the source type (quick_capture, zoom, teams, notes)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name for organization")
	cmd.Flags().StringSliceVarP(&topics, "topic", "t", nil, "Topic tags (can be used multiple times)")
	cmd.Flags().StringVar(&link, "link", "", "Reference URL or identifier")

	return cmd
}

func runCapture(cmd *cobra.Command, text, file, sourceType, project string, topics []string, link string, outputJSON bool) error {
	if sourceType != "" && !validSourceTypes[sourceType] {
		return fmt.Errorf("invalid source type: %s (must be one of: quick_capture, zoom, teams, notes)", sourceType)
	}

	var req CaptureRequest

	switch {
	case file != "":
		parsed, err := capture.ParseFile(file)
		if err != nil {
			return err
		}
		if strings.TrimSpace(parsed.Content) == "" {
			return fmt.Errorf("no content found in %s", file)
		}
		if sourceType == "" {
			sourceType = inferSourceType(file)
		}
		req = fragmentPayload(parsed, sourceType, project, topics)

	default:
		if text == "" {
			input, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text = strings.TrimSpace(string(input))
		}
		if text == "" {
			return fmt.Errorf("no content provided (pass text, --file, or pipe to stdin)")
		}
		if sourceType == "" {
			sourceType = "quick_capture"
		}
		if project == "" {
			project = projectFromConfig()
		}
		req = CaptureRequest{
			RawContent: text,
			SourceType: sourceType,
			SourceRef:  link,
			Topics:     topics,
			Project:    project,
		}
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Post("/api/fragments", req)
	if err != nil {
		return fmt.Errorf("failed to capture: %w", err)
	}

	var fragment Fragment
	if err := json.Unmarshal(resp.Data, &fragment); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(fragment, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Captured fragment: %s\n", fragment.ID)
		fmt.Printf("Source: %s\n", fragment.SourceType)
		if fragment.Project != "" {
			fmt.Printf("Project: %s\n", fragment.Project)
		}
		if len(fragment.Topics) > 0 {
			fmt.Printf("Topics: %s\n", strings.Join(fragment.Topics, ", "))
		}
	}

	return nil
}

// fragmentPayload maps a parsed file onto a capture request. Frontmatter
// project and topics win over the CLI flags.
func fragmentPayload(parsed capture.Parsed, sourceType, project string, topics []string) CaptureRequest {
	effectiveProject := parsed.Project
	if effectiveProject == "" {
		effectiveProject = project
	}
	if effectiveProject == "" {
		effectiveProject = projectFromConfig()
	}

	effectiveTopics := parsed.Topics
	if len(effectiveTopics) == 0 {
		effectiveTopics = topics
	}

	return CaptureRequest{
		RawContent:   parsed.Content,
		SourceType:   sourceType,
		SourceRef:    parsed.SourceFile,
		Participants: parsed.Participants,
		Topics:       effectiveTopics,
		Project:      effectiveProject,
	}
}

// inferSourceType guesses the source type from a file extension. VTT and
// TXT files are meeting transcripts, markdown files are notes.
func inferSourceType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt", ".txt":
		return "zoom"
	case ".md", ".markdown":
		return "notes"
	default:
		return "quick_capture"
	}
}
