package client

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/capture"
)

// WatchCmd creates the watch command.
func WatchCmd() *cobra.Command {
	var (
		sourceType      string
		project         string
		processExisting bool
		recursive       bool
	)

	cmd := &cobra.Command{
		Use:   "watch <directory>",
		Short: "Watch a directory for transcripts or notes",
		Long: `Watches a directory and captures new files as fragments.

For zoom/teams: processes VTT and TXT transcript files.
For notes: processes markdown files with frontmatter support.

Examples:
  weft watch ~/Zoom --type zoom
  weft watch ~/Meetings -t teams -p billing
  weft watch ~/Notes -t notes --recursive`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], sourceType, project, processExisting, recursive)
		},
	}

	cmd.Flags().StringVarP(&sourceType, "type", "t", "zoom", "Type of files to watch (zoom, teams, notes)")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name for all captured fragments")
	cmd.Flags().BoolVar(&processExisting, "process-existing", true, "Process existing unprocessed files on startup")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", true, "Watch subdirectories recursively (notes only)")

	return cmd
}

func runWatch(cmd *cobra.Command, dir, sourceType, project string, processExisting, recursive bool) error {
	switch sourceType {
	case "zoom", "teams", "notes":
	default:
		return fmt.Errorf("invalid source type: %s (must be one of: zoom, teams, notes)", sourceType)
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	if project == "" {
		project = projectFromConfig()
	}

	onParse := func(parsed capture.Parsed) {
		fmt.Printf("Processing: %s\n", filepath.Base(parsed.SourceFile))

		fragment, err := postFragment(api, fragmentPayload(parsed, sourceType, project, nil))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to capture %s: %v\n", filepath.Base(parsed.SourceFile), err)
			return
		}
		fmt.Printf("Captured fragment: %s\n", fragment.ID)
	}

	var watcher *capture.Watcher
	fileTypes := "VTT/TXT transcripts"
	if sourceType == "notes" {
		watcher = capture.NewNotesWatcher(dir, recursive, onParse)
		fileTypes = "markdown notes"
	} else {
		watcher = capture.NewTranscriptWatcher(dir, onParse)
	}

	if err := watcher.Start(); err != nil {
		return err
	}

	fmt.Printf("Watching %s for %s\n", dir, fileTypes)
	if sourceType == "notes" {
		fmt.Printf("  Recursive: %v\n", recursive)
	}
	if project != "" {
		fmt.Printf("  Project: %s\n", project)
	}
	fmt.Printf("  API: %s\n", api.baseURL)
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if processExisting {
		if count := watcher.ProcessExisting(); count > 0 {
			fmt.Printf("Processed %d existing file(s)\n\n", count)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nStopping watcher...")
	watcher.Stop()

	return nil
}

// postFragment sends a capture request and returns the created fragment.
func postFragment(api *APIClient, req CaptureRequest) (*Fragment, error) {
	resp, err := api.Post("/api/fragments", req)
	if err != nil {
		return nil, err
	}

	var fragment Fragment
	if err := json.Unmarshal(resp.Data, &fragment); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &fragment, nil
}
