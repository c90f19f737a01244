package client

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/teams"
)

const teamsStateFile = "teams_state.json"

// TeamsCmd creates the teams command group.
func TeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Capture Microsoft Teams channel messages",
		Long: `Monitors Microsoft Teams channels and captures new messages as fragments.

Requires an Azure app registration. Set WEFT_TEAMS_CLIENT_ID (and optionally
WEFT_TEAMS_CLIENT_SECRET and WEFT_TEAMS_TENANT_ID), then run 'weft teams login'.`,
	}

	cmd.AddCommand(teamsLoginCmd())
	cmd.AddCommand(teamsLogoutCmd())
	cmd.AddCommand(teamsStatusCmd())
	cmd.AddCommand(teamsListTeamsCmd())
	cmd.AddCommand(teamsChannelsCmd())
	cmd.AddCommand(teamsAddCmd())
	cmd.AddCommand(teamsRemoveCmd())
	cmd.AddCommand(teamsListCmd())
	cmd.AddCommand(teamsPollCmd())
	cmd.AddCommand(teamsImportCmd())

	return cmd
}

func newTeamsAuth() (*teams.Auth, error) {
	config, err := teams.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return teams.NewAuth(config), nil
}

func newGraphClient(ctx context.Context) (*teams.GraphClient, error) {
	auth, err := newTeamsAuth()
	if err != nil {
		return nil, err
	}
	httpClient, err := auth.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	return teams.NewGraphClient(httpClient), nil
}

func newChannelPoller(reader teams.ChannelReader, poster teams.FragmentPoster, interval time.Duration) (*teams.Poller, error) {
	statePath, err := teams.StateFilePath(teamsStateFile)
	if err != nil {
		return nil, err
	}
	return teams.NewPoller(reader, poster, statePath, interval), nil
}

func teamsLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with Microsoft Teams",
		Long:  "Opens an OAuth2 flow in the browser and caches the token locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := newTeamsAuth()
			if err != nil {
				return err
			}

			if err := auth.Login(context.Background(), 5*time.Minute); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			fmt.Println("Logged in to Microsoft Teams")
			return nil
		},
	}
}

func teamsLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the cached Teams token",
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := newTeamsAuth()
			if err != nil {
				return err
			}

			if err := auth.Logout(); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}

			fmt.Println("Logged out of Microsoft Teams")
			return nil
		},
	}
}

func teamsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show Teams integration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			configured := true
			authenticated := false
			if auth, err := newTeamsAuth(); err != nil {
				configured = false
			} else {
				authenticated = auth.IsAuthenticated()
			}

			monitored := 0
			if poller, err := newChannelPoller(nil, nil, 0); err == nil {
				monitored = len(poller.Channels())
			}

			if outputJSON {
				output, _ := json.MarshalIndent(map[string]interface{}{
					"configured":    configured,
					"authenticated": authenticated,
					"monitored":     monitored,
				}, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if !configured {
				fmt.Println("Not configured: set WEFT_TEAMS_CLIENT_ID")
				return nil
			}
			if authenticated {
				fmt.Println("Authenticated: yes")
			} else {
				fmt.Println("Authenticated: no (run 'weft teams login')")
			}
			fmt.Printf("Monitored channels: %d\n", monitored)
			return nil
		},
	}
}

func teamsListTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List joined Teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			ctx := context.Background()
			graph, err := newGraphClient(ctx)
			if err != nil {
				return err
			}

			list, err := graph.ListTeams(ctx)
			if err != nil {
				return fmt.Errorf("failed to list teams: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(list, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(list) == 0 {
				fmt.Println("No teams found.")
				return nil
			}

			for _, team := range list {
				fmt.Printf("%s\n", team.Name)
				if team.Description != "" {
					fmt.Printf("  %s\n", truncate(team.Description, 60))
				}
				fmt.Printf("  ID: %s\n", team.ID)
			}
			return nil
		},
	}
}

func teamsChannelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels <team-id>",
		Short: "List channels in a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			ctx := context.Background()
			graph, err := newGraphClient(ctx)
			if err != nil {
				return err
			}

			channels, err := graph.ListChannels(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to list channels: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(channels, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(channels) == 0 {
				fmt.Println("No channels found.")
				return nil
			}

			fmt.Printf("Channels in %s:\n", channels[0].TeamName)
			for _, channel := range channels {
				fmt.Printf("  %s\n", channel.Name)
				if channel.Description != "" {
					fmt.Printf("    %s\n", truncate(channel.Description, 60))
				}
				fmt.Printf("    ID: %s\n", channel.ID)
			}
			return nil
		},
	}
}

func teamsAddCmd() *cobra.Command {
	var (
		project string
		topics  []string
	)

	cmd := &cobra.Command{
		Use:   "add <team-id> <channel-id>",
		Short: "Monitor a channel for new messages",
		Long: `Adds a channel to the monitored set polled by 'weft teams poll'.

Example:
  weft teams add TEAM_ID CHANNEL_ID -p my-project -t meetings`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, channelID := args[0], args[1]

			ctx := context.Background()
			graph, err := newGraphClient(ctx)
			if err != nil {
				return err
			}

			channels, err := graph.ListChannels(ctx, teamID)
			if err != nil {
				return fmt.Errorf("failed to get channel info: %w", err)
			}

			var found *teams.Channel
			for i := range channels {
				if channels[i].ID == channelID {
					found = &channels[i]
					break
				}
			}
			if found == nil {
				return fmt.Errorf("channel %s not found in team", channelID)
			}

			poller, err := newChannelPoller(nil, nil, 0)
			if err != nil {
				return err
			}

			err = poller.AddChannel(teams.MonitoredChannel{
				TeamID:      teamID,
				TeamName:    found.TeamName,
				ChannelID:   channelID,
				ChannelName: found.Name,
				Project:     project,
				Topics:      topics,
			})
			if err != nil {
				return fmt.Errorf("failed to add channel: %w", err)
			}

			fmt.Printf("Monitoring %s/%s\n", found.TeamName, found.Name)
			fmt.Println("Run 'weft teams poll' to fetch messages")
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name for captured fragments")
	cmd.Flags().StringSliceVarP(&topics, "topic", "t", nil, "Default topics for captured fragments")

	return cmd
}

func teamsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <channel-id>",
		Short: "Stop monitoring a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poller, err := newChannelPoller(nil, nil, 0)
			if err != nil {
				return err
			}

			removed, err := poller.RemoveChannel(args[0])
			if err != nil {
				return fmt.Errorf("failed to remove channel: %w", err)
			}
			if !removed {
				return fmt.Errorf("channel %s is not monitored", args[0])
			}

			fmt.Printf("Stopped monitoring channel %s\n", args[0])
			return nil
		},
	}
}

func teamsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitored channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			poller, err := newChannelPoller(nil, nil, 0)
			if err != nil {
				return err
			}

			channels := poller.Channels()

			if outputJSON {
				output, _ := json.MarshalIndent(channels, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(channels) == 0 {
				fmt.Println("No channels monitored.")
				fmt.Println("Add one with: weft teams add TEAM_ID CHANNEL_ID")
				return nil
			}

			fmt.Printf("Monitoring %d channel(s):\n", len(channels))
			for _, channel := range channels {
				fmt.Printf("  %s/%s\n", channel.TeamName, channel.ChannelName)
				if channel.Project != "" {
					fmt.Printf("    Project: %s\n", channel.Project)
				}
				fmt.Printf("    ID: %s\n", channel.ChannelID)
			}
			return nil
		},
	}
}

func teamsPollCmd() *cobra.Command {
	var (
		interval int
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll monitored channels for new messages",
		Long: `Fetches new messages from monitored channels and captures each batch
as a fragment.

Examples:
  weft teams poll              # Poll continuously every 60s
  weft teams poll --once       # Poll once and exit
  weft teams poll -i 30        # Poll every 30 seconds`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			graph, err := newGraphClient(ctx)
			if err != nil {
				return err
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			poller, err := newChannelPoller(graph, &apiPoster{api: api}, time.Duration(interval)*time.Second)
			if err != nil {
				return err
			}

			if len(poller.Channels()) == 0 {
				return fmt.Errorf("no channels monitored (run 'weft teams add' first)")
			}

			if once {
				results := poller.PollOnce(ctx)
				total := 0
				for _, count := range results {
					total += count
				}
				fmt.Printf("Processed %d message(s)\n", total)
				for channel, count := range results {
					if count > 0 {
						fmt.Printf("  %s: %d\n", channel, count)
					}
				}
				return nil
			}

			fmt.Printf("Polling %d channel(s) every %ds\n", len(poller.Channels()), interval)
			fmt.Printf("  API: %s\n", api.baseURL)
			fmt.Println("  Press Ctrl+C to stop")
			fmt.Println()

			runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			poller.Run(runCtx)
			fmt.Println("\nStopped.")
			return nil
		},
	}

	cmd.Flags().IntVarP(&interval, "interval", "i", 60, "Poll interval in seconds")
	cmd.Flags().BoolVar(&once, "once", false, "Poll once and exit")

	return cmd
}

func teamsImportCmd() *cobra.Command {
	var (
		project string
		topics  []string
	)

	cmd := &cobra.Command{
		Use:   "import <export-file>",
		Short: "Import a Teams export file",
		Long: `Imports a Teams chat export (JSON or HTML) as fragments, one per message.

Alternative to the Graph API integration: export your chat history from
Teams and import it directly.

Example:
  weft teams import chat_export.json -p my-project`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTeamsImport(cmd, args[0], project, topics)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name for fragments")
	cmd.Flags().StringSliceVarP(&topics, "topic", "t", nil, "Topics for fragments")

	return cmd
}

func runTeamsImport(cmd *cobra.Command, exportPath, project string, topics []string) error {
	messages, err := teams.ParseExport(exportPath)
	if err != nil {
		return fmt.Errorf("failed to parse export: %w", err)
	}

	if len(messages) == 0 {
		fmt.Println("No messages found in export file")
		return nil
	}

	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	fmt.Printf("Importing %d message(s) from %s...\n", len(messages), exportPath)

	imported := 0
	failed := 0
	for _, message := range messages {
		req := CaptureRequest{
			RawContent:   fmt.Sprintf("[%s]: %s", message.Sender, message.Content),
			SourceType:   "teams",
			SourceRef:    filepath.Base(exportPath),
			Participants: []string{message.Sender},
			Topics:       topics,
			Project:      project,
			CapturedAt:   message.Timestamp.UTC().Format(time.RFC3339),
		}

		if _, err := postFragment(api, req); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to import message from %s: %v\n", message.Sender, err)
			failed++
			continue
		}
		imported++
	}

	fmt.Printf("Imported %d message(s) as fragments\n", imported)
	if failed > 0 {
		return fmt.Errorf("%d message(s) failed to import", failed)
	}
	return nil
}

// apiPoster adapts the APIClient to the poller's capture interface.
type apiPoster struct {
	api *APIClient
}

func (p *apiPoster) PostFragment(_ context.Context, payload teams.FragmentPayload) (string, error) {
	resp, err := p.api.Post("/api/fragments", payload)
	if err != nil {
		return "", err
	}

	var fragment Fragment
	if err := json.Unmarshal(resp.Data, &fragment); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return fragment.ID, nil
}
