package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/cli"
	"github.com/weftware/weft/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "weft",
		Short: "Weft CLI - capture and recall working context",
		Long: `Weft CLI captures fragments of working context and queries the
knowledge that enrichment distils from them.

Environment variables:
  WEFT_API_URL   API base URL (default: http://localhost:8787)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.CaptureCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.RelatedCmd())
	rootCmd.AddCommand(client.DecisionsCmd())
	rootCmd.AddCommand(client.AssumptionsCmd())
	rootCmd.AddCommand(client.GraphCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.WatchCmd())
	rootCmd.AddCommand(client.TeamsCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
