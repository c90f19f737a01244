package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/cli"
	"github.com/weftware/weft/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "weftd",
		Short: "Weft daemon",
		Long:  "Weft daemon for running the API server and managing the database",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.VersionCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
