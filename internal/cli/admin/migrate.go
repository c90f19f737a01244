package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weftware/weft/internal/config"
	"github.com/weftware/weft/internal/database"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply every pending migration to the configured database",
		RunE:  runMigrate,
	}

	cmd.Flags().String("source", "file://migrations", "Migration source URL")

	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source, _ := cmd.Flags().GetString("source")
	return database.Migrate(cfg.DatabaseURL, source)
}
