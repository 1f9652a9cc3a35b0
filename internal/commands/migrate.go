package commands

import (
	"fmt"

	"fintrack/internal/storage"

	"github.com/spf13/cobra"
)

func newMigrateCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := deps.config()
			if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
				return err
			}
			version, dirty, err := storage.SchemaVersion(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (dirty=%t) in %s\n", version, dirty, cfg.SQLiteDBPath)
			return nil
		},
	}
}
