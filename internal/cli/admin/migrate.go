package admin

import (
	"fmt"

	"github.com/cloo-solutions/studyforge/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command group
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or revert database migrations",
	}
	cmd.PersistentFlags().String("source", database.DefaultMigrationsSource, "Migration source URL")

	cmd.AddCommand(migrateDirectionCmd(database.MigrateUp, "Apply all pending migrations"))
	cmd.AddCommand(migrateDirectionCmd(database.MigrateDown, "Revert all migrations"))
	return cmd
}

func migrateDirectionCmd(direction database.MigrateDirection, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(direction),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			source, _ := cmd.Flags().GetString("source")
			version, err := database.Migrate(cfg.DatabaseURL, source, direction, log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
			return nil
		},
	}
}
