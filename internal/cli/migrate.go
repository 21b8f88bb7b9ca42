package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/sla-timekeeper/internal/persistence"
)

var migrateList bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply embedded schema migrations",
	Long: `Apply the embedded SQL migrations in file name order.
Every migration is idempotent, so re-running is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := persistence.MigrationNames()
		if err != nil {
			return err
		}
		if migrateList {
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}

		ctx := cmd.Context()
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()

		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return err
		}
		fmt.Printf("%s %d migration(s) applied\n", color.New(color.FgGreen).Sprint("✓"), len(names))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateList, "list", false, "list embedded migrations without applying")
}
