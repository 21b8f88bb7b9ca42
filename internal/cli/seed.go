package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/sla-timekeeper/internal/persistence"
	"github.com/spec-kit/sla-timekeeper/internal/repository"
	"github.com/spec-kit/sla-timekeeper/internal/service"
)

var (
	seedFilePath string
	seedTenant   string
	seedDefaults bool
	seedDryRun   bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load SLA definitions for a tenant",
	Long: `Create SLA definitions and their escalation ladders for a tenant
from a YAML file. Definitions whose name already exists are skipped.

With --defaults the built-in Standard-SLA is used instead of a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedTenant == "" {
			return fmt.Errorf("--tenant is required")
		}

		var seeds []service.SeedDefinition
		if seedDefaults {
			seeds = []service.SeedDefinition{service.DefaultSeed()}
		} else {
			path := seedFilePath
			if path == "" {
				path = cfg.Sla.SeedFile
			}
			loaded, err := LoadSeedFile(path)
			if err != nil {
				return err
			}
			seeds = loaded
		}

		if seedDryRun {
			for _, seed := range seeds {
				printSeed(seed)
			}
			return nil
		}

		ctx := cmd.Context()
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()

		definitions := service.NewSlaDefinitionService(repository.NewSlaRepository(pg.PoolHandle()), logger)
		report, err := definitions.Seed(ctx, seedTenant, seeds)
		for _, name := range report.Created {
			fmt.Printf("  %s %s\n", color.New(color.FgGreen).Sprint("CREATE "), name)
		}
		for _, name := range report.Skipped {
			fmt.Printf("  %s %s\n", color.New(color.FgBlue).Sprint("EXISTS "), name)
		}
		return err
	},
}

func printSeed(seed service.SeedDefinition) {
	marker := ""
	if seed.IsDefault {
		marker = color.New(color.FgCyan).Sprint(" (default)")
	}
	fmt.Printf("%s%s\n", seed.Name, marker)
	fmt.Printf("  response:   low=%d medium=%d high=%d urgent=%d\n",
		seed.Response.Low, seed.Response.Medium, seed.Response.High, seed.Response.Urgent)
	fmt.Printf("  resolution: low=%d medium=%d high=%d urgent=%d\n",
		seed.Resolution.Low, seed.Resolution.Medium, seed.Resolution.High, seed.Resolution.Urgent)
	for _, escalation := range seed.Escalations {
		fmt.Printf("  L%d %s @ %d%% -> %v\n", escalation.Level, escalation.EscalationType, escalation.ThresholdPercent, escalation.NotifyUserIDs)
	}
}

func init() {
	seedCmd.Flags().StringVarP(&seedFilePath, "file", "f", "", "seed YAML file (default SLA_SEED_FILE)")
	seedCmd.Flags().StringVar(&seedTenant, "tenant", "", "tenant to seed")
	seedCmd.Flags().BoolVar(&seedDefaults, "defaults", false, "seed the built-in Standard-SLA")
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "print definitions without writing")
}
