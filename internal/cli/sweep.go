package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/spec-kit/sla-timekeeper/internal/observability"
	"github.com/spec-kit/sla-timekeeper/internal/server"
	"github.com/spec-kit/sla-timekeeper/internal/worker"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one SLA breach and escalation sweep",
	Long: `Evaluate every open SLA managed ticket once: latch breaches and
notify newly crossed escalation levels. Skips when another instance
holds the sweep lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pg, rdb, err := server.Connect(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pg.Close()
		defer rdb.Close()

		services := server.BuildServices(cfg, pg, rdb, observability.NewMetrics(), logger)
		services.Notifications.RegisterHandlers()

		report, ran, err := worker.RunSweepOnce(ctx, services.Sweep, rdb, cfg.Sweep.LockTTL(), logger)
		if err != nil {
			return err
		}
		if !ran {
			fmt.Printf("%s another instance is sweeping\n", color.New(color.FgYellow).Sprint("!"))
			return nil
		}

		failed := fmt.Sprint(report.Failed)
		if report.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(report.Failed)
		}
		fmt.Printf("%s scanned=%d breached=%d escalations=%d failed=%s\n",
			color.New(color.FgGreen).Sprint("✓"), report.Scanned, report.Breached, report.Escalations, failed)
		return nil
	},
}
