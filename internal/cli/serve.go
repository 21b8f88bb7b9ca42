package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spec-kit/sla-timekeeper/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled SLA sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		srv, err := server.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer srv.Close()
		return srv.Run(ctx)
	},
}
