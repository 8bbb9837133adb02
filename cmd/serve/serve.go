// Package serve runs the HTTP trigger server and the sync scheduler.
package serve

import (
	"os"
	"os/signal"
	"syscall"

	"fjacquet/budget-sync/cmd/root"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/scheduler"
	"fjacquet/budget-sync/internal/server"

	"github.com/spf13/cobra"
)

var (
	address    string
	noSchedule bool
)

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run scheduled syncs",
	Long: `Start the HTTP API (POST /sync, GET /memory/stats, DELETE /memory, GET /healthz)
and, when schedule.enabled is set, run a live sync on the configured cron schedule.
Both share one orchestrator, so only one sync runs at a time.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := root.NewContainer(ctx, true)
		if err != nil {
			return err
		}
		defer c.Close()
		cfg := c.GetConfig()

		if cfg.Schedule.Enabled && !noSchedule {
			sched, err := scheduler.New(c.GetOrchestrator(), cfg.Schedule.Cron, cfg.Location(), c.GetLogger())
			if err != nil {
				return err
			}
			sched.Start(ctx)
			defer func() { <-sched.Stop().Done() }()
		} else {
			root.Log.Info("Scheduled syncs disabled")
		}

		addr := cfg.Server.Address
		if address != "" {
			addr = address
		}
		srv := server.New(c.GetOrchestrator(), c.GetMemory(), c.GetLogger())
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			root.Log.WithError(err).Error("HTTP server failed", logging.F("address", addr))
			return err
		}
		return nil
	},
}

func init() {
	Cmd.Flags().StringVarP(&address, "address", "a", "", "Listen address, overrides server.address")
	Cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "Do not run scheduled syncs")
}
