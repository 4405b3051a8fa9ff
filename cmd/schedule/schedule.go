// Package schedule provides the long-running schedule trigger command.
package schedule

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/logger"
	"github.com/tphakala/shiftledger/internal/pipeline"
	"github.com/tphakala/shiftledger/internal/scheduler"
)

// Command creates and returns the schedule command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the batch at the configured weekly instant",
		Long: `Schedule polls the clock in the reference timezone and runs the batch when
the cron expression matches, catching up on the following day when a run was missed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			p, err := pipeline.New(settings, store)
			if err != nil {
				return err
			}

			log := logger.Global().Module("scheduler")
			batch := func(ctx context.Context, trigger, periodKey string) error {
				_, err := p.Run(ctx, pipeline.RunOptions{Trigger: trigger, PeriodKey: periodKey})
				return err
			}

			trigger, err := scheduler.New(scheduler.ConfigFrom(settings), store, batch, log)
			if err != nil {
				return err
			}
			return trigger.Run(ctx)
		},
	}
	return cmd
}
