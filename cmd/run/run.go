// Package run provides the run command, one batch now.
package run

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/pipeline"
)

// Command creates and returns the run command
func Command(settings *conf.Settings) *cobra.Command {
	var periodKey string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the weekly batch once",
		Long: `Run synchronizes the roster, ingests every period not yet in the ledger,
recomputes aggregates, evaluates promotions and writes the CSV reports.`,
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

			summary, runErr := p.Run(ctx, pipeline.RunOptions{
				Trigger:   datastore.TriggerManual,
				PeriodKey: periodKey,
			})
			if summary != nil {
				fmt.Fprint(cmd.OutOrStdout(), summary.String())
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&periodKey, "period", "", "Target period key, e.g. 2025-W10 (default: current week)")
	return cmd
}
