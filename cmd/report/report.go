// Package report provides the report command, which rebuilds the overtime CSV
// from stored attendance.
package report

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/pipeline"
)

// Command creates and returns the report command
func Command(settings *conf.Settings) *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate performance_overtime.csv from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			p, err := pipeline.New(settings, store)
			if err != nil {
				return err
			}
			path, failures, err := p.RegenerateOvertime(cmd.Context(), export)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Overtime CSV: %s\n", path)
			for _, f := range failures {
				fmt.Fprintf(cmd.OutOrStdout(), "Export to %s failed: %v\n", f.Target, f.Err)
			}
			if len(failures) > 0 {
				return fmt.Errorf("%d export(s) failed", len(failures))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "Copy the report to the configured export targets")
	return cmd
}
