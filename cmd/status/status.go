// Package status provides the status command.
package status

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/input"
	"github.com/tphakala/shiftledger/internal/report"
)

// Command creates and returns the status command
func Command(settings *conf.Settings) *cobra.Command {
	var (
		limit     int
		periodKey string
		email     string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs and processed periods",
		Long: `Status lists the latest runs and the processed-period ledger. With --period it
lists the stored attendance of one period; with --employee it shows one employee.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			ctx, out := cmd.Context(), cmd.OutOrStdout()
			switch {
			case email != "":
				return printEmployee(ctx, out, store, email)
			case periodKey != "":
				return printPeriod(ctx, out, store, periodKey)
			}
			return printStatus(ctx, out, store, limit, settings.Location())
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().StringVar(&periodKey, "period", "", "List stored attendance for a period key, e.g. 2025-W10")
	cmd.Flags().StringVar(&email, "employee", "", "Show one employee by email")
	cmd.MarkFlagsMutuallyExclusive("period", "employee")
	return cmd
}

// Reader is the subset of the store the status command reads.
type Reader interface {
	RecentRuns(ctx context.Context, limit int) ([]datastore.Run, error)
	ListProcessed(ctx context.Context) ([]datastore.ProcessedPeriod, error)
	ListAttendanceForPeriod(ctx context.Context, periodKey string) ([]datastore.WeeklyAttendance, error)
	GetEmployee(ctx context.Context, email string) (*datastore.Employee, error)
}

func printStatus(ctx context.Context, out io.Writer, store Reader, limit int, loc *time.Location) error {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	processed, err := store.ListProcessed(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPERIOD\tTRIGGER\tSTATUS\tSTARTED\tAFFECTED\tREJECTED\tPROMOTED\tERROR")
	for i := range runs {
		r := &runs[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.PeriodKey, r.Trigger, r.Status,
			r.StartedAt.In(loc).Format(time.DateTime),
			r.Affected, r.Rejected, r.Promoted, r.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PERIOD\tPROCESSED\tRUN")
	for _, p := range processed {
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.PeriodKey, p.ProcessedAt.In(loc).Format(time.DateTime), p.RunID)
	}
	return w.Flush()
}

func printPeriod(ctx context.Context, out io.Writer, store Reader, key string) error {
	records, err := store.ListAttendanceForPeriod(ctx, key)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(out, "No attendance stored for %s\n", key)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tHOURS\tEXPECTED\tON-TIME\tLATE\tISSUES\tSTATUS")
	for i := range records {
		rec := &records[i]
		row := report.RowFromAttendance(*rec)
		fmt.Fprintf(w, "%s\t%.2f\t%.1f\t%s\t%d\t%d\t%s\n",
			rec.Email, rec.HoursWorked, rec.ExpectedHours, report.Percent(rec.OnTimeRatio),
			rec.LateCount, rec.MajorIssues, row.Status)
	}
	return w.Flush()
}

func printEmployee(ctx context.Context, out io.Writer, store Reader, email string) error {
	emp, err := store.GetEmployee(ctx, input.NormalizeEmail(email))
	if errors.IsNotFound(err) {
		fmt.Fprintf(out, "No employee %s on the roster\n", email)
		return nil
	}
	if err != nil {
		return err
	}

	ratio := 0.0
	if emp.TotalWeeks > 0 {
		ratio = float64(emp.WeeksOnTime) / float64(emp.TotalWeeks)
	}
	hire := "-"
	if emp.HireDate != nil {
		hire = *emp.HireDate
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Email:\t%s\n", emp.Email)
	fmt.Fprintf(w, "Name:\t%s %s\n", emp.FirstName, emp.LastName)
	fmt.Fprintf(w, "Role:\t%s (tier %d)\n", emp.Role, emp.Tier)
	fmt.Fprintf(w, "Active:\t%t\n", emp.Active)
	fmt.Fprintf(w, "Hired:\t%s\n", hire)
	fmt.Fprintf(w, "Hours:\t%.2f over %d weeks\n", emp.HoursTotal, emp.TotalWeeks)
	fmt.Fprintf(w, "On time:\t%d weeks (%s)\n", emp.WeeksOnTime, report.Percent(ratio))
	fmt.Fprintf(w, "Major issues:\t%d roster, %d recorded\n", emp.MajorIssues, emp.MajorIssuesRecorded)
	return w.Flush()
}
