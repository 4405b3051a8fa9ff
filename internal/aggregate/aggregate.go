// Package aggregate recomputes each employee's cached attendance totals from
// the full attendance history.
package aggregate

import (
	"context"

	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/logger"
)

// DefaultOnTimeThreshold is the ratio at which a week counts as on time.
const DefaultOnTimeThreshold = 0.90

// Store is the persistence the aggregator needs.
type Store interface {
	ListAttendance(ctx context.Context) ([]datastore.WeeklyAttendance, error)
	ReplaceAggregates(ctx context.Context, aggregates map[string]datastore.Aggregate) error
}

// Compute folds attendance rows into per-employee aggregates. Rows are
// counted once each; the (week, email) uniqueness of stored rows makes that a
// count of weeks.
func Compute(rows []datastore.WeeklyAttendance, threshold float64) map[string]datastore.Aggregate {
	out := make(map[string]datastore.Aggregate)
	for i := range rows {
		r := &rows[i]
		agg := out[r.Email]
		agg.HoursTotal += r.HoursWorked
		agg.TotalWeeks++
		if r.OnTimeRatio >= threshold {
			agg.WeeksOnTime++
		}
		agg.MajorIssuesRecorded += r.MajorIssues
		out[r.Email] = agg
	}
	return out
}

// Recompute reads all attendance and replaces every employee's aggregate
// fields. Employees without attendance are reset to zero.
func Recompute(ctx context.Context, store Store, threshold float64, log logger.Logger) (int, error) {
	if log == nil {
		log = logger.Global().Module("aggregate")
	}

	rows, err := store.ListAttendance(ctx)
	if err != nil {
		return 0, err
	}
	aggregates := Compute(rows, threshold)
	if err := store.ReplaceAggregates(ctx, aggregates); err != nil {
		return 0, err
	}

	log.Info("aggregates recomputed",
		logger.Int("employees", len(aggregates)),
		logger.Int("rows", len(rows)))
	return len(aggregates), nil
}
