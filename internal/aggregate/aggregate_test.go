package aggregate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/datastore/storetest"
	"github.com/tphakala/shiftledger/internal/logger"
)

func TestCompute(t *testing.T) {
	t.Parallel()

	rows := []datastore.WeeklyAttendance{
		{WeekKey: "2025-W10", Email: "a@x.io", HoursWorked: 40, OnTimeRatio: 1},
		{WeekKey: "2025-W11", Email: "a@x.io", HoursWorked: 35.5, OnTimeRatio: 0.9},
		{WeekKey: "2025-W12", Email: "a@x.io", HoursWorked: 20, OnTimeRatio: 0.89, MajorIssues: 1},
		{WeekKey: "2025-W10", Email: "b@x.io", HoursWorked: 0, OnTimeRatio: 0},
	}

	got := Compute(rows, DefaultOnTimeThreshold)
	require.Len(t, got, 2)

	a := got["a@x.io"]
	assert.InDelta(t, 95.5, a.HoursTotal, 1e-9)
	assert.Equal(t, 3, a.TotalWeeks)
	assert.Equal(t, 2, a.WeeksOnTime, "0.90 counts, 0.89 does not")
	assert.Equal(t, 1, a.MajorIssuesRecorded)

	assert.Equal(t, datastore.Aggregate{TotalWeeks: 1}, got["b@x.io"])
}

func TestComputeEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Compute(nil, DefaultOnTimeThreshold))
}

func TestRecomputeSelfHeals(t *testing.T) {
	t.Parallel()
	store := storetest.Open(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.io", "b@x.io"} {
		storetest.SeedEmployee(t, store, datastore.Employee{
			Email: email, FirstName: "F", LastName: "L", Role: "Staff", Tier: 1, Active: true,
			HoursTotal: 999, TotalWeeks: 99, WeeksOnTime: 99,
		})
	}
	require.NoError(t, store.UpsertAttendance(ctx, &datastore.WeeklyAttendance{
		WeekKey: "2025-W10", Email: "a@x.io", HoursWorked: 40, OnTimeRatio: 1, ExpectedHours: 40,
	}))

	// Running twice must give the same answer as running once.
	for range 2 {
		n, err := Recompute(ctx, store, DefaultOnTimeThreshold, logger.NewDiscardLogger())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	a, err := store.GetEmployee(ctx, "a@x.io")
	require.NoError(t, err)
	assert.InDelta(t, 40.0, a.HoursTotal, 1e-9)
	assert.Equal(t, 1, a.TotalWeeks)
	assert.Equal(t, 1, a.WeeksOnTime)

	b, err := store.GetEmployee(ctx, "b@x.io")
	require.NoError(t, err)
	assert.Zero(t, b.HoursTotal)
	assert.Zero(t, b.TotalWeeks)
}
