package promotion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/shiftledger/internal/aggregate"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/datastore/storetest"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
)

var evalTime = time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)

func testPolicy() Policy {
	return Policy{
		TenureDays:      730,
		OnTimeThreshold: 0.90,
		TierMax:         3,
		Roles:           map[int]string{1: "Staff", 2: "Senior", 3: "Lead"},
		Reason:          "2y tenure, 0 major issues, >=90% on-time",
	}
}

func newEvaluator(store Store) *Evaluator {
	return NewEvaluator(store, testPolicy(), time.UTC, logger.NewDiscardLogger(),
		WithClock(func() time.Time { return evalTime }))
}

func strPtr(s string) *string { return &s }

func TestEvaluatePromotesEligibleEmployee(t *testing.T) {
	t.Parallel()
	store := storetest.Open(t)
	ctx := context.Background()

	storetest.SeedEmployee(t, store, datastore.Employee{
		Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz",
		Role: "Staff", Tier: 1, Active: true, HireDate: strPtr("2022-03-01"),
	})
	for week := 1; week <= 10; week++ {
		require.NoError(t, store.UpsertAttendance(ctx, &datastore.WeeklyAttendance{
			WeekKey: fmt.Sprintf("2025-W%02d", week), Email: "ana@example.com",
			HoursWorked: 40, OnTimeRatio: 1, ExpectedHours: 40,
		}))
	}
	_, err := aggregate.Recompute(ctx, store, 0.90, logger.NewDiscardLogger())
	require.NoError(t, err)

	promoted, err := newEvaluator(store).Evaluate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	emp, err := store.GetEmployee(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, emp.Tier)
	assert.Equal(t, "Senior", emp.Role)

	logs, err := store.ListPromotions(ctx, "ana@example.com")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 1, logs[0].FromTier)
	assert.Equal(t, 2, logs[0].ToTier)
	assert.Equal(t, uint(7), logs[0].RunID)

	// Each pass moves at most one tier.
	promoted, err = newEvaluator(store).Evaluate(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)
	promoted, err = newEvaluator(store).Evaluate(ctx, 9)
	require.NoError(t, err)
	assert.Zero(t, promoted, "tier max reached")

	emp, err = store.GetEmployee(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, 3, emp.Tier)
	assert.Equal(t, "Lead", emp.Role)
}

func TestIneligible(t *testing.T) {
	t.Parallel()

	eligible := func() datastore.Employee {
		return datastore.Employee{
			Email: "a@x.io", Active: true, Tier: 1, HireDate: strPtr("2023-03-15"),
			TotalWeeks: 10, WeeksOnTime: 9,
		}
	}
	e := newEvaluator(nil)

	tests := []struct {
		name   string
		mutate func(*datastore.Employee)
		want   string
	}{
		{"eligible at exactly 730 days and 90%", func(*datastore.Employee) {}, ""},
		{"inactive", func(emp *datastore.Employee) { emp.Active = false }, "inactive"},
		{"max tier", func(emp *datastore.Employee) { emp.Tier = 3 }, "at max tier"},
		{"no hire date", func(emp *datastore.Employee) { emp.HireDate = nil }, "no hire date"},
		{"roster major issues", func(emp *datastore.Employee) { emp.MajorIssues = 1 }, "major issues"},
		{"recorded major issues", func(emp *datastore.Employee) { emp.MajorIssuesRecorded = 2 }, "major issues"},
		{"no weeks", func(emp *datastore.Employee) { emp.TotalWeeks, emp.WeeksOnTime = 0, 0 }, "no attendance"},
		{"short tenure", func(emp *datastore.Employee) { emp.HireDate = strPtr("2023-03-16") }, "tenure 729 days"},
		{"bad hire date", func(emp *datastore.Employee) { emp.HireDate = strPtr("soon") }, "unparseable hire date"},
		{"low ratio", func(emp *datastore.Employee) { emp.WeeksOnTime = 8 }, "on-time ratio 0.80"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			emp := eligible()
			tt.mutate(&emp)
			assert.Equal(t, tt.want, e.Ineligible(&emp, evalTime))
		})
	}
}

type conflictStore struct {
	employees []datastore.Employee
	applied   int
}

func (s *conflictStore) ListEmployees(context.Context, bool) ([]datastore.Employee, error) {
	return s.employees, nil
}

func (s *conflictStore) ApplyPromotion(_ context.Context, p datastore.Promotion) error {
	s.applied++
	if p.Email == "raced@x.io" {
		return datastoreConflict()
	}
	return nil
}

func TestEvaluateSkipsConcurrentTierChange(t *testing.T) {
	t.Parallel()
	emp := func(email string) datastore.Employee {
		return datastore.Employee{
			Email: email, Active: true, Tier: 1, Role: "Staff", HireDate: strPtr("2020-01-01"),
			TotalWeeks: 4, WeeksOnTime: 4,
		}
	}
	store := &conflictStore{employees: []datastore.Employee{emp("raced@x.io"), emp("ok@x.io")}}

	promoted, err := newEvaluator(store).Evaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)
	assert.Equal(t, 2, store.applied)
}

func TestEvaluateMissingRole(t *testing.T) {
	t.Parallel()
	store := &conflictStore{employees: []datastore.Employee{{
		Email: "a@x.io", Active: true, Tier: 1, HireDate: strPtr("2020-01-01"), TotalWeeks: 1, WeeksOnTime: 1,
	}}}
	policy := testPolicy()
	delete(policy.Roles, 2)

	e := NewEvaluator(store, policy, time.UTC, logger.NewDiscardLogger(), WithClock(func() time.Time { return evalTime }))
	_, err := e.Evaluate(context.Background(), 1)
	require.Error(t, err)
	assert.Zero(t, store.applied)
}

func datastoreConflict() error {
	return errors.Newf("tier changed").
		Component("datastore").
		Category(errors.CategoryConflict).
		Build()
}
