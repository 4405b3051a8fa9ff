package status

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
)

type fakeReader struct {
	runs       []datastore.Run
	processed  []datastore.ProcessedPeriod
	attendance map[string][]datastore.WeeklyAttendance
	employees  map[string]*datastore.Employee
	limit      int
}

func (f *fakeReader) RecentRuns(_ context.Context, limit int) ([]datastore.Run, error) {
	f.limit = limit
	return f.runs, nil
}

func (f *fakeReader) ListProcessed(context.Context) ([]datastore.ProcessedPeriod, error) {
	return f.processed, nil
}

func (f *fakeReader) ListAttendanceForPeriod(_ context.Context, key string) ([]datastore.WeeklyAttendance, error) {
	return f.attendance[key], nil
}

func (f *fakeReader) GetEmployee(_ context.Context, email string) (*datastore.Employee, error) {
	if emp, ok := f.employees[email]; ok {
		return emp, nil
	}
	return nil, errors.Newf("employee %q not found", email).Category(errors.CategoryNotFound).Build()
}

func TestPrintStatus(t *testing.T) {
	t.Parallel()
	started := time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC)
	reader := &fakeReader{
		runs: []datastore.Run{{
			ID: 7, PeriodKey: "2025-W11", Trigger: datastore.TriggerSchedule,
			Status: datastore.RunStatusSuccess, StartedAt: started,
			RunCounters: datastore.RunCounters{Affected: 4, Rejected: 1, Promoted: 1},
		}},
		processed: []datastore.ProcessedPeriod{{PeriodKey: "2025-W11", ProcessedAt: started, RunID: 7}},
	}

	var out bytes.Buffer
	require.NoError(t, printStatus(context.Background(), &out, reader, 5, time.UTC))

	text := out.String()
	assert.Equal(t, 5, reader.limit)
	assert.Contains(t, text, "2025-W11")
	assert.Contains(t, text, "schedule")
	assert.Contains(t, text, "2025-03-15 02:00:00")
	assert.Contains(t, text, "PROCESSED")
}

func TestPrintPeriod(t *testing.T) {
	t.Parallel()
	reader := &fakeReader{attendance: map[string][]datastore.WeeklyAttendance{
		"2025-W10": {
			{WeekKey: "2025-W10", Email: "ana@example.com", HoursWorked: 41, OnTimeRatio: 1, ExpectedHours: 40},
			{WeekKey: "2025-W10", Email: "bo@example.com", HoursWorked: 12.5, OnTimeRatio: 0.6, LateCount: 2, ExpectedHours: 40},
		},
	}}
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, printPeriod(ctx, &out, reader, "2025-W10"))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "ana@example.com")
	assert.Contains(t, string(lines[1]), "PASS")
	assert.Contains(t, string(lines[2]), "60%")
	assert.Contains(t, string(lines[2]), "WARN")

	out.Reset()
	require.NoError(t, printPeriod(ctx, &out, reader, "2025-W11"))
	assert.Equal(t, "No attendance stored for 2025-W11\n", out.String())
}

func TestPrintEmployee(t *testing.T) {
	t.Parallel()
	hired := "2021-02-01"
	reader := &fakeReader{employees: map[string]*datastore.Employee{
		"ana@example.com": {
			Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz", Role: "Senior", Tier: 2,
			Active: true, HireDate: &hired, HoursTotal: 120, TotalWeeks: 3, WeeksOnTime: 3,
		},
	}}
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, printEmployee(ctx, &out, reader, " ANA@example.com "))
	text := out.String()
	assert.Contains(t, text, "Senior (tier 2)")
	assert.Contains(t, text, "2021-02-01")
	assert.Contains(t, text, "120.00 over 3 weeks")
	assert.Contains(t, text, "(100%)")

	out.Reset()
	require.NoError(t, printEmployee(ctx, &out, reader, "ghost@example.com"))
	assert.Equal(t, "No employee ghost@example.com on the roster\n", out.String())
}
