package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/datastore/storetest"
	"github.com/tphakala/shiftledger/internal/input"
	"github.com/tphakala/shiftledger/internal/logger"
	"github.com/tphakala/shiftledger/internal/report"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func writeFile(t *testing.T, fs afero.Fs, path, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(path, mtime, mtime))
}

func TestDiscoverOrdersByKeyThenModTime(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	base := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

	writeFile(t, fs, "weeks/b.json", `{"weekKey":"2025-W11","entries":[]}`, base)
	writeFile(t, fs, "weeks/a.json", `{"weekKey":"2025-W10","entries":[]}`, base.Add(time.Hour))
	writeFile(t, fs, "weeks/c.yaml", "weekStart: 2025-03-03\nentries: []\n", base.Add(-time.Hour))
	writeFile(t, fs, "weeks/notes.txt", "ignored", base)

	got, err := Discover(fs, "weeks", DiscoverOptions{Location: chicago(t), FallbackKey: "2025-W12"})
	require.NoError(t, err)
	require.Len(t, got.Files, 3)

	assert.Equal(t, "2025-W10", got.Files[0].Key)
	assert.Equal(t, "weeks/c.yaml", got.Files[0].Path, "older file of the same period comes first")
	assert.Equal(t, "weeks/a.json", got.Files[1].Path)
	assert.Equal(t, "2025-W11", got.Files[2].Key)
	assert.Empty(t, got.Malformed)
}

func TestDiscoverMissingDirectory(t *testing.T) {
	t.Parallel()
	got, err := Discover(afero.NewMemMapFs(), "nope", DiscoverOptions{Location: time.UTC})
	require.NoError(t, err)
	assert.Empty(t, got.Files)
}

func TestDiscoverMalformedIsSkipped(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	now := time.Now()
	writeFile(t, fs, "weeks/bad.json", `{"weekKey": `, now)
	writeFile(t, fs, "weeks/good.json", `{"weekKey":"2025-W10","entries":[]}`, now)

	got, err := Discover(fs, "weeks", DiscoverOptions{Location: time.UTC})
	require.NoError(t, err)
	require.Len(t, got.Files, 1)
	require.Len(t, got.Malformed, 1)
	assert.Equal(t, "weeks/bad.json", got.Malformed[0].Path)
}

func TestDiscoverIndeterminatePolicy(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "weeks/x.json", `{"entries":[]}`, time.Now())

	current, err := Discover(fs, "weeks", DiscoverOptions{Location: time.UTC, FallbackKey: "2025-W12"})
	require.NoError(t, err)
	require.Len(t, current.Files, 1)
	assert.Equal(t, "2025-W12", current.Files[0].Key)
	assert.True(t, current.Files[0].Indeterminate)

	skip, err := Discover(fs, "weeks", DiscoverOptions{Location: time.UTC, FallbackKey: "2025-W12", SkipIndeterminate: true})
	require.NoError(t, err)
	assert.Empty(t, skip.Files)
	require.Len(t, skip.Indeterminate, 1)
}

func newEngine(t *testing.T) (*Engine, *datastore.SQLiteStore) {
	t.Helper()
	store := storetest.Open(t)
	storetest.SeedEmployee(t, store, datastore.Employee{
		Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz", Role: "Staff", Tier: 1, Active: true,
	})
	storetest.SeedEmployee(t, store, datastore.Employee{
		Email: "bo@example.com", FirstName: "Bo", LastName: "Lee", Role: "Staff", Tier: 1, Active: true,
	})
	return NewEngine(store, 40, logger.NewDiscardLogger()), store
}

func TestIngestOnTimeRatio(t *testing.T) {
	t.Parallel()
	engine, store := newEngine(t)
	ctx := context.Background()

	payload := &input.WeeklyPayload{
		WeekKey: input.NewText("2025-W10"),
		Entries: []input.AttendanceEntry{
			{Email: input.NewText("Ana@Example.com"), HoursWorked: input.NewNumber(40), WorkDays: input.NewNumber(5), OnTimeDays: input.NewNumber(5)},
			{Email: input.NewText("bo@example.com"), HoursWorked: input.NewNumber(0), WorkDays: input.NewNumber(0), OnTimeDays: input.NewNumber(0)},
		},
	}

	res, err := engine.Ingest(ctx, "2025-W10", payload)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Affected)
	assert.Zero(t, res.Rejected)

	rows, err := store.ListAttendanceForPeriod(ctx, "2025-W10")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ana@example.com", rows[0].Email)
	assert.InDelta(t, 1.0, rows[0].OnTimeRatio, 1e-9)
	assert.Equal(t, 0.0, rows[1].OnTimeRatio)
	assert.InDelta(t, 40.0, rows[0].ExpectedHours, 1e-9)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, report.StatusPass, res.Rows[0].Status)
	assert.Equal(t, report.StatusFail, res.Rows[1].Status)
}

func TestIngestRejectsUnknownEmployee(t *testing.T) {
	t.Parallel()
	engine, store := newEngine(t)
	ctx := context.Background()

	payload := &input.WeeklyPayload{
		Entries: []input.AttendanceEntry{
			{Email: input.NewText("ghost@example.com"), HoursWorked: input.NewNumber(38), WorkDays: input.NewNumber(5), OnTimeDays: input.NewNumber(4)},
		},
	}

	res, err := engine.Ingest(ctx, "2025-W10", payload)
	require.NoError(t, err)
	assert.Zero(t, res.Affected)
	assert.Equal(t, 1, res.RejectedUnknown)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, "ghost@example.com", res.Rejections[0].Email)

	rows, err := store.ListAttendanceForPeriod(ctx, "2025-W10")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIngestRejectsMalformedEntries(t *testing.T) {
	t.Parallel()
	engine, _ := newEngine(t)

	payload := &input.WeeklyPayload{
		Entries: []input.AttendanceEntry{
			{HoursWorked: input.NewNumber(10)},
			{Email: input.NewText("ana@example.com"), WorkDays: input.NewNumber(-1)},
		},
	}

	res, err := engine.Ingest(context.Background(), "2025-W10", payload)
	require.NoError(t, err)
	assert.Zero(t, res.Affected)
	assert.Equal(t, 2, res.Rejected)
	assert.Len(t, res.Rejections, 2)
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()
	engine, store := newEngine(t)
	ctx := context.Background()

	payload := &input.WeeklyPayload{
		ExpectedHours: input.NewNumber(32),
		Entries: []input.AttendanceEntry{
			{Email: input.NewText("ana@example.com"), HoursWorked: input.NewNumber(30), WorkDays: input.NewNumber(4), OnTimeDays: input.NewNumber(3)},
		},
	}
	for range 2 {
		_, err := engine.Ingest(ctx, "2025-W10", payload)
		require.NoError(t, err)
	}

	rows, err := store.ListAttendance(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.75, rows[0].OnTimeRatio, 1e-9)
	assert.InDelta(t, 32.0, rows[0].ExpectedHours, 1e-9)
}

func TestExplicitZeroExpectedHoursIsKept(t *testing.T) {
	t.Parallel()
	engine, store := newEngine(t)
	ctx := context.Background()

	payload := &input.WeeklyPayload{
		ExpectedHours: input.NewNumber(0),
		Entries: []input.AttendanceEntry{
			{Email: input.NewText("ana@example.com"), HoursWorked: input.NewNumber(10), WorkDays: input.NewNumber(2), OnTimeDays: input.NewNumber(2)},
		},
	}
	res, err := engine.Ingest(ctx, "2025-W10", payload)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, report.StatusPass, res.Rows[0].Status)

	rows, err := store.ListAttendance(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].ExpectedHours)
	assert.Equal(t, report.StatusPass, report.RowFromAttendance(rows[0]).Status)
}
