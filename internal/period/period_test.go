package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/shiftledger/internal/errors"
)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return loc
}

func TestKeyForUsesReferenceTimezone(t *testing.T) {
	t.Parallel()
	loc := chicago(t)

	// Monday 03:00 UTC is still Sunday evening in Chicago.
	instant := time.Date(2025, time.March, 10, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-W11", KeyFor(instant, time.UTC))
	assert.Equal(t, "2025-W10", KeyFor(instant, loc))

	assert.Equal(t, "2025-W10", KeyFor(time.Date(2025, 3, 3, 0, 0, 0, 0, loc), loc))
	assert.Equal(t, "2025-W09", KeyFor(time.Date(2025, 3, 2, 23, 59, 0, 0, loc), loc))
}

func TestKeyForISOYearBoundary(t *testing.T) {
	t.Parallel()

	// 2024-12-30 belongs to ISO week 1 of 2025; 2021-01-03 to week 53 of 2020.
	assert.Equal(t, "2025-W01", KeyFor(time.Date(2024, 12, 30, 12, 0, 0, 0, time.UTC), time.UTC))
	assert.Equal(t, "2020-W53", KeyFor(time.Date(2021, 1, 3, 12, 0, 0, 0, time.UTC), time.UTC))
}

func TestDerive(t *testing.T) {
	t.Parallel()
	loc := chicago(t)

	tests := []struct {
		name    string
		markers Markers
		want    string
		wantErr bool
	}{
		{"explicit key wins", Markers{WeekKey: "2025-W10", WeekStart: "2025-06-02"}, "2025-W10", false},
		{"explicit key kept verbatim", Markers{WeekKey: "Week 10 2025"}, "Week 10 2025", false},
		{"week start", Markers{WeekStart: "2025-03-03"}, "2025-W10", false},
		{"week start preferred over end", Markers{WeekStart: "2025-03-03", WeekEnd: "2025-03-16"}, "2025-W10", false},
		{"bad start falls back to end", Markers{WeekStart: "soon", WeekEnd: "2025-03-14"}, "2025-W11", false},
		{"datetime start", Markers{WeekStart: "2025-03-10T00:00:00"}, "2025-W11", false},
		{"offset does not move the day", Markers{WeekStart: "2025-03-09T23:30:00-11:00"}, "2025-W10", false},
		{"sentinel key ignored", Markers{WeekKey: "indeterminate", WeekStart: "2025-03-10"}, "2025-W11", false},
		{"sentinel key alone", Markers{WeekKey: " indeterminate "}, Indeterminate, true},
		{"nothing usable", Markers{WeekStart: "n/a"}, Indeterminate, true},
		{"empty", Markers{}, Indeterminate, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Derive(tt.markers, loc)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.ErrorIs(t, err, errors.ErrIndeterminatePeriod)
				assert.True(t, IsIndeterminate(got))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	loc := chicago(t)

	d, err := ParseDate(" 2022-01-15 ", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 1, 15, 0, 0, 0, 0, loc), d)

	_, err = ParseDate("15/01/2022", loc)
	require.Error(t, err)
}

func TestFileSafe(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Week_10_2025", FileSafe("Week 10 2025"))
	assert.Equal(t, "2025-W10", FileSafe("2025-W10"))
}
