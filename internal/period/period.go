// Package period derives canonical week keys ("2025-W10") from timestamps and
// weekly payload markers. All calendar arithmetic happens in an explicit
// reference timezone; nothing here reads the process clock.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/shiftledger/internal/errors"
)

// Indeterminate is the sentinel returned with ErrIndeterminatePeriod. It is
// never a valid key and must not be persisted.
const Indeterminate = "indeterminate"

// dateLayouts are tried in order when reading weekStart, weekEnd and hire dates.
var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// Markers are the optional period hints carried by a weekly payload.
type Markers struct {
	WeekKey   string
	WeekStart string
	WeekEnd   string
}

// KeyFor returns the ISO year-week key of t as observed in loc.
func KeyFor(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Derive resolves the period key for a payload. An explicit key wins unless it
// is the sentinel itself, then the week of WeekStart, then the week of WeekEnd. When nothing usable is present
// it returns Indeterminate and ErrIndeterminatePeriod; the caller chooses the
// fallback.
func Derive(m Markers, loc *time.Location) (string, error) {
	if key := strings.TrimSpace(m.WeekKey); key != "" && !IsIndeterminate(key) {
		return key, nil
	}
	for _, raw := range []string{m.WeekStart, m.WeekEnd} {
		if t, err := ParseDate(raw, loc); err == nil {
			return KeyFor(t, loc), nil
		}
	}
	return Indeterminate, errors.New(errors.ErrIndeterminatePeriod).
		Component("period").
		Category(errors.CategoryValidation).
		Build()
}

// ParseDate parses an ISO date or date-time. The wall clock date is kept as
// written and placed in loc, so an offset in the input never moves the
// calendar day.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// IsIndeterminate reports whether key is the indeterminate sentinel.
func IsIndeterminate(key string) bool {
	return key == Indeterminate
}

// FileSafe renders a key for use in a file name.
func FileSafe(key string) string {
	return strings.ReplaceAll(key, " ", "_")
}
