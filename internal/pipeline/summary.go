package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/export"
	"github.com/tphakala/shiftledger/internal/ingest"
	"github.com/tphakala/shiftledger/internal/roster"
)

// PeriodResult is the outcome of one ingested period.
type PeriodResult struct {
	Key             string
	Files           []string
	Indeterminate   bool
	Affected        int
	Rejected        int
	RejectedUnknown int
	Rejections      errors.Rejections
	CSV             string
	Marked          bool // false when another writer marked the period first
}

// Summary describes a finished batch run.
type Summary struct {
	RunID         uint
	RunUUID       string
	Trigger       string
	CurrentPeriod string
	Status        string
	Error         string
	StartedAt     time.Time
	FinishedAt    time.Time

	Roster           roster.Result
	Periods          []PeriodResult
	AlreadyProcessed []string // period keys found on disk but already in the ledger
	Malformed        []ingest.SkippedFile
	Indeterminate    []ingest.SkippedFile
	Promoted         int
	OvertimeCSV      string
	CurrentCSV       string // CSV of CurrentPeriod when it was ingested in this run
	ExportFailures   []export.Failure
}

// Counters folds the summary into run record counters. Rejected covers both
// roster and attendance rejections.
func (s *Summary) Counters() datastore.RunCounters {
	c := datastore.RunCounters{
		Inserted: s.Roster.Inserted,
		Updated:  s.Roster.Updated,
		Rejected: s.Roster.Rejected,
		Promoted: s.Promoted,
	}
	for i := range s.Periods {
		p := &s.Periods[i]
		c.Affected += p.Affected
		c.Rejected += p.Rejected + p.RejectedUnknown
		c.RejectedUnknown += p.RejectedUnknown
	}
	return c
}

// CSVFiles lists every report written in the run.
func (s *Summary) CSVFiles() []string {
	var files []string
	for i := range s.Periods {
		if s.Periods[i].CSV != "" {
			files = append(files, s.Periods[i].CSV)
		}
	}
	if s.OvertimeCSV != "" {
		files = append(files, s.OvertimeCSV)
	}
	return files
}

// Info is the short description stored on the run record.
func (s *Summary) Info() string {
	return fmt.Sprintf("periods=%d already_processed=%d malformed=%d indeterminate=%d",
		len(s.Periods), len(s.AlreadyProcessed), len(s.Malformed), len(s.Indeterminate))
}

// String renders the summary for terminals and notifications.
func (s *Summary) String() string {
	var b strings.Builder
	c := s.Counters()

	fmt.Fprintf(&b, "Run %s (%s) %s\n", s.RunUUID, s.Trigger, s.Status)
	fmt.Fprintf(&b, "Current period: %s\n", s.CurrentPeriod)
	fmt.Fprintf(&b, "Roster: inserted=%d updated=%d rejected=%d\n",
		s.Roster.Inserted, s.Roster.Updated, s.Roster.Rejected)
	for _, r := range s.Roster.Rejections {
		fmt.Fprintf(&b, "  rejected %s\n", r)
	}

	if len(s.Periods) == 0 {
		b.WriteString("Periods: none pending\n")
	}
	for i := range s.Periods {
		p := &s.Periods[i]
		note := ""
		if p.Indeterminate {
			note = " (no period markers, filed under current period)"
		}
		fmt.Fprintf(&b, "Period %s%s: affected=%d rejected=%d unknown=%d\n",
			p.Key, note, p.Affected, p.Rejected, p.RejectedUnknown)
		for _, r := range p.Rejections {
			fmt.Fprintf(&b, "  rejected %s\n", r)
		}
	}
	if len(s.AlreadyProcessed) > 0 {
		fmt.Fprintf(&b, "Already processed: %s\n", strings.Join(s.AlreadyProcessed, ", "))
	}
	for _, f := range s.Malformed {
		fmt.Fprintf(&b, "Skipped malformed %s: %s\n", f.Path, f.Reason)
	}
	for _, f := range s.Indeterminate {
		fmt.Fprintf(&b, "Skipped %s: no period markers\n", f.Path)
	}

	fmt.Fprintf(&b, "Promoted: %d\n", s.Promoted)
	if s.CurrentCSV != "" {
		fmt.Fprintf(&b, "This week CSV: %s\n", s.CurrentCSV)
	}
	if s.OvertimeCSV != "" {
		fmt.Fprintf(&b, "Overtime CSV: %s\n", s.OvertimeCSV)
	}
	for _, f := range s.ExportFailures {
		fmt.Fprintf(&b, "Export to %s failed for %s\n", f.Target, f.File)
	}
	fmt.Fprintf(&b, "Totals: affected=%d rejected=%d promoted=%d\n", c.Affected, c.Rejected, c.Promoted)
	if s.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	}
	return b.String()
}
