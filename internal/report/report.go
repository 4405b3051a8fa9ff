// Package report renders attendance rows as CSV: one file per ingested period
// and a cumulative overtime file across all periods.
package report

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/period"
)

// OvertimeFile is the name of the cumulative report.
const OvertimeFile = "performance_overtime.csv"

// Header is shared by both reports.
var Header = []string{"weekKey", "email", "hoursWorked", "onTime%", "status"}

// Status classifies a week's hours against the expected hours.
type Status string

const (
	StatusFail Status = "FAIL" // no hours recorded
	StatusWarn Status = "WARN" // below expected hours
	StatusPass Status = "PASS"
)

// Classify returns FAIL for zero hours, WARN below expected, PASS otherwise.
func Classify(hours, expected float64) Status {
	switch {
	case hours == 0:
		return StatusFail
	case hours > 0 && hours < expected:
		return StatusWarn
	}
	return StatusPass
}

// Row is one report line.
type Row struct {
	WeekKey     string
	Email       string
	HoursWorked float64
	OnTimeRatio float64
	Status      Status
}

// RowFromAttendance builds a report row from a stored record, classifying it
// against the expected hours saved with the record.
func RowFromAttendance(rec datastore.WeeklyAttendance) Row {
	return Row{
		WeekKey:     rec.WeekKey,
		Email:       rec.Email,
		HoursWorked: rec.HoursWorked,
		OnTimeRatio: rec.OnTimeRatio,
		Status:      Classify(rec.HoursWorked, rec.ExpectedHours),
	}
}

// Writer writes reports into a directory.
type Writer struct {
	fs  afero.Fs
	dir string
}

// NewWriter returns a writer rooted at dir on fs.
func NewWriter(fs afero.Fs, dir string) *Writer {
	return &Writer{fs: fs, dir: dir}
}

// PeriodPath returns the path of the per-period report for key.
func (w *Writer) PeriodPath(key string) string {
	return filepath.Join(w.dir, "summary-"+period.FileSafe(key)+".csv")
}

// OvertimePath returns the path of the cumulative report.
func (w *Writer) OvertimePath() string {
	return filepath.Join(w.dir, OvertimeFile)
}

// WritePeriod writes the per-period report, replacing any previous file.
func (w *Writer) WritePeriod(key string, rows []Row) (string, error) {
	path := w.PeriodPath(key)
	return path, w.write(path, rows, formatHours)
}

// WriteOvertime writes the cumulative report. Hours are rounded to two decimals.
func (w *Writer) WriteOvertime(rows []Row) (string, error) {
	path := w.OvertimePath()
	return path, w.write(path, rows, func(h float64) string {
		return formatHours(math.Round(h*100) / 100)
	})
}

func (w *Writer) write(path string, rows []Row, hours func(float64) string) error {
	if err := w.fs.MkdirAll(w.dir, 0o755); err != nil {
		return fileError(err, path, "create_output_dir")
	}

	tmp := path + ".tmp"
	f, err := w.fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fileError(err, path, "open_report")
	}

	cw := csv.NewWriter(f)
	_ = cw.Write(Header)
	for _, r := range rows {
		_ = cw.Write([]string{r.WeekKey, r.Email, hours(r.HoursWorked), Percent(r.OnTimeRatio), string(r.Status)})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fileError(err, path, "write_report")
	}
	if err := f.Close(); err != nil {
		return fileError(err, path, "close_report")
	}
	if err := w.fs.Rename(tmp, path); err != nil {
		return fileError(err, path, "rename_report")
	}
	return nil
}

// Percent renders a ratio as a truncated integer percentage, e.g. 0.876 -> "87%".
func Percent(ratio float64) string {
	return fmt.Sprintf("%d%%", int(ratio*100))
}

// formatHours renders whole numbers with one decimal ("40.0") and keeps the
// shortest exact representation otherwise ("37.25").
func formatHours(h float64) string {
	if h == math.Trunc(h) && math.Abs(h) < 1e15 {
		return strconv.FormatFloat(h, 'f', 1, 64)
	}
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func fileError(err error, path, operation string) error {
	return errors.New(err).
		Component("report").
		Category(errors.CategoryFileIO).
		Context("operation", operation).
		Context("path", path).
		Build()
}
