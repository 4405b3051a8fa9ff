// Package input decodes roster and weekly attendance documents (JSON or YAML)
// and normalizes their entries into validated records.
package input

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tphakala/shiftledger/internal/errors"
	"gopkg.in/yaml.v3"
)

// Format identifies the encoding of an input document.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	}
	return "unknown"
}

// FormatFor infers the format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatUnknown
}

// RosterEntry is one roster element as it appears in the document.
type RosterEntry struct {
	Email       Text   `json:"email" yaml:"email"`
	EmployeeNum Text   `json:"employeeNum" yaml:"employeeNum"`
	FirstName   Text   `json:"firstName" yaml:"firstName"`
	LastName    Text   `json:"lastName" yaml:"lastName"`
	Department  Text   `json:"department" yaml:"department"`
	Role        Text   `json:"role" yaml:"role"`
	Tier        Number `json:"tier" yaml:"tier"`
	HireDate    Text   `json:"hireDate" yaml:"hireDate"`
	MajorIssues Number `json:"majorIssues" yaml:"majorIssues"`
	Active      Flag   `json:"active" yaml:"active"`
}

// WeeklyPayload is one period's attendance document.
type WeeklyPayload struct {
	WeekKey       Text              `json:"weekKey" yaml:"weekKey"`
	WeekStart     Text              `json:"weekStart" yaml:"weekStart"`
	WeekEnd       Text              `json:"weekEnd" yaml:"weekEnd"`
	ExpectedHours Number            `json:"expectedHours" yaml:"expectedHours"`
	Entries       []AttendanceEntry `json:"entries" yaml:"entries"`
}

// AttendanceEntry is one employee's line in a weekly payload.
type AttendanceEntry struct {
	Email       Text   `json:"email" yaml:"email"`
	HoursWorked Number `json:"hoursWorked" yaml:"hoursWorked"`
	WorkDays    Number `json:"workDays" yaml:"workDays"`
	OnTimeDays  Number `json:"onTimeDays" yaml:"onTimeDays"`
	LateCount   Number `json:"lateCount" yaml:"lateCount"`
	MajorIssues Number `json:"majorIssues" yaml:"majorIssues"`
}

// DecodeRoster reads a roster document: a list of entries.
func DecodeRoster(r io.Reader, format Format) ([]RosterEntry, error) {
	var entries []RosterEntry
	if err := decode(r, format, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DecodeWeekly reads a weekly attendance document.
func DecodeWeekly(r io.Reader, format Format) (*WeeklyPayload, error) {
	var payload WeeklyPayload
	if err := decode(r, format, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func decode(r io.Reader, format Format, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.New(err).
			Component("input").
			Category(errors.CategoryFileIO).
			Build()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return malformed(fmt.Errorf("empty document"), format)
	}

	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, out)
	case FormatYAML:
		err = yaml.Unmarshal(data, out)
	default:
		err = fmt.Errorf("unsupported format")
	}
	if err != nil {
		return malformed(err, format)
	}
	return nil
}

func malformed(err error, format Format) error {
	return errors.New(fmt.Errorf("%w: %w", errors.ErrMalformedPayload, err)).
		Component("input").
		Category(errors.CategoryFileParsing).
		Context("format", format.String()).
		Build()
}
