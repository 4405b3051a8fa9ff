package input

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// RosterRecord is a normalized roster entry.
type RosterRecord struct {
	Email       string  `json:"email" validate:"required"`
	EmployeeNum *string `json:"employeeNum"`
	FirstName   string  `json:"firstName" validate:"required"`
	LastName    string  `json:"lastName" validate:"required"`
	Department  *string `json:"department"`
	Role        *string `json:"role"` // nil when the roster does not name a role
	Tier        int     `json:"tier"`
	HireDate    *string `json:"hireDate"`
	MajorIssues int     `json:"majorIssues"`
	Active      bool    `json:"active"`
}

// AttendanceRecord is a normalized weekly entry.
type AttendanceRecord struct {
	Email       string  `json:"email" validate:"required"`
	HoursWorked float64 `json:"hoursWorked"`
	WorkDays    int     `json:"workDays" validate:"gte=0"`
	OnTimeDays  int     `json:"onTimeDays" validate:"gte=0"`
	LateCount   int     `json:"lateCount"`
	MajorIssues int     `json:"majorIssues"`
}

// OnTimeRatio is onTimeDays/workDays, 0 when no days were worked, capped at 1.
func (a AttendanceRecord) OnTimeRatio() float64 {
	if a.WorkDays <= 0 {
		return 0
	}
	ratio := float64(a.OnTimeDays) / float64(a.WorkDays)
	if ratio > 1 {
		return 1
	}
	return ratio
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalize coerces the entry and validates it. The returned error is a
// human readable rejection reason.
func (e RosterEntry) Normalize() (RosterRecord, error) {
	rec := RosterRecord{
		Email:       NormalizeEmail(e.Email.String()),
		EmployeeNum: e.EmployeeNum.Optional(),
		FirstName:   e.FirstName.String(),
		LastName:    e.LastName.String(),
		Department:  e.Department.Optional(),
		Role:        e.Role.Optional(),
		Tier:        e.Tier.Int(1),
		HireDate:    e.HireDate.Optional(),
		MajorIssues: e.MajorIssues.Int(0),
		Active:      e.Active.Bool(true),
	}
	if rec.Tier == 0 {
		// Tier levels start at 1; a zero tier means "not given".
		rec.Tier = 1
	}
	if err := invalidNumbers(map[string]Number{"tier": e.Tier, "majorIssues": e.MajorIssues}); err != nil {
		return rec, err
	}
	if err := validate.Struct(rec); err != nil {
		return rec, describe(err)
	}
	return rec, nil
}

// Normalize coerces the entry and validates it. The returned error is a
// human readable rejection reason.
func (e AttendanceEntry) Normalize() (AttendanceRecord, error) {
	rec := AttendanceRecord{
		Email:       NormalizeEmail(e.Email.String()),
		HoursWorked: e.HoursWorked.Float(0),
		WorkDays:    e.WorkDays.Int(0),
		OnTimeDays:  e.OnTimeDays.Int(0),
		LateCount:   e.LateCount.Int(0),
		MajorIssues: e.MajorIssues.Int(0),
	}
	if err := invalidNumbers(map[string]Number{
		"hoursWorked": e.HoursWorked,
		"workDays":    e.WorkDays,
		"onTimeDays":  e.OnTimeDays,
		"lateCount":   e.LateCount,
		"majorIssues": e.MajorIssues,
	}); err != nil {
		return rec, err
	}
	if err := validate.Struct(rec); err != nil {
		return rec, describe(err)
	}
	return rec, nil
}

func invalidNumbers(fields map[string]Number) error {
	var bad []string
	for name, n := range fields {
		if n.Invalid() {
			bad = append(bad, name)
		}
	}
	if len(bad) == 0 {
		return nil
	}
	slices.Sort(bad)
	return fmt.Errorf("not a number: %s", strings.Join(bad, ", "))
}

// describe turns validator errors into a single reason string.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	reasons := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			reasons = append(reasons, "missing "+fe.Field())
		case "gte":
			reasons = append(reasons, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		default:
			reasons = append(reasons, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(reasons, "; "))
}
