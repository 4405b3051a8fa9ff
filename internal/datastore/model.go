// model.go this code defines the data model for the application
package datastore

import "time"

// Run types and statuses recorded in the run history.
const (
	RunTypePipeline = "PIPELINE"

	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// Trigger sources for a run.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerCatchup  = "catchup"
)

// Employee is a roster member keyed by lowercased email. Employees are never
// deleted, only deactivated.
type Employee struct {
	Email       string  `gorm:"primaryKey;size:255"`
	EmployeeNum *string `gorm:"uniqueIndex;size:64"`
	FirstName   string  `gorm:"size:128;not null"`
	LastName    string  `gorm:"size:128;not null"`
	Department  *string `gorm:"size:128"`
	Role        string  `gorm:"size:64"`
	Tier        int     `gorm:"not null"`
	HireDate    *string `gorm:"size:32"` // ISO date as supplied by the roster
	MajorIssues int     `gorm:"not null"`
	Active      bool    `gorm:"not null;index"`

	// Aggregates, rewritten on every batch from weekly_attendances.
	HoursTotal          float64 `gorm:"not null"`
	TotalWeeks          int     `gorm:"not null"`
	WeeksOnTime         int     `gorm:"not null"`
	MajorIssuesRecorded int     `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WeeklyAttendance is one employee's attendance for one period. The pair
// (WeekKey, Email) is unique.
type WeeklyAttendance struct {
	ID            uint    `gorm:"primaryKey"`
	WeekKey       string  `gorm:"size:64;not null;uniqueIndex:idx_weekly_attendance_unique,priority:1"`
	Email         string  `gorm:"size:255;not null;uniqueIndex:idx_weekly_attendance_unique,priority:2;index"`
	WeekStart     *string `gorm:"size:32"`
	WeekEnd       *string `gorm:"size:32"`
	HoursWorked   float64 `gorm:"not null"`
	OnTimeRatio   float64 `gorm:"not null"` // 0..1
	LateCount     int     `gorm:"not null"`
	MajorIssues   int     `gorm:"not null"`
	ExpectedHours float64 `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProcessedPeriod marks a period as fully ingested. Rows are written once and
// never updated.
type ProcessedPeriod struct {
	PeriodKey   string    `gorm:"primaryKey;size:64"`
	ProcessedAt time.Time `gorm:"not null"`
	RunID       uint      `gorm:"index"`
}

// RunCounters are the outcome counters of one batch.
type RunCounters struct {
	Inserted        int
	Updated         int
	Rejected        int
	RejectedUnknown int
	Affected        int
	Promoted        int
}

// RunResult is what a finished run records.
type RunResult struct {
	Status string
	Info   string
	Error  string
	RunCounters
}

// Run is one batch invocation.
type Run struct {
	ID         uint   `gorm:"primaryKey"`
	UUID       string `gorm:"size:36;uniqueIndex"`
	Type       string `gorm:"size:32;not null;index:idx_runs_type_period,priority:1"`
	PeriodKey  string `gorm:"size:64;index:idx_runs_type_period,priority:2"`
	Trigger    string `gorm:"size:16"`
	Status     string `gorm:"size:16;not null"`
	StartedAt  time.Time
	FinishedAt *time.Time
	Info       string `gorm:"size:255"`
	Error      string `gorm:"type:text"`

	RunCounters `gorm:"embedded"`
}

// PromotionLog is an append-only audit row for a tier change.
type PromotionLog struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"size:255;not null;index"`
	FromTier  int    `gorm:"not null"`
	ToTier    int    `gorm:"not null"`
	FromRole  string `gorm:"size:64"`
	ToRole    string `gorm:"size:64"`
	Reason    string `gorm:"size:255"`
	RunID     uint   `gorm:"index"`
	CreatedAt time.Time
}

// Aggregate holds the lifetime totals of one employee.
type Aggregate struct {
	HoursTotal          float64
	TotalWeeks          int
	WeeksOnTime         int
	MajorIssuesRecorded int
}

// Promotion is a single tier advancement to apply.
type Promotion struct {
	Email    string
	FromTier int
	ToTier   int
	FromRole string
	ToRole   string
	Reason   string
	RunID    uint
}
