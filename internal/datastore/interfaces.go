// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Interface abstracts the underlying database implementation. Every write is
// its own transaction; nothing spans a whole batch.
type Interface interface {
	Open() error
	Close() error

	// Processed-period ledger and run history
	IsProcessed(ctx context.Context, periodKey string) (bool, error)
	MarkProcessed(ctx context.Context, periodKey string, runID uint) (bool, error)
	ListProcessed(ctx context.Context) ([]ProcessedPeriod, error)
	RecordRunStart(ctx context.Context, run *Run) error
	RecordRunFinish(ctx context.Context, runID uint, result RunResult) error
	HasRunForPeriod(ctx context.Context, runType, periodKey string) (bool, error)
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	// Roster
	UpsertEmployee(ctx context.Context, email string, merge MergeFunc) (inserted bool, err error)
	GetEmployee(ctx context.Context, email string) (*Employee, error)
	EmployeeExists(ctx context.Context, email string) (bool, error)
	ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error)

	// Attendance
	UpsertAttendance(ctx context.Context, rec *WeeklyAttendance) error
	ListAttendance(ctx context.Context) ([]WeeklyAttendance, error)
	ListAttendanceForPeriod(ctx context.Context, periodKey string) ([]WeeklyAttendance, error)

	// Aggregates and promotions
	ReplaceAggregates(ctx context.Context, aggregates map[string]Aggregate) error
	ApplyPromotion(ctx context.Context, p Promotion) error
	ListPromotions(ctx context.Context, email string) ([]PromotionLog, error)
}

// MergeFunc builds the record to store for an email. existing is nil when the
// employee is new. Returning an error aborts the upsert.
type MergeFunc func(existing *Employee) (*Employee, error)

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB     *gorm.DB // GORM database instance
	Logger logger.Logger
	now    func() time.Time
}

// New creates a store for the configured database type.
func New(settings *conf.Settings) Interface {
	switch settings.Database.Type {
	case conf.DatabaseMySQL:
		return &MySQLStore{DataStore: newDataStore(), Settings: settings}
	case conf.DatabasePostgres:
		return &PostgresStore{DataStore: newDataStore(), Settings: settings}
	default:
		return &SQLiteStore{DataStore: newDataStore(), Settings: settings}
	}
}

func newDataStore() DataStore {
	return DataStore{
		Logger: logger.Global().Module("datastore"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (ds *DataStore) db(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, notOpenError()
	}
	return ds.DB.WithContext(ctx), nil
}

// IsProcessed reports whether the period has a ledger entry.
func (ds *DataStore) IsProcessed(ctx context.Context, periodKey string) (bool, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Model(&ProcessedPeriod{}).Where("period_key = ?", periodKey).Count(&count).Error; err != nil {
		return false, dbError(err, "is_processed", "period", periodKey)
	}
	return count > 0, nil
}

// MarkProcessed inserts the ledger entry for a period. A second call for the
// same period is a no-op and reports false; the primary key is the guard, so
// two racing processes still produce one row.
func (ds *DataStore) MarkProcessed(ctx context.Context, periodKey string, runID uint) (bool, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return false, err
	}
	entry := ProcessedPeriod{PeriodKey: periodKey, ProcessedAt: ds.now(), RunID: runID}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
	if result.Error != nil {
		return false, dbError(result.Error, "mark_processed", "period", periodKey)
	}
	return result.RowsAffected > 0, nil
}

// ListProcessed returns all ledger entries ordered by period key.
func (ds *DataStore) ListProcessed(ctx context.Context) ([]ProcessedPeriod, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var entries []ProcessedPeriod
	if err := db.Order("period_key ASC").Find(&entries).Error; err != nil {
		return nil, dbError(err, "list_processed")
	}
	return entries, nil
}

// RecordRunStart persists a new run in the running state and fills its ID.
func (ds *DataStore) RecordRunStart(ctx context.Context, run *Run) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	if run.Type == "" {
		run.Type = RunTypePipeline
	}
	run.Status = RunStatusRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = ds.now()
	}
	if err := db.Create(run).Error; err != nil {
		return dbError(err, "record_run_start", "period", run.PeriodKey)
	}
	return nil
}

// RecordRunFinish closes a run. Finished runs are terminal; finishing one twice is a conflict.
func (ds *DataStore) RecordRunFinish(ctx context.Context, runID uint, outcome RunResult) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	finished := ds.now()
	result := db.Model(&Run{}).
		Where("id = ? AND finished_at IS NULL", runID).
		Updates(map[string]any{
			"status":           outcome.Status,
			"finished_at":      finished,
			"info":             truncate(outcome.Info, 255),
			"error":            outcome.Error,
			"inserted":         outcome.Inserted,
			"updated":          outcome.Updated,
			"rejected":         outcome.Rejected,
			"rejected_unknown": outcome.RejectedUnknown,
			"affected":         outcome.Affected,
			"promoted":         outcome.Promoted,
		})
	if result.Error != nil {
		return dbError(result.Error, "record_run_finish", "run_id", runID)
	}
	if result.RowsAffected == 0 {
		return conflictError("run is unknown or already finished", "run_id", runID)
	}
	return nil
}

// HasRunForPeriod reports whether any run of runType exists for the period,
// finished or not.
func (ds *DataStore) HasRunForPeriod(ctx context.Context, runType, periodKey string) (bool, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Model(&Run{}).Where("type = ? AND period_key = ?", runType, periodKey).Count(&count).Error; err != nil {
		return false, dbError(err, "has_run_for_period", "period", periodKey)
	}
	return count > 0, nil
}

// RecentRuns returns the latest runs, newest first.
func (ds *DataStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var runs []Run
	q := db.Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, dbError(err, "recent_runs")
	}
	return runs, nil
}

// UpsertEmployee reads the current record, lets merge decide the new state and
// writes it, all inside one transaction. An employee number held by another
// employee is a conflict.
func (ds *DataStore) UpsertEmployee(ctx context.Context, email string, merge MergeFunc) (bool, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return false, err
	}

	inserted := false
	err = db.Transaction(func(tx *gorm.DB) error {
		var current Employee
		var existing *Employee
		switch err := tx.Where("email = ?", email).Take(&current).Error; {
		case err == nil:
			existing = &current
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return dbError(err, "load_employee", "email", email)
		}

		next, err := merge(existing)
		if err != nil {
			return err
		}
		next.Email = email

		if next.EmployeeNum != nil {
			var owner Employee
			switch err := tx.Select("email").
				Where("employee_num = ? AND email <> ?", *next.EmployeeNum, email).
				Take(&owner).Error; {
			case err == nil:
				return conflictError("employee number already assigned to another employee",
					"employee_num", *next.EmployeeNum, "email", email)
			case errors.Is(err, gorm.ErrRecordNotFound):
			default:
				return dbError(err, "check_employee_num", "email", email)
			}
		}

		if existing == nil {
			inserted = true
			if err := tx.Create(next).Error; err != nil {
				return dbError(err, "insert_employee", "email", email)
			}
			return nil
		}

		next.CreatedAt = existing.CreatedAt
		if err := tx.Save(next).Error; err != nil {
			return dbError(err, "update_employee", "email", email)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// GetEmployee returns one employee or a not-found error.
func (ds *DataStore) GetEmployee(ctx context.Context, email string) (*Employee, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var emp Employee
	if err := db.Where("email = ?", email).Take(&emp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("employee", email)
		}
		return nil, dbError(err, "get_employee", "email", email)
	}
	return &emp, nil
}

// EmployeeExists reports whether the roster contains email.
func (ds *DataStore) EmployeeExists(ctx context.Context, email string) (bool, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return false, err
	}
	var count int64
	if err := db.Model(&Employee{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, dbError(err, "employee_exists", "email", email)
	}
	return count > 0, nil
}

// ListEmployees returns employees ordered by email.
func (ds *DataStore) ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var employees []Employee
	q := db.Order("email ASC")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&employees).Error; err != nil {
		return nil, dbError(err, "list_employees")
	}
	return employees, nil
}

// attendanceUpdateColumns are overwritten when (week_key, email) already exists.
var attendanceUpdateColumns = []string{
	"week_start", "week_end", "hours_worked", "on_time_ratio",
	"late_count", "major_issues", "expected_hours", "updated_at",
}

// UpsertAttendance writes the row for (WeekKey, Email), overwriting an existing one.
func (ds *DataStore) UpsertAttendance(ctx context.Context, rec *WeeklyAttendance) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	row := *rec
	row.ID = 0
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "week_key"}, {Name: "email"}},
		DoUpdates: clause.AssignmentColumns(attendanceUpdateColumns),
	}).Create(&row).Error
	if err != nil {
		return dbError(err, "upsert_attendance", "period", rec.WeekKey, "email", rec.Email)
	}
	return nil
}

// ListAttendance returns every attendance row ordered by period then email.
func (ds *DataStore) ListAttendance(ctx context.Context) ([]WeeklyAttendance, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var rows []WeeklyAttendance
	if err := db.Order("week_key ASC").Order("email ASC").Find(&rows).Error; err != nil {
		return nil, dbError(err, "list_attendance")
	}
	return rows, nil
}

// ListAttendanceForPeriod returns the rows of one period ordered by email.
func (ds *DataStore) ListAttendanceForPeriod(ctx context.Context, periodKey string) ([]WeeklyAttendance, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var rows []WeeklyAttendance
	if err := db.Where("week_key = ?", periodKey).Order("email ASC").Find(&rows).Error; err != nil {
		return nil, dbError(err, "list_attendance_for_period", "period", periodKey)
	}
	return rows, nil
}

// ReplaceAggregates zeroes every employee's aggregates and writes the given
// totals in a single transaction, so readers never see a half-applied recompute.
func (ds *DataStore) ReplaceAggregates(ctx context.Context, aggregates map[string]Aggregate) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		reset := tx.Model(&Employee{}).Where("1 = 1").Updates(map[string]any{
			"hours_total":           0,
			"total_weeks":           0,
			"weeks_on_time":         0,
			"major_issues_recorded": 0,
		})
		if reset.Error != nil {
			return dbError(reset.Error, "reset_aggregates")
		}
		for email, agg := range aggregates {
			err := tx.Model(&Employee{}).Where("email = ?", email).Updates(map[string]any{
				"hours_total":           agg.HoursTotal,
				"total_weeks":           agg.TotalWeeks,
				"weeks_on_time":         agg.WeeksOnTime,
				"major_issues_recorded": agg.MajorIssuesRecorded,
				"updated_at":            ds.now(),
			}).Error
			if err != nil {
				return dbError(err, "write_aggregate", "email", email)
			}
		}
		return nil
	})
}

// ApplyPromotion raises one employee's tier and appends the audit row. The
// update only matches while the stored tier equals FromTier, so a promotion is
// applied at most once even if evaluated twice.
func (ds *DataStore) ApplyPromotion(ctx context.Context, p Promotion) error {
	db, err := ds.db(ctx)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Employee{}).
			Where("email = ? AND tier = ?", p.Email, p.FromTier).
			Updates(map[string]any{"tier": p.ToTier, "role": p.ToRole, "updated_at": ds.now()})
		if result.Error != nil {
			return dbError(result.Error, "promote_employee", "email", p.Email)
		}
		if result.RowsAffected == 0 {
			return conflictError("employee tier changed before promotion", "email", p.Email, "from_tier", p.FromTier)
		}

		entry := PromotionLog{
			Email:     p.Email,
			FromTier:  p.FromTier,
			ToTier:    p.ToTier,
			FromRole:  p.FromRole,
			ToRole:    p.ToRole,
			Reason:    p.Reason,
			RunID:     p.RunID,
			CreatedAt: ds.now(),
		}
		if err := tx.Create(&entry).Error; err != nil {
			return dbError(err, "append_promotion_log", "email", p.Email)
		}
		return nil
	})
}

// ListPromotions returns audit rows oldest first. An empty email lists all.
func (ds *DataStore) ListPromotions(ctx context.Context, email string) ([]PromotionLog, error) {
	db, err := ds.db(ctx)
	if err != nil {
		return nil, err
	}
	var entries []PromotionLog
	q := db.Order("id ASC")
	if email != "" {
		q = q.Where("email = ?", email)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, dbError(err, "list_promotions")
	}
	return entries, nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, log logger.Logger, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Employee{}, &WeeklyAttendance{}, &ProcessedPeriod{}, &Run{}, &PromotionLog{}); err != nil {
		return dbError(err, "auto_migrate", "db_type", dbType)
	}
	log.Debug("database initialized",
		logger.String("type", dbType),
		logger.String("connection", logger.RedactSensitiveData(connectionInfo)))
	return nil
}

// closeDB releases the underlying sql.DB.
func (ds *DataStore) closeDB() error {
	if ds.DB == nil {
		return notOpenError()
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	ds.DB = nil
	return nil
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
