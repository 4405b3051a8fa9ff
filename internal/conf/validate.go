// conf/validate.go

package conf

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if _, err := LoadLocation(settings.Main.Timezone); err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("main.timezone: %v", err))
	}

	validators := []func(*Settings) error{
		validateLoggingSettings,
		validateInputSettings,
		validateDatabaseSettings,
		validatePolicySettings,
		validateScheduleSettings,
		validateExportSettings,
		validateSentrySettings,
	}
	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLoggingSettings(settings *Settings) error {
	switch strings.ToLower(settings.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("logging.level: unknown level %q", settings.Logging.Level)
}

func validateInputSettings(settings *Settings) error {
	switch settings.Input.Indeterminate {
	case IndeterminateCurrent, IndeterminateSkip:
		return nil
	}
	return fmt.Errorf("input.indeterminate: must be %q or %q, got %q",
		IndeterminateCurrent, IndeterminateSkip, settings.Input.Indeterminate)
}

func validateDatabaseSettings(settings *Settings) error {
	db := &settings.Database
	db.Type = strings.ToLower(db.Type)
	switch db.Type {
	case DatabaseSQLite:
		if db.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path: must not be empty")
		}
	case DatabaseMySQL:
		if db.MySQL.Host == "" || db.MySQL.Database == "" {
			return fmt.Errorf("database.mysql: host and database are required")
		}
	case DatabasePostgres:
		if db.Postgres.Host == "" || db.Postgres.Database == "" {
			return fmt.Errorf("database.postgres: host and database are required")
		}
	default:
		return fmt.Errorf("database.type: unknown type %q", db.Type)
	}
	return nil
}

func validatePolicySettings(settings *Settings) error {
	p := &settings.Policy
	var errs []string

	if p.ExpectedHours <= 0 {
		errs = append(errs, "policy.expectedhours must be greater than zero")
	}
	if p.OnTimeThreshold <= 0 || p.OnTimeThreshold > 1 {
		errs = append(errs, "policy.ontimethreshold must be in (0, 1]")
	}
	if p.TenureDays < 0 {
		errs = append(errs, "policy.tenuredays must not be negative")
	}
	if p.TierMax < 1 {
		errs = append(errs, "policy.tiermax must be at least 1")
	}
	for tier := 1; tier <= p.TierMax; tier++ {
		if _, ok := p.RoleForTier(tier); !ok {
			errs = append(errs, fmt.Sprintf("policy.roles has no role for tier %d", tier))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateScheduleSettings(settings *Settings) error {
	s := &settings.Schedule
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("schedule.pollinterval must be positive")
	}
	if s.Cooldown < 0 {
		return fmt.Errorf("schedule.cooldown must not be negative")
	}
	return nil
}

func validateExportSettings(settings *Settings) error {
	for i, t := range settings.Export.Targets {
		switch strings.ToLower(t.Type) {
		case ExportLocal:
			if t.Path == "" {
				return fmt.Errorf("export.targets[%d]: path is required", i)
			}
		case ExportSFTP, ExportFTP:
			if t.Host == "" {
				return fmt.Errorf("export.targets[%d]: host is required", i)
			}
		default:
			return fmt.Errorf("export.targets[%d]: unknown type %q", i, t.Type)
		}
	}
	return nil
}

func validateSentrySettings(settings *Settings) error {
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		return fmt.Errorf("sentry.dsn is required when sentry is enabled")
	}
	return nil
}
