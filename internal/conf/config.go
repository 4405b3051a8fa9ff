// config.go: configuration for shiftledger
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/viper"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// Trigger policies for weekly payloads whose period cannot be derived.
const (
	IndeterminateCurrent = "current" // group under the period active at batch time
	IndeterminateSkip    = "skip"    // leave the file unprocessed
)

// Database types
const (
	DatabaseSQLite   = "sqlite"
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
)

// Export target types
const (
	ExportLocal = "local"
	ExportSFTP  = "sftp"
	ExportFTP   = "ftp"
)

// MainSettings contains the identity of this installation.
type MainSettings struct {
	Name     string // instance name used in notifications and metrics
	Timezone string // reference timezone for period keys and the trigger
}

// LoggingSettings mirror logger.Config.
type LoggingSettings struct {
	Level   string // trace, debug, info, warn, error
	Console bool   // human readable output on stdout
	JSON    bool   // JSON encoding on stdout
	File    LogFileSettings
}

// LogFileSettings controls the rotating log file.
type LogFileSettings struct {
	Enabled    bool
	Path       string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
	Compress   bool
}

// InputSettings locate the roster and the weekly attendance payloads.
type InputSettings struct {
	RosterPath    string // roster document, JSON or YAML
	WeeksDir      string // directory of weekly payloads
	Indeterminate string // current or skip
}

// OutputSettings locate generated reports.
type OutputSettings struct {
	Dir string
}

// SQLiteSettings contains settings for the SQLite database.
type SQLiteSettings struct {
	Path string // path to the database file
}

// MySQLSettings contains settings for the MySQL database.
type MySQLSettings struct {
	Host         string
	Port         int
	Username     string
	Password     string // may reference ${ENV_VAR}
	PasswordFile string // secret file, takes precedence over Password
	Database     string
}

// PostgresSettings contains settings for the PostgreSQL database.
type PostgresSettings struct {
	Host         string
	Port         int
	Username     string
	Password     string // may reference ${ENV_VAR}
	PasswordFile string // secret file, takes precedence over Password
	Database     string
	SSLMode      string
}

// DatabaseSettings selects and configures the relational store.
type DatabaseSettings struct {
	Type     string // sqlite, mysql or postgres
	SQLite   SQLiteSettings
	MySQL    MySQLSettings
	Postgres PostgresSettings
}

// PolicySettings holds the attendance and promotion policy.
type PolicySettings struct {
	ExpectedHours   float64           // default weekly hours when a payload omits them
	OnTimeThreshold float64           // ratio at which a week counts as on time
	TenureDays      int               // minimum tenure for promotion
	TierMax         int               // highest tier
	Roles           map[string]string // tier number to role label
	Reason          string            // promotion audit reason
}

// ScheduleSettings configures the weekly trigger.
type ScheduleSettings struct {
	Cron         string        // standard 5-field cron expression in the reference timezone
	PollInterval time.Duration // how often the clock is checked
	Cooldown     time.Duration // sleep after a fire so the same minute cannot fire twice
	Catchup      bool          // fire on the day after a missed schedule
}

// ExportTarget is a destination for generated CSV reports.
type ExportTarget struct {
	Type         string // local, sftp or ftp
	Path         string // destination directory
	Host         string
	Port         int
	Username     string
	Password     string        // may reference ${ENV_VAR}
	PasswordFile string        // secret file, takes precedence over Password
	KeyFile      string        // private key for sftp
	Timeout      time.Duration // connection timeout
}

// ExportSettings lists the report export targets.
type ExportSettings struct {
	Targets []ExportTarget
}

// NotificationSettings configures run summary notifications.
type NotificationSettings struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs
	Timeout time.Duration
}

// MetricsSettings configures the Prometheus textfile output.
type MetricsSettings struct {
	Enabled  bool
	Textfile string
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// Settings contains all configuration options for shiftledger.
type Settings struct {
	Debug bool // true to enable debug mode

	Main         MainSettings
	Logging      LoggingSettings
	Input        InputSettings
	Output       OutputSettings
	Database     DatabaseSettings
	Policy       PolicySettings
	Schedule     ScheduleSettings
	Export       ExportSettings
	Notification NotificationSettings
	Metrics      MetricsSettings
	Sentry       SentrySettings
}

// Location returns the reference timezone. Settings are validated on load,
// so a failure here falls back to UTC.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.Main.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RoleForTier returns the role label configured for tier.
func (p *PolicySettings) RoleForTier(tier int) (string, bool) {
	role, ok := p.Roles[strconv.Itoa(tier)]
	return role, ok && role != ""
}

// RoleMap returns the tier to role table keyed by integer tier.
func (p *PolicySettings) RoleMap() map[int]string {
	out := make(map[int]string, len(p.Roles))
	for k, v := range p.Roles {
		if tier, err := strconv.Atoi(k); err == nil {
			out[tier] = v
		}
	}
	return out
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
// An empty configFile searches the default config paths and writes the
// embedded default configuration when nothing is found.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := load(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

func load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveSecrets(settings, secrets.NewResolver()); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// resolveSecrets replaces credential settings with their resolved values.
func resolveSecrets(s *Settings, r *secrets.Resolver) error {
	var err error
	resolve := func(field string, dst *string, file string) {
		if err != nil {
			return
		}
		var v string
		if v, err = r.Resolve(file, *dst); err != nil {
			err = fmt.Errorf("%s: %w", field, err)
			return
		}
		*dst = v
	}

	resolve("database.mysql.password", &s.Database.MySQL.Password, s.Database.MySQL.PasswordFile)
	resolve("database.postgres.password", &s.Database.Postgres.Password, s.Database.Postgres.PasswordFile)
	for i := range s.Export.Targets {
		t := &s.Export.Targets[i]
		resolve(fmt.Sprintf("export.targets[%d].password", i), &t.Password, t.PasswordFile)
	}
	for i := range s.Notification.URLs {
		resolve(fmt.Sprintf("notification.urls[%d]", i), &s.Notification.URLs[i], "")
	}
	resolve("sentry.dsn", &s.Sentry.DSN, "")
	return err
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.New(fmt.Errorf("reading config file %s: %w", configFile, err)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read-config").
				Build()
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(v, configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default configuration into dir and reads it back.
func createDefaultConfig(v *viper.Viper, dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	v.SetConfigFile(configPath)
	return v.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the settings loaded by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
