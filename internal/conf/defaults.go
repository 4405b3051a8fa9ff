// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers default values for every configuration key.
// Keys without a default are invisible to environment overrides.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "shiftledger")
	v.SetDefault("main.timezone", "America/Chicago")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.file.enabled", true)
	v.SetDefault("logging.file.path", "logs/shiftledger.log")
	v.SetDefault("logging.file.maxsize", 100)
	v.SetDefault("logging.file.maxage", 30)
	v.SetDefault("logging.file.maxbackups", 10)
	v.SetDefault("logging.file.compress", false)

	v.SetDefault("input.rosterpath", "data/users.json")
	v.SetDefault("input.weeksdir", "weeks")
	v.SetDefault("input.indeterminate", IndeterminateCurrent)

	v.SetDefault("output.dir", "out")

	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("database.sqlite.path", "employees.sqlite3")
	v.SetDefault("database.mysql.host", "localhost")
	v.SetDefault("database.mysql.port", 3306)
	v.SetDefault("database.mysql.username", "")
	v.SetDefault("database.mysql.password", "")
	v.SetDefault("database.mysql.database", "shiftledger")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.username", "")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "shiftledger")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("policy.expectedhours", 40.0)
	v.SetDefault("policy.ontimethreshold", 0.90)
	v.SetDefault("policy.tenuredays", 730)
	v.SetDefault("policy.tiermax", 3)
	v.SetDefault("policy.roles", map[string]string{"1": "Staff", "2": "Senior", "3": "Lead"})
	v.SetDefault("policy.reason", "2y tenure, 0 major issues, ≥90% on-time")

	v.SetDefault("schedule.cron", "0 20 * * 5")
	v.SetDefault("schedule.pollinterval", 5*time.Second)
	v.SetDefault("schedule.cooldown", 65*time.Second)
	v.SetDefault("schedule.catchup", true)

	v.SetDefault("export.targets", []map[string]any{})

	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.urls", []string{})
	v.SetDefault("notification.timeout", 10*time.Second)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "metrics/shiftledger.prom")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
}
