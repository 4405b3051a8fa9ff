// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. SHIFTLEDGER_DATABASE_TYPE.
const EnvPrefix = "SHIFTLEDGER"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns environment variable bindings that are validated before use.
// All other keys are still overridable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "SHIFTLEDGER_DEBUG", validateEnvBool},
		{"main.timezone", "SHIFTLEDGER_TIMEZONE", validateEnvTimezone},
		{"database.type", "SHIFTLEDGER_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "SHIFTLEDGER_DATABASE_PATH", nil},
		{"database.mysql.password", "SHIFTLEDGER_MYSQL_PASSWORD", nil},
		{"database.postgres.password", "SHIFTLEDGER_POSTGRES_PASSWORD", nil},
		{"policy.expectedhours", "SHIFTLEDGER_EXPECTED_HOURS", validateEnvPositiveFloat},
		{"sentry.dsn", "SHIFTLEDGER_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvTimezone(value string) error {
	_, err := LoadLocation(value)
	return err
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL, DatabasePostgres:
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", DatabaseSQLite, DatabaseMySQL, DatabasePostgres)
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if f <= 0 {
		return fmt.Errorf("must be greater than zero")
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return bindEnvVars(v)
}
