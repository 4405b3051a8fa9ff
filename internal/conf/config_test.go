package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	t.Parallel()

	data, err := getDefaultConfig()
	require.NoError(t, err)
	path := writeConfig(t, string(data))

	settings, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "America/Chicago", settings.Main.Timezone)
	assert.Equal(t, DatabaseSQLite, settings.Database.Type)
	assert.Equal(t, "employees.sqlite3", settings.Database.SQLite.Path)
	assert.InDelta(t, 40.0, settings.Policy.ExpectedHours, 1e-9)
	assert.InDelta(t, 0.90, settings.Policy.OnTimeThreshold, 1e-9)
	assert.Equal(t, 730, settings.Policy.TenureDays)
	assert.Equal(t, 3, settings.Policy.TierMax)
	assert.Equal(t, map[int]string{1: "Staff", 2: "Senior", 3: "Lead"}, settings.Policy.RoleMap())
	assert.Equal(t, "0 20 * * 5", settings.Schedule.Cron)
	assert.Equal(t, 5*time.Second, settings.Schedule.PollInterval)
	assert.Equal(t, 65*time.Second, settings.Schedule.Cooldown)
	assert.True(t, settings.Schedule.Catchup)
	assert.Equal(t, IndeterminateCurrent, settings.Input.Indeterminate)
	assert.Empty(t, settings.Export.Targets)
}

func TestLoadMinimalFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "output:\n  dir: reports\n")
	settings, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "reports", settings.Output.Dir)
	assert.Equal(t, "data/users.json", settings.Input.RosterPath)
	role, ok := settings.Policy.RoleForTier(2)
	assert.True(t, ok)
	assert.Equal(t, "Senior", role)

	loc := settings.Location()
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestLoadExportTargets(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
export:
  targets:
    - type: local
      path: /srv/reports
    - type: sftp
      host: files.example.com
      port: 2222
      username: payroll
      timeout: 30s
`)
	settings, err := load(viper.New(), path)
	require.NoError(t, err)

	require.Len(t, settings.Export.Targets, 2)
	assert.Equal(t, ExportLocal, settings.Export.Targets[0].Type)
	assert.Equal(t, "/srv/reports", settings.Export.Targets[0].Path)
	assert.Equal(t, 2222, settings.Export.Targets[1].Port)
	assert.Equal(t, 30*time.Second, settings.Export.Targets[1].Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SHIFTLEDGER_DATABASE_TYPE", "postgres")
	t.Setenv("SHIFTLEDGER_OUTPUT_DIR", "/tmp/reports")
	t.Setenv("SHIFTLEDGER_EXPECTED_HOURS", "37.5")

	path := writeConfig(t, "debug: false\n")
	settings, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, DatabasePostgres, settings.Database.Type)
	assert.Equal(t, "/tmp/reports", settings.Output.Dir)
	assert.InDelta(t, 37.5, settings.Policy.ExpectedHours, 1e-9)
}

func TestInvalidEnvironmentValueRejected(t *testing.T) {
	t.Setenv("SHIFTLEDGER_DATABASE_TYPE", "oracle")

	path := writeConfig(t, "debug: false\n")
	_, err := load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHIFTLEDGER_DATABASE_TYPE")
}

func TestLoadResolvesSecrets(t *testing.T) {
	t.Setenv("SHIFTLEDGER_TEST_FTP_PASSWORD", "ftp-pw")
	secretPath := filepath.Join(t.TempDir(), "sftp_password")
	require.NoError(t, os.WriteFile(secretPath, []byte("sftp-pw\n"), 0o600))

	path := writeConfig(t, `
export:
  targets:
    - type: ftp
      host: ftp.example.com
      password: ${SHIFTLEDGER_TEST_FTP_PASSWORD}
    - type: sftp
      host: files.example.com
      password: ignored
      passwordfile: `+secretPath+`
`)
	settings, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "ftp-pw", settings.Export.Targets[0].Password)
	assert.Equal(t, "sftp-pw", settings.Export.Targets[1].Password)
}

func TestLoadMissingSecretVariable(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
export:
  targets:
    - type: ftp
      host: ftp.example.com
      password: ${SHIFTLEDGER_TEST_UNSET_VARIABLE}
`)
	_, err := load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export.targets[0].password")
}
