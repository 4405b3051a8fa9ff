// conf/utils.go various util functions for configuration package
package conf

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	// Embedded zone database for hosts without tzdata.
	_ "time/tzdata"

	"github.com/tphakala/shiftledger/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml.
// If a config.yaml exists in one of them, only that directory is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case "windows":
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", "shiftledger"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "shiftledger"),
			"/etc/shiftledger",
		}
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}
	return configPaths, nil
}

// LoadLocation resolves an IANA timezone name. An empty name is rejected
// rather than silently meaning UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, errors.Newf("timezone is empty").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("timezone", name).
			Build()
	}
	return loc, nil
}
