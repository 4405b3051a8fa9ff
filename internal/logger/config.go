package logger

import "time"

// Config represents logging configuration
type Config struct {
	Level    string         // trace, debug, info, warn, error
	Console  bool           // write human readable output to stdout
	JSON     bool           // use JSON encoding on the console as well
	Timezone *time.Location // timestamps are rendered in this location, nil means Local
	File     FileOutput
}

// FileOutput represents file logging configuration.
// File output is always JSON with RFC3339 timestamps.
type FileOutput struct {
	Enabled    bool
	Path       string
	MaxSize    int  // megabytes before rotation
	MaxAge     int  // days to keep rotated files
	MaxBackups int  // rotated files to keep
	Compress   bool // gzip rotated files
}

// Default values for logging configuration.
// These match the defaults in conf/defaults.go.
const (
	DefaultLogLevel   = "info"
	DefaultLogPath    = "logs/shiftledger.log"
	DefaultMaxSize    = 100
	DefaultMaxAge     = 30
	DefaultMaxBackups = 10
)

// applyConfigDefaults fills zero values that would otherwise disable rotation limits.
func applyConfigDefaults(cfg *Config) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.Local
	}
	if cfg.File.Enabled {
		if cfg.File.Path == "" {
			cfg.File.Path = DefaultLogPath
		}
		if cfg.File.MaxSize <= 0 {
			cfg.File.MaxSize = DefaultMaxSize
		}
		if cfg.File.MaxAge <= 0 {
			cfg.File.MaxAge = DefaultMaxAge
		}
		if cfg.File.MaxBackups <= 0 {
			cfg.File.MaxBackups = DefaultMaxBackups
		}
	}
}
