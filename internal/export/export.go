// Package export copies generated reports to configured destinations.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/logger"
)

const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
	DefaultFTPPort      = 21
	DefaultSSHPort      = 22
)

// Target receives report files.
type Target interface {
	// Name identifies the target in logs.
	Name() string
	// Store writes the content of r as name under the target's directory.
	Store(ctx context.Context, name string, r io.Reader) error
}

// NewTarget builds a target from its settings. Local targets write through fs.
func NewTarget(cfg conf.ExportTarget, fs afero.Fs, log logger.Logger) (Target, error) {
	switch strings.ToLower(cfg.Type) {
	case conf.ExportLocal:
		return NewLocalTarget(fs, cfg.Path)
	case conf.ExportSFTP:
		return NewSFTPTarget(cfg, log)
	case conf.ExportFTP:
		return NewFTPTarget(cfg, log)
	}
	return nil, errors.Newf("unknown export target type %q", cfg.Type).
		Component("export").
		Category(errors.CategoryConfiguration).
		Build()
}

// Failure is one file that could not be stored on one target.
type Failure struct {
	Target string
	File   string
	Err    error
}

// Exporter fans report files out to every target.
type Exporter struct {
	fs      afero.Fs
	targets []Target
	retry   retryConfig
	log     logger.Logger
}

// New creates an exporter from settings. Source files are read from fs.
func New(fs afero.Fs, cfgs []conf.ExportTarget, log logger.Logger) (*Exporter, error) {
	if log == nil {
		log = logger.Global().Module("export")
	}
	targets := make([]Target, 0, len(cfgs))
	for i := range cfgs {
		t, err := NewTarget(cfgs[i], fs, log)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return NewWithTargets(fs, log, targets...), nil
}

// NewWithTargets creates an exporter for already constructed targets.
func NewWithTargets(fs afero.Fs, log logger.Logger, targets ...Target) *Exporter {
	if log == nil {
		log = logger.Global().Module("export")
	}
	return &Exporter{fs: fs, targets: targets, retry: defaultRetryConfig(), log: log}
}

// Len returns the number of targets.
func (e *Exporter) Len() int { return len(e.targets) }

// Export stores every file on every target. A failing target does not stop
// the others; all failures are returned.
func (e *Exporter) Export(ctx context.Context, files []string) []Failure {
	var failures []Failure
	for _, target := range e.targets {
		for _, file := range files {
			err := withRetry(ctx, e.retry, func() error {
				return e.storeFile(ctx, target, file)
			})
			if err != nil {
				e.log.Error("export failed",
					logger.String("target", target.Name()),
					logger.String("file", file),
					logger.Error(err))
				failures = append(failures, Failure{Target: target.Name(), File: file, Err: err})
				continue
			}
			e.log.Info("report exported",
				logger.String("target", target.Name()),
				logger.String("file", file))
		}
	}
	return failures
}

func (e *Exporter) storeFile(ctx context.Context, target Target, file string) error {
	f, err := e.fs.Open(file)
	if err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryFileIO).
			Context("file", file).
			Build()
	}
	defer f.Close()

	if err := target.Store(ctx, filepath.Base(file), f); err != nil {
		return errors.New(err).
			Component("export").
			Category(errors.CategoryExport).
			Context("target", target.Name()).
			Context("file", file).
			Build()
	}
	return nil
}

// transientErrorPatterns mark errors worth retrying.
var transientErrorPatterns = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"timeout",
	"temporary",
	"broken pipe",
	"no route to host",
	"EOF",
	"ssh: handshake failed",
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if os.IsTimeout(err) {
		return true
	}
	msg := err.Error()
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

type retryConfig struct {
	maxRetries int
	backoff    time.Duration
}

func defaultRetryConfig() retryConfig {
	return retryConfig{maxRetries: DefaultMaxRetries, backoff: DefaultRetryBackoff}
}

// withRetry runs op until it succeeds, fails permanently, or retries run out.
// The wait grows linearly with the attempt number.
func withRetry(ctx context.Context, cfg retryConfig, op func() error) error {
	var lastErr error
	for attempt := range cfg.maxRetries {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op()
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.backoff * time.Duration(attempt+1)):
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", cfg.maxRetries, lastErr)
}
