package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	// Embed timezone database so the reference timezone loads on hosts
	// without an IANA database.
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance
var (
	globalLogger   Logger
	globalLoggerMu sync.Mutex
)

// SetGlobal sets the global logger instance.
// This should be called once during application startup after loading configuration.
func SetGlobal(l Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = l
}

// Global returns the global logger instance.
// If no logger has been set via SetGlobal, it returns a console logger at info level.
func Global() Logger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger
	}

	cl, err := NewCentralLogger(Config{Level: DefaultLogLevel, Console: true})
	if err != nil {
		// Console-only configuration cannot fail to build, but stay usable regardless.
		fmt.Fprintf(os.Stderr, "logger: falling back to no-op logger: %v\n", err)
		globalLogger = NewDiscardLogger()
		return globalLogger
	}
	globalLogger = cl
	return globalLogger
}

// CentralLogger implements Logger on top of a zap core tree.
type CentralLogger struct {
	zl           *zap.Logger
	traceEnabled bool
	closers      []io.Closer
}

// NewCentralLogger builds a logger from the given configuration. Console output goes to
// stdout; when file output is enabled a rotating JSON file is added as a second core.
func NewCentralLogger(cfg Config) (*CentralLogger, error) {
	applyConfigDefaults(&cfg)

	level, traceEnabled, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		cores   []zapcore.Core
		closers []io.Closer
	)

	if cfg.Console {
		encCfg := newEncoderConfig(cfg.Timezone)
		var enc zapcore.Encoder
		if cfg.JSON {
			enc = zapcore.NewJSONEncoder(encCfg)
		} else {
			encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			enc = zapcore.NewConsoleEncoder(encCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), zap.NewAtomicLevelAt(level)))
	}

	if cfg.File.Enabled {
		core, closer, err := newRotatingFileCore(cfg.File, zapcore.NewJSONEncoder(newEncoderConfig(cfg.Timezone)), level)
		if err != nil {
			return nil, fmt.Errorf("logger: file output %q: %w", cfg.File.Path, err)
		}
		cores = append(cores, core)
		closers = append(closers, closer)
	}

	return &CentralLogger{
		zl:           zap.New(zapcore.NewTee(cores...)),
		traceEnabled: traceEnabled,
		closers:      closers,
	}, nil
}

// newCentralLoggerWithCore wraps an existing core; used by the test helpers.
func newCentralLoggerWithCore(core zapcore.Core, traceEnabled bool) *CentralLogger {
	return &CentralLogger{zl: zap.New(core), traceEnabled: traceEnabled}
}

func newEncoderConfig(tz *time.Location) zapcore.EncoderConfig {
	if tz == nil {
		tz = time.Local
	}
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "module",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.In(tz).Format(time.RFC3339))
		},
	}
}

// parseLevel maps a configured level name to a zap level. Trace has no zap
// equivalent; it enables debug output plus the Trace method.
func parseLevel(level string) (zapcore.Level, bool, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(level))) {
	case LogLevelTrace:
		return zapcore.DebugLevel, true, nil
	case LogLevelDebug:
		return zapcore.DebugLevel, false, nil
	case LogLevelInfo, "":
		return zapcore.InfoLevel, false, nil
	case LogLevelWarn, "warning":
		return zapcore.WarnLevel, false, nil
	case LogLevelError:
		return zapcore.ErrorLevel, false, nil
	default:
		return zapcore.InfoLevel, false, fmt.Errorf("logger: unknown log level %q", level)
	}
}

func toZapFields(fields []Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}

// Module returns a logger scoped to a module. Nested modules are joined with dots.
func (l *CentralLogger) Module(name string) Logger {
	return &CentralLogger{zl: l.zl.Named(name), traceEnabled: l.traceEnabled, closers: l.closers}
}

func (l *CentralLogger) Trace(msg string, fields ...Field) {
	if !l.traceEnabled {
		return
	}
	l.zl.Debug(msg, append(toZapFields(fields), zap.Bool("trace", true))...)
}

func (l *CentralLogger) Debug(msg string, fields ...Field) { l.zl.Debug(msg, toZapFields(fields)...) }
func (l *CentralLogger) Info(msg string, fields ...Field)  { l.zl.Info(msg, toZapFields(fields)...) }
func (l *CentralLogger) Warn(msg string, fields ...Field)  { l.zl.Warn(msg, toZapFields(fields)...) }
func (l *CentralLogger) Error(msg string, fields ...Field) { l.zl.Error(msg, toZapFields(fields)...) }

// With returns a logger that adds fields to every entry.
func (l *CentralLogger) With(fields ...Field) Logger {
	return &CentralLogger{zl: l.zl.With(toZapFields(fields)...), traceEnabled: l.traceEnabled, closers: l.closers}
}

// WithContext attaches the run correlation ID when the context carries one.
func (l *CentralLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		return l.With(String("run_id", runID))
	}
	return l
}

// Log writes an entry at an explicit level.
func (l *CentralLogger) Log(level LogLevel, msg string, fields ...Field) {
	switch level {
	case LogLevelTrace:
		l.Trace(msg, fields...)
	case LogLevelDebug:
		l.Debug(msg, fields...)
	case LogLevelWarn:
		l.Warn(msg, fields...)
	case LogLevelError:
		l.Error(msg, fields...)
	default:
		l.Info(msg, fields...)
	}
}

// Flush syncs all cores. Sync errors from terminals are ignored.
func (l *CentralLogger) Flush() error {
	if err := l.zl.Sync(); err != nil && !isConsoleSyncError(err) {
		return err
	}
	return nil
}

// Close flushes and releases the rotating file writers.
func (l *CentralLogger) Close() error {
	var errs []error
	if err := l.Flush(); err != nil {
		errs = append(errs, err)
	}
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isConsoleSyncError reports errors produced by fsync on stdout/stderr, which
// terminals and pipes reject with EINVAL or ENOTTY.
func isConsoleSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "/dev/stdout") || strings.Contains(msg, "/dev/stderr")
}
