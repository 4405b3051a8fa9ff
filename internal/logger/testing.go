// testing.go
package logger

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewTestLogger returns a logger writing console-encoded entries at debug level
// to w. Tests use it to assert on log output.
func NewTestLogger(w io.Writer) *CentralLogger {
	encCfg := newEncoderConfig(nil)
	encCfg.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zap.NewAtomicLevelAt(zapcore.DebugLevel))
	return newCentralLoggerWithCore(core, true)
}

// NewDiscardLogger returns a logger that drops everything.
func NewDiscardLogger() *CentralLogger {
	return newCentralLoggerWithCore(zapcore.NewNopCore(), false)
}
