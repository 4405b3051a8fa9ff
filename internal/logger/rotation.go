// rotation.go
package logger

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// newRotatingFileCore creates a zapcore.Core that writes to a rotating file
func newRotatingFileCore(out FileOutput, encoder zapcore.Encoder, level zapcore.Level) (zapcore.Core, io.Closer, error) {
	dir := filepath.Dir(out.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}

	lj := &lumberjack.Logger{
		Filename:   out.Path,
		MaxSize:    out.MaxSize,
		MaxBackups: out.MaxBackups,
		MaxAge:     out.MaxAge,
		Compress:   out.Compress,
	}

	return zapcore.NewCore(encoder, zapcore.AddSync(lj), zap.NewAtomicLevelAt(level)), lj, nil
}
