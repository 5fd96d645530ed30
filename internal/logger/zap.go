package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap's SugaredLogger. Call sites log snake_case events with
// key/value pairs: log.Infow("device_connected", "device_id", id).
type Logger struct {
	*zap.SugaredLogger
}

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// toZapLevel maps a level name to zap; unknown names log everything.
func toZapLevel(levelStr string) zapcore.Level {
	switch levelStr {
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.DebugLevel
	}
}

func encoderFor(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	if format == FormatJSON {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func newCore(level zapcore.Level, format string, w io.Writer) zapcore.Core {
	return zapcore.NewCore(encoderFor(format), zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(level))
}

func newZapLogger(levelStr, format string, w io.Writer) *Logger {
	core := newCore(toZapLevel(levelStr), format, w)
	return &Logger{
		SugaredLogger: zap.New(core, zap.AddCaller()).Sugar(),
	}
}

func newStdoutLogger(levelStr, format string) *Logger {
	return newZapLogger(levelStr, format, os.Stdout)
}

func newNopSugar() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
