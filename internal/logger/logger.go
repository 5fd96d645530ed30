package logger

import (
	"sync"
)

// Log levels used across the gateway.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once

	nopLogger = &Logger{SugaredLogger: newNopSugar()}
)

// Init configures the process-wide logger. Only the first call (of Init or
// Get) decides level and format.
func Init(level, format string) *Logger {
	once.Do(func() {
		globalLogger = newStdoutLogger(level, format)
	})
	return globalLogger
}

// Get returns the process-wide console logger.
func Get(level string) *Logger {
	return Init(level, FormatConsole)
}

// New builds a standalone console logger, independent of the singleton.
func New(level string) *Logger {
	return newStdoutLogger(level, FormatConsole)
}

func Nop() *Logger {
	return nopLogger
}

// OrNop returns l, or the discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return nopLogger
	}
	return l
}
