package utils

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger provides leveled logging throughout the application.
// It is safe for concurrent use and cheap to scope with With.
type Logger struct {
	base *log.Logger
}

// NewLogger creates a Logger writing to stderr at the given level.
func NewLogger(level string) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a Logger writing to w. Unknown levels fall back to info.
func NewLoggerTo(w io.Writer, level string) *Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return &Logger{
		base: log.NewWithOptions(w, log.Options{
			Level:           lvl,
			ReportTimestamp: true,
			TimeFormat:      "2006-01-02 15:04:05",
		}),
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewLoggerTo(io.Discard, "error")
}

// With returns a child logger that prefixes every line with keyvals.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{base: l.base.With(keyvals...)}
}

func (l *Logger) Info(format string, args ...any) {
	l.base.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.base.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.base.Errorf(format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.base.Debugf(format, args...)
}
