package main

import (
	"io"
	"log"
	"strings"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "debug"
	case LogLevelInfo:
		return "info"
	case LogLevelWarn:
		return "warn"
	case LogLevelError:
		return "error"
	default:
		return "unknown"
	}
}

// parseLogLevel parses a string log level (case-insensitive) into a LogLevel
func parseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger provides leveled logging. It satisfies matter.Logger, so the same
// value is handed to the engine, the registry and the notifiers.
type Logger struct {
	level LogLevel
	out   *log.Logger
}

// NewLogger creates a logger writing to the standard logger's output.
func NewLogger(level string) *Logger {
	return &Logger{level: parseLogLevel(level), out: log.Default()}
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(w io.Writer, level string) *Logger {
	return &Logger{level: parseLogLevel(level), out: log.New(w, "", log.LstdFlags)}
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.level
}

func (l *Logger) logf(level LogLevel, tag, format string, v ...any) {
	if l.shouldLog(level) {
		l.out.Printf(tag+" "+format, v...)
	}
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, v ...any) { l.logf(LogLevelDebug, "[DEBUG]", format, v...) }

// Infof logs an info message
func (l *Logger) Infof(format string, v ...any) { l.logf(LogLevelInfo, "[INFO]", format, v...) }

// Warnf logs a warning message
func (l *Logger) Warnf(format string, v ...any) { l.logf(LogLevelWarn, "[WARN]", format, v...) }

// Errorf logs an error message
func (l *Logger) Errorf(format string, v ...any) { l.logf(LogLevelError, "[ERROR]", format, v...) }

// Fatalf logs an error message and exits
func (l *Logger) Fatalf(format string, v ...any) {
	l.out.Fatalf("[FATAL] "+format, v...)
}
