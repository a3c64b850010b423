package core

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel represents different log levels
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelFatal:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLogLevel maps "debug", "info", "warn", "error" and "fatal" to a level
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "", "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "fatal":
		return LogLevelFatal, nil
	}
	return LogLevelInfo, NewValidationError("log-level", s, "unknown log level")
}

// Logger embeds zerolog.Logger and keeps the printf-style helpers used
// throughout the server
type Logger struct {
	zerolog.Logger
	level LogLevel
}

// NewLogger creates a logger writing human readable lines to stdout
func NewLogger(level LogLevel) *Logger {
	out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05.000"}
	return NewLoggerWithWriter(out, level)
}

// NewLoggerWithWriter creates a logger writing JSON lines to w
func NewLoggerWithWriter(w io.Writer, level LogLevel) *Logger {
	zl := zerolog.New(w).With().
		Timestamp().
		CallerWithSkipFrameCount(5).
		Logger().
		Level(level.zerolog())
	return &Logger{Logger: zl, level: level}
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.Logger = l.Logger.Level(level.zerolog())
}

// GetLevel returns the minimum log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

func (l *Logger) event(level LogLevel) *zerolog.Event {
	switch level {
	case LogLevelDebug:
		return l.Logger.Debug()
	case LogLevelInfo:
		return l.Logger.Info()
	case LogLevelWarn:
		return l.Logger.Warn()
	case LogLevelError:
		return l.Logger.Error()
	default:
		return l.Logger.Fatal()
	}
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	l.event(level).Msgf(format, args...)
}

// Debugf logs a debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LogLevelDebug, format, args...)
}

// Infof logs an info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LogLevelInfo, format, args...)
}

// Warnf logs a warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(LogLevelWarn, format, args...)
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LogLevelError, format, args...)
}

// Fatalf logs a fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf(LogLevelFatal, format, args...)
}

// Global logger instance
var GlobalLogger = NewLogger(LogLevelInfo)

// Package-level logging functions
func Debug(format string, args ...interface{}) {
	GlobalLogger.Debugf(format, args...)
}

func Info(format string, args ...interface{}) {
	GlobalLogger.Infof(format, args...)
}

func Warn(format string, args ...interface{}) {
	GlobalLogger.Warnf(format, args...)
}

func Error(format string, args ...interface{}) {
	GlobalLogger.Errorf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GlobalLogger.Fatalf(format, args...)
}
