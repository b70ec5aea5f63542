// SPDX-License-Identifier: MIT

// Package log is a small leveled logger. The level is global and stored
// atomically so it can be changed while the stream is running; component
// loggers only add a prefix.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

var (
	currentLevel atomic.Uint32
	output       = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
	std          = &Logger{}
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel returns the global logging level.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects every logger. Tests use it to capture output.
func SetOutput(w io.Writer) {
	output.SetOutput(w)
}

// Enabled reports whether messages at level are currently written.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// Logger writes leveled messages tagged with a component name.
type Logger struct {
	component string
}

// For returns a Logger whose messages are prefixed with component.
func For(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) write(level LogLevel, msg string) {
	if l.component == "" {
		output.Printf("[%-5s] %s", level, msg)
		return
	}
	output.Printf("[%-5s] %s: %s", level, l.component, msg)
}

func (l *Logger) logf(level LogLevel, format string, v ...any) {
	if Enabled(level) {
		l.write(level, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Debugf(format string, v ...any) { l.logf(LevelDebug, format, v...) }
func (l *Logger) Infof(format string, v ...any)  { l.logf(LevelInfo, format, v...) }
func (l *Logger) Warnf(format string, v ...any)  { l.logf(LevelWarn, format, v...) }
func (l *Logger) Errorf(format string, v ...any) { l.logf(LevelError, format, v...) }

// Fatalf always logs and then exits with status 1.
func (l *Logger) Fatalf(format string, v ...any) {
	l.write(LevelFatal, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Package-level helpers write through the untagged logger.

func Debugf(format string, v ...any) { std.logf(LevelDebug, format, v...) }
func Infof(format string, v ...any)  { std.logf(LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { std.logf(LevelWarn, format, v...) }
func Errorf(format string, v ...any) { std.logf(LevelError, format, v...) }
func Fatalf(format string, v ...any) { std.Fatalf(format, v...) }
