// Package logging provides structured logging for the miner.
//
// Call sites pass a message plus a flat field map; the logger renders them
// through log/slog so output format (human text vs JSON) and level are a
// configuration concern, not a call-site one.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Level represents the severity of a log message.
type Level string

const (
	// DebugLevel for debug messages.
	DebugLevel Level = "debug"
	// InfoLevel for informational messages.
	InfoLevel Level = "info"
	// WarnLevel for warning messages.
	WarnLevel Level = "warn"
	// ErrorLevel for error messages.
	ErrorLevel Level = "error"
)

// Format represents the output format for logs.
type Format string

const (
	// JSONFormat outputs logs as JSON, one object per line.
	JSONFormat Format = "json"
	// HumanFormat outputs logs in human-readable key=value form.
	HumanFormat Format = "human"
)

// Config holds logger configuration.
type Config struct {
	Format Format
	Level  Level
	Output io.Writer // optional, defaults to stderr
}

// Logger provides structured logging backed by slog.
type Logger struct {
	internal *slog.Logger
	level    *slog.LevelVar
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}

	lvl := new(slog.LevelVar)
	lvl.Set(parseLevel(config.Level))

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if config.Format == JSONFormat {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return &Logger{
		internal: slog.New(handler),
		level:    lvl,
	}
}

// NewNop returns a logger that discards everything. Useful in tests.
func NewNop() *Logger {
	return NewLogger(Config{Level: ErrorLevel, Output: io.Discard})
}

// With returns a child logger carrying the given fields on every message.
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return &Logger{
		internal: l.internal.With(attrs(fields)...),
		level:    l.level,
	}
}

// SetLevel changes the minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(parseLevel(level))
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.internal.Debug(message, attrs(fields)...)
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.internal.Info(message, attrs(fields)...)
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.internal.Warn(message, attrs(fields)...)
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.internal.Error(message, attrs(fields)...)
}

// attrs flattens a field map into slog args, key-sorted so output is stable.
func attrs(fields map[string]interface{}) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]any, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}

func parseLevel(level Level) slog.Level {
	switch Level(strings.ToLower(string(level))) {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case InfoLevel:
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
