// Package logging provides a common interface and setup for application-wide
// logging, used across the bsonrpc endpoint: the dispatcher, socket-queue,
// lifecycle, tasking and the public endpoint surface all log through a
// component-scoped Logger.
// file: internal/logging/logger.go
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Level mirrors slog.Level so call sites can name a level without importing
// log/slog directly.
type Level int

const (
	LevelDebug Level = Level(slog.LevelDebug)
	LevelInfo  Level = Level(slog.LevelInfo)
	LevelWarn  Level = Level(slog.LevelWarn)
	LevelError Level = Level(slog.LevelError)
)

// Logger defines the interface for logging within the application.
// This abstraction allows for different logger implementations while
// maintaining consistent logging conventions throughout the codebase.
type Logger interface {
	// Debug logs a debug-level message.
	Debug(msg string, args ...any)

	// Info logs an info-level message.
	Info(msg string, args ...any)

	// Warn logs a warning-level message.
	Warn(msg string, args ...any)

	// Error logs an error-level message.
	Error(msg string, args ...any)

	// WithContext returns a logger with context values.
	WithContext(ctx context.Context) Logger

	// WithField returns a logger with an additional field.
	WithField(key string, value any) Logger
}

// slogLogger implements Logger on top of log/slog.
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

// WithContext returns the logger unchanged; no request-scoped values are
// threaded through context in this module today. Connection identity is
// carried via WithField("connection_id", ...) instead.
func (s *slogLogger) WithContext(_ context.Context) Logger {
	return s
}

func (s *slogLogger) WithField(key string, value any) Logger {
	return &slogLogger{l: s.l.With(key, value)}
}

// NoopLogger implements Logger but does nothing.
// Used as a fallback when no logger is provided.
type NoopLogger struct{}

// Debug implements Logger but performs no action.
func (NoopLogger) Debug(_ string, _ ...any) {}

// Info implements Logger but performs no action.
func (NoopLogger) Info(_ string, _ ...any) {}

// Warn implements Logger but performs no action.
func (NoopLogger) Warn(_ string, _ ...any) {}

// Error implements Logger but performs no action.
func (NoopLogger) Error(_ string, _ ...any) {}

// WithContext implements Logger, returning the NoopLogger itself.
func (l NoopLogger) WithContext(_ context.Context) Logger { return l }

// WithField implements Logger, returning the NoopLogger itself.
func (l NoopLogger) WithField(_ string, _ any) Logger { return l }

// Global singleton instance of NoopLogger.
var noop Logger = NoopLogger{}

// GetNoopLogger returns the no-op logger instance.
func GetNoopLogger() Logger {
	return noop
}

var levelVar slog.LevelVar

// defaultLogger is the application's default logger instance.
var defaultLogger atomic.Value // holds a Logger

func init() {
	defaultLogger.Store(newSlogLogger(os.Stderr))
}

func newSlogLogger(w io.Writer) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: &levelVar})
	return &slogLogger{l: slog.New(handler)}
}

// InitLogging (re)configures the package-wide default logger to emit JSON
// log lines at or above level to w. Call once at process start, or per-test
// to capture output for assertions.
func InitLogging(level Level, w io.Writer) {
	levelVar.Set(slog.Level(level))
	defaultLogger.Store(newSlogLogger(w))
}

// SetLevel adjusts the minimum level the default logger emits, leaving its
// output destination untouched.
func SetLevel(level Level) {
	levelVar.Set(slog.Level(level))
}

// IsDebugEnabled reports whether the default logger currently emits debug
// records, so callers can skip building expensive debug payloads.
func IsDebugEnabled() bool {
	return levelVar.Level() <= slog.LevelDebug
}

// SetDefaultLogger sets the default logger for the application.
func SetDefaultLogger(logger Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// GetLogger returns a logger, used by packages to get their own logger.
func GetLogger(name string) Logger {
	return defaultLogger.Load().(Logger).WithField("component", name)
}
