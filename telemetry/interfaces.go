// Package telemetry declares the narrow logging and metrics interfaces the
// netcode subsystems depend on, keeping them decoupled from any concrete
// logging backend.
package telemetry

import "log"

// Logger exposes the logging capability required by netcode components.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// WrapLogger adapts a standard library logger to the Logger interface.
func WrapLogger(logger *log.Logger) Logger {
	return &loggerAdapter{logger: logger}
}

type loggerAdapter struct {
	logger *log.Logger
}

func (l *loggerAdapter) Printf(format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	l.logger.Printf(format, args...)
}

// Discard returns a Logger that drops everything. Components fall back to it
// when no logger is injected.
func Discard() Logger {
	return LoggerFunc(func(string, ...any) {})
}

// Metrics exposes the counters netcode components record into.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

type metricsNoop struct{}

func (metricsNoop) Add(string, uint64)   {}
func (metricsNoop) Store(string, uint64) {}

// NopMetrics returns a Metrics sink that drops everything.
func NopMetrics() Metrics {
	return metricsNoop{}
}
