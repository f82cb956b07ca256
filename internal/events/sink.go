// Package events defines the one-way notification channel between lifecycle
// flows and whatever front end is attached. The graphical shell consumes these
// through its own transport; headless runs attach a logger-backed sink.
package events

import (
	"go.uber.org/zap"

	"github.com/pyappify/pyappify/internal/logging"
)

// Sink receives per-app log lines and lifecycle notifications. Implementations
// must be safe for concurrent use; calls never block on the caller's flow.
type Sink interface {
	// Info reports a progress or status line for one app.
	Info(app, message string)
	// Update reports a line that replaces the previous Update line, used for
	// transfer progress.
	Update(app, message string)
	// Error reports a failure line for one app.
	Error(app, message string)
	// Finish marks the end of a flow, successful or not.
	Finish(app string, ok bool)
	// Apps publishes a fresh snapshot of all app records.
	Apps(snapshot interface{})
}

// LogSink forwards every event to a zap logger. It is the sink used by
// headless invocations and the default when no shell is attached.
type LogSink struct {
	log *logging.Logger
}

// NewLogSink creates a sink backed by the given logger.
func NewLogSink(log *logging.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Info(app, message string) {
	s.log.Info(message, zap.String("app", app))
}

func (s *LogSink) Update(app, message string) {
	s.log.Debug(message, zap.String("app", app), zap.Bool("update", true))
}

func (s *LogSink) Error(app, message string) {
	s.log.Error(message, zap.String("app", app))
}

func (s *LogSink) Finish(app string, ok bool) {
	if ok {
		s.log.Info("process completed", zap.String("app", app))
		return
	}
	s.log.Warn("process failed", zap.String("app", app))
}

func (s *LogSink) Apps(interface{}) {}

// NopSink discards everything. Used in tests.
type NopSink struct{}

func (NopSink) Info(string, string)    {}
func (NopSink) Update(string, string)  {}
func (NopSink) Error(string, string)   {}
func (NopSink) Finish(string, bool)    {}
func (NopSink) Apps(interface{})       {}
