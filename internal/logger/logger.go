// Package logger holds the structured logger shared by every renderer package.
package logger

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// attribute formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger installs l for all renderer packages. By default nothing is
// logged; pass nil to restore the silent logger.
//
// Levels used:
//   - [slog.LevelDebug]: per-frame diagnostics (window sizes, draw counts)
//   - [slog.LevelInfo]: lifecycle events (method loaded, disposed)
//   - [slog.LevelWarn]: degraded output (missing depth, clamped parameters)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// L returns the current logger. Safe for concurrent use.
func L() *slog.Logger {
	return loggerPtr.Load()
}
