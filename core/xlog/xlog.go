// Package xlog provides the engine's structured logging.
//
// No example in the retrieved corpus wires a third-party structured
// logger (zap/zerolog/logrus never appear in any example go.mod); log/slog,
// standard since Go 1.21, is the idiomatic choice here and this package is a
// thin wrapper over it, mirroring how core/invariant wraps a small set of
// assertion primitives rather than reimplementing a framework.
package xlog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger is the engine-wide logging handle. It is safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger writing leveled text records to w.
func New(w io.Writer, level slog.Level) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(h)}
}

// Default returns a Logger writing to stderr at Info level.
func Default() *Logger {
	return New(os.Stderr, slog.LevelInfo)
}

// WithComponent returns a child logger tagging every record with component=name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// ctxKey is unexported so only this package can place a Logger in a context.Context.
type ctxKey struct{}

// Into attaches l to ctx for retrieval deep inside the call stack (store
// backends, executors) without threading an explicit parameter everywhere.
func Into(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From retrieves the Logger attached to ctx, or Default() if none was attached.
func From(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
