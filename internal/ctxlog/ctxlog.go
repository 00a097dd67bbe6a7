// Package ctxlog provides a context key for safely passing a slog.Logger
// instance through context.Context. The scheduler core never constructs its
// own logger; it only ever reads one out of a context it was handed (the one
// supplied to Loop.Run, or the one passed to RunningToken.Run), falling back
// to slog.Default().
package ctxlog

import (
	"context"
	"io"
	"log/slog"
)

// key is an unexported type to prevent collisions with context keys from other packages.
type key struct{}

// loggerKey is the key for the slog.Logger in a context.Context.
var loggerKey = key{}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the slog.Logger from a context. If no logger was
// attached with WithLogger, it falls back to slog.Default() rather than
// panicking — scheduler internals call this on hot dispatch paths and must
// never crash a worker goroutine for lack of a configured logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// Discard returns a context carrying a logger that drops everything, handy
// for tests that don't want scheduling noise on stdout.
func Discard() context.Context {
	return WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}
