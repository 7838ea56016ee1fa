// Package logging is the logging seam of the sync server. Services and the
// HTTP layer log through the Logger interface; the server wires in the slog
// JSON adapter, tests plug in no-op fakes.
package logging

import "context"

// Logger is a context-aware, structured logger. The variadic args are
// key-value pairs:
//
//	log.Info(ctx, "user registered", "user_uuid", u.UUID)
type Logger interface {
	// Debug logs a verbose diagnostic message.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions,
	// like a failed notification mail.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value
	// pairs; components tag themselves with a "module" pair this way.
	With(args ...any) Logger
}
