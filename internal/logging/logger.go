// Package logging is the structured logger used by tessplot. Packages depend
// on the Logger interface; SlogLogger is the only implementation.
package logging

import "context"

// Logger logs with key/value attributes. Every method takes the context of
// the operation being logged.
//
//	log.Info(ctx, "sector loaded", "sector", 3, "samples", 18000)
type Logger interface {
	// Debug is for per-sector detail hidden at the default level.
	Debug(ctx context.Context, msg string, args ...any)

	Info(ctx context.Context, msg string, args ...any)

	// Warn reports a condition the pipeline recovers from, such as a target
	// with no usable sector.
	Warn(ctx context.Context, msg string, args ...any)

	Error(ctx context.Context, msg string, args ...any)

	// With returns a logger that adds args to every record, e.g. the run id
	// and target of one plot call.
	With(args ...any) Logger
}
