// Package fsfslog threads a zerolog.Logger through a context.Context,
// the way pkg/appctx does for the wider repository.
package fsfslog

import (
	"context"

	"github.com/rs/zerolog"
)

// WithLogger returns a context with an associated logger.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// FromContext returns the logger associated with ctx, or a disabled
// logger if none was stored.
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
