// Package logctx carries the request- or event-scoped logger in a context.
package logctx

import (
	"context"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
)

type key struct{}

func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, key{}, logger)
}

// From returns the scoped logger or nil.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	if l, ok := ctx.Value(key{}).(observability.Logger); ok {
		return l
	}
	return nil
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if l := From(ctx); l != nil {
		return l
	}
	return fallback
}

// Enrich adds fields to the scoped logger, or to fallback when ctx has none,
// and returns both the derived context and logger.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) (context.Context, observability.Logger) {
	l := FromOr(ctx, fallback)
	if l == nil {
		l = observability.NopLogger()
	}
	l = l.With(fields...)
	return With(ctx, l), l
}
