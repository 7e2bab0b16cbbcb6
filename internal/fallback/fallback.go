// Package fallback substitutes defaults for failed backend reads so a page
// can still render. Every substitution is logged and reported as degraded.
package fallback

import (
	"context"
	"fmt"

	"hr-toolkit/internal/logger"
	"hr-toolkit/internal/metrics"
)

// Value runs fn and returns its result. If fn fails or panics, def is
// returned instead and degraded is true.
func Value[T any](ctx context.Context, log *logger.Logger, what string, fn func(context.Context) (T, error), def T) (v T, degraded bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("fallback after panic", "what", what, "panic", fmt.Sprint(r))
			metrics.FallbacksServed.WithLabelValues(what).Inc()
			v, degraded = def, true
		}
	}()

	out, err := fn(ctx)
	if err != nil {
		log.Warn("fallback after error", "what", what, "error", err)
		metrics.FallbacksServed.WithLabelValues(what).Inc()
		return def, true
	}
	return out, false
}

// List is Value with an empty default. The returned slice is never nil.
func List[T any](ctx context.Context, log *logger.Logger, what string, fn func(context.Context) ([]T, error)) ([]T, bool) {
	out, degraded := Value(ctx, log, what, fn, []T{})
	if out == nil {
		out = []T{}
	}
	return out, degraded
}
