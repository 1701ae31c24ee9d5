package gitops

import (
	"context"

	"golang.org/x/time/rate"
)

// limiter wraps rate.Limiter to pace subprocess dispatch under the
// bounded materializer pool, so a burst of repos doesn't fork dozens
// of git processes in the same instant.
type limiter struct {
	inner *rate.Limiter
}

// newLimiter creates a token bucket limiter: r tokens/second, burst b.
func newLimiter(r float64, b int) *limiter {
	return &limiter{inner: rate.NewLimiter(rate.Limit(r), b)}
}

func (l *limiter) wait(ctx context.Context) error {
	if l == nil || l.inner == nil {
		return nil
	}
	return l.inner.Wait(ctx)
}
