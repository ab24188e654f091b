package scholar

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outbound lookups by a minimum interval. One instance is
// built at startup and injected into every client that talks to the same
// third-party API.
type RateLimiter struct {
	l *rate.Limiter
}

// NewRateLimiter allows one request per interval. A non-positive interval
// disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return &RateLimiter{l: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{l: rate.NewLimiter(rate.Every(interval), 1)}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.l.Wait(ctx)
}
