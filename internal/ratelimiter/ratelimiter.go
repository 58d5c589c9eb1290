// Package ratelimiter provides the admission controls for the finger
// server: a global token-bucket limiter protecting the process as a
// whole, and a per-client sliding-window limiter enforcing the
// N-requests-per-trailing-window policy.
package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a global sustained request rate using the token
// bucket algorithm from golang.org/x/time/rate.
//
// Tokens are added at a constant rate and each request consumes one;
// burst capacity allows temporary spikes above the sustained rate.
//
// Thread safety: all methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained with
// the given burst capacity.
//
// requestsPerSecond = 0 disables limiting (an effectively unlimited
// bucket is used, since rate.Inf has awkward edge cases with Wait).
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = 1_000_000_000
		burst = requestsPerSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow reports whether a request may proceed right now, consuming a
// token if so. This is the fast path: it never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Tokens returns the current number of available tokens. Primarily
// useful for monitoring; the value may change immediately after the
// call.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
