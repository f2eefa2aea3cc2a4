package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates outbound API calls to a configured throughput ceiling.
// It is injected into the API client so throttling behavior can be
// swapped out in tests.
type Limiter interface {
	// Wait blocks until a request slot is available or ctx is done.
	Wait(ctx context.Context) error
}

// TokenBucket is a token-bucket Limiter shared by all callers of one
// API endpoint family.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a limiter allowing rps requests per second with
// the given burst capacity. A non-positive burst is clamped to 1.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait consumes one token, blocking until one is available.
func (b *TokenBucket) Wait(ctx context.Context) error {
	return b.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now without waiting.
func (b *TokenBucket) Allow() bool {
	return b.limiter.Allow()
}

// Unlimited is a Limiter that never blocks. Used in tests.
type Unlimited struct{}

// Wait returns immediately.
func (Unlimited) Wait(ctx context.Context) error {
	return ctx.Err()
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = Unlimited{}
)
