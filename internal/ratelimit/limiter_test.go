package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appproft-buybox-sync/internal/ratelimit"
)

func TestTokenBucket_BurstThenThrottle(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(10, 2)

	// The burst is free.
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	// The next request needs a refill.
	assert.False(t, tb.Allow())
}

func TestTokenBucket_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	tb := ratelimit.NewTokenBucket(0.001, 1)
	require.NoError(t, tb.Wait(context.Background())) // consumes the burst

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.Error(t, err, "a wait longer than the deadline must fail fast")
}

func TestUnlimited(t *testing.T) {
	t.Parallel()

	var l ratelimit.Limiter = ratelimit.Unlimited{}
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background()))
	}
}
