package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiterSpacesActions(t *testing.T) {
	limiter := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, limiter.Wait(context.Background()))

	start := time.Now()
	require.NoError(t, limiter.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestSimpleRateLimiterJitterWithinBounds(t *testing.T) {
	limiter := NewSimpleRateLimiter(10*time.Millisecond, 50*time.Millisecond)

	for i := 0; i < 20; i++ {
		delay := limiter.calculateDelay()
		assert.GreaterOrEqual(t, delay, 10*time.Millisecond)
		assert.Less(t, delay, 50*time.Millisecond)
	}
}

func TestSimpleRateLimiterSwappedBounds(t *testing.T) {
	limiter := NewSimpleRateLimiter(40*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, 40*time.Millisecond, limiter.calculateDelay())
}

func TestSimpleRateLimiterSetDelay(t *testing.T) {
	limiter := NewSimpleRateLimiter(time.Second, 2*time.Second)
	limiter.SetDelay(5*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, limiter.calculateDelay())
}

func TestSimpleRateLimiterHonorsCancel(t *testing.T) {
	limiter := NewSimpleRateLimiter(time.Minute, time.Minute)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(ctx))
}
