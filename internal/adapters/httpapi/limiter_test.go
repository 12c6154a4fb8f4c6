package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientLimiterAllowsBurstThenDenies(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	limiter := NewClientLimiter(1, 2)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limiter.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, retryAfter := limiter.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Second)

	ok, _ = limiter.Allow("10.0.0.2")
	assert.True(t, ok, "keys are limited independently")

	now = now.Add(time.Second)
	ok, _ = limiter.Allow("10.0.0.1")
	assert.True(t, ok, "token refilled after one second")
}

func TestClientLimiterZeroBurstAlwaysDenies(t *testing.T) {
	t.Parallel()

	limiter := NewClientLimiter(1, 0)
	ok, retryAfter := limiter.Allow("client")
	assert.False(t, ok)
	assert.Equal(t, time.Second, retryAfter)
}

func TestClientLimiterCleanupDropsIdleKeys(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	limiter := NewClientLimiter(1, 1, WithIdleTTL(time.Minute))
	limiter.now = func() time.Time { return now }

	limiter.Allow("old")
	now = now.Add(50 * time.Second)
	limiter.Allow("fresh")
	now = now.Add(20 * time.Second)

	limiter.Cleanup()
	assert.Equal(t, 1, limiter.Len())
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1", retryAfterSeconds(0))
	assert.Equal(t, "1", retryAfterSeconds(300*time.Millisecond))
	assert.Equal(t, "2", retryAfterSeconds(1500*time.Millisecond))
}
