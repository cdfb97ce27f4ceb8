package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter_BurstThenDeny(t *testing.T) {
	l := NewMemoryRateLimiter()
	limit := Limit{Rate: 1, Period: time.Minute, Burst: 3}

	for i := range 3 {
		res, err := l.Allow(context.Background(), "k", limit)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
	}

	res, err := l.Allow(context.Background(), "k", limit)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Minute)
}

func TestMemoryRateLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryRateLimiter()
	limit := Limit{Rate: 1, Period: time.Hour, Burst: 1}

	a, err := l.Allow(context.Background(), "a", limit)
	require.NoError(t, err)
	b, err := l.Allow(context.Background(), "b", limit)
	require.NoError(t, err)

	assert.True(t, a.Allowed)
	assert.True(t, b.Allowed)
}

func TestMemoryRateLimiter_DeniedRequestDoesNotConsume(t *testing.T) {
	l := NewMemoryRateLimiter()
	limit := Limit{Rate: 1, Period: time.Hour, Burst: 1}

	first, _ := l.Allow(context.Background(), "k", limit)
	second, _ := l.Allow(context.Background(), "k", limit)
	third, _ := l.Allow(context.Background(), "k", limit)

	assert.True(t, first.Allowed)
	assert.False(t, second.Allowed)
	assert.False(t, third.Allowed)
	assert.InDelta(t, second.RetryAfter.Seconds(), third.RetryAfter.Seconds(), 1)
}

func TestMemoryRateLimiter_InvalidLimit(t *testing.T) {
	_, err := NewMemoryRateLimiter().Allow(context.Background(), "k", Limit{})
	assert.Error(t, err)
}

func TestPerSecond(t *testing.T) {
	assert.Equal(t, Limit{Rate: 5, Period: time.Second, Burst: 10}, PerSecond(5, 10))
}
