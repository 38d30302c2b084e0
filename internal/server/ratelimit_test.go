package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Check("client-a", 0))
	}
}

func TestRateLimiterBlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 2})

	require.NoError(t, rl.Check("client-a", 0))
	require.NoError(t, rl.Check("client-a", 0))

	err := rl.Check("client-a", 0)
	require.Error(t, err)

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "requests_per_minute", rle.Type)
	assert.Equal(t, 2, rle.Limit)
	assert.Positive(t, rle.RetryAfter)
}

func TestRateLimiterSeparateClients(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1})

	require.NoError(t, rl.Check("client-a", 0))
	require.NoError(t, rl.Check("client-b", 0))
	assert.Error(t, rl.Check("client-a", 0))
	assert.Equal(t, 2, rl.Stats())
}

func TestRateLimiterDataQuota(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{MaxDataPerDay: 1000})

	require.NoError(t, rl.Check("client-a", 600))

	err := rl.Check("client-a", 600)
	require.Error(t, err)

	var qe *QuotaExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, "max_data_per_day", qe.Type)
	assert.Equal(t, int64(600), qe.Used)
}

func TestRateLimiterZeroLimitsDisable(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})

	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Check("client-a", 1<<20))
	}
}
