package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/internal/adapters/config"
	"geminilab/pkg/errors"
)

func TestTokenBucketLimiter_Basic(t *testing.T) {
	// 60 req/min = 1 req/sec, burst=2
	limiter := NewTokenBucketLimiter(ModelGemini25Flash, 60, 2)
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))
	require.NoError(t, limiter.Wait(ctx))

	// Third request waits for a refill
	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestTokenBucketLimiter_Allow(t *testing.T) {
	limiter := NewTokenBucketLimiter(ModelGemini25Flash, 60, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
}

func TestTokenBucketLimiter_DefaultBurst(t *testing.T) {
	limiter := NewTokenBucketLimiter("x", 5, 0)
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())

	limiter = NewTokenBucketLimiter("x", 600, 0)
	for i := 0; i < 60; i++ {
		require.True(t, limiter.Allow(), "request %d within burst", i)
	}
}

func TestTokenBucketLimiter_ContextCancellation(t *testing.T) {
	// 6 req/min = 0.1 req/sec
	limiter := NewTokenBucketLimiter(ModelGemini25Pro, 6, 1)
	_ = limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))

	var rle *RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, ModelGemini25Pro, rle.Name)
	assert.InDelta(t, 6.0, rle.Limit, 0.001)
}

func TestNoOpLimiter(t *testing.T) {
	limiter := NewNoOpLimiter()
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, limiter.Wait(ctx))
		require.True(t, limiter.Allow())
	}
	assert.Equal(t, float64(-1), limiter.Limit())
}

func TestRateLimiterFactory_NoRedis(t *testing.T) {
	factory := NewRateLimiterFactory(nil)

	tests := []struct {
		name string
		cfg  config.RateLimitConfig
		want interface{}
	}{
		{"disabled", config.RateLimitConfig{Enabled: false, ReqPerMinute: 100, Burst: 10}, &NoOpLimiter{}},
		{"zero rate", config.RateLimitConfig{Enabled: true, ReqPerMinute: 0, Burst: 10}, &NoOpLimiter{}},
		{"enabled", config.RateLimitConfig{Enabled: true, ReqPerMinute: 100, Burst: 10}, &TokenBucketLimiter{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := factory.Create(ModelGemini25Flash, tt.cfg)
			assert.IsType(t, tt.want, limiter)
		})
	}

	assert.Equal(t, float64(100), factory.Create("m", config.RateLimitConfig{Enabled: true, ReqPerMinute: 100}).Limit())
}
