package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"geminilab/internal/adapters/config"
	"geminilab/pkg/errors"
)

// RateLimiter defines the interface for rate limiting Gemini requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns current rate limit (requests per minute).
	Limit() float64
}

// TokenBucketLimiter implements token bucket rate limiting algorithm.
// Safe for concurrent use.
type TokenBucketLimiter struct {
	rate       float64    // Requests per second
	burst      int        // Maximum burst size
	tokens     float64    // Current available tokens
	lastUpdate time.Time  // Last token refill time
	mu         sync.Mutex // Protects tokens and lastUpdate
	name       string     // Limiter key for logging
}

// NewTokenBucketLimiter creates a new token bucket rate limiter.
// reqPerMinute: maximum requests per minute (60 for the Gemini free tier)
// burst: maximum burst size (defaults to 10% of rate)
func NewTokenBucketLimiter(name string, reqPerMinute float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		rate:       reqPerMinute / 60.0,
		burst:      defaultBurst(reqPerMinute, burst),
		tokens:     float64(defaultBurst(reqPerMinute, burst)), // Start with full bucket
		lastUpdate: time.Now(),
		name:       name,
	}
}

func defaultBurst(reqPerMinute float64, burst int) int {
	if burst > 0 {
		return burst
	}
	burst = int(reqPerMinute / 10)
	if burst < 1 {
		burst = 1
	}
	return burst
}

// Wait blocks until a token is available or context is cancelled.
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		waitTime := time.Duration(float64(time.Second) / l.rate)

		select {
		case <-ctx.Done():
			return &RateLimitError{
				Name:  l.name,
				Limit: l.Limit(),
				Err:   errors.Wrap(ctx.Err(), "rate limiter wait cancelled"),
			}
		case <-time.After(waitTime):
		}
	}
}

// Allow checks if a request can proceed and consumes a token if available.
func (l *TokenBucketLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastUpdate = now

	if l.tokens >= 1.0 {
		l.tokens -= 1.0
		return true
	}

	return false
}

// Limit returns the current rate limit in requests per minute.
func (l *TokenBucketLimiter) Limit() float64 {
	return l.rate * 60.0
}

// NoOpLimiter is a rate limiter that never blocks (for testing or disabled rate limiting).
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op rate limiter.
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

// Wait always returns immediately without error.
func (l *NoOpLimiter) Wait(ctx context.Context) error {
	return nil
}

// Allow always returns true.
func (l *NoOpLimiter) Allow() bool {
	return true
}

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 {
	return -1
}

// RateLimiterFactory creates rate limiters with optional Redis support.
type RateLimiterFactory struct {
	redisClient *redis.Client
}

// NewRateLimiterFactory creates a factory for rate limiters.
// If redisClient is nil, local in-memory limiters are used (single process).
// If redisClient is provided, limits are shared by every process using the same Redis.
func NewRateLimiterFactory(redisClient *redis.Client) *RateLimiterFactory {
	return &RateLimiterFactory{redisClient: redisClient}
}

// Create creates a rate limiter under the given key (usually the model name).
func (f *RateLimiterFactory) Create(name string, cfg config.RateLimitConfig) RateLimiter {
	if !cfg.Enabled || cfg.ReqPerMinute <= 0 {
		return NewNoOpLimiter()
	}

	if f.redisClient != nil {
		return NewRedisRateLimiter(f.redisClient, name, cfg.ReqPerMinute, cfg.Burst)
	}

	return NewTokenBucketLimiter(name, cfg.ReqPerMinute, cfg.Burst)
}

// RateLimitError wraps rate limit related errors with the limiter key.
// It matches errors.ErrRateLimitExceeded.
type RateLimitError struct {
	Name  string
	Limit float64
	Err   error
}

// Error implements error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for %s (limit: %.0f req/min): %v", e.Name, e.Limit, e.Err)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Is reports a match against errors.ErrRateLimitExceeded.
func (e *RateLimitError) Is(target error) bool {
	return target == errors.ErrRateLimitExceeded
}
