package ai

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"geminilab/pkg/errors"
)

// RedisRateLimiter implements distributed token bucket rate limiting via Redis.
// Processes sharing a Redis share one bucket per key.
type RedisRateLimiter struct {
	client      *redis.Client
	name        string
	rate        float64 // Requests per second
	burst       int     // Maximum burst size
	key         string  // Redis key
	tokenScript *redis.Script
}

// Lua script for token bucket algorithm (atomic operation)
// KEYS[1] = token bucket key
// ARGV[1] = rate (tokens per second)
// ARGV[2] = burst (max tokens)
// ARGV[3] = current timestamp
// Returns: 1 if allowed, 0 if denied
const luaTokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])

if not tokens then
    tokens = burst
    last_update = now
end

local elapsed = now - last_update
tokens = math.min(burst, tokens + elapsed * rate)

local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, 3600)

return allowed
`

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client *redis.Client, name string, reqPerMinute float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:      client,
		name:        name,
		rate:        reqPerMinute / 60.0,
		burst:       defaultBurst(reqPerMinute, burst),
		key:         "rate_limit:gemini:" + name,
		tokenScript: redis.NewScript(luaTokenBucketScript),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter error for %s", l.name)
		}
		if allowed {
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

// Allow checks if a request can proceed without blocking.
// Redis failures deny the request.
func (l *RedisRateLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	allowed, err := l.tryAcquire(ctx)
	if err != nil {
		return false
	}
	return allowed
}

// Limit returns the current rate limit in requests per minute.
func (l *RedisRateLimiter) Limit() float64 {
	return l.rate * 60.0
}

func (l *RedisRateLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := l.tokenScript.Run(ctx, l.client, []string{l.key}, l.rate, l.burst, now).Int()
	if err != nil {
		return false, errors.Wrap(err, "failed to execute token bucket script")
	}

	return result == 1, nil
}

// Reset clears the rate limiter state.
func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

// GetStats returns current bucket state for monitoring.
func (l *RedisRateLimiter) GetStats(ctx context.Context) (tokens float64, lastUpdate time.Time, err error) {
	data, err := l.client.HMGet(ctx, l.key, "tokens", "last_update").Result()
	if err != nil {
		return 0, time.Time{}, errors.Wrap(err, "failed to get rate limiter stats")
	}

	tokens = float64(l.burst)
	if s, ok := data[0].(string); ok {
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			tokens = v
		}
	}

	lastUpdate = time.Now()
	if s, ok := data[1].(string); ok {
		if v, perr := strconv.ParseFloat(s, 64); perr == nil {
			lastUpdate = time.Unix(0, int64(v*float64(time.Second)))
		}
	}

	return tokens, lastUpdate, nil
}
