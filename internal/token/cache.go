package token

import (
	"context"
	"sync"
	"time"

	"geminilab/internal/adapters/redis"
	"geminilab/pkg/errors"
)

// CacheKey is the Redis key shared by every relay replica
const CacheKey = "live:ephemeral_token"

// Cache stores the current token. Get returns errors.ErrNotFound when empty.
type Cache interface {
	Get(ctx context.Context) (Token, error)
	Set(ctx context.Context, tok Token, ttl time.Duration) error
}

// MemoryCache keeps the token in process
type MemoryCache struct {
	mu  sync.RWMutex
	tok *Token
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(ctx context.Context) (Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tok == nil {
		return Token{}, errors.ErrNotFound
	}
	return *c.tok, nil
}

// Set ignores ttl; Issuer checks the new-session deadline itself
func (c *MemoryCache) Set(ctx context.Context, tok Token, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tok = &tok
	return nil
}

// RedisCache shares the token across replicas
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context) (Token, error) {
	var tok Token
	if err := c.client.GetJSON(ctx, CacheKey, &tok); err != nil {
		return Token{}, err
	}
	return tok, nil
}

func (c *RedisCache) Set(ctx context.Context, tok Token, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(c.client.SetJSON(ctx, CacheKey, tok, ttl), "cache ephemeral token")
}
