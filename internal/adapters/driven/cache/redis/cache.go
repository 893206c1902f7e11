// Package redis provides a driven.Cache shared across MedGuard processes.
// Entries are stored under a key prefix with a Redis-side expiry, so
// expired entries vanish without a client-side sweep.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
)

var _ driven.Cache = (*Cache)(nil)

// DefaultPrefix namespaces MedGuard keys in a shared database.
const DefaultPrefix = "medguard:"

const scanBatch = 500

// Cache stores entries in Redis.
type Cache struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// New connects to url (redis://...) and verifies the connection.
func New(ctx context.Context, url string, ttl time.Duration) (*Cache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewWithClient(client, DefaultPrefix, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = domain.DefaultCacheTTL
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached value, or domain.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value with the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.prefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Len counts keys under the prefix. Errors count as empty.
func (c *Cache) Len(ctx context.Context) int {
	n := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if iter.Err() != nil {
		return 0
	}
	return n
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Close closes the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
