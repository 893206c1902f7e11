// Package memory provides an in-process driven.Cache backed by
// hashicorp/golang-lru with per-entry TTL.
package memory

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/core/ports/driven"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

var _ driven.Cache = (*Cache)(nil)

// Defaults mirror domain.DefaultAppSettings.
const (
	defaultTTL       = domain.DefaultCacheTTL
	defaultHighWater = domain.DefaultCacheHighWater
	capacityPerMark  = 4
)

// Options configures a Cache.
type Options struct {
	// TTL is the entry lifetime.
	TTL time.Duration

	// HighWater is the entry count above which Set sweeps expired entries.
	HighWater int

	// SweepInterval runs a background sweep when positive.
	SweepInterval time.Duration

	// MaxEntries caps the LRU; least recently used entries are evicted
	// beyond it. Defaults to four times HighWater.
	MaxEntries int

	// Now overrides the clock in tests.
	Now func() time.Time
}

type entry struct {
	value    []byte
	storedAt time.Time
}

// Cache is a TTL-bounded LRU cache.
type Cache struct {
	lru       *lru.Cache[string, entry]
	ttl       time.Duration
	highWater int
	now       func() time.Time

	stop     chan struct{}
	done     chan struct{}
	closeOne sync.Once
}

// New creates a cache and starts the background sweeper when
// opts.SweepInterval is positive.
func New(opts Options) (*Cache, error) {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.HighWater <= 0 {
		opts.HighWater = defaultHighWater
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = opts.HighWater * capacityPerMark
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l, err := lru.New[string, entry](opts.MaxEntries)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		lru:       l,
		ttl:       opts.TTL,
		highWater: opts.HighWater,
		now:       opts.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go c.sweepLoop(opts.SweepInterval)
	} else {
		close(c.done)
	}
	return c, nil
}

// Get returns the cached value, or domain.ErrCacheMiss when absent or expired.
func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	if c.expired(e) {
		c.lru.Remove(key)
		return nil, domain.ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value. Exceeding the high-water mark triggers a sweep.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	c.lru.Add(key, entry{value: v, storedAt: c.now()})

	if c.lru.Len() > c.highWater {
		if n := c.Sweep(ctx); n > 0 {
			logger.Debug("cache: high-water sweep evicted %d entries", n)
		}
	}
	return nil
}

// Delete removes a key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len(_ context.Context) int {
	return c.lru.Len()
}

// Sweep evicts expired entries.
func (c *Cache) Sweep(_ context.Context) int {
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && c.expired(e) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// TTL returns the entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Close stops the background sweeper. It is safe to call more than once.
func (c *Cache) Close() error {
	c.closeOne.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

func (c *Cache) sweepLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.Sweep(context.Background()); n > 0 {
				logger.Debug("cache: periodic sweep evicted %d entries", n)
			}
		}
	}
}
