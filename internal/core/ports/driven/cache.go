package driven

import (
	"context"
	"time"
)

// Cache is the shared key/value store for lookup results.
// Entries expire after the implementation's TTL.
type Cache interface {
	// Get returns the cached value, or domain.ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, stamping it with the current time.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Len returns the number of stored entries (expired ones included
	// until the next sweep).
	Len(ctx context.Context) int

	// TTL returns the entry lifetime.
	TTL() time.Duration

	// Close releases resources and stops background sweeping.
	Close() error
}
