// Package ratelimit provides per-source token-bucket limiters for the
// external drug data providers. Saturation delays the caller; Wait only
// fails when the caller's context ends first.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
)

// Source identifies an external data source for rate limiting purposes.
type Source string

const (
	// SourceRxNorm is the RxNorm (RxNav) REST API.
	SourceRxNorm Source = "rxnorm"
	// SourceOpenFDA is the OpenFDA API.
	SourceOpenFDA Source = "openfda"
)

// defaultBackoff applies when a 429 carries no usable Retry-After.
const defaultBackoff = 30 * time.Second

// Config holds rate limiting configuration for a source.
type Config struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// ConfigFor derives a source's limits from settings.
func ConfigFor(source Source, s domain.RateLimitSettings) Config {
	cfg := Config{BurstSize: s.Burst}
	switch source {
	case SourceRxNorm:
		cfg.RequestsPerSecond = s.RxNormRPS
	case SourceOpenFDA:
		cfg.RequestsPerSecond = s.OpenFDARPS
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}
	return cfg
}

// Limiter is a token bucket with a backoff window set by 429 responses.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	source  Source
}

// New creates a limiter for source.
func New(source Source, cfg Config) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		source:  source,
	}
}

// Source returns the limited source.
func (l *Limiter) Source() Source {
	return l.source
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also respects any backoff period set by RecordRateLimit.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// RecordRateLimit sets a backoff window from a 429 response's Retry-After
// header (seconds) and reports whether it did. Other responses are ignored.
func (l *Limiter) RecordRateLimit(resp *http.Response) bool {
	if resp == nil || resp.StatusCode != http.StatusTooManyRequests {
		return false
	}

	backoff := defaultBackoff
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			backoff = time.Duration(secs) * time.Second
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.retryAt = time.Now().Add(backoff)
	return true
}

// RetryAt returns the end of the current backoff window.
func (l *Limiter) RetryAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retryAt
}
