package drugdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bivasb/medguard-ai-sub000/internal/adapters/driven/ratelimit"
	"github.com/bivasb/medguard-ai-sub000/internal/core/domain"
	"github.com/bivasb/medguard-ai-sub000/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 4 * time.Second

	// maxBodyBytes caps response bodies.
	maxBodyBytes = 4 << 20

	// breakerTrips is the number of consecutive failures that open a breaker.
	breakerTrips = 5

	// breakerCooldown is how long an open breaker rejects calls.
	breakerCooldown = 30 * time.Second

	userAgent = "medguard/1 (+drug interaction checker)"
)

// errNotFound marks a 404 so callers can substitute an empty payload.
var errNotFound = errors.New("resource not found")

// client performs rate-limited, circuit-broken GET requests against one
// source.
type client struct {
	name    ratelimit.Source
	baseURL string
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newClient(name ratelimit.Source, baseURL string, timeout time.Duration, limiter *ratelimit.Limiter) *client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    string(name),
			Timeout: breakerCooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerTrips
			},
			// A 404 or a cancelled caller says nothing about source health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errNotFound) ||
					errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("drugdata: %s circuit %s -> %s", name, from, to)
			},
		}),
	}
}

// get fetches path with query and returns the JSON body. A 404 yields
// errNotFound; everything else that is not a 2xx JSON body wraps
// domain.ErrProvider.
func (c *client) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s rate limit wait: %v", domain.ErrProvider, c.name, err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, path, query)
	})
	if err != nil {
		if errors.Is(err, errNotFound) || errors.Is(err, domain.ErrProvider) {
			return nil, err
		}
		// Open breaker, cancelled context and the like.
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProvider, c.name, err)
	}
	return out.(json.RawMessage), nil
}

func (c *client) do(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: build request: %v", domain.ErrProvider, c.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrProvider, c.name, err)
	}
	defer resp.Body.Close()

	logger.Debug("drugdata: GET %s%s -> %d (%s)", c.name, path, resp.StatusCode, time.Since(start))

	if c.limiter.RecordRateLimit(resp) {
		logger.Warn("drugdata: %s rate limited, backing off until %s",
			c.limiter.Source(), c.limiter.RetryAt().Format(time.RFC3339))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: read body: %v", domain.ErrProvider, c.name, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s returned status %d", domain.ErrProvider, c.name, resp.StatusCode)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned a non-JSON body", domain.ErrProvider, c.name)
	}
	return json.RawMessage(body), nil
}

// breakerState exposes the breaker state to tests and diagnostics.
func (c *client) breakerState() gobreaker.State {
	return c.breaker.State()
}
