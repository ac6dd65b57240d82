// Package transport provides the rate-limited HTTP client the provider
// adapters share. It applies per-request authentication through the
// Authenticator interface, throttles outbound requests with a token
// bucket, and keeps the provider's reported throttle budget current by
// reading rate-limit headers off every response.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openlistings/mlsync/pkg/constants"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// Client is an authenticated, rate-limited HTTP client bound to one
// provider. It does not retry; retry policy belongs to the sync run
// that owns the request.
type Client struct {
	provider listings.ProviderID
	http     *http.Client
	limiter  *rate.Limiter

	mu        sync.RWMutex
	rateLimit listings.RateLimit
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = timeout
	}
}

// WithRequestsPerMinute caps outbound request rate. Zero or negative
// keeps the default.
func WithRequestsPerMinute(perMinute int) Option {
	return func(c *Client) {
		if perMinute > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), constants.BurstSize)
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// New creates a transport client for the given provider.
func New(provider listings.ProviderID, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		http:     &http.Client{Timeout: constants.DefaultHTTPTimeout},
		limiter: rate.NewLimiter(
			rate.Limit(float64(constants.DefaultRateLimitPerMinute)/60.0),
			constants.BurstSize,
		),
		rateLimit: listings.RateLimit{Remaining: -1},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Do performs an HTTP request with authentication applied. It blocks
// until the local token bucket admits the request and, when the
// provider has reported an exhausted budget, until the reported reset
// time passes.
func (c *Client) Do(ctx context.Context, req *http.Request, auth Authenticator, token string) (*http.Response, error) {
	if err := c.waitForBudget(ctx); err != nil {
		return nil, err
	}

	if auth != nil && token != "" {
		auth.Apply(req, token)
	}

	req.Header.Set("Accept", "application/json")
	if req.Method == http.MethodPost || req.Method == http.MethodPut || req.Method == http.MethodPatch {
		if req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	c.observeRateHeaders(resp.Header)
	return resp, nil
}

// Get performs an authenticated GET request.
func (c *Client) Get(ctx context.Context, url string, auth Authenticator, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "GET "+url, err)
	}
	return c.Do(ctx, req, auth, token)
}

// PostForm performs a form-encoded POST without authentication, used by
// login endpoints that establish the session in the first place.
func (c *Client) PostForm(ctx context.Context, url string, form string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form))
	if err != nil {
		return nil, errors.WrapResource("create", "request", "POST "+url, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Do(ctx, req, nil, "")
}

// PostJSON performs a JSON POST, authenticated when auth and token are
// set.
func (c *Client) PostJSON(ctx context.Context, url string, body io.Reader, auth Authenticator, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, errors.WrapResource("create", "request", "POST "+url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(ctx, req, auth, token)
}

// RateLimit returns the provider's throttle budget as of the most
// recent response.
func (c *Client) RateLimit() listings.RateLimit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rateLimit
}

// waitForBudget blocks on the local token bucket, and on the provider's
// reported reset time when the budget is exhausted.
func (c *Client) waitForBudget(ctx context.Context) error {
	c.mu.RLock()
	limit := c.rateLimit
	c.mu.RUnlock()

	if limit.Exhausted() {
		wait := time.Until(limit.ResetAt)
		if wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		}
		// The window replenished; stop treating the budget as empty.
		c.mu.Lock()
		if c.rateLimit.Exhausted() && !c.rateLimit.ResetAt.After(time.Now()) {
			c.rateLimit = listings.RateLimit{Remaining: -1}
		}
		c.mu.Unlock()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.WrapResource("throttle", "request", string(c.provider), err)
	}
	return nil
}

// observeRateHeaders updates the tracked budget from response headers.
func (c *Client) observeRateHeaders(h http.Header) {
	limit, ok := ParseRateHeaders(h)
	if !ok {
		return
	}
	c.mu.Lock()
	c.rateLimit = limit
	c.mu.Unlock()
}
