// Package ridx implements the adapter for legacy RIDX-protocol MLS
// providers. RIDX systems authenticate with a form-encoded login that
// sets a short-lived session cookie, and expose one flat search
// endpoint with L_-prefixed record fields.
package ridx

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/openlistings/mlsync/internal/adapters"
	"github.com/openlistings/mlsync/internal/transport"
	"github.com/openlistings/mlsync/pkg/constants"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/logging"
)

const (
	loginPath  = "/login"
	searchPath = "/search"

	// sessionCookie is the cookie RIDX servers set on login and expect
	// back on every search request.
	sessionCookie = "RIDX-Session"
)

func init() {
	adapters.RegisterFamily(listings.FamilyRIDX, New)
}

// Client is one RIDX provider connection.
type Client struct {
	cfg   listings.ProviderConfig
	creds listings.Credentials
	http  *transport.Client
	auth  *transport.CookieAuth

	mu      sync.Mutex
	session string
	expires time.Time
}

var _ adapters.Adapter = (*Client)(nil)

// New builds a RIDX adapter from provider configuration.
func New(cfg listings.ProviderConfig) (adapters.Adapter, error) {
	creds := cfg.Credentials.Resolve()
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.NewAuthenticationError(string(cfg.ID), "session",
			"username and password are required", errors.ErrCredentialsRequired)
	}

	return &Client{
		cfg:   cfg,
		creds: creds,
		http: transport.New(cfg.ID,
			transport.WithRequestsPerMinute(cfg.RateLimitPerMinute),
		),
		auth: &transport.CookieAuth{Name: sessionCookie},
	}, nil
}

// Provider returns the configuration the adapter was built with.
func (c *Client) Provider() listings.ProviderConfig {
	return c.cfg
}

// RateLimit returns the provider's throttle budget as of the most
// recent response.
func (c *Client) RateLimit() listings.RateLimit {
	return c.http.RateLimit()
}

// Authenticate logs in and caches the session cookie. The cached
// session is reused until shortly before it expires; RIDX servers
// drop sessions after roughly thirty minutes.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != "" && time.Now().Before(c.expires.Add(-constants.TokenRefreshSlack)) {
		return nil
	}

	form := url.Values{}
	form.Set("username", c.creds.Username)
	form.Set("password", c.creds.Password)

	resp, err := c.http.PostForm(ctx, c.cfg.BaseURL+loginPath, form.Encode())
	if err != nil {
		return err
	}
	if err := transport.DecodeResponse(c.cfg.ID, resp, nil); err != nil {
		c.session = ""
		return errors.NewAuthenticationError(string(c.cfg.ID), "session", "login rejected", err)
	}

	for _, ck := range resp.Cookies() {
		if ck.Name != sessionCookie || ck.Value == "" {
			continue
		}
		c.session = ck.Value
		c.expires = time.Now().Add(sessionLifetime(ck))
		logging.FromContext(ctx).Debug().
			Str("provider_id", string(c.cfg.ID)).
			Time("expires", c.expires).
			Msg("session established")
		return nil
	}

	return errors.NewAuthenticationError(string(c.cfg.ID), "session",
		"login response did not set a session cookie", errors.ErrCredentialsInvalid)
}

// sessionLifetime reads the lifetime the server granted, falling back
// to the conventional RIDX session length when the cookie carries none.
func sessionLifetime(ck *http.Cookie) time.Duration {
	if ck.MaxAge > 0 {
		return time.Duration(ck.MaxAge) * time.Second
	}
	if !ck.Expires.IsZero() {
		if d := time.Until(ck.Expires); d > 0 {
			return d
		}
	}
	return constants.SessionTokenLifetime
}

// FetchPage retrieves one page from the search endpoint and transforms
// the flat records. Malformed records are reported in Page.Issues.
func (c *Client) FetchPage(ctx context.Context, req adapters.PageRequest) (adapters.Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(req.Number))
	query.Set("limit", strconv.Itoa(req.Size))
	if req.ModifiedSince != nil {
		query.Set("modified_since", req.ModifiedSince.UTC().Format(time.RFC3339))
	}

	var env searchEnvelope
	if err := c.getJSON(ctx, c.cfg.BaseURL+searchPath+"?"+query.Encode(), &env); err != nil {
		return adapters.Page{}, err
	}

	page := adapters.Page{Number: req.Number, Total: env.TotalCount}
	for _, raw := range env.Listings {
		record, err := decodeListing(c.cfg.ID, raw)
		if err != nil {
			page.Issues = append(page.Issues, err)
			continue
		}
		page.Records = append(page.Records, record)
	}

	if env.TotalCount > 0 {
		page.HasMore = req.Number*req.Size < env.TotalCount
	} else {
		page.HasMore = req.Size > 0 && len(env.Listings) == req.Size
	}
	return page, nil
}

// PropertyByID fetches a single listing through the search endpoint,
// which is how RIDX systems expose record lookup.
func (c *Client) PropertyByID(ctx context.Context, mlsID string) (listings.Property, error) {
	query := url.Values{}
	query.Set("listing_id", mlsID)

	var env searchEnvelope
	if err := c.getJSON(ctx, c.cfg.BaseURL+searchPath+"?"+query.Encode(), &env); err != nil {
		return listings.Property{}, err
	}
	if len(env.Listings) == 0 {
		return listings.Property{}, errors.NewNotFoundError("listing", mlsID)
	}
	return decodeListing(c.cfg.ID, env.Listings[0])
}

// getJSON performs an authenticated GET, re-establishing the session
// once if the provider rejects the current cookie mid-run. A second
// rejection is a genuine credential problem and is returned as-is.
func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	if err := c.Authenticate(ctx); err != nil {
		return err
	}

	err := c.fetch(ctx, url, target)
	if err == nil || !errors.IsAuthError(err) {
		return err
	}

	c.invalidate()
	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	return c.fetch(ctx, url, target)
}

func (c *Client) fetch(ctx context.Context, url string, target any) error {
	resp, err := c.http.Get(ctx, url, c.auth, c.token())
	if err != nil {
		return err
	}
	return transport.DecodeResponse(c.cfg.ID, resp, target)
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// invalidate drops the cached session after the provider rejects it.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.session = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}
