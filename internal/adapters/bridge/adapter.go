// Package bridge implements the adapter for Bridge-style aggregator
// APIs: a JSON login endpoint that issues an X-Access-Token, and
// nested camelCase listing payloads under /api/v2.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
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
	loginPath    = "/auth/login"
	listingsPath = "/api/v2/listings"

	// tokenHeader is where Bridge servers expect the issued token.
	tokenHeader = "X-Access-Token"
)

func init() {
	adapters.RegisterFamily(listings.FamilyBridge, New)
}

// Client is one Bridge provider connection.
type Client struct {
	cfg   listings.ProviderConfig
	creds listings.Credentials
	http  *transport.Client
	auth  *transport.HeaderAuth

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ adapters.Adapter = (*Client)(nil)

// New builds a Bridge adapter from provider configuration.
func New(cfg listings.ProviderConfig) (adapters.Adapter, error) {
	creds := cfg.Credentials.Resolve()
	if creds.Username == "" || creds.Password == "" {
		return nil, errors.NewAuthenticationError(string(cfg.ID), "token",
			"username and password are required", errors.ErrCredentialsRequired)
	}

	return &Client{
		cfg:   cfg,
		creds: creds,
		http: transport.New(cfg.ID,
			transport.WithRequestsPerMinute(cfg.RateLimitPerMinute),
		),
		auth: &transport.HeaderAuth{Header: tokenHeader},
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

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	ClientID string `json:"clientId,omitempty"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// Authenticate posts credentials to the login endpoint and caches the
// issued token for its reported lifetime.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires.Add(-constants.TokenRefreshSlack)) {
		return nil
	}

	body, err := json.Marshal(loginRequest{
		Username: c.creds.Username,
		Password: c.creds.Password,
		ClientID: c.creds.ClientID,
	})
	if err != nil {
		return errors.WrapParse("json", loginPath, err)
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.BaseURL+loginPath, bytes.NewReader(body), nil, "")
	if err != nil {
		return err
	}

	var login loginResponse
	if err := transport.DecodeResponse(c.cfg.ID, resp, &login); err != nil {
		c.token = ""
		return errors.NewAuthenticationError(string(c.cfg.ID), "token", "login rejected", err)
	}
	if login.Token == "" {
		return errors.NewAuthenticationError(string(c.cfg.ID), "token",
			"login response missing token", errors.ErrCredentialsInvalid)
	}

	lifetime := constants.SessionTokenLifetime
	if login.ExpiresIn > 0 {
		lifetime = time.Duration(login.ExpiresIn) * time.Second
	}
	c.token = login.Token
	c.expires = time.Now().Add(lifetime)

	logging.FromContext(ctx).Debug().
		Str("provider_id", string(c.cfg.ID)).
		Time("expires", c.expires).
		Msg("access token issued")
	return nil
}

// FetchPage retrieves one page of listings and transforms the nested
// records. Malformed records are reported in Page.Issues.
func (c *Client) FetchPage(ctx context.Context, req adapters.PageRequest) (adapters.Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(req.Number))
	query.Set("pageSize", strconv.Itoa(req.Size))
	if req.ModifiedSince != nil {
		query.Set("updatedAfter", req.ModifiedSince.UTC().Format(time.RFC3339))
	}

	var env listingsEnvelope
	if err := c.getJSON(ctx, c.cfg.BaseURL+listingsPath+"?"+query.Encode(), &env); err != nil {
		return adapters.Page{}, err
	}
	if !env.Success {
		return adapters.Page{}, errors.NewAPIError(string(c.cfg.ID), 0, envelopeFailure(env.Message))
	}

	page := adapters.Page{Number: req.Number, Total: env.Total}
	for _, raw := range env.Listings {
		record, err := decodeListing(c.cfg.ID, raw)
		if err != nil {
			page.Issues = append(page.Issues, err)
			continue
		}
		page.Records = append(page.Records, record)
	}

	if env.Total > 0 {
		page.HasMore = req.Number*req.Size < env.Total
	} else {
		page.HasMore = req.Size > 0 && len(env.Listings) == req.Size
	}
	return page, nil
}

// PropertyByID fetches one record from the listing detail endpoint.
func (c *Client) PropertyByID(ctx context.Context, mlsID string) (listings.Property, error) {
	u := c.cfg.BaseURL + listingsPath + "/" + url.PathEscape(mlsID)

	var env detailEnvelope
	if err := c.getJSON(ctx, u, &env); err != nil {
		if errors.IsNotFound(err) {
			return listings.Property{}, errors.NewNotFoundError("listing", mlsID)
		}
		return listings.Property{}, err
	}
	if !env.Success || len(env.Listing) == 0 {
		return listings.Property{}, errors.NewNotFoundError("listing", mlsID)
	}
	return decodeListing(c.cfg.ID, env.Listing)
}

func envelopeFailure(message string) string {
	if message == "" {
		return "provider reported failure"
	}
	return message
}

// getJSON performs an authenticated GET, refreshing the token once if
// the provider rejects it mid-run.
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
	resp, err := c.http.Get(ctx, url, c.auth, c.accessToken())
	if err != nil {
		return err
	}
	return transport.DecodeResponse(c.cfg.ID, resp, target)
}

func (c *Client) accessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// invalidate drops the cached token after the provider rejects it.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}
