// Package reso implements the adapter for RESO Web API providers:
// OAuth2 client-credentials at /token, OData paging over /Property,
// and RESO Data Dictionary field names on the wire.
package reso

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
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
	tokenPath    = "/token"
	propertyPath = "/Property"
)

func init() {
	adapters.RegisterFamily(listings.FamilyRESO, New)
}

// Client is one RESO Web API provider connection.
type Client struct {
	cfg   listings.ProviderConfig
	creds listings.Credentials
	http  *transport.Client
	auth  *transport.BearerAuth

	mu      sync.Mutex
	token   string
	expires time.Time
}

var _ adapters.Adapter = (*Client)(nil)

// New builds a RESO adapter from provider configuration.
func New(cfg listings.ProviderConfig) (adapters.Adapter, error) {
	creds := cfg.Credentials.Resolve()
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.NewAuthenticationError(string(cfg.ID), "oauth2",
			"client id and client secret are required", errors.ErrCredentialsRequired)
	}

	return &Client{
		cfg:   cfg,
		creds: creds,
		http: transport.New(cfg.ID,
			transport.WithRequestsPerMinute(cfg.RateLimitPerMinute),
		),
		auth: &transport.BearerAuth{},
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

// tokenResponse is the OAuth2 token endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate requests a bearer token with the client-credentials
// grant, reusing the cached token until shortly before expires_in runs
// out.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.expires.Add(-constants.TokenRefreshSlack)) {
		return nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.WrapResource("create", "request", "POST "+tokenPath, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	basic := &transport.HeaderAuth{Header: "Authorization"}
	resp, err := c.http.Do(ctx, req, basic,
		transport.BasicCredential(c.creds.ClientID, c.creds.ClientSecret))
	if err != nil {
		return err
	}

	var tok tokenResponse
	if err := transport.DecodeResponse(c.cfg.ID, resp, &tok); err != nil {
		c.token = ""
		return errors.NewAuthenticationError(string(c.cfg.ID), "oauth2", "token request rejected", err)
	}
	if tok.AccessToken == "" {
		return errors.NewAuthenticationError(string(c.cfg.ID), "oauth2",
			"token response missing access_token", errors.ErrCredentialsInvalid)
	}

	lifetime := constants.SessionTokenLifetime
	if tok.ExpiresIn > 0 {
		lifetime = time.Duration(tok.ExpiresIn) * time.Second
	}
	c.token = tok.AccessToken
	c.expires = time.Now().Add(lifetime)

	logging.FromContext(ctx).Debug().
		Str("provider_id", string(c.cfg.ID)).
		Time("expires", c.expires).
		Msg("bearer token issued")
	return nil
}

// FetchPage retrieves one page with OData paging. $count=true asks the
// server to report the full result size so progress can be estimated.
func (c *Client) FetchPage(ctx context.Context, req adapters.PageRequest) (adapters.Page, error) {
	query := url.Values{}
	query.Set("$top", strconv.Itoa(req.Size))
	query.Set("$skip", strconv.Itoa((req.Number-1)*req.Size))
	query.Set("$count", "true")
	if req.ModifiedSince != nil {
		query.Set("$filter", "ModificationTimestamp ge "+req.ModifiedSince.UTC().Format(time.RFC3339))
	}

	var env odataEnvelope
	if err := c.getJSON(ctx, c.cfg.BaseURL+propertyPath+"?"+query.Encode(), &env); err != nil {
		return adapters.Page{}, err
	}

	page := adapters.Page{Number: req.Number, Total: env.Count}
	for _, raw := range env.Value {
		record, err := decodeListing(c.cfg.ID, raw)
		if err != nil {
			page.Issues = append(page.Issues, err)
			continue
		}
		page.Records = append(page.Records, record)
	}

	switch {
	case env.NextLink != "":
		page.HasMore = true
	case env.Count > 0:
		page.HasMore = (req.Number-1)*req.Size+len(env.Value) < env.Count
	default:
		page.HasMore = req.Size > 0 && len(env.Value) == req.Size
	}
	return page, nil
}

// PropertyByID fetches one record through the OData single-entity form,
// /Property('<key>').
func (c *Client) PropertyByID(ctx context.Context, mlsID string) (listings.Property, error) {
	u := c.cfg.BaseURL + propertyPath + "('" + url.PathEscape(mlsID) + "')"

	var raw json.RawMessage
	if err := c.getJSON(ctx, u, &raw); err != nil {
		if errors.IsNotFound(err) {
			return listings.Property{}, errors.NewNotFoundError("listing", mlsID)
		}
		return listings.Property{}, err
	}
	return decodeListing(c.cfg.ID, raw)
}

// getJSON performs an authenticated GET, refreshing the bearer token
// once if the provider rejects it mid-run.
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
	resp, err := c.http.Get(ctx, url, c.auth, c.bearer())
	if err != nil {
		return err
	}
	return transport.DecodeResponse(c.cfg.ID, resp, target)
}

func (c *Client) bearer() string {
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
