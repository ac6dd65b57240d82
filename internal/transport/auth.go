package transport

import (
	"encoding/base64"
	"net/http"
)

// Authenticator applies a credential to an outbound HTTP request. The
// token argument is whatever the provider family's login flow produced:
// a session id, a bearer token, or a raw key.
type Authenticator interface {
	Apply(req *http.Request, token string)
}

// NoAuth applies no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request, _ string) {
	// No authentication applied
}

// BearerAuth sends the token as an RFC 6750 bearer credential.
type BearerAuth struct{}

// Apply implements the Authenticator interface for BearerAuth.
func (a *BearerAuth) Apply(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// HeaderAuth sends the token in a custom header.
type HeaderAuth struct {
	Header string
}

// Apply implements the Authenticator interface for HeaderAuth.
func (a *HeaderAuth) Apply(req *http.Request, token string) {
	header := a.Header
	if header == "" {
		header = "Authorization"
	}
	req.Header.Set(header, token)
}

// QueryAuth sends the token as a query parameter.
type QueryAuth struct {
	Param string
}

// Apply implements the Authenticator interface for QueryAuth.
func (a *QueryAuth) Apply(req *http.Request, token string) {
	if req.URL == nil {
		return
	}
	query := req.URL.Query()
	query.Set(a.Param, token)
	req.URL.RawQuery = query.Encode()
}

// CookieAuth sends the token as a session cookie, the scheme legacy IDX
// gateways use after a form login.
type CookieAuth struct {
	Name string
}

// Apply implements the Authenticator interface for CookieAuth.
func (a *CookieAuth) Apply(req *http.Request, token string) {
	name := a.Name
	if name == "" {
		name = "session"
	}
	req.AddCookie(&http.Cookie{Name: name, Value: token})
}

// BasicCredential encodes an id/secret pair for HTTP basic
// authentication, as used by OAuth2 client-credentials token endpoints.
func BasicCredential(id, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id+":"+secret))
}
