package listings

import (
	"fmt"
	"os"
	"time"
)

// ProviderID uniquely identifies an upstream MLS provider.
type ProviderID string

// String returns the string representation of a ProviderID.
func (pid ProviderID) String() string { return string(pid) }

// Family selects the wire protocol an adapter speaks. Each family has a
// distinct authentication and paging scheme; see internal/adapters.
type Family string

// String returns the string representation of a Family.
func (f Family) String() string { return string(f) }

// Provider families.
const (
	// FamilyRIDX is a legacy regional IDX gateway: form-encoded login
	// yielding a session cookie with roughly a 30 minute lifetime, flat
	// field schema.
	FamilyRIDX Family = "ridx"

	// FamilyRESO is a RESO Web API provider: OAuth2 client-credentials
	// exchange yielding a bearer token with expires_in, OData-style paging.
	FamilyRESO Family = "reso"

	// FamilyBridge is a JSON gateway with a custom login endpoint
	// returning {token, expiresIn} and nested listing payloads.
	FamilyBridge Family = "bridge"
)

// Families returns all supported provider families.
func Families() []Family {
	return []Family{FamilyRIDX, FamilyRESO, FamilyBridge}
}

// IsValid reports whether f is a supported family.
func (f Family) IsValid() bool {
	for _, known := range Families() {
		if f == known {
			return true
		}
	}
	return false
}

// ProviderConfig describes one upstream MLS provider: how to reach it,
// how to authenticate, and how aggressively to sync it.
type ProviderConfig struct {
	ID      ProviderID `json:"id" yaml:"id"`
	Name    string     `json:"name" yaml:"name"`
	Family  Family     `json:"family" yaml:"family"`
	BaseURL string     `json:"base_url" yaml:"base_url"`
	Enabled bool       `json:"enabled" yaml:"enabled"`

	Credentials Credentials `json:"credentials" yaml:"credentials"`

	// RateLimitPerMinute caps outbound requests to the provider. Zero
	// means the adapter default.
	RateLimitPerMinute int `json:"rate_limit_per_minute,omitempty" yaml:"rate_limit_per_minute,omitempty"`

	// SyncInterval is how often the scheduler triggers a run. Zero means
	// the scheduler default.
	SyncInterval time.Duration `json:"sync_interval,omitempty" yaml:"sync_interval,omitempty"`

	// PageSize is the number of records requested per page. Zero means
	// the adapter default.
	PageSize int `json:"page_size,omitempty" yaml:"page_size,omitempty"`

	// MaxRetries bounds retry attempts for retryable fetch errors within
	// a run. Zero means the orchestrator default.
	MaxRetries int `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`

	// QualityFloor is the overall quality score below which a record is
	// flagged with a validation error when SyncOptions.ValidateData is
	// set. Zero disables the floor.
	QualityFloor int `json:"quality_floor,omitempty" yaml:"quality_floor,omitempty"`

	// ExcludeBelowFloor drops records scoring under QualityFloor instead
	// of ingesting them with a recorded validation error.
	ExcludeBelowFloor bool `json:"exclude_below_floor,omitempty" yaml:"exclude_below_floor,omitempty"`
}

// Credentials carries provider login material. The *Env fields name
// environment variables resolved at runtime so secrets never land in
// config files; literal values take precedence when set (tests).
type Credentials struct {
	Username     string `json:"-" yaml:"-"`
	Password     string `json:"-" yaml:"-"`
	ClientID     string `json:"-" yaml:"-"`
	ClientSecret string `json:"-" yaml:"-"`

	UsernameEnv     string `json:"username_env,omitempty" yaml:"username_env,omitempty"`
	PasswordEnv     string `json:"password_env,omitempty" yaml:"password_env,omitempty"`
	ClientIDEnv     string `json:"client_id_env,omitempty" yaml:"client_id_env,omitempty"`
	ClientSecretEnv string `json:"client_secret_env,omitempty" yaml:"client_secret_env,omitempty"`
}

// Resolve returns credentials with env-referenced fields filled in.
// Literal values win over environment lookups.
func (c Credentials) Resolve() Credentials {
	out := c
	if out.Username == "" && c.UsernameEnv != "" {
		out.Username = os.Getenv(c.UsernameEnv)
	}
	if out.Password == "" && c.PasswordEnv != "" {
		out.Password = os.Getenv(c.PasswordEnv)
	}
	if out.ClientID == "" && c.ClientIDEnv != "" {
		out.ClientID = os.Getenv(c.ClientIDEnv)
	}
	if out.ClientSecret == "" && c.ClientSecretEnv != "" {
		out.ClientSecret = os.Getenv(c.ClientSecretEnv)
	}
	return out
}

// Validate checks that the config is complete enough to construct an
// adapter for it.
func (pc *ProviderConfig) Validate() error {
	if pc.ID == "" {
		return fmt.Errorf("provider config missing id")
	}
	if !pc.Family.IsValid() {
		return fmt.Errorf("provider %s: unknown family %q", pc.ID, pc.Family)
	}
	if pc.BaseURL == "" {
		return fmt.Errorf("provider %s: missing base_url", pc.ID)
	}
	if pc.RateLimitPerMinute < 0 {
		return fmt.Errorf("provider %s: negative rate limit", pc.ID)
	}
	if pc.SyncInterval < 0 {
		return fmt.Errorf("provider %s: negative sync interval", pc.ID)
	}
	return nil
}

// RateLimit is an adapter's view of the provider's throttle budget,
// refreshed from rate-limit response headers after every request.
type RateLimit struct {
	// Remaining is the number of requests the provider will still accept
	// in the current window. Negative means the provider never reported.
	Remaining int `json:"remaining"`

	// ResetAt is when the window replenishes. Zero means unreported.
	ResetAt time.Time `json:"reset_at"`
}

// Exhausted reports whether the provider has told us to stop until ResetAt.
func (rl RateLimit) Exhausted() bool {
	return rl.Remaining == 0 && !rl.ResetAt.IsZero()
}
