// Package constants provides shared constants used throughout the mlsync
// codebase. This includes timeouts, limits, file permissions, and other
// configuration values that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to MLS provider APIs
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// PageFetchTimeout is the timeout for fetching a single page of listings
	PageFetchTimeout = 2 * time.Minute

	// SyncTimeout is the timeout for a full provider sync run
	SyncTimeout = 30 * time.Minute

	// CommandTimeout is the default timeout for CLI commands
	CommandTimeout = 10 * time.Minute

	// RetryBackoff is the base backoff duration for retries; attempt n
	// waits RetryBackoff << n
	RetryBackoff = 100 * time.Millisecond

	// MaxRetryBackoff is the maximum backoff duration for retries
	MaxRetryBackoff = 30 * time.Second

	// DefaultSyncInterval is the default interval between scheduled syncs
	// for providers that do not configure their own
	DefaultSyncInterval = 15 * time.Minute
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like credentials (rw-------)
	SecureFilePermissions = 0600
)

// Limit constants define various limits and capacities
const (
	// MaxRetries is the default maximum number of retry attempts for
	// retryable fetch errors within a sync run
	MaxRetries = 3

	// MaxConcurrentProviders is the maximum number of providers to sync concurrently
	MaxConcurrentProviders = 5

	// MaxConcurrentComparisons is the worker count for duplicate-detection scoring
	MaxConcurrentComparisons = 8

	// DefaultPageSize is the default number of listings requested per page
	DefaultPageSize = 100

	// MaxPageSize is the maximum page size any adapter will request
	MaxPageSize = 1000

	// RecentWindowSize is how many stored listings a sync run compares
	// new pages against for duplicate detection
	RecentWindowSize = 500

	// DefaultErrorLogLimit is the default number of entries returned by
	// recent-error queries
	DefaultErrorLogLimit = 50

	// ChannelBufferSize is the default buffer size for channels
	ChannelBufferSize = 100

	// MaxRunErrors caps how many errors a single run records before
	// older record-scoped entries stop being appended
	MaxRunErrors = 1000
)

// Rate limiting constants
const (
	// DefaultRateLimitPerMinute is the default requests per minute for
	// providers without a configured limit
	DefaultRateLimitPerMinute = 60

	// BurstSize is the token bucket burst size for rate limiting
	BurstSize = 10
)

// Session constants
const (
	// SessionTokenLifetime is the assumed lifetime of a legacy gateway
	// session cookie when the provider does not report one
	SessionTokenLifetime = 30 * time.Minute

	// TokenRefreshSlack is how long before expiry a cached token is
	// considered stale and re-acquired
	TokenRefreshSlack = 1 * time.Minute
)
