package errors

import (
	"errors"
)

// Category buckets an error into the sync pipeline's failure taxonomy.
// The string values line up with the error types recorded on sync runs.
type Category string

// Failure categories.
const (
	// CategoryAuth covers credential and token failures. Not retryable;
	// the run aborts.
	CategoryAuth Category = "auth"

	// CategoryNetwork covers timeouts and connection failures.
	// Retryable with backoff.
	CategoryNetwork Category = "network"

	// CategoryAPI covers non-2xx responses and rate limiting. Retryable
	// after the provider's reset window.
	CategoryAPI Category = "api"

	// CategoryData covers malformed single-record payloads. The record
	// is skipped; the run continues.
	CategoryData Category = "data"

	// CategoryValidation covers quality scores under the configured
	// floor. Informational.
	CategoryValidation Category = "validation"
)

// String returns the string representation of a Category.
func (c Category) String() string { return string(c) }

// Classify buckets err into a failure category. Authentication failures
// win over API status checks so a 401 wrapped in an APIError still
// aborts the run rather than burning retries.
func Classify(err error) Category {
	switch {
	case err == nil:
		return ""
	case IsAuthError(err):
		return CategoryAuth
	case IsRateLimited(err), IsProviderUnavailable(err):
		return CategoryAPI
	case isAPIError(err):
		return CategoryAPI
	case IsTimeout(err), IsNetworkError(err), IsCanceled(err):
		return CategoryNetwork
	case isParseError(err), isRecordError(err):
		return CategoryData
	case IsValidationError(err):
		return CategoryValidation
	default:
		return CategoryNetwork
	}
}

// Retryable reports whether an error in the given category is worth
// retrying at all. Per-attempt budgets are the caller's concern.
func (c Category) Retryable() bool {
	switch c {
	case CategoryNetwork, CategoryAPI:
		return true
	}
	return false
}

// IsRetryable reports whether err classifies into a retryable category.
func IsRetryable(err error) bool {
	return Classify(err).Retryable()
}

func isAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

func isParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

func isRecordError(err error) bool {
	var recErr *RecordError
	return errors.As(err, &recErr)
}
