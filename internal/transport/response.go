package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/logging"
)

// Rate-limit response headers common across the supported provider
// families.
const (
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// DecodeResponse reads and closes the response body, returns an
// APIError for any non-2xx status, and otherwise unmarshals the body
// into target. A nil target discards the body after the status check.
func DecodeResponse(provider listings.ProviderID, resp *http.Response, target any) error {
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logging.Warn().Err(err).Str("provider_id", string(provider)).Msg("failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errors.APIError{
			Provider:   string(provider),
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body), 512),
			Endpoint:   resp.Request.URL.String(),
		}
	}

	if target == nil {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", resp.Request.URL.Path, err)
	}

	return nil
}

// ParseRateHeaders extracts the provider's throttle budget from
// response headers. The reset header may be a Unix epoch timestamp or a
// delta in seconds; values large enough to be timestamps are treated as
// such.
func ParseRateHeaders(h http.Header) (listings.RateLimit, bool) {
	remainingStr := h.Get(HeaderRateLimitRemaining)
	if remainingStr == "" {
		return listings.RateLimit{}, false
	}

	remaining, err := strconv.Atoi(remainingStr)
	if err != nil {
		return listings.RateLimit{}, false
	}

	limit := listings.RateLimit{Remaining: remaining}
	if resetStr := h.Get(HeaderRateLimitReset); resetStr != "" {
		if reset, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
			if reset > 1e9 {
				limit.ResetAt = time.Unix(reset, 0)
			} else if reset >= 0 {
				limit.ResetAt = time.Now().Add(time.Duration(reset) * time.Second)
			}
		}
	}

	return limit, true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
