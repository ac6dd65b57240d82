package constants_test

import (
	"fmt"
	"net/http"

	"github.com/openlistings/mlsync/pkg/constants"
)

// Example_timeouts demonstrates timeout constants
func Example_timeouts() {
	// HTTP client with default timeout
	client := &http.Client{
		Timeout: constants.DefaultHTTPTimeout,
	}
	fmt.Printf("HTTP timeout: %v\n", client.Timeout)

	// Output:
	// HTTP timeout: 30s
}

// Example_backoff demonstrates the retry backoff progression
func Example_backoff() {
	for attempt := 0; attempt < 3; attempt++ {
		wait := constants.RetryBackoff << attempt
		if wait > constants.MaxRetryBackoff {
			wait = constants.MaxRetryBackoff
		}
		fmt.Printf("attempt %d waits %v\n", attempt+1, wait)
	}

	// Output:
	// attempt 1 waits 100ms
	// attempt 2 waits 200ms
	// attempt 3 waits 400ms
}

// Example_paging demonstrates page size clamping
func Example_paging() {
	requested := 5000
	pageSize := requested
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	fmt.Printf("page size: %d\n", pageSize)

	// Output:
	// page size: 1000
}
