// Package adapters defines the provider adapter interface and the
// family registry. An adapter speaks one MLS wire protocol: it logs in,
// fetches listing pages, transforms raw payloads into canonical
// listings.Property values, and tracks the provider's rate-limit
// budget.
//
// Family implementations live in subpackages (ridx, reso, bridge) and
// register themselves at init time; import the all subpackage to link
// every family into a binary:
//
//	import _ "github.com/openlistings/mlsync/internal/adapters/all"
package adapters

import (
	"context"
	"sync"
	"time"

	"github.com/openlistings/mlsync/pkg/constants"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// Adapter is one provider connection. Implementations are safe for
// sequential use by a single sync run; Authenticate and RateLimit may
// be called from other goroutines.
type Adapter interface {
	// Provider returns the configuration the adapter was built with.
	Provider() listings.ProviderConfig

	// Authenticate obtains a token for the provider, reusing a cached
	// one while it remains fresh. Callers must not issue data requests
	// after an authentication error.
	Authenticate(ctx context.Context) error

	// FetchPage retrieves and transforms one page of listings.
	// Individual records that cannot be mapped are reported in
	// Page.Issues without failing the page.
	FetchPage(ctx context.Context, req PageRequest) (Page, error)

	// PropertyByID retrieves a single listing by its MLS id.
	PropertyByID(ctx context.Context, mlsID string) (listings.Property, error)

	// RateLimit returns the provider's throttle budget as of the most
	// recent response.
	RateLimit() listings.RateLimit
}

// PageRequest asks for one page of listings. Pages are 1-based.
type PageRequest struct {
	Number int
	Size   int

	// ModifiedSince restricts the fetch to records changed at or after
	// the given time, for providers that support server-side filtering.
	// Nil fetches everything.
	ModifiedSince *time.Time
}

// Page is one fetched page after canonical transformation.
type Page struct {
	Number  int
	Records []listings.Property

	// Issues holds per-record transform failures. The page itself
	// succeeded; these records were skipped.
	Issues []error

	// Total is the provider-reported total record count for the query,
	// or 0 when the provider does not report one.
	Total int

	// HasMore reports whether another page follows.
	HasMore bool
}

// ClampPageSize normalizes a requested page size to the supported range.
func ClampPageSize(size int) int {
	if size <= 0 {
		return constants.DefaultPageSize
	}
	if size > constants.MaxPageSize {
		return constants.MaxPageSize
	}
	return size
}

// Properties fetches every page the options admit and returns the
// canonical records: date-range, property-type, status, and max-record
// filters applied, pages fetched until exhausted or the cap is reached.
// Per-record transform issues are returned alongside the records.
func Properties(ctx context.Context, a Adapter, opts listings.SyncOptions) ([]listings.Property, []error, error) {
	if err := a.Authenticate(ctx); err != nil {
		return nil, nil, err
	}

	cfg := a.Provider()
	pageSize := ClampPageSize(cfg.PageSize)

	var (
		out    []listings.Property
		issues []error
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return out, issues, err
		}

		req := PageRequest{Number: page, Size: pageSize}
		if opts.DateRange != nil {
			req.ModifiedSince = &opts.DateRange.Start
		}

		fetched, err := a.FetchPage(ctx, req)
		if err != nil {
			return out, issues, err
		}
		issues = append(issues, fetched.Issues...)

		for _, record := range fetched.Records {
			if !opts.Admits(record) {
				continue
			}
			out = append(out, record)
			if opts.MaxRecords > 0 && len(out) >= opts.MaxRecords {
				return out, issues, nil
			}
		}

		if !fetched.HasMore {
			return out, issues, nil
		}
	}
}

// Factory constructs an adapter for one provider of the factory's family.
type Factory func(cfg listings.ProviderConfig) (Adapter, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[listings.Family]Factory)
)

// RegisterFamily registers a factory for a provider family. Family
// packages call this from init().
func RegisterFamily(family listings.Family, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[family] = factory
}

// New constructs an adapter for the provider's configured family.
func New(cfg listings.ProviderConfig) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := factories[cfg.Family]
	registryMu.RUnlock()

	if !ok {
		return nil, errors.NewNotFoundError("adapter family", string(cfg.Family))
	}
	return factory(cfg)
}

// SupportedFamilies returns the families with registered factories.
func SupportedFamilies() []listings.Family {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]listings.Family, 0, len(factories))
	for family := range factories {
		out = append(out, family)
	}
	return out
}

// Supported reports whether a factory is registered for the family.
func Supported(family listings.Family) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[family]
	return ok
}
