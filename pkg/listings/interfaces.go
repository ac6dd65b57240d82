package listings

import (
	"context"
)

// Reader provides read-only access to stored property records.
type Reader interface {
	// Property returns a record by provider and MLS id.
	Property(ctx context.Context, providerID ProviderID, mlsID string) (Property, error)

	// List returns records matching the filter, ordered by provider
	// then MLS id.
	List(ctx context.Context, filter Filter) ([]Property, error)

	// Len returns the number of stored records.
	Len(ctx context.Context) (int, error)
}

// Writer provides write operations for property records.
type Writer interface {
	// Upsert inserts or replaces a record keyed by provider and MLS id.
	// It reports whether the record was newly created.
	Upsert(ctx context.Context, property Property) (created bool, err error)

	// Delete removes a record by provider and MLS id.
	Delete(ctx context.Context, providerID ProviderID, mlsID string) error
}

// CandidateStore persists duplicate candidates across detection runs so
// they can be reviewed and resolved later.
type CandidateStore interface {
	// SaveCandidate files a candidate. Saving a pair already on file
	// and unresolved updates the stored confidence and reasons instead
	// of filing a second copy.
	SaveCandidate(ctx context.Context, candidate DuplicateCandidate) error

	// Candidate returns a candidate by id.
	Candidate(ctx context.Context, id string) (DuplicateCandidate, error)

	// Candidates returns all candidates, unresolved first, newest first
	// within each group.
	Candidates(ctx context.Context, includeResolved bool) ([]DuplicateCandidate, error)

	// ResolveCandidate marks a candidate resolved with the action taken
	// and the merged record when the action produced one.
	ResolveCandidate(ctx context.Context, id string, action ResolveAction, merged *Property) error
}

// ErrorLog is the append-only audit trail of failures across sync runs.
type ErrorLog interface {
	// AppendError files one failure. Entries are never rewritten.
	AppendError(ctx context.Context, syncErr SyncError) error

	// RecentErrors returns the newest entries first, at most limit.
	// A non-positive limit returns everything.
	RecentErrors(ctx context.Context, limit int) ([]SyncError, error)
}

// Store is the complete persistence interface the sync pipeline runs
// against. Implementations must be safe for concurrent use.
type Store interface {
	Reader
	Writer
	CandidateStore
	ErrorLog
}

// Persistable is implemented by stores that can flush their contents to
// a backing location on demand.
type Persistable interface {
	// Save writes the store's contents to its backing location.
	Save(ctx context.Context) error
}

// Filter narrows a List call. Zero-valued fields are ignored.
type Filter struct {
	ProviderID ProviderID
	Type       PropertyType
	Status     ListingStatus
	State      string
	City       string
	MinPrice   int64
	MaxPrice   int64

	// Limit caps the result count. Zero means unbounded.
	Limit int
}

// Matches reports whether the property satisfies every set field.
func (f Filter) Matches(p Property) bool {
	if f.ProviderID != "" && p.ProviderID != f.ProviderID {
		return false
	}
	if f.Type != "" && p.PropertyType != f.Type {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.State != "" && p.Address.State != f.State {
		return false
	}
	if f.City != "" && p.Address.City != f.City {
		return false
	}
	if f.MinPrice > 0 && p.Price < f.MinPrice {
		return false
	}
	if f.MaxPrice > 0 && p.Price > f.MaxPrice {
		return false
	}
	return true
}
