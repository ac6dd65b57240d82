package mlsync

import (
	"context"

	"github.com/openlistings/mlsync/pkg/listings"
)

// Compile-time interface check to ensure proper implementation.
var _ Duplicates = (*client)(nil)

// Duplicates surfaces detected duplicate candidates for review.
type Duplicates interface {
	// Duplicates returns candidates awaiting review, and resolved ones
	// too when includeResolved is set
	Duplicates(ctx context.Context, includeResolved bool) ([]listings.DuplicateCandidate, error)

	// Duplicate returns one candidate by id
	Duplicate(ctx context.Context, candidateID string) (listings.DuplicateCandidate, error)

	// ResolveDuplicate applies an action to a candidate and returns the
	// stored outcome
	ResolveDuplicate(ctx context.Context, candidateID string, action listings.ResolveAction) (listings.DuplicateCandidate, error)
}

// Duplicates returns candidates awaiting review, unresolved first,
// newest first within each group.
func (c *client) Duplicates(ctx context.Context, includeResolved bool) ([]listings.DuplicateCandidate, error) {
	return c.catalog.Candidates(ctx, includeResolved)
}

// Duplicate returns one candidate by id.
func (c *client) Duplicate(ctx context.Context, candidateID string) (listings.DuplicateCandidate, error) {
	return c.catalog.Candidate(ctx, candidateID)
}

// ResolveDuplicate applies an action to a candidate and returns the
// stored outcome. A merge writes the merged record through the catalog
// and removes the side it replaced, so property hooks fire for both.
// Resolving an already-resolved candidate returns the stored outcome
// unchanged.
func (c *client) ResolveDuplicate(ctx context.Context, candidateID string, action listings.ResolveAction) (listings.DuplicateCandidate, error) {
	return c.resolver.Resolve(ctx, candidateID, action)
}
