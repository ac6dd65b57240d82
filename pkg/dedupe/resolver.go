package dedupe

import (
	"context"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/logging"
)

// Resolver applies a chosen action to a stored duplicate candidate and
// persists the outcome.
type Resolver struct {
	store listings.Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store listings.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve applies action to the candidate with the given id and returns
// the stored candidate after resolution. Resolving an already-resolved
// candidate changes nothing and returns the stored outcome, so retrying
// a resolution is always safe.
func (r *Resolver) Resolve(ctx context.Context, candidateID string, action listings.ResolveAction) (listings.DuplicateCandidate, error) {
	if !action.IsValid() {
		return listings.DuplicateCandidate{}, errors.NewValidationError("action", action.String(), "not a recognized resolve action")
	}

	candidate, err := r.store.Candidate(ctx, candidateID)
	if err != nil {
		return listings.DuplicateCandidate{}, err
	}
	if candidate.Resolved {
		return candidate, nil
	}

	var merged *listings.Property
	if action == listings.ActionMerge {
		m := Merge(candidate.Source, candidate.Target)
		merged = &m
		if err := r.applyMerge(ctx, candidate, m); err != nil {
			return listings.DuplicateCandidate{}, err
		}
	}

	if err := r.store.ResolveCandidate(ctx, candidateID, action, merged); err != nil {
		return listings.DuplicateCandidate{}, err
	}

	logging.FromContext(ctx).Debug().
		Str("candidate", candidateID).
		Str("action", action.String()).
		Msg("duplicate candidate resolved")

	return r.store.Candidate(ctx, candidateID)
}

// applyMerge upserts the merged record and removes the side it
// replaced. A side already gone from the catalog is not an error.
func (r *Resolver) applyMerge(ctx context.Context, candidate listings.DuplicateCandidate, merged listings.Property) error {
	if _, err := r.store.Upsert(ctx, merged); err != nil {
		return errors.WrapResource("merge", "property", merged.Key(), err)
	}

	for _, side := range []listings.Property{candidate.Source, candidate.Target} {
		if side.Key() == merged.Key() {
			continue
		}
		if err := r.store.Delete(ctx, side.ProviderID, side.MLSID); err != nil && !errors.IsNotFound(err) {
			return errors.WrapResource("merge", "property", side.Key(), err)
		}
	}
	return nil
}
