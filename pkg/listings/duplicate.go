package listings

import (
	"time"
)

// ResolveAction is what the detector suggests (or an operator chose) to
// do with a duplicate pair.
type ResolveAction string

// String returns the string representation of a ResolveAction.
func (ra ResolveAction) String() string { return string(ra) }

// Resolve actions.
const (
	// ActionMerge folds the pair into a single record, preferring the
	// more complete and more recently updated side per field.
	ActionMerge ResolveAction = "merge"

	// ActionKeepBoth leaves both records in place, recording that the
	// pair was reviewed.
	ActionKeepBoth ResolveAction = "keep_both"

	// ActionSkip dismisses the pair without touching either record.
	ActionSkip ResolveAction = "skip"
)

// ResolveActions returns all actions an operator may apply to a candidate.
func ResolveActions() []ResolveAction {
	return []ResolveAction{ActionMerge, ActionKeepBoth, ActionSkip}
}

// IsValid reports whether the action is one of the known resolve actions.
func (ra ResolveAction) IsValid() bool {
	switch ra {
	case ActionMerge, ActionKeepBoth, ActionSkip:
		return true
	}
	return false
}

// DuplicateCandidate is a scored pair of properties the detector
// believes describe the same real-world listing. Source and Target are
// full copies taken at detection time so the candidate remains
// reviewable even if the store contents move on.
type DuplicateCandidate struct {
	ID         string   `json:"id" yaml:"id"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Source     Property `json:"source" yaml:"source"`
	Target     Property `json:"target" yaml:"target"`

	// MatchReasons names the components that individually cleared the
	// strong-signal bar, e.g. "address", "price", "details".
	MatchReasons []string `json:"match_reasons" yaml:"match_reasons"`

	// SuggestedAction is the detector's recommendation. Operators may
	// override it at resolve time.
	SuggestedAction ResolveAction `json:"suggested_action" yaml:"suggested_action"`

	// Merged is the proposed merge payload, populated whenever the
	// suggested action is merge so reviewers can see the outcome
	// before applying it.
	Merged *Property `json:"merged,omitempty" yaml:"merged,omitempty"`

	Resolved       bool          `json:"resolved" yaml:"resolved"`
	ResolvedAction ResolveAction `json:"resolved_action,omitempty" yaml:"resolved_action,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// PairKey identifies the unordered pair independent of detection order,
// so re-running detection cannot file the same two records twice.
func (dc *DuplicateCandidate) PairKey() string {
	a, b := dc.Source.Key(), dc.Target.Key()
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}
