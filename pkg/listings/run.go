package listings

import (
	"time"
)

// RunStatus is a sync run's position in its state machine.
type RunStatus string

// String returns the string representation of a RunStatus.
func (rs RunStatus) String() string { return string(rs) }

// Run statuses. A run is created directly in RunStatusRunning;
// RunStatusIdle exists only as the provider-level answer when no run
// has ever started.
const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusPaused    RunStatus = "paused"
)

// Terminal reports whether the status permits no further transitions.
func (rs RunStatus) Terminal() bool {
	return rs == RunStatusCompleted || rs == RunStatusFailed
}

// runTransitions is the full set of legal state changes.
var runTransitions = map[RunStatus][]RunStatus{
	RunStatusIdle:    {RunStatusRunning},
	RunStatusRunning: {RunStatusCompleted, RunStatusFailed, RunStatusPaused},
	RunStatusPaused:  {RunStatusRunning, RunStatusFailed},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to RunStatus) bool {
	for _, next := range runTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SyncRun records one execution of the fetch-validate-reconcile pipeline
// against a single provider. Mutable fields are written only by the
// syncer runner that owns the run; everyone else reads Snapshot copies.
type SyncRun struct {
	ID         string      `json:"id" yaml:"id"`
	ProviderID ProviderID  `json:"provider_id" yaml:"provider_id"`
	Status     RunStatus   `json:"status" yaml:"status"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	EndedAt    *time.Time  `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Counters   RunCounters `json:"counters" yaml:"counters"`

	// Progress is percent complete in [0,100], monotonic non-decreasing
	// while the run is running.
	Progress float64 `json:"progress" yaml:"progress"`

	Options SyncOptions `json:"options" yaml:"options"`
	Errors  []SyncError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// RunCounters accumulates per-run record outcomes.
type RunCounters struct {
	Processed  int `json:"processed" yaml:"processed"`
	Created    int `json:"created" yaml:"created"`
	Updated    int `json:"updated" yaml:"updated"`
	Failed     int `json:"failed" yaml:"failed"`
	Duplicates int `json:"duplicates" yaml:"duplicates"`
}

// Snapshot returns a deep copy safe to hand to readers outside the
// owning runner.
func (r *SyncRun) Snapshot() SyncRun {
	out := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		out.EndedAt = &t
	}
	out.Errors = make([]SyncError, len(r.Errors))
	copy(out.Errors, r.Errors)
	return out
}

// ErrorType classifies a SyncError per the pipeline's failure taxonomy.
type ErrorType string

// String returns the string representation of an ErrorType.
func (et ErrorType) String() string { return string(et) }

// Sync error types.
const (
	// ErrorTypeAuth is a credential or token failure. Fatal: the run
	// aborts immediately.
	ErrorTypeAuth ErrorType = "auth"

	// ErrorTypeNetwork is a timeout or connection failure. Retryable
	// with exponential backoff up to the provider's MaxRetries.
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeAPI is a non-2xx response or exhausted rate limit.
	// Retryable once the reported reset time elapses.
	ErrorTypeAPI ErrorType = "api"

	// ErrorTypeData is a malformed or unmappable single-record payload.
	// The record is skipped; the run continues.
	ErrorTypeData ErrorType = "data"

	// ErrorTypeValidation is a quality score below the provider's floor
	// while ValidateData is set. Recorded; the record is still ingested
	// unless the provider policy excludes it.
	ErrorTypeValidation ErrorType = "validation"
)

// SyncError is one failure observed during a run, appended in detection
// order. Copies appended to the store's audit log carry provider and
// run attribution; inside a SyncRun those fields are implicit.
type SyncError struct {
	ID        string    `json:"id" yaml:"id"`
	Time      time.Time `json:"time" yaml:"time"`
	Type      ErrorType `json:"type" yaml:"type"`
	Message   string    `json:"message" yaml:"message"`
	Retryable bool      `json:"retryable" yaml:"retryable"`
	Resolved  bool      `json:"resolved" yaml:"resolved"`

	// MLSID references the affected record for record-scoped errors.
	MLSID string `json:"mls_id,omitempty" yaml:"mls_id,omitempty"`

	ProviderID ProviderID `json:"provider_id,omitempty" yaml:"provider_id,omitempty"`
	RunID      string     `json:"run_id,omitempty" yaml:"run_id,omitempty"`
}
