package listings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/openlistings/mlsync/pkg/errors"
)

// Compile-time interface checks to ensure proper implementation.
var (
	_ Store          = (*Memory)(nil)
	_ Reader         = (*Memory)(nil)
	_ Writer         = (*Memory)(nil)
	_ CandidateStore = (*Memory)(nil)
	_ ErrorLog       = (*Memory)(nil)
)

// Memory is an in-process Store backed by maps. It is the default store
// and the reference implementation the file and database stores are
// tested against. Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	properties map[string]Property

	candidates map[string]DuplicateCandidate
	pairIndex  map[string]string // PairKey -> candidate ID
	seq        []string          // candidate IDs in save order

	errLog []SyncError
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithCapacity sets the initial capacity of the property map.
func WithCapacity(capacity int) MemoryOption {
	return func(m *Memory) {
		m.properties = make(map[string]Property, capacity)
	}
}

// WithProperties seeds the store with existing records.
func WithProperties(properties []Property) MemoryOption {
	return func(m *Memory) {
		for _, p := range properties {
			m.properties[p.Key()] = p.Clone()
		}
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		properties: make(map[string]Property),
		candidates: make(map[string]DuplicateCandidate),
		pairIndex:  make(map[string]string),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Upsert inserts or replaces a record keyed by provider and MLS id.
func (m *Memory) Upsert(_ context.Context, property Property) (bool, error) {
	if err := property.Validate(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := property.Key()
	_, exists := m.properties[key]
	m.properties[key] = property.Clone()
	return !exists, nil
}

// Property returns a record by provider and MLS id.
func (m *Memory) Property(_ context.Context, providerID ProviderID, mlsID string) (Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.properties[string(providerID)+"/"+mlsID]
	if !ok {
		return Property{}, errors.NewNotFoundError("listing", mlsID)
	}
	return p.Clone(), nil
}

// List returns records matching the filter, ordered by provider then
// MLS id.
func (m *Memory) List(_ context.Context, filter Filter) ([]Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Property, 0, len(m.properties))
	for _, p := range m.properties {
		if filter.Matches(p) {
			out = append(out, p.Clone())
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ProviderID != out[j].ProviderID {
			return out[i].ProviderID < out[j].ProviderID
		}
		return out[i].MLSID < out[j].MLSID
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored records.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.properties), nil
}

// Delete removes a record by provider and MLS id.
func (m *Memory) Delete(_ context.Context, providerID ProviderID, mlsID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := string(providerID) + "/" + mlsID
	if _, ok := m.properties[key]; !ok {
		return errors.NewNotFoundError("listing", mlsID)
	}
	delete(m.properties, key)
	return nil
}

// SaveCandidate files a duplicate candidate. Re-filing an unresolved
// pair refreshes its score and reasons in place; a resolved pair stays
// resolved and the new sighting is dropped.
func (m *Memory) SaveCandidate(_ context.Context, candidate DuplicateCandidate) error {
	if candidate.ID == "" {
		return errors.NewValidationError("id", candidate.ID, "cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pairKey := candidate.PairKey()
	if existingID, ok := m.pairIndex[pairKey]; ok {
		existing := m.candidates[existingID]
		if existing.Resolved {
			return nil
		}
		existing.Confidence = candidate.Confidence
		existing.MatchReasons = append([]string(nil), candidate.MatchReasons...)
		existing.SuggestedAction = candidate.SuggestedAction
		existing.Source = candidate.Source.Clone()
		existing.Target = candidate.Target.Clone()
		m.candidates[existingID] = existing
		return nil
	}

	stored := candidate
	stored.Source = candidate.Source.Clone()
	stored.Target = candidate.Target.Clone()
	stored.MatchReasons = append([]string(nil), candidate.MatchReasons...)
	m.candidates[candidate.ID] = stored
	m.pairIndex[pairKey] = candidate.ID
	m.seq = append(m.seq, candidate.ID)
	return nil
}

// RestoreCandidate installs a candidate verbatim, resolution state
// included. Persisted snapshots use it when reloading; live detection
// goes through SaveCandidate.
func (m *Memory) RestoreCandidate(_ context.Context, candidate DuplicateCandidate) error {
	if candidate.ID == "" {
		return errors.NewValidationError("id", candidate.ID, "cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.candidates[candidate.ID]; !ok {
		m.seq = append(m.seq, candidate.ID)
	}
	m.candidates[candidate.ID] = cloneCandidate(candidate)
	m.pairIndex[candidate.PairKey()] = candidate.ID
	return nil
}

// Candidate returns a candidate by id.
func (m *Memory) Candidate(_ context.Context, id string) (DuplicateCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.candidates[id]
	if !ok {
		return DuplicateCandidate{}, errors.NewNotFoundError("candidate", id)
	}
	return cloneCandidate(c), nil
}

// Candidates returns all candidates, unresolved first, newest first
// within each group.
func (m *Memory) Candidates(_ context.Context, includeResolved bool) ([]DuplicateCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]DuplicateCandidate, 0, len(m.seq))
	for i := len(m.seq) - 1; i >= 0; i-- {
		c := m.candidates[m.seq[i]]
		if c.Resolved && !includeResolved {
			continue
		}
		out = append(out, cloneCandidate(c))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Resolved && out[j].Resolved
	})
	return out, nil
}

// ResolveCandidate marks a candidate resolved. Resolving a candidate
// that is already resolved is a no-op.
func (m *Memory) ResolveCandidate(_ context.Context, id string, action ResolveAction, merged *Property) error {
	if !action.IsValid() {
		return errors.NewValidationError("action", action, "unknown resolve action")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.candidates[id]
	if !ok {
		return errors.NewNotFoundError("candidate", id)
	}
	if c.Resolved {
		return nil
	}

	now := time.Now().UTC()
	c.Resolved = true
	c.ResolvedAction = action
	c.ResolvedAt = &now
	if merged != nil {
		clone := merged.Clone()
		c.Merged = &clone
	}
	m.candidates[id] = c
	return nil
}

// AppendError files one failure in the audit log.
func (m *Memory) AppendError(_ context.Context, syncErr SyncError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errLog = append(m.errLog, syncErr)
	return nil
}

// RecentErrors returns the newest entries first, at most limit.
func (m *Memory) RecentErrors(_ context.Context, limit int) ([]SyncError, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.errLog)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]SyncError, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.errLog[i])
	}
	return out, nil
}

func cloneCandidate(c DuplicateCandidate) DuplicateCandidate {
	out := c
	out.Source = c.Source.Clone()
	out.Target = c.Target.Clone()
	out.MatchReasons = append([]string(nil), c.MatchReasons...)
	if c.Merged != nil {
		clone := c.Merged.Clone()
		out.Merged = &clone
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}
