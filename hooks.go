package mlsync

import (
	"context"
	"reflect"
	"sync"

	"github.com/openlistings/mlsync/pkg/listings"
)

// Compile-time interface checks to ensure proper implementation.
var _ Hooks = (*client)(nil)
var _ listings.Store = (*hookedStore)(nil)

// Hook function types for catalog and run events.
type (
	// PropertyAddedHook is called when a record is first ingested
	PropertyAddedHook func(property listings.Property)

	// PropertyUpdatedHook is called when an ingested record replaces a
	// stored one with different contents
	PropertyUpdatedHook func(old, updated listings.Property)

	// PropertyRemovedHook is called when a record is removed, such as
	// the losing side of a duplicate merge
	PropertyRemovedHook func(property listings.Property)

	// RunCompletedHook is called when a sync run completes successfully
	RunCompletedHook func(run listings.SyncRun)
)

// Hooks provides access to event callback registration. Hooks run
// synchronously on the goroutine that performed the write and must not
// block for long.
type Hooks interface {
	// OnPropertyAdded registers a callback for newly ingested records
	OnPropertyAdded(PropertyAddedHook)

	// OnPropertyUpdated registers a callback for replaced records
	OnPropertyUpdated(PropertyUpdatedHook)

	// OnPropertyRemoved registers a callback for removed records
	OnPropertyRemoved(PropertyRemovedHook)

	// OnRunCompleted registers a callback for completed sync runs
	OnRunCompleted(RunCompletedHook)
}

// OnPropertyAdded registers a callback for newly ingested records.
func (c *client) OnPropertyAdded(fn PropertyAddedHook) {
	c.hooks.OnPropertyAdded(fn)
}

// OnPropertyUpdated registers a callback for replaced records.
func (c *client) OnPropertyUpdated(fn PropertyUpdatedHook) {
	c.hooks.OnPropertyUpdated(fn)
}

// OnPropertyRemoved registers a callback for removed records.
func (c *client) OnPropertyRemoved(fn PropertyRemovedHook) {
	c.hooks.OnPropertyRemoved(fn)
}

// OnRunCompleted registers a callback for completed sync runs.
func (c *client) OnRunCompleted(fn RunCompletedHook) {
	c.hooks.OnRunCompleted(fn)
}

// hooks manages event callbacks for catalog and run changes.
type hooks struct {
	mu                sync.RWMutex
	onPropertyAdded   []PropertyAddedHook
	onPropertyUpdated []PropertyUpdatedHook
	onPropertyRemoved []PropertyRemovedHook
	onRunCompleted    []RunCompletedHook
}

// newHooks creates a new hooks instance.
func newHooks() *hooks {
	return &hooks{}
}

// OnPropertyAdded registers a callback for newly ingested records.
func (h *hooks) OnPropertyAdded(fn PropertyAddedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPropertyAdded = append(h.onPropertyAdded, fn)
}

// OnPropertyUpdated registers a callback for replaced records.
func (h *hooks) OnPropertyUpdated(fn PropertyUpdatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPropertyUpdated = append(h.onPropertyUpdated, fn)
}

// OnPropertyRemoved registers a callback for removed records.
func (h *hooks) OnPropertyRemoved(fn PropertyRemovedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPropertyRemoved = append(h.onPropertyRemoved, fn)
}

// OnRunCompleted registers a callback for completed sync runs.
func (h *hooks) OnRunCompleted(fn RunCompletedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRunCompleted = append(h.onRunCompleted, fn)
}

func (h *hooks) firePropertyAdded(p listings.Property) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onPropertyAdded {
		hook(p)
	}
}

func (h *hooks) firePropertyUpdated(old, updated listings.Property) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onPropertyUpdated {
		hook(old, updated)
	}
}

func (h *hooks) firePropertyRemoved(p listings.Property) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onPropertyRemoved {
		hook(p)
	}
}

func (h *hooks) fireRunCompleted(run listings.SyncRun) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onRunCompleted {
		hook(run)
	}
}

// wantsUpdates reports whether any update hook is registered, so the
// store wrapper knows to read the prior record before a write.
func (h *hooks) wantsUpdates() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.onPropertyUpdated) > 0
}

// wantsRemovals reports whether any removal hook is registered.
func (h *hooks) wantsRemovals() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.onPropertyRemoved) > 0
}

// hookedStore wraps a Store and fires property hooks as writes land.
// Syncs, merges, and direct catalog writes all share one wrapper, so
// hooks observe every write path.
type hookedStore struct {
	listings.Store
	hooks *hooks
}

// Upsert inserts or replaces a record, then fires the matching hook.
// Replacing a record with identical contents fires nothing.
func (s *hookedStore) Upsert(ctx context.Context, property listings.Property) (bool, error) {
	var prior listings.Property
	havePrior := false
	if s.hooks.wantsUpdates() {
		if existing, err := s.Store.Property(ctx, property.ProviderID, property.MLSID); err == nil {
			prior, havePrior = existing, true
		}
	}

	created, err := s.Store.Upsert(ctx, property)
	if err != nil {
		return created, err
	}

	switch {
	case created:
		s.hooks.firePropertyAdded(property)
	case havePrior && !reflect.DeepEqual(prior, property):
		s.hooks.firePropertyUpdated(prior, property)
	}
	return created, nil
}

// Delete removes a record, then fires the removal hook with the record
// as it stood before the delete.
func (s *hookedStore) Delete(ctx context.Context, providerID listings.ProviderID, mlsID string) error {
	var removed listings.Property
	haveRemoved := false
	if s.hooks.wantsRemovals() {
		if existing, err := s.Store.Property(ctx, providerID, mlsID); err == nil {
			removed, haveRemoved = existing, true
		}
	}

	if err := s.Store.Delete(ctx, providerID, mlsID); err != nil {
		return err
	}

	if haveRemoved {
		s.hooks.firePropertyRemoved(removed)
	}
	return nil
}
