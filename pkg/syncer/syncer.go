// Package syncer orchestrates sync runs: one provider at a time it
// drives fetch → validate → duplicate-detect → persist page by page,
// tracking each run as a SyncRun state machine
// (running → completed/failed/paused, paused → running/failed).
//
// At most one non-terminal run exists per provider. Starting a second
// while one is running or paused returns a conflict instead of a new
// run. Reads of a run are snapshots; only the run's own loop writes it.
package syncer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlistings/mlsync/internal/adapters"
	"github.com/openlistings/mlsync/pkg/constants"
	"github.com/openlistings/mlsync/pkg/dedupe"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/quality"
)

// AdapterFactory builds the provider adapter a run fetches through.
type AdapterFactory func(cfg listings.ProviderConfig) (adapters.Adapter, error)

// Syncer owns sync runs across providers. Construct with New.
type Syncer struct {
	store      listings.Store
	validator  *quality.Validator
	detector   *dedupe.Detector
	newAdapter AdapterFactory
	newID      func() string
	now        func() time.Time
	observe    func(listings.SyncRun)
	window     int

	mu         sync.Mutex
	providers  map[listings.ProviderID]listings.ProviderConfig
	runners    map[string]*runner              // every run this syncer created, by run ID
	active     map[listings.ProviderID]*runner // the provider's non-terminal run
	lastRun    map[listings.ProviderID]string
	watermarks map[listings.ProviderID]time.Time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithValidator replaces the default quality validator.
func WithValidator(v *quality.Validator) Option {
	return func(s *Syncer) {
		if v != nil {
			s.validator = v
		}
	}
}

// WithDetector replaces the default duplicate detector.
func WithDetector(d *dedupe.Detector) Option {
	return func(s *Syncer) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithAdapterFactory replaces how provider adapters are constructed.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(s *Syncer) {
		if f != nil {
			s.newAdapter = f
		}
	}
}

// WithIDGenerator overrides run and error ID generation (tests).
func WithIDGenerator(newID func() string) Option {
	return func(s *Syncer) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRunObserver registers a callback invoked with a snapshot of every
// run that reaches a terminal state. The callback runs outside the
// syncer's locks and must not block for long.
func WithRunObserver(fn func(listings.SyncRun)) Option {
	return func(s *Syncer) {
		if fn != nil {
			s.observe = fn
		}
	}
}

// WithRecentWindow overrides how many recent catalog records new pages
// are compared against during duplicate detection.
func WithRecentWindow(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.window = n
		}
	}
}

// New creates a Syncer persisting through store.
func New(store listings.Store, opts ...Option) *Syncer {
	s := &Syncer{
		store:      store,
		validator:  quality.New(),
		detector:   dedupe.New(),
		newAdapter: adapters.New,
		newID:      uuid.NewString,
		now:        time.Now,
		window:     constants.RecentWindowSize,
		providers:  make(map[listings.ProviderID]listings.ProviderConfig),
		runners:    make(map[string]*runner),
		active:     make(map[listings.ProviderID]*runner),
		lastRun:    make(map[listings.ProviderID]string),
		watermarks: make(map[listings.ProviderID]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddProvider registers a provider the syncer may run against.
// Re-adding an ID replaces its config for future runs.
func (s *Syncer) AddProvider(cfg listings.ProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[cfg.ID] = cfg
	return nil
}

// Provider returns the registered config for an ID.
func (s *Syncer) Provider(id listings.ProviderID) (listings.ProviderConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.providers[id]
	return cfg, ok
}

// Providers returns every registered provider config, ordered by ID.
func (s *Syncer) Providers() []listings.ProviderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]listings.ProviderConfig, 0, len(s.providers))
	for _, cfg := range s.providers {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start begins a sync run for the provider and returns its initial
// snapshot. The run executes on its own goroutine until it completes,
// fails, or pauses; ctx cancellation pauses it at the next safe point.
// A provider with a non-terminal run returns a conflict and no new run.
func (s *Syncer) Start(ctx context.Context, providerID listings.ProviderID, opts listings.SyncOptions) (listings.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, ok := s.providers[providerID]
	if !ok {
		return listings.SyncRun{}, errors.NewNotFoundError("provider", string(providerID))
	}
	if current, busy := s.active[providerID]; busy {
		return listings.SyncRun{}, errors.NewConflictError("sync run", current.runID(),
			"provider "+string(providerID)+" already has a non-terminal run")
	}

	adapter, err := s.newAdapter(cfg)
	if err != nil {
		return listings.SyncRun{}, err
	}

	run := listings.SyncRun{
		ID:         s.newID(),
		ProviderID: providerID,
		Status:     listings.RunStatusRunning,
		StartedAt:  s.now().UTC(),
		Options:    opts,
	}
	r := newRunner(s, cfg, adapter, run, s.sinceLocked(providerID, opts))

	s.runners[run.ID] = r
	s.active[providerID] = r
	s.lastRun[providerID] = run.ID

	r.begin(ctx)
	return r.snapshot(), nil
}

// sinceLocked picks the modified-since watermark for a new run: an
// explicit date range wins, otherwise the last completed run's start
// time unless the caller asked for a full sync. Callers hold s.mu.
func (s *Syncer) sinceLocked(providerID listings.ProviderID, opts listings.SyncOptions) *time.Time {
	if opts.DateRange != nil {
		t := opts.DateRange.Start.UTC()
		return &t
	}
	if opts.FullSync {
		return nil
	}
	if w, ok := s.watermarks[providerID]; ok {
		t := w
		return &t
	}
	return nil
}

// Sync runs a provider to its next resting state and returns the final
// snapshot. A failed run is reported through the snapshot's status, not
// the error.
func (s *Syncer) Sync(ctx context.Context, providerID listings.ProviderID, opts listings.SyncOptions) (listings.SyncRun, error) {
	run, err := s.Start(ctx, providerID, opts)
	if err != nil {
		return run, err
	}
	return s.Wait(ctx, run.ID)
}

// Wait blocks until the run is no longer executing (completed, failed,
// or paused) and returns its snapshot.
func (s *Syncer) Wait(ctx context.Context, runID string) (listings.SyncRun, error) {
	r, err := s.runner(runID)
	if err != nil {
		return listings.SyncRun{}, err
	}

	for {
		sess := r.session()
		if sess == nil {
			return r.snapshot(), nil
		}
		select {
		case <-sess.done:
		case <-ctx.Done():
			return r.snapshot(), ctx.Err()
		}
	}
}

// Stop requests cooperative cancellation of a run and blocks until the
// loop lets go: the run pauses, or completes if its current page was the
// last. Stopping a run that is not executing returns its snapshot as-is.
func (s *Syncer) Stop(ctx context.Context, runID string) (listings.SyncRun, error) {
	r, err := s.runner(runID)
	if err != nil {
		return listings.SyncRun{}, err
	}

	sess := r.session()
	if sess == nil {
		return r.snapshot(), nil
	}
	sess.requestStop()
	select {
	case <-sess.done:
		return r.snapshot(), nil
	case <-ctx.Done():
		return r.snapshot(), ctx.Err()
	}
}

// Resume picks a paused run back up from the page it stopped before.
func (s *Syncer) Resume(ctx context.Context, runID string) (listings.SyncRun, error) {
	r, err := s.runner(runID)
	if err != nil {
		return listings.SyncRun{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch status := r.status(); {
	case status == listings.RunStatusRunning:
		return listings.SyncRun{}, errors.NewConflictError("sync run", runID, "run is already executing")
	case status.Terminal():
		return listings.SyncRun{}, errors.WrapResource("resume", "sync run", runID, errors.ErrRunTerminal)
	}
	if !r.transition(listings.RunStatusRunning) {
		return listings.SyncRun{}, errors.NewConflictError("sync run", runID, "run state changed during resume")
	}
	r.begin(ctx)
	return r.snapshot(), nil
}

// Abandon fails a paused run without resuming it, releasing the
// provider for new runs.
func (s *Syncer) Abandon(ctx context.Context, runID string) (listings.SyncRun, error) {
	r, err := s.runner(runID)
	if err != nil {
		return listings.SyncRun{}, err
	}

	s.mu.Lock()
	if status := r.status(); status != listings.RunStatusPaused {
		s.mu.Unlock()
		return listings.SyncRun{}, errors.NewConflictError("sync run", runID, "only paused runs can be abandoned")
	}
	r.transition(listings.RunStatusFailed)
	s.releaseLocked(r)
	s.mu.Unlock()

	s.notifyTerminal(r)
	r.log(ctx).Info().Msg("paused sync run abandoned")
	return r.snapshot(), nil
}

// notifyTerminal hands the observer a snapshot of a run that just
// reached a terminal state. Never called with locks held.
func (s *Syncer) notifyTerminal(r *runner) {
	if s.observe == nil {
		return
	}
	s.observe(r.snapshot())
}

// Run returns a snapshot of the run with the given ID.
func (s *Syncer) Run(runID string) (listings.SyncRun, error) {
	r, err := s.runner(runID)
	if err != nil {
		return listings.SyncRun{}, err
	}
	return r.snapshot(), nil
}

// Runs returns snapshots of every run this syncer has created, newest
// first.
func (s *Syncer) Runs() []listings.SyncRun {
	s.mu.Lock()
	out := make([]listings.SyncRun, 0, len(s.runners))
	for _, r := range s.runners {
		out = append(out, r.snapshot())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Status returns the provider's most recent run, or an idle placeholder
// when the provider has never run.
func (s *Syncer) Status(providerID listings.ProviderID) (listings.SyncRun, error) {
	s.mu.Lock()
	_, known := s.providers[providerID]
	runID := s.lastRun[providerID]
	s.mu.Unlock()

	if !known {
		return listings.SyncRun{}, errors.NewNotFoundError("provider", string(providerID))
	}
	if runID == "" {
		return listings.SyncRun{ProviderID: providerID, Status: listings.RunStatusIdle}, nil
	}
	return s.Run(runID)
}

// Active reports whether the provider has a non-terminal run.
func (s *Syncer) Active(providerID listings.ProviderID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.active[providerID]
	return busy
}

// runner returns the runner owning the given run ID.
func (s *Syncer) runner(runID string) (*runner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runners[runID]
	if !ok {
		return nil, errors.NewNotFoundError("sync run", runID)
	}
	return r, nil
}

// release frees the provider's single-flight slot once its run is
// terminal. Paused runs keep the slot: they are still the provider's
// one non-terminal run.
func (s *Syncer) release(r *runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(r)
}

func (s *Syncer) releaseLocked(r *runner) {
	if !r.status().Terminal() {
		return
	}
	if current, ok := s.active[r.cfg.ID]; ok && current == r {
		delete(s.active, r.cfg.ID)
	}
}

// noteCompleted records the watermark future incremental runs fetch from.
func (s *Syncer) noteCompleted(providerID listings.ProviderID, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if startedAt.After(s.watermarks[providerID]) {
		s.watermarks[providerID] = startedAt
	}
}
