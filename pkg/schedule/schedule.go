// Package schedule triggers periodic sync runs. Each scheduled provider
// gets its own timer at its configured interval; a tick starts a run
// only when the provider is quiet. A tick that lands while a run is
// active is skipped outright — ticks never queue up behind a slow run.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/openlistings/mlsync/pkg/constants"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/logging"
)

// Orchestrator is the slice of the sync orchestrator the scheduler
// drives.
type Orchestrator interface {
	Provider(id listings.ProviderID) (listings.ProviderConfig, bool)
	Providers() []listings.ProviderConfig
	Active(id listings.ProviderID) bool
	Start(ctx context.Context, id listings.ProviderID, opts listings.SyncOptions) (listings.SyncRun, error)
}

// Status describes one provider's schedule.
type Status struct {
	ProviderID listings.ProviderID `json:"provider_id"`

	// Enabled reports whether a timer is currently driving the provider.
	Enabled bool `json:"enabled"`

	// Interval is the effective tick interval.
	Interval time.Duration `json:"interval"`

	// LastRunID is the most recent run this schedule started. Empty
	// until the first tick that actually starts one.
	LastRunID string `json:"last_run_id,omitempty"`

	// NextRunETA is the time remaining until the next tick, zero when
	// the schedule is stopped.
	NextRunETA time.Duration `json:"next_run_eta,omitempty"`
}

// Scheduler drives periodic syncs through an Orchestrator. Construct
// with New.
type Scheduler struct {
	orch Orchestrator
	opts listings.SyncOptions
	now  func() time.Time

	mu      sync.Mutex
	entries map[listings.ProviderID]*entry
}

// entry is one provider's live timer.
type entry struct {
	interval time.Duration
	ticker   *time.Ticker
	stop     chan struct{}
	cancel   context.CancelFunc

	next    time.Time
	lastRun string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSyncOptions sets the options every scheduled run is started with.
// The default is a zero-value incremental sync.
func WithSyncOptions(opts listings.SyncOptions) Option {
	return func(s *Scheduler) {
		s.opts = opts
	}
}

// WithClock overrides the time source used for ETA math (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Scheduler driving orch. Nothing is scheduled until
// Start or StartAll.
func New(orch Orchestrator, opts ...Option) *Scheduler {
	s := &Scheduler{
		orch:    orch,
		now:     time.Now,
		entries: make(map[listings.ProviderID]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins periodic syncs for the provider at its configured
// interval. A provider already scheduled is restarted, picking up any
// config change. Disabled providers are refused.
func (s *Scheduler) Start(providerID listings.ProviderID) error {
	cfg, ok := s.orch.Provider(providerID)
	if !ok {
		return errors.NewNotFoundError("provider", string(providerID))
	}
	if !cfg.Enabled {
		return errors.NewValidationError("enabled", false,
			"provider "+string(providerID)+" is disabled; enable it before scheduling")
	}

	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = constants.DefaultSyncInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, scheduled := s.entries[providerID]; scheduled {
		stopEntry(old)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		interval: interval,
		ticker:   time.NewTicker(interval),
		stop:     make(chan struct{}),
		cancel:   cancel,
		next:     s.now().Add(interval),
	}
	s.entries[providerID] = e

	go s.loop(ctx, providerID, e)

	logging.Default().Info().
		Str("provider", string(providerID)).
		Dur("interval", interval).
		Msg("schedule started")
	return nil
}

// Stop halts the provider's timer and cancels the schedule's in-flight
// run, if any; the run pauses at its next safe point and can be
// resumed. Stopping an unscheduled provider is a no-op.
func (s *Scheduler) Stop(providerID listings.ProviderID) error {
	if _, ok := s.orch.Provider(providerID); !ok {
		return errors.NewNotFoundError("provider", string(providerID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, scheduled := s.entries[providerID]
	if !scheduled {
		return nil
	}
	stopEntry(e)
	delete(s.entries, providerID)

	logging.Default().Info().
		Str("provider", string(providerID)).
		Msg("schedule stopped")
	return nil
}

// StartAll schedules every registered provider that is enabled;
// disabled providers are left alone.
func (s *Scheduler) StartAll() error {
	for _, cfg := range s.orch.Providers() {
		if !cfg.Enabled {
			continue
		}
		if err := s.Start(cfg.ID); err != nil {
			return err
		}
	}
	return nil
}

// StopAll halts every timer.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for providerID, e := range s.entries {
		stopEntry(e)
		delete(s.entries, providerID)
	}
}

// Status reports the provider's schedule. An unscheduled provider
// reports Enabled false with the interval it would run at.
func (s *Scheduler) Status(providerID listings.ProviderID) (Status, error) {
	cfg, ok := s.orch.Provider(providerID)
	if !ok {
		return Status{}, errors.NewNotFoundError("provider", string(providerID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	status := Status{ProviderID: providerID}
	if e, scheduled := s.entries[providerID]; scheduled {
		status.Enabled = true
		status.Interval = e.interval
		status.LastRunID = e.lastRun
		if eta := e.next.Sub(s.now()); eta > 0 {
			status.NextRunETA = eta
		}
		return status, nil
	}

	status.Interval = cfg.SyncInterval
	if status.Interval <= 0 {
		status.Interval = constants.DefaultSyncInterval
	}
	return status, nil
}

// Statuses reports every registered provider's schedule, ordered by
// provider ID.
func (s *Scheduler) Statuses() []Status {
	providers := s.orch.Providers()
	out := make([]Status, 0, len(providers))
	for _, cfg := range providers {
		status, err := s.Status(cfg.ID)
		if err != nil {
			continue
		}
		out = append(out, status)
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, providerID listings.ProviderID, e *entry) {
	for {
		select {
		case <-e.ticker.C:
			s.tick(ctx, providerID, e)
		case <-e.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick starts one run unless the provider already has one in flight.
func (s *Scheduler) tick(ctx context.Context, providerID listings.ProviderID, e *entry) {
	s.mu.Lock()
	e.next = s.now().Add(e.interval)
	s.mu.Unlock()

	log := logging.Default().With().Str("provider", string(providerID)).Logger()

	if s.orch.Active(providerID) {
		log.Debug().Msg("sync tick skipped, run already active")
		return
	}

	run, err := s.orch.Start(ctx, providerID, s.opts)
	if err != nil {
		// A run that slipped in between the check and the start is the
		// same skip, just observed later.
		if errors.IsRunActive(err) {
			log.Debug().Msg("sync tick skipped, run already active")
			return
		}
		log.Error().Err(err).Msg("scheduled sync failed to start")
		return
	}

	s.mu.Lock()
	e.lastRun = run.ID
	s.mu.Unlock()

	log.Info().Str("run", run.ID).Msg("scheduled sync started")
}

func stopEntry(e *entry) {
	e.ticker.Stop()
	e.cancel()
	close(e.stop)
}
