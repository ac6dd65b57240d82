// Package mlsync keeps a property catalog in sync with MLS providers.
// It wraps the sync pipeline with a single client offering scheduled
// background syncs, event hooks, and duplicate review.
//
// Example usage:
//
//	// Create a client with an in-memory catalog
//	client, err := mlsync.New(
//	    mlsync.WithProviders(providerConfig),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Register event hooks
//	client.OnPropertyAdded(func(p listings.Property) {
//	    log.Printf("new listing: %s", p.Key())
//	})
//
//	// Run one sync and inspect the outcome
//	run, err := client.Sync(ctx, "mls_grid", listings.SyncOptions{ValidateData: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("processed %d records\n", run.Counters.Processed)
//
//	// Or let the scheduler drive periodic syncs
//	if err := client.AutoSyncOn(); err != nil {
//	    log.Fatal(err)
//	}
package mlsync

import (
	// Adapter families register themselves via init().
	_ "github.com/openlistings/mlsync/internal/adapters/all"
	"github.com/openlistings/mlsync/pkg/dedupe"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/schedule"
	"github.com/openlistings/mlsync/pkg/syncer"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// The scheduler drives the syncer directly.
var _ schedule.Orchestrator = (*syncer.Syncer)(nil)

// Client manages a property catalog kept in sync with MLS providers.
type Client interface {

	// Catalog provides access to the synced property catalog
	Catalog

	// Syncing drives sync runs against configured providers
	Syncing

	// Duplicates surfaces detected duplicate candidates for review
	Duplicates

	// Scheduling controls periodic background syncs
	Scheduling

	// Persistence handles catalog persistence operations
	Persistence

	// Hooks provides access to event callback registration
	Hooks

	// Close stops scheduled syncs and cancels the runs they started.
	// Manually started runs keep executing under their caller's context.
	Close() error
}

// client is the internal implementation of the Client interface.
type client struct {

	// options are the configured options for the client
	options *config

	// store is the catalog persistence layer as configured
	store listings.Store

	// catalog wraps store so every write fires the registered hooks
	catalog *hookedStore

	// syncer executes runs, resolver applies duplicate decisions,
	// sched triggers periodic runs
	syncer   *syncer.Syncer
	resolver *dedupe.Resolver
	sched    *schedule.Scheduler

	// hooks holds event callbacks for catalog and run changes
	hooks *hooks
}

// New creates a new Client instance with the given options.
func New(opts ...Option) (Client, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}

	store := cfg.store
	if store == nil {
		store = listings.NewMemory()
	}

	c := &client{
		options: cfg,
		store:   store,
		hooks:   newHooks(),
	}
	c.catalog = &hookedStore{Store: store, hooks: c.hooks}

	// Runs write through the hooked catalog so property hooks observe
	// every ingested record. The run observer reports terminal runs.
	syncOpts := []syncer.Option{
		syncer.WithRunObserver(func(run listings.SyncRun) {
			if run.Status == listings.RunStatusCompleted {
				c.hooks.fireRunCompleted(run)
			}
		}),
	}
	if cfg.validator != nil {
		syncOpts = append(syncOpts, syncer.WithValidator(cfg.validator))
	}
	if cfg.detector != nil {
		syncOpts = append(syncOpts, syncer.WithDetector(cfg.detector))
	}
	if cfg.adapterFactory != nil {
		syncOpts = append(syncOpts, syncer.WithAdapterFactory(cfg.adapterFactory))
	}
	if cfg.recentWindow > 0 {
		syncOpts = append(syncOpts, syncer.WithRecentWindow(cfg.recentWindow))
	}
	c.syncer = syncer.New(c.catalog, syncOpts...)
	c.resolver = dedupe.NewResolver(c.catalog)

	for _, provider := range cfg.providers {
		if err := c.syncer.AddProvider(provider); err != nil {
			return nil, errors.WrapResource("add", "provider", string(provider.ID), err)
		}
	}

	var schedOpts []schedule.Option
	if cfg.scheduleSync != nil {
		schedOpts = append(schedOpts, schedule.WithSyncOptions(*cfg.scheduleSync))
	}
	c.sched = schedule.New(c.syncer, schedOpts...)

	if cfg.autoSync {
		if err := c.AutoSyncOn(); err != nil {
			return nil, errors.WrapResource("start", "auto-sync", "", err)
		}
	}

	return c, nil
}

// Close stops scheduled syncs and cancels the runs they started.
func (c *client) Close() error {
	c.sched.StopAll()
	return nil
}
