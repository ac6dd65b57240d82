package mlsync

import (
	"context"

	"github.com/openlistings/mlsync/pkg/listings"
)

// Compile-time interface check to ensure proper implementation.
var _ Syncing = (*client)(nil)

// Syncing drives sync runs against configured providers.
type Syncing interface {
	// AddProvider registers a provider configuration
	AddProvider(cfg listings.ProviderConfig) error

	// Provider returns a registered provider configuration
	Provider(id listings.ProviderID) (listings.ProviderConfig, bool)

	// Providers returns all registered provider configurations
	Providers() []listings.ProviderConfig

	// Sync runs one sync to its next resting state and returns the
	// final snapshot
	Sync(ctx context.Context, providerID listings.ProviderID, opts listings.SyncOptions) (listings.SyncRun, error)

	// StartSync begins a sync run and returns without waiting for it
	StartSync(ctx context.Context, providerID listings.ProviderID, opts listings.SyncOptions) (listings.SyncRun, error)

	// WaitRun blocks until the run is no longer executing
	WaitRun(ctx context.Context, runID string) (listings.SyncRun, error)

	// StopRun pauses an executing run at its next safe point
	StopRun(ctx context.Context, runID string) (listings.SyncRun, error)

	// ResumeRun continues a paused run from its next unprocessed page
	ResumeRun(ctx context.Context, runID string) (listings.SyncRun, error)

	// AbandonRun fails a paused run that will not be resumed
	AbandonRun(ctx context.Context, runID string) (listings.SyncRun, error)

	// Run returns a snapshot of one run by id
	Run(runID string) (listings.SyncRun, error)

	// Runs returns snapshots of all known runs, newest first
	Runs() []listings.SyncRun

	// Status returns a provider's latest run, or an idle placeholder
	// when the provider has never synced
	Status(providerID listings.ProviderID) (listings.SyncRun, error)

	// Progress returns a run's percent complete in [0,100]
	Progress(runID string) (float64, error)

	// RecentErrors returns the newest audit-log entries across all runs
	RecentErrors(ctx context.Context, limit int) ([]listings.SyncError, error)
}

// AddProvider registers a provider configuration.
func (c *client) AddProvider(cfg listings.ProviderConfig) error {
	return c.syncer.AddProvider(cfg)
}

// Provider returns a registered provider configuration.
func (c *client) Provider(id listings.ProviderID) (listings.ProviderConfig, bool) {
	return c.syncer.Provider(id)
}

// Providers returns all registered provider configurations.
func (c *client) Providers() []listings.ProviderConfig {
	return c.syncer.Providers()
}

// Sync runs one sync to its next resting state and returns the final
// snapshot. A failed run is reported through the snapshot's status, not
// the error.
func (c *client) Sync(ctx context.Context, providerID listings.ProviderID, opts listings.SyncOptions) (listings.SyncRun, error) {
	return c.syncer.Sync(ctx, providerID, opts)
}

// StartSync begins a sync run and returns its initial snapshot without
// waiting for the run to finish.
func (c *client) StartSync(ctx context.Context, providerID listings.ProviderID, opts listings.SyncOptions) (listings.SyncRun, error) {
	return c.syncer.Start(ctx, providerID, opts)
}

// WaitRun blocks until the run is no longer executing and returns its
// snapshot.
func (c *client) WaitRun(ctx context.Context, runID string) (listings.SyncRun, error) {
	return c.syncer.Wait(ctx, runID)
}

// StopRun pauses an executing run at its next safe point and blocks
// until the run lets go.
func (c *client) StopRun(ctx context.Context, runID string) (listings.SyncRun, error) {
	return c.syncer.Stop(ctx, runID)
}

// ResumeRun continues a paused run from its next unprocessed page.
func (c *client) ResumeRun(ctx context.Context, runID string) (listings.SyncRun, error) {
	return c.syncer.Resume(ctx, runID)
}

// AbandonRun fails a paused run that will not be resumed, freeing its
// provider for new runs.
func (c *client) AbandonRun(ctx context.Context, runID string) (listings.SyncRun, error) {
	return c.syncer.Abandon(ctx, runID)
}

// Run returns a snapshot of one run by id.
func (c *client) Run(runID string) (listings.SyncRun, error) {
	return c.syncer.Run(runID)
}

// Runs returns snapshots of all known runs, newest first.
func (c *client) Runs() []listings.SyncRun {
	return c.syncer.Runs()
}

// Status returns a provider's latest run, or an idle placeholder when
// the provider has never synced.
func (c *client) Status(providerID listings.ProviderID) (listings.SyncRun, error) {
	return c.syncer.Status(providerID)
}

// Progress returns a run's percent complete in [0,100].
func (c *client) Progress(runID string) (float64, error) {
	run, err := c.syncer.Run(runID)
	if err != nil {
		return 0, err
	}
	return run.Progress, nil
}

// RecentErrors returns the newest audit-log entries across all runs, at
// most limit. A non-positive limit returns everything.
func (c *client) RecentErrors(ctx context.Context, limit int) ([]listings.SyncError, error) {
	return c.catalog.RecentErrors(ctx, limit)
}
