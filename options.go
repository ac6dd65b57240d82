package mlsync

import (
	"fmt"

	"github.com/openlistings/mlsync/pkg/dedupe"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/quality"
	"github.com/openlistings/mlsync/pkg/syncer"
)

// Option is a function that configures a Client instance.
type Option func(*config) error

// config collects the configurable pieces of a Client.
type config struct {
	store          listings.Store
	providers      []listings.ProviderConfig
	validator      *quality.Validator
	detector       *dedupe.Detector
	adapterFactory syncer.AdapterFactory
	scheduleSync   *listings.SyncOptions
	autoSync       bool
	recentWindow   int
}

// newConfig applies the options to a fresh config.
func newConfig(opts ...Option) (*config, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}
	return cfg, nil
}

// WithStore configures the catalog store. The default is an in-memory
// store that lives as long as the client.
func WithStore(store listings.Store) Option {
	return func(c *config) error {
		c.store = store
		return nil
	}
}

// WithProviders registers provider configurations at construction.
// Providers can also be added later with AddProvider.
func WithProviders(providers ...listings.ProviderConfig) Option {
	return func(c *config) error {
		c.providers = append(c.providers, providers...)
		return nil
	}
}

// WithValidator configures the quality validator runs score records with.
func WithValidator(v *quality.Validator) Option {
	return func(c *config) error {
		c.validator = v
		return nil
	}
}

// WithDetector configures the duplicate detector runs use.
func WithDetector(d *dedupe.Detector) Option {
	return func(c *config) error {
		c.detector = d
		return nil
	}
}

// WithAdapterFactory configures how provider adapters are built.
func WithAdapterFactory(f syncer.AdapterFactory) Option {
	return func(c *config) error {
		c.adapterFactory = f
		return nil
	}
}

// WithRecentWindow sets how many recent catalog records each fetched
// page is compared against during duplicate detection. Zero or
// negative values keep the default.
func WithRecentWindow(n int) Option {
	return func(c *config) error {
		c.recentWindow = n
		return nil
	}
}

// WithScheduleOptions configures the sync options scheduled runs use.
func WithScheduleOptions(opts listings.SyncOptions) Option {
	return func(c *config) error {
		c.scheduleSync = &opts
		return nil
	}
}

// WithAutoSync configures whether periodic syncs begin at construction
// for every enabled provider.
func WithAutoSync(enabled bool) Option {
	return func(c *config) error {
		c.autoSync = enabled
		return nil
	}
}
