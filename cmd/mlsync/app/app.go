// Package app provides the application context and dependency management
// for the mlsync CLI. It follows idiomatic Go patterns for CLI applications
// by centralizing configuration, dependency injection, and lifecycle management.
package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openlistings/mlsync"
	"github.com/openlistings/mlsync/internal/config"
	"github.com/openlistings/mlsync/internal/store/postgres"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/listings/files"
)

// App represents the mlsync application with all its dependencies.
// It provides a centralized place for configuration, logging, and
// the mlsync client, following the dependency injection pattern.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Project configuration and client (lazy-initialized, singletons)
	mu      sync.RWMutex
	project *config.File
	client  mlsync.Client
}

// New creates a new App instance with the given version information.
// The app is initialized with default configuration that can be
// customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	// Load configuration
	cfg, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = cfg

	// Initialize logger
	logger := NewLogger(cfg)
	app.logger = &logger

	// Apply any custom options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Quiet reports whether progress chatter on stderr is suppressed.
func (a *App) Quiet() bool {
	return a.config.Quiet
}

// ProjectConfig returns the project configuration, loading it lazily
// from the configured file (or search path) on first use.
func (a *App) ProjectConfig() (*config.File, error) {
	a.mu.RLock()
	if a.project != nil {
		project := a.project
		a.mu.RUnlock()
		return project, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.projectLocked()
}

// projectLocked returns the project configuration, loading it if needed.
// Callers must hold the write lock.
func (a *App) projectLocked() (*config.File, error) {
	if a.project != nil {
		return a.project, nil
	}

	project, err := config.Load(a.config.ConfigFile)
	if err != nil {
		return nil, err
	}

	a.project = project
	return project, nil
}

// Client returns the mlsync client, creating it lazily if needed.
// This is thread-safe and ensures only one instance is created.
func (a *App) Client() (mlsync.Client, error) {
	a.mu.RLock()
	if a.client != nil {
		client := a.client
		a.mu.RUnlock()
		return client, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.client != nil {
		return a.client, nil
	}

	project, err := a.projectLocked()
	if err != nil {
		return nil, err
	}

	client, err := a.buildClient(project)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}

	a.client = client
	return client, nil
}

// buildClient constructs the mlsync client from the project configuration.
func (a *App) buildClient(project *config.File) (mlsync.Client, error) {
	opts := []mlsync.Option{
		mlsync.WithProviders(project.ProviderConfigs()...),
	}

	store, err := a.buildStore(project.Store)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, mlsync.WithStore(store))
	}

	if project.Schedule.AutoSync {
		opts = append(opts, mlsync.WithAutoSync(true))
	}

	return mlsync.New(opts...)
}

// buildStore constructs the catalog store for the configured backend.
// A nil store means the client's in-memory default.
func (a *App) buildStore(store config.StoreConfig) (listings.Store, error) {
	switch store.Backend {
	case config.BackendMemory, "":
		return nil, nil
	case config.BackendFiles:
		return files.New(store.Path)
	case config.BackendPostgres:
		dsn := store.ResolveDSN()
		if dsn == "" {
			return nil, errors.NewConfigError("store.dsn",
				fmt.Sprintf("postgres backend needs a DSN: set store.dsn or the %s environment variable", store.DSNEnv), nil)
		}
		return postgres.New(context.Background(), dsn)
	default:
		return nil, errors.NewConfigError("store.backend",
			fmt.Sprintf("unknown store backend %q", store.Backend), nil)
	}
}

// Shutdown performs graceful shutdown of the application.
// It stops scheduled syncs and releases store resources.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()

	if client != nil {
		if err := client.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close client during shutdown")
		}
	}

	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(cfg *Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithProjectConfig sets a custom project configuration, bypassing the
// config file search (useful for testing).
func WithProjectConfig(project *config.File) Option {
	return func(a *App) error {
		a.project = project
		return nil
	}
}

// WithClient sets a custom client (useful for testing).
func WithClient(client mlsync.Client) Option {
	return func(a *App) error {
		a.client = client
		return nil
	}
}
