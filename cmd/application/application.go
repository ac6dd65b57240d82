// Package application provides the application interface for mlsync commands.
//
// The Application interface defines the contract between the application layer
// and command implementations, enabling dependency injection and testability.
//
// Design Principles:
//   - Accept interfaces, return structs (Go proverb)
//   - Define interfaces where they're used, not where they're implemented
//   - Keep interfaces small and focused
//
// Usage in Commands:
//
//	import (
//	    "context"
//	    "github.com/openlistings/mlsync/cmd/application"
//	)
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            ctx := cmd.Context() // context.Context from cobra
//	            client, err := app.Client()
//	            if err != nil {
//	                return err
//	            }
//	            // ... use client
//	            return nil
//	        },
//	    }
//	}
//
// Testing with Mocks:
//
//	mock := &application.Mock{
//	    ClientFunc: func() (mlsync.Client, error) {
//	        return testClient, nil
//	    },
//	    LoggerFunc: func() *zerolog.Logger {
//	        logger := zerolog.Nop()
//	        return &logger
//	    },
//	}
//	cmd := NewCommand(mock)
//	// ... test command behavior
package application

import (
	"github.com/rs/zerolog"

	"github.com/openlistings/mlsync"
	"github.com/openlistings/mlsync/internal/config"
)

// Application provides the application interface that commands need.
// The App struct from cmd/mlsync/app automatically implements this interface,
// providing dependency injection for commands while maintaining testability.
//
// Commands should accept this interface rather than the concrete App type,
// allowing for easier testing with mock implementations.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Client returns the mlsync client, lazy-initialized on first use and
	// cached for the life of the process (thread-safe). The client carries
	// the store backend and provider roster from the project configuration.
	Client() (mlsync.Client, error)

	// ProjectConfig returns the loaded project configuration describing
	// the store backend, schedule defaults, and provider roster. Commands
	// that only report configuration should prefer this over constructing
	// a full Client.
	ProjectConfig() (*config.File, error)

	// Logger returns the configured logger instance.
	// Commands should use this for all logging operations.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, etc).
	// Commands that support different output formats should use this.
	OutputFormat() string

	// Quiet reports whether progress chatter on stderr is suppressed.
	Quiet() bool

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
