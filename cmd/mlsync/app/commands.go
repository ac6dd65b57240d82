package app

import (
	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/mlsync/cmd/dupes"
	cmderrors "github.com/openlistings/mlsync/cmd/mlsync/cmd/errors"
	"github.com/openlistings/mlsync/cmd/mlsync/cmd/providers"
	"github.com/openlistings/mlsync/cmd/mlsync/cmd/resolve"
	"github.com/openlistings/mlsync/cmd/mlsync/cmd/schedule"
	"github.com/openlistings/mlsync/cmd/mlsync/cmd/status"
	"github.com/openlistings/mlsync/cmd/mlsync/cmd/sync"
	"github.com/openlistings/mlsync/cmd/mlsync/cmd/validate"
	"github.com/openlistings/mlsync/cmd/mlsync/cmd/version"
)

// CreateSyncCommand creates the sync command with app dependencies.
func (a *App) CreateSyncCommand() *cobra.Command {
	return sync.NewCommand(a)
}

// CreateStatusCommand creates the status command with app dependencies.
func (a *App) CreateStatusCommand() *cobra.Command {
	return status.NewCommand(a)
}

// CreateProvidersCommand creates the providers command with app dependencies.
func (a *App) CreateProvidersCommand() *cobra.Command {
	return providers.NewCommand(a)
}

// CreateScheduleCommand creates the schedule command with app dependencies.
func (a *App) CreateScheduleCommand() *cobra.Command {
	return schedule.NewCommand(a)
}

// CreateValidateCommand creates the validate command with app dependencies.
func (a *App) CreateValidateCommand() *cobra.Command {
	return validate.NewCommand(a)
}

// CreateDupesCommand creates the dupes command with app dependencies.
func (a *App) CreateDupesCommand() *cobra.Command {
	return dupes.NewCommand(a)
}

// CreateResolveCommand creates the resolve command with app dependencies.
func (a *App) CreateResolveCommand() *cobra.Command {
	return resolve.NewCommand(a)
}

// CreateErrorsCommand creates the errors command with app dependencies.
func (a *App) CreateErrorsCommand() *cobra.Command {
	return cmderrors.NewCommand(a)
}

// CreateVersionCommand creates the version command with app dependencies.
func (a *App) CreateVersionCommand() *cobra.Command {
	return version.NewCommand(a)
}
