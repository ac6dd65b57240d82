// Package schedule implements the schedule command, which controls
// periodic background syncs.
package schedule

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/emoji"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/schedule"
)

// NewCommand creates the schedule command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		GroupID: "core",
		Short:   "Control periodic background syncs",
		Long: `Schedule drives periodic syncs for enabled providers at their
configured intervals.

Schedules live for the life of the process: 'schedule start' runs the
scheduler in the foreground until interrupted. 'status' shows each
provider's effective interval and, inside a running scheduler, the time
until its next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to help if no subcommand
			if len(args) == 0 {
				return cmd.Help()
			}
			return fmt.Errorf("unknown subcommand: %s", args[0])
		},
	}

	cmd.AddCommand(newStartCommand(app))
	cmd.AddCommand(newStopCommand(app))
	cmd.AddCommand(newStatusCommand(app))

	return cmd
}

// newStartCommand starts schedules and runs them in the foreground.
func newStartCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "start [provider]",
		Short: "Run the scheduler in the foreground",
		Args:  cobra.MaximumNArgs(1),
		Example: `  mlsync schedule start                    # Every enabled provider
  mlsync schedule start metro-mls          # One provider only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				if err := client.Scheduler().Start(listings.ProviderID(args[0])); err != nil {
					return err
				}
			} else if err := client.AutoSyncOn(); err != nil {
				return err
			}

			quiet := app.Quiet()
			if !quiet {
				for _, s := range client.Scheduler().Statuses() {
					if s.Enabled {
						fmt.Fprintf(os.Stderr, "📅 %s: syncing every %s\n", s.ProviderID, s.Interval)
					}
				}
				fmt.Fprintf(os.Stderr, "\n⏱️  Scheduler running; press Ctrl-C to stop\n")
			}

			<-ctx.Done()

			//nolint:errcheck // StopAll has no failure mode
			_ = client.AutoSyncOff()
			if !quiet {
				fmt.Fprintf(os.Stderr, "\n✅ Scheduler stopped\n")
			}
			return nil
		},
	}
}

// newStopCommand stops schedules within the current process.
func newStopCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [provider]",
		Short: "Stop scheduled syncs in this process",
		Args:  cobra.MaximumNArgs(1),
		Long: `Stop halts schedules started in this process, including ones the
auto_sync config setting started at client construction. Runs already
in flight are cancelled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				id := listings.ProviderID(args[0])
				if err := client.Scheduler().Stop(id); err != nil {
					return err
				}
				if !app.Quiet() {
					fmt.Fprintf(os.Stderr, "✅ Schedule stopped for %s\n", id)
				}
				return nil
			}

			if err := client.AutoSyncOff(); err != nil {
				return err
			}
			if !app.Quiet() {
				fmt.Fprintf(os.Stderr, "✅ All schedules stopped\n")
			}
			return nil
		},
	}
}

// newStatusCommand reports each provider's schedule.
func newStatusCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show each provider's schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			statuses := client.Scheduler().Statuses()

			format := output.DetectFormat(app.OutputFormat())
			formatter := output.NewFormatter(format)

			var outputData any
			switch format {
			case output.FormatJSON, output.FormatYAML:
				outputData = statuses
			default:
				outputData = statusTable(statuses)
			}

			return formatter.Format(os.Stdout, outputData)
		},
	}
}

// statusTable shapes schedule statuses into table rows.
func statusTable(statuses []schedule.Status) output.Data {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		scheduled := emoji.Optional
		if s.Enabled {
			scheduled = emoji.Success
		}
		next := "-"
		if s.NextRunETA > 0 {
			next = "in " + s.NextRunETA.Round(time.Second).String()
		}
		lastRun := s.LastRunID
		if lastRun == "" {
			lastRun = "-"
		}
		rows = append(rows, []string{
			string(s.ProviderID),
			scheduled,
			s.Interval.String(),
			next,
			lastRun,
		})
	}
	return output.Data{
		Headers: []string{"Provider", "Scheduled", "Interval", "Next Run", "Last Run ID"},
		Rows:    rows,
	}
}
