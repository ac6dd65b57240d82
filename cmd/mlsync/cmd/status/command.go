// Package status implements the status command, which reports each
// provider's latest sync run.
package status

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync"
	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/pkg/listings"
)

// NewCommand creates the status command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status [provider]",
		GroupID: "core",
		Short:   "Show sync status per provider",
		Args:    cobra.MaximumNArgs(1),
		Long: `Status reports each provider's latest sync run: its state, progress,
and record counters. A provider that has never synced reports idle.

Naming a provider shows that provider's latest run in full, including
any errors the run recorded.`,
		Example: `  mlsync status                            # All providers
  mlsync status metro-mls                  # One provider, with run errors
  mlsync status -o json                    # Machine-readable`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.Client()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return showProviderStatus(app, client, listings.ProviderID(args[0]))
			}
			return listStatuses(app, client)
		},
	}

	return cmd
}

// listStatuses renders the latest run of every registered provider.
func listStatuses(app application.Application, client mlsync.Client) error {
	providers := client.Providers()
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })

	runs := make([]listings.SyncRun, 0, len(providers))
	for _, cfg := range providers {
		run, err := client.Status(cfg.ID)
		if err != nil {
			return err
		}
		runs = append(runs, run)
	}

	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	var outputData any
	switch format {
	case output.FormatJSON, output.FormatYAML:
		outputData = runs
	default:
		outputData = statusTable(runs)
	}

	return formatter.Format(os.Stdout, outputData)
}

// showProviderStatus renders one provider's latest run in full.
func showProviderStatus(app application.Application, client mlsync.Client, id listings.ProviderID) error {
	run, err := client.Status(id)
	if err != nil {
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	if format == output.FormatJSON || format == output.FormatYAML {
		return formatter.Format(os.Stdout, run)
	}

	rows := [][]string{
		{"Provider", string(run.ProviderID)},
		{"Status", string(run.Status)},
		{"Progress", fmt.Sprintf("%.0f%%", run.Progress)},
		{"Run ID", orDash(run.ID)},
		{"Started", formatTime(run.StartedAt)},
		{"Ended", formatTimePtr(run.EndedAt)},
		{"Processed", fmt.Sprintf("%d", run.Counters.Processed)},
		{"Created", fmt.Sprintf("%d", run.Counters.Created)},
		{"Updated", fmt.Sprintf("%d", run.Counters.Updated)},
		{"Failed", fmt.Sprintf("%d", run.Counters.Failed)},
		{"Duplicates", fmt.Sprintf("%d", run.Counters.Duplicates)},
	}
	if err := formatter.Format(os.Stdout, output.Data{
		Headers: []string{"Field", "Value"},
		Rows:    rows,
	}); err != nil {
		return err
	}

	// Run errors below the table, newest last, matching run order
	if len(run.Errors) > 0 && !app.Quiet() {
		fmt.Fprintf(os.Stderr, "\n⚠️  %d error(s) this run:\n", len(run.Errors))
		for _, e := range run.Errors {
			fmt.Fprintf(os.Stderr, "   ✗ [%s] %s\n", e.Type, e.Message)
		}
	}
	return nil
}

// statusTable shapes run snapshots into table rows.
func statusTable(runs []listings.SyncRun) output.Data {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			string(run.ProviderID),
			string(run.Status),
			fmt.Sprintf("%.0f%%", run.Progress),
			fmt.Sprintf("%d", run.Counters.Processed),
			fmt.Sprintf("%d", run.Counters.Created),
			fmt.Sprintf("%d", run.Counters.Updated),
			fmt.Sprintf("%d", run.Counters.Failed),
			fmt.Sprintf("%d", run.Counters.Duplicates),
			formatTime(run.StartedAt),
		})
	}
	return output.Data{
		Headers: []string{"Provider", "Status", "Progress", "Processed", "Created", "Updated", "Failed", "Dupes", "Started"},
		Rows:    rows,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
