// Package errors implements the errors command, which shows the sync
// error audit log.
package errors

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/emoji"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/pkg/listings"
)

// NewCommand creates the errors command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "errors",
		GroupID: "management",
		Short:   "Show recent sync errors",
		Long: `Errors shows the newest entries from the sync error audit log across
all providers and runs: auth failures, network timeouts, rejected
records, and quality-floor violations.`,
		Example: `  mlsync errors                            # Last 20 errors
  mlsync errors --limit 100                # More history
  mlsync errors -o json                    # Machine-readable`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			client, err := app.Client()
			if err != nil {
				return err
			}

			syncErrors, err := client.RecentErrors(ctx, limit)
			if err != nil {
				return err
			}

			return listErrors(app, syncErrors)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum errors to show (0 = all)")

	return cmd
}

// listErrors renders audit-log entries, newest first.
func listErrors(app application.Application, syncErrors []listings.SyncError) error {
	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	var outputData any
	switch format {
	case output.FormatJSON, output.FormatYAML:
		outputData = syncErrors
	default:
		rows := make([][]string, 0, len(syncErrors))
		for _, e := range syncErrors {
			retryable := emoji.Optional
			if e.Retryable {
				retryable = emoji.Success
			}
			rows = append(rows, []string{
				e.Time.Local().Format("2006-01-02 15:04:05"),
				string(e.ProviderID),
				string(e.Type),
				orDash(e.MLSID),
				retryable,
				e.Message,
			})
		}
		outputData = output.Data{
			Headers: []string{"Time", "Provider", "Type", "MLS ID", "Retryable", "Message"},
			Rows:    rows,
		}
	}

	if err := formatter.Format(os.Stdout, outputData); err != nil {
		return err
	}

	if len(syncErrors) == 0 && !app.Quiet() && format != output.FormatJSON && format != output.FormatYAML {
		fmt.Fprintf(os.Stderr, "✅ No sync errors recorded\n")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
