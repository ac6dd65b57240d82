package sync

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openlistings/mlsync"
	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// ExecuteSync performs the sync operation and handles the results.
func ExecuteSync(ctx context.Context, app application.Application, flags *Flags) error {
	if flags.Provider == "" && !flags.All {
		return fmt.Errorf("name a provider to sync, or pass --all")
	}
	if flags.Provider != "" && flags.All {
		return fmt.Errorf("--all cannot be combined with a provider argument")
	}

	client, err := app.Client()
	if err != nil {
		return err
	}

	targets, err := resolveTargets(client, flags)
	if err != nil {
		return err
	}

	opts := listings.SyncOptions{
		FullSync:       flags.Full,
		MaxRecords:     flags.MaxRecords,
		SkipDuplicates: flags.SkipDuplicates,
		ValidateData:   !flags.NoValidate,
	}

	quiet := app.Quiet()
	if !quiet {
		fmt.Fprintf(os.Stderr, "\n🔄 Starting sync...\n\n")
	}

	runs := make([]listings.SyncRun, 0, len(targets))
	var failed []string
	for _, id := range targets {
		run, err := client.Sync(ctx, id, opts)
		if err != nil {
			return err
		}
		runs = append(runs, run)

		if !quiet {
			displayRunSummary(run)
		}
		if run.Status == listings.RunStatusFailed {
			failed = append(failed, string(id))
		}
	}

	if flags.Save {
		if err := client.Save(ctx); err != nil {
			return err
		}
		if !quiet {
			fmt.Fprintf(os.Stderr, "\n💾 Catalog saved\n")
		}
	}

	// Structured output for pipes; the stderr summary covers terminals
	format := app.OutputFormat()
	if format == "json" || format == "yaml" {
		formatter := output.NewFormatter(output.Format(format))
		if err := formatter.Format(os.Stdout, runs); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("sync failed for provider(s): %s", strings.Join(failed, ", "))
	}
	return nil
}

// resolveTargets picks the providers this invocation syncs.
func resolveTargets(client mlsync.Client, flags *Flags) ([]listings.ProviderID, error) {
	if flags.All {
		var targets []listings.ProviderID
		for _, cfg := range client.Providers() {
			if cfg.Enabled {
				targets = append(targets, cfg.ID)
			}
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("no enabled providers configured")
		}
		return targets, nil
	}

	id := listings.ProviderID(flags.Provider)
	cfg, ok := client.Provider(id)
	if !ok {
		return nil, errors.NewNotFoundError("provider", flags.Provider)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("provider %q is disabled; enable it in the config first", flags.Provider)
	}
	return []listings.ProviderID{id}, nil
}

// displayRunSummary shows one run's outcome on stderr.
func displayRunSummary(run listings.SyncRun) {
	c := run.Counters
	switch run.Status {
	case listings.RunStatusCompleted:
		fmt.Fprintf(os.Stderr, "✅ %s: %d processed (%d created, %d updated) in %s\n",
			run.ProviderID, c.Processed, c.Created, c.Updated, runDuration(run))
	case listings.RunStatusFailed:
		fmt.Fprintf(os.Stderr, "❌ %s: failed after %d records (%d errors)\n",
			run.ProviderID, c.Processed, len(run.Errors))
	default:
		fmt.Fprintf(os.Stderr, "⏸️  %s: %s after %d records\n",
			run.ProviderID, run.Status, c.Processed)
	}

	if c.Failed > 0 {
		fmt.Fprintf(os.Stderr, "   ⚠️  %d records failed quality or ingest checks\n", c.Failed)
	}
	if c.Duplicates > 0 {
		fmt.Fprintf(os.Stderr, "   🔍 %d duplicate candidates flagged (review with 'mlsync dupes')\n", c.Duplicates)
	}
	if run.Status == listings.RunStatusFailed && len(run.Errors) > 0 {
		last := run.Errors[len(run.Errors)-1]
		fmt.Fprintf(os.Stderr, "   ✗ last error: [%s] %s\n", last.Type, last.Message)
	}
}

// runDuration formats the run's wall time.
func runDuration(run listings.SyncRun) time.Duration {
	end := time.Now()
	if run.EndedAt != nil {
		end = *run.EndedAt
	}
	return end.Sub(run.StartedAt).Round(10 * time.Millisecond)
}
