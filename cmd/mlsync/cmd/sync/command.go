// Package sync implements the sync command, which pulls listings from
// MLS providers into the catalog.
package sync

import (
	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/application"
)

// NewCommand creates the sync command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var flags *Flags

	cmd := &cobra.Command{
		Use:     "sync [provider]",
		GroupID: "core",
		Short:   "Pull listings from MLS providers",
		Args:    cobra.MaximumNArgs(1),
		Long: `Sync pulls listings from one or all configured MLS providers and
reconciles them into the catalog.

Each run:

1. Authenticates against the provider (form login, OAuth2, or custom JSON)
2. Fetches listings page by page, honoring the provider's rate limit
3. Scores record quality and flags records under the provider's floor
4. Upserts records into the catalog keyed by provider/MLS ID
5. Detects likely duplicates across providers for later review

By default only records modified since the last successful run are
fetched; --full refetches everything.`,
		Example: `  mlsync sync metro-mls                    # Sync one provider
  mlsync sync --all                        # Sync every enabled provider
  mlsync sync metro-mls --full             # Ignore the last-sync watermark
  mlsync sync metro-mls --max-records 100  # Bounded test run
  mlsync sync --all --save                 # Persist the catalog afterwards`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			// Positional argument names the provider
			if len(args) == 1 {
				flags.Provider = args[0]
			}

			return ExecuteSync(ctx, app, flags)
		},
	}

	// Add sync-specific flags
	flags = addSyncFlags(cmd)

	return cmd
}

// Flags holds the sync command's flag values.
type Flags struct {
	Provider       string
	All            bool
	Full           bool
	MaxRecords     int
	SkipDuplicates bool
	NoValidate     bool
	Save           bool
}

// addSyncFlags registers the sync command's flags and returns the
// struct they parse into.
func addSyncFlags(cmd *cobra.Command) *Flags {
	flags := &Flags{}
	cmd.Flags().BoolVar(&flags.All, "all", false, "sync every enabled provider")
	cmd.Flags().BoolVar(&flags.Full, "full", false, "ignore the last-sync watermark and refetch everything")
	cmd.Flags().IntVar(&flags.MaxRecords, "max-records", 0, "cap records processed this run (0 = unbounded)")
	cmd.Flags().BoolVar(&flags.SkipDuplicates, "skip-duplicates", false, "skip duplicate detection after ingest")
	cmd.Flags().BoolVar(&flags.NoValidate, "no-validate", false, "skip data quality scoring")
	cmd.Flags().BoolVar(&flags.Save, "save", false, "persist the catalog after the run")
	return flags
}
