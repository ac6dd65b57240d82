// Package resolve implements the resolve command, which applies a
// reviewer's decision to a duplicate candidate.
package resolve

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/pkg/listings"
)

// NewCommand creates the resolve command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var (
		action string
		save   bool
	)

	cmd := &cobra.Command{
		Use:     "resolve <candidate-id>",
		GroupID: "management",
		Short:   "Apply a decision to a duplicate candidate",
		Args:    cobra.ExactArgs(1),
		Long: `Resolve applies a decision to a duplicate candidate:

  merge      combine both records, field by field, into the most
             complete and freshest composite; the merged record replaces
             both sides in the catalog
  keep_both  mark the pair as distinct listings; future syncs will not
             re-flag them
  skip       leave both records untouched and close the candidate

Without --action the detector's suggested action is applied. Resolving
an already-resolved candidate is a no-op and reports the stored outcome.`,
		Example: `  mlsync resolve dup-3f2a                  # Apply the suggested action
  mlsync resolve dup-3f2a --action merge   # Override the suggestion
  mlsync resolve dup-3f2a --action skip --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client()
			if err != nil {
				return err
			}

			candidateID := args[0]

			chosen := listings.ResolveAction(action)
			if action == "" {
				candidate, err := client.Duplicate(ctx, candidateID)
				if err != nil {
					return err
				}
				chosen = candidate.SuggestedAction
			} else if !chosen.IsValid() {
				return fmt.Errorf("invalid action %q: must be one of merge, keep_both, skip", action)
			}

			resolved, err := client.ResolveDuplicate(ctx, candidateID, chosen)
			if err != nil {
				return err
			}

			if save {
				if err := client.Save(ctx); err != nil {
					return err
				}
			}

			if !app.Quiet() {
				displayOutcome(resolved)
			}

			format := app.OutputFormat()
			if format == "json" || format == "yaml" {
				formatter := output.NewFormatter(output.Format(format))
				return formatter.Format(os.Stdout, resolved)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "", "action to apply: merge, keep_both, skip (default: the suggested action)")
	cmd.Flags().BoolVar(&save, "save", false, "persist the catalog after resolving")

	return cmd
}

// displayOutcome reports the stored resolution on stderr.
func displayOutcome(c listings.DuplicateCandidate) {
	switch c.ResolvedAction {
	case listings.ActionMerge:
		if c.Merged != nil {
			removed := c.Source.Key()
			if c.Merged.Key() == c.Source.Key() {
				removed = c.Target.Key()
			}
			fmt.Fprintf(os.Stderr, "✅ %s: merged into %s (%s removed)\n", c.ID, c.Merged.Key(), removed)
		} else {
			fmt.Fprintf(os.Stderr, "✅ %s: merge applied\n", c.ID)
		}
	case listings.ActionKeepBoth:
		fmt.Fprintf(os.Stderr, "✅ %s: kept both %s and %s\n", c.ID, c.Source.Key(), c.Target.Key())
	case listings.ActionSkip:
		fmt.Fprintf(os.Stderr, "✅ %s: skipped, records untouched\n", c.ID)
	default:
		fmt.Fprintf(os.Stderr, "✅ %s: resolved (%s)\n", c.ID, c.ResolvedAction)
	}
}
