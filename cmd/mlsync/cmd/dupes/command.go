// Package dupes implements the dupes command, which lists duplicate
// candidates awaiting review.
package dupes

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/pkg/listings"
)

// NewCommand creates the dupes command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "dupes [candidate-id]",
		GroupID: "management",
		Short:   "List duplicate candidates awaiting review",
		Aliases: []string{"duplicates"},
		Args:    cobra.MaximumNArgs(1),
		Long: `Dupes lists cross-provider duplicate candidates the detector flagged
during sync. Unresolved candidates come first, newest first.

Naming a candidate shows both records side by side with the detector's
match reasons and, for merge suggestions, the proposed merged record.

Apply a decision with 'mlsync resolve'.`,
		Example: `  mlsync dupes                             # Unresolved candidates
  mlsync dupes --all                       # Include resolved ones
  mlsync dupes dup-3f2a                    # Inspect one candidate
  mlsync dupes -o json                     # Machine-readable`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := app.Client()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				candidate, err := client.Duplicate(ctx, args[0])
				if err != nil {
					return err
				}
				return showCandidate(app, candidate)
			}

			candidates, err := client.Duplicates(ctx, all)
			if err != nil {
				return err
			}
			return listCandidates(app, candidates)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include resolved candidates")

	return cmd
}

// listCandidates renders the candidate queue.
func listCandidates(app application.Application, candidates []listings.DuplicateCandidate) error {
	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	var outputData any
	switch format {
	case output.FormatJSON, output.FormatYAML:
		outputData = candidates
	default:
		rows := make([][]string, 0, len(candidates))
		for _, c := range candidates {
			rows = append(rows, []string{
				c.ID,
				fmt.Sprintf("%.2f", c.Confidence),
				c.Source.Key(),
				c.Target.Key(),
				strings.Join(c.MatchReasons, ","),
				string(c.SuggestedAction),
				candidateState(c),
			})
		}
		outputData = output.Data{
			Headers: []string{"ID", "Confidence", "Source", "Target", "Reasons", "Suggested", "State"},
			Rows:    rows,
		}
	}

	if err := formatter.Format(os.Stdout, outputData); err != nil {
		return err
	}

	if len(candidates) == 0 && !app.Quiet() && format != output.FormatJSON && format != output.FormatYAML {
		fmt.Fprintf(os.Stderr, "✅ No duplicate candidates awaiting review\n")
	}
	return nil
}

// showCandidate renders one candidate with both records side by side.
func showCandidate(app application.Application, c listings.DuplicateCandidate) error {
	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	if format == output.FormatJSON || format == output.FormatYAML {
		return formatter.Format(os.Stdout, c)
	}

	rows := [][]string{
		{"Field", "Source", "Target"},
	}
	rows = append(rows,
		compareRow("Key", c.Source.Key(), c.Target.Key()),
		compareRow("Address", c.Source.Address.String(), c.Target.Address.String()),
		compareRow("Price", fmt.Sprintf("$%d", c.Source.Price), fmt.Sprintf("$%d", c.Target.Price)),
		compareRow("Beds/Baths", fmt.Sprintf("%d/%.1f", c.Source.Bedrooms, c.Source.Bathrooms),
			fmt.Sprintf("%d/%.1f", c.Target.Bedrooms, c.Target.Bathrooms)),
		compareRow("Sq Ft", fmt.Sprintf("%d", c.Source.SquareFeet), fmt.Sprintf("%d", c.Target.SquareFeet)),
		compareRow("Status", string(c.Source.Status), string(c.Target.Status)),
		compareRow("Updated", c.Source.UpdatedAt.Format("2006-01-02"), c.Target.UpdatedAt.Format("2006-01-02")),
	)

	if err := formatter.Format(os.Stdout, output.Data{
		Headers: rows[0],
		Rows:    rows[1:],
	}); err != nil {
		return err
	}

	if !app.Quiet() {
		fmt.Fprintf(os.Stderr, "\n🔍 %s: confidence %.2f, matched on %s\n",
			c.ID, c.Confidence, strings.Join(c.MatchReasons, ", "))
		switch {
		case c.Resolved:
			fmt.Fprintf(os.Stderr, "✅ Resolved: %s at %s\n",
				c.ResolvedAction, c.ResolvedAt.Local().Format("2006-01-02 15:04:05"))
		case c.Merged != nil:
			fmt.Fprintf(os.Stderr, "💡 Suggested: %s (keeps %s, preview with -o yaml)\n",
				c.SuggestedAction, c.Merged.Key())
		default:
			fmt.Fprintf(os.Stderr, "💡 Suggested: %s\n", c.SuggestedAction)
		}
	}
	return nil
}

// compareRow builds one field's source/target comparison.
func compareRow(field, source, target string) []string {
	return []string{field, source, target}
}

// candidateState names where a candidate sits in review.
func candidateState(c listings.DuplicateCandidate) string {
	if !c.Resolved {
		return "pending"
	}
	return "resolved:" + string(c.ResolvedAction)
}
