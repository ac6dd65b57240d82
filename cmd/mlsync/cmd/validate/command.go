// Package validate implements the validate command, which scores
// listing records offline without touching any provider.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/quality"
)

// NewCommand creates the validate command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var floor int

	cmd := &cobra.Command{
		Use:     "validate <file>",
		GroupID: "management",
		Short:   "Score listing records from a file",
		Args:    cobra.ExactArgs(1),
		Long: `Validate scores listing records from a YAML or JSON file offline,
using the same quality checks a sync run applies: completeness of
required fields, plausibility of price and size figures, and internal
consistency.

The file may hold a single record, a list of records, or a catalog
snapshot written by the files store. With --floor, records scoring
under the floor fail the command.`,
		Example: `  mlsync validate listings.yaml            # Score a batch
  mlsync validate record.json --floor 70   # Fail under-floor records
  mlsync validate listings.yaml -o json    # Machine-readable scores`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := readRecords(args[0])
			if err != nil {
				return err
			}
			return scoreRecords(app, records, floor)
		},
	}

	cmd.Flags().IntVar(&floor, "floor", 0, "quality floor in [0,100]; records under it fail the command (0 = report only)")

	return cmd
}

// batchDoc mirrors the files store's per-provider snapshot layout so
// saved catalogs validate directly.
type batchDoc struct {
	Listings []listings.Property `json:"listings" yaml:"listings"`
}

// readRecords loads one or many properties from a YAML or JSON file.
func readRecords(path string) ([]listings.Property, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	unmarshal := yaml.Unmarshal
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		unmarshal = json.Unmarshal
		format = "json"
	}

	// Accept a snapshot document, a bare list, or a single record.
	var doc batchDoc
	if err := unmarshal(raw, &doc); err == nil && len(doc.Listings) > 0 {
		return doc.Listings, nil
	}

	var records []listings.Property
	if err := unmarshal(raw, &records); err == nil && len(records) > 0 {
		return records, nil
	}

	var record listings.Property
	if err := unmarshal(raw, &record); err != nil {
		return nil, errors.WrapParse(format, path, err)
	}
	if record.MLSID == "" {
		return nil, errors.NewParseError(format, path, "no listing records found", nil)
	}
	return []listings.Property{record}, nil
}

// scoredRecord pairs a record key with its quality score.
type scoredRecord struct {
	Key   string                `json:"key" yaml:"key"`
	Score listings.QualityScore `json:"score" yaml:"score"`
}

// scoreRecords runs the validator and renders the outcome.
func scoreRecords(app application.Application, records []listings.Property, floor int) error {
	if floor < 0 || floor > 100 {
		return fmt.Errorf("floor %d out of range [0,100]", floor)
	}

	validator := quality.New()
	scores := validator.Batch(records)

	scored := make([]scoredRecord, len(records))
	failures := 0
	for i := range records {
		key := records[i].Key()
		if records[i].ProviderID == "" {
			key = records[i].MLSID
		}
		scored[i] = scoredRecord{Key: key, Score: scores[i]}
		if floor > 0 && !scores[i].Acceptable(floor) {
			failures++
		}
	}

	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	var outputData any
	switch format {
	case output.FormatJSON, output.FormatYAML:
		outputData = scored
	default:
		rows := make([][]string, 0, len(scored))
		for _, s := range scored {
			rows = append(rows, []string{
				s.Key,
				fmt.Sprintf("%d", s.Score.Overall),
				fmt.Sprintf("%d", s.Score.Completeness),
				fmt.Sprintf("%d", s.Score.Accuracy),
				fmt.Sprintf("%d", s.Score.Consistency),
				fmt.Sprintf("%d", len(s.Score.Issues)),
			})
		}
		outputData = output.Data{
			Headers: []string{"Record", "Overall", "Completeness", "Accuracy", "Consistency", "Issues"},
			Rows:    rows,
		}
	}

	if err := formatter.Format(os.Stdout, outputData); err != nil {
		return err
	}

	if !app.Quiet() {
		displayFindings(scored, floor)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d records under quality floor %d", failures, len(scored), floor)
	}
	return nil
}

// displayFindings lists issues and recommendations on stderr.
func displayFindings(scored []scoredRecord, floor int) {
	clean := true
	for _, s := range scored {
		if len(s.Score.Issues) == 0 {
			continue
		}
		clean = false
		marker := "⚠️ "
		if floor > 0 && !s.Score.Acceptable(floor) {
			marker = "❌"
		}
		fmt.Fprintf(os.Stderr, "\n%s %s scored %d:\n", marker, s.Key, s.Score.Overall)
		for _, issue := range s.Score.Issues {
			fmt.Fprintf(os.Stderr, "   ✗ %s\n", issue)
		}
		for _, rec := range s.Score.Recommendations {
			fmt.Fprintf(os.Stderr, "   ! %s\n", rec)
		}
	}

	if clean {
		fmt.Fprintf(os.Stderr, "\n✅ %d record(s) scored, no issues found\n", len(scored))
	}
}
