// Package dedupe finds likely-duplicate listing pairs with weighted
// fuzzy matching and proposes how to resolve them. Pair confidence is
// 0.4·address + 0.3·price + 0.3·details; pairs at or above the emit
// threshold become DuplicateCandidates, sorted by confidence.
//
// Comparison cost is bounded before any string similarity runs: records
// are bucketed by state (records without a state are compared against
// every bucket) and pairs whose prices can never reach the threshold
// are pruned, since a price ratio under 0.5 caps the pair score at 0.7.
package dedupe

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/openlistings/mlsync/pkg/constants"
	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/logging"
)

// Detection thresholds.
const (
	// DefaultMinConfidence is the score at which a pair is emitted as a
	// candidate.
	DefaultMinConfidence = 0.85

	// DefaultMergeConfidence is the score at which a candidate with
	// enough match reasons is suggested for automatic merge.
	DefaultMergeConfidence = 0.95

	// DefaultMinMergeReasons is how many distinct match reasons an
	// automatic merge suggestion requires.
	DefaultMinMergeReasons = 2
)

// Detector scores record pairs. Construct with New; the zero value has
// no thresholds set.
type Detector struct {
	minConfidence   float64
	mergeConfidence float64
	minMergeReasons int
	workers         int
	newID           func() string
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinConfidence overrides the candidate emit threshold.
func WithMinConfidence(min float64) Option {
	return func(d *Detector) {
		if min > 0 && min <= 1 {
			d.minConfidence = min
		}
	}
}

// WithMergeConfidence overrides the automatic merge threshold.
func WithMergeConfidence(min float64) Option {
	return func(d *Detector) {
		if min > 0 && min <= 1 {
			d.mergeConfidence = min
		}
	}
}

// WithWorkers caps the comparison goroutines.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithIDGenerator overrides candidate ID generation (tests).
func WithIDGenerator(newID func() string) Option {
	return func(d *Detector) {
		if newID != nil {
			d.newID = newID
		}
	}
}

// New creates a Detector with the default thresholds.
func New(opts ...Option) *Detector {
	d := &Detector{
		minConfidence:   DefaultMinConfidence,
		mergeConfidence: DefaultMergeConfidence,
		minMergeReasons: DefaultMinMergeReasons,
		workers:         constants.MaxConcurrentComparisons,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FindDuplicates compares the records pairwise and returns candidates
// sorted by confidence descending, ties in input-pair order. Output is
// identical regardless of how comparisons are scheduled.
func (d *Detector) FindDuplicates(ctx context.Context, records []listings.Property) ([]listings.DuplicateCandidate, error) {
	pairs := candidatePairs(records)
	if len(pairs) == 0 {
		return nil, ctx.Err()
	}

	results := make([]*listings.DuplicateCandidate, len(pairs))

	workers := d.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(pairs) {
		workers = len(pairs)
	}
	chunk := (len(pairs) + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		canceled atomic.Bool
	)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(pairs))
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for k := lo; k < hi; k++ {
				if ctx.Err() != nil {
					canceled.Store(true)
					return
				}
				results[k] = d.scorePair(records[pairs[k][0]], records[pairs[k][1]])
			}
		}(lo, hi)
	}
	wg.Wait()

	if canceled.Load() {
		return nil, ctx.Err()
	}

	var candidates []listings.DuplicateCandidate
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	if len(candidates) > 0 {
		logging.FromContext(ctx).Debug().
			Int("records", len(records)).
			Int("pairs_scored", len(pairs)).
			Int("candidates", len(candidates)).
			Msg("duplicate detection pass")
	}
	return candidates, nil
}

// scorePair returns a candidate for the pair, or nil below threshold.
func (d *Detector) scorePair(a, b listings.Property) *listings.DuplicateCandidate {
	confidence, reasons := d.Compare(a, b)
	if confidence < d.minConfidence {
		return nil
	}

	action := d.suggestAction(confidence, len(reasons))
	candidate := &listings.DuplicateCandidate{
		ID:              d.newID(),
		Confidence:      confidence,
		Source:          a.Clone(),
		Target:          b.Clone(),
		MatchReasons:    reasons,
		SuggestedAction: action,
	}
	if action == listings.ActionMerge {
		merged := Merge(a, b)
		candidate.Merged = &merged
	}
	return candidate
}

// suggestAction picks the resolution to propose: merge for confident
// multi-reason matches, keep_both for candidates above the emit
// threshold, skip below it.
func (d *Detector) suggestAction(confidence float64, reasons int) listings.ResolveAction {
	switch {
	case confidence >= d.mergeConfidence && reasons >= d.minMergeReasons:
		return listings.ActionMerge
	case confidence >= d.minConfidence:
		return listings.ActionKeepBoth
	default:
		return listings.ActionSkip
	}
}

// candidatePairs generates the index pairs worth scoring, in input
// order. Pairs never reference the same stored record, records are
// bucketed by state, and pairs whose prices cannot reach the emit
// threshold are pruned.
func candidatePairs(records []listings.Property) [][2]int {
	byState := make(map[string][]int)
	var stateless []int
	for i := range records {
		state := records[i].Address.State
		if state == "" {
			stateless = append(stateless, i)
			continue
		}
		byState[state] = append(byState[state], i)
	}

	var pairs [][2]int
	add := func(i, j int) {
		if i > j {
			i, j = j, i
		}
		a, b := &records[i], &records[j]
		// Identical MLS numbers are identity, not a fuzzy match: the
		// upsert path already reconciles those.
		if a.MLSID != "" && a.MLSID == b.MLSID {
			return
		}
		if priceSimilarity(a.Price, b.Price) == 0 {
			// 0.4·address + 0.3·details caps at 0.7 without price.
			return
		}
		pairs = append(pairs, [2]int{i, j})
	}

	for _, bucket := range byState {
		for x := 0; x < len(bucket); x++ {
			for y := x + 1; y < len(bucket); y++ {
				add(bucket[x], bucket[y])
			}
		}
		for _, x := range bucket {
			for _, y := range stateless {
				add(x, y)
			}
		}
	}
	for x := 0; x < len(stateless); x++ {
		for y := x + 1; y < len(stateless); y++ {
			add(stateless[x], stateless[y])
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	return pairs
}
