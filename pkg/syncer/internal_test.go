package syncer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openlistings/mlsync/internal/adapters"
	"github.com/openlistings/mlsync/pkg/constants"
	pkgerrors "github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

func TestRetryDelayDoublesAndCaps(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: constants.RetryBackoff},
		{attempt: 2, want: 2 * constants.RetryBackoff},
		{attempt: 3, want: 4 * constants.RetryBackoff},
		{attempt: 10, want: constants.MaxRetryBackoff},
		{attempt: 60, want: constants.MaxRetryBackoff},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, retryDelay(tt.attempt))
		})
	}
}

func TestAdvanceProgressNeverDecreases(t *testing.T) {
	r := &runner{syncer: &Syncer{window: constants.RecentWindowSize}}

	r.run.Counters.Processed = 4
	r.advance(adapters.Page{Number: 1, Total: 8}, nil)
	assert.Equal(t, float64(50), r.run.Progress)

	// A provider that revises its reported total upward mid-walk would
	// push the raw percentage back down; the committed value holds.
	r.advance(adapters.Page{Number: 2, Total: 100}, nil)
	assert.Equal(t, float64(50), r.run.Progress)

	// An unreported total leaves progress where it was.
	r.advance(adapters.Page{Number: 3, Total: 0}, nil)
	assert.Equal(t, float64(50), r.run.Progress)

	r.run.Counters.Processed = 12
	r.advance(adapters.Page{Number: 4, Total: 8}, nil)
	assert.Equal(t, float64(100), r.run.Progress, "progress clamps at 100")
}

func TestIssueErrorCarriesMLSID(t *testing.T) {
	issue := pkgerrors.NewRecordError("metro", "MLS77", "price not numeric", nil)

	syncErr := issueError(issue)
	assert.Equal(t, listings.ErrorTypeData, syncErr.Type)
	assert.Equal(t, "MLS77", syncErr.MLSID)
	assert.Contains(t, syncErr.Message, "price not numeric")

	wrapped := issueError(fmt.Errorf("page 3: %w", issue))
	assert.Equal(t, "MLS77", wrapped.MLSID, "wrapping must not hide the record attribution")

	plain := issueError(fmt.Errorf("truncated payload"))
	assert.Empty(t, plain.MLSID)
	assert.Equal(t, listings.ErrorTypeData, plain.Type)
}
