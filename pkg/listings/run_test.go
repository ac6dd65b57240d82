package listings_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/openlistings/mlsync/pkg/listings"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to listings.RunStatus
		want     bool
	}{
		{listings.RunStatusIdle, listings.RunStatusRunning, true},
		{listings.RunStatusRunning, listings.RunStatusCompleted, true},
		{listings.RunStatusRunning, listings.RunStatusFailed, true},
		{listings.RunStatusRunning, listings.RunStatusPaused, true},
		{listings.RunStatusPaused, listings.RunStatusRunning, true},
		{listings.RunStatusPaused, listings.RunStatusFailed, true},

		{listings.RunStatusRunning, listings.RunStatusIdle, false},
		{listings.RunStatusPaused, listings.RunStatusCompleted, false},
		{listings.RunStatusCompleted, listings.RunStatusRunning, false},
		{listings.RunStatusCompleted, listings.RunStatusFailed, false},
		{listings.RunStatusFailed, listings.RunStatusRunning, false},
		{listings.RunStatusFailed, listings.RunStatusPaused, false},
		{listings.RunStatusIdle, listings.RunStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, listings.CanTransition(tt.from, tt.to))
		})
	}
}

func TestRunStatusTerminal(t *testing.T) {
	assert.True(t, listings.RunStatusCompleted.Terminal())
	assert.True(t, listings.RunStatusFailed.Terminal())
	assert.False(t, listings.RunStatusRunning.Terminal())
	assert.False(t, listings.RunStatusPaused.Terminal())
	assert.False(t, listings.RunStatusIdle.Terminal())
}

func TestSyncRunSnapshot(t *testing.T) {
	ended := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	run := listings.SyncRun{
		ID:         "run-1",
		ProviderID: "metro-mls",
		Status:     listings.RunStatusCompleted,
		EndedAt:    &ended,
		Errors: []listings.SyncError{
			{ID: "err-1", Type: listings.ErrorTypeData, Message: "bad record"},
		},
	}

	snap := run.Snapshot()
	snap.Errors[0].Message = "mutated"
	*snap.EndedAt = snap.EndedAt.Add(time.Hour)

	assert.Equal(t, "bad record", run.Errors[0].Message)
	assert.Equal(t, ended, *run.EndedAt)
}

func TestSyncOptionsFilters(t *testing.T) {
	t.Run("zero value admits everything", func(t *testing.T) {
		var opts listings.SyncOptions
		assert.True(t, opts.WantsType(listings.PropertyTypeCondo))
		assert.True(t, opts.WantsStatus(listings.StatusSold))
	})

	t.Run("type filter", func(t *testing.T) {
		opts := listings.SyncOptions{
			PropertyTypes: []listings.PropertyType{listings.PropertyTypeSingleFamily},
		}
		assert.True(t, opts.WantsType(listings.PropertyTypeSingleFamily))
		assert.False(t, opts.WantsType(listings.PropertyTypeCondo))
	})

	t.Run("status filter", func(t *testing.T) {
		opts := listings.SyncOptions{
			StatusFilter: []listings.ListingStatus{listings.StatusActive, listings.StatusPending},
		}
		assert.True(t, opts.WantsStatus(listings.StatusPending))
		assert.False(t, opts.WantsStatus(listings.StatusWithdrawn))
	})
}

func TestDateRangeContains(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
	dr := listings.DateRange{Start: start, End: end}

	assert.True(t, dr.Contains(start))
	assert.True(t, dr.Contains(end))
	assert.True(t, dr.Contains(start.AddDate(0, 0, 15)))
	assert.False(t, dr.Contains(start.Add(-time.Second)))
	assert.False(t, dr.Contains(end.Add(time.Second)))
}
