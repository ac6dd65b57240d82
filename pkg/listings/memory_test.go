package listings_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

func seedProperty(mlsID string, provider listings.ProviderID) listings.Property {
	return listings.Property{
		MLSID:      mlsID,
		ProviderID: provider,
		Address: listings.Address{
			Street: "123 Main St",
			City:   "Springfield",
			State:  "IL",
			ZIP:    "62704",
		},
		Price:        250000,
		PropertyType: listings.PropertyTypeSingleFamily,
		Status:       listings.StatusActive,
		Bedrooms:     3,
		Bathrooms:    2,
		SquareFeet:   1400,
		UpdatedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMemoryUpsert(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	created, err := store.Upsert(ctx, seedProperty("MLS1", "metro-mls"))
	require.NoError(t, err)
	assert.True(t, created)

	updated := seedProperty("MLS1", "metro-mls")
	updated.Price = 260000
	created, err = store.Upsert(ctx, updated)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.Property(ctx, "metro-mls", "MLS1")
	require.NoError(t, err)
	assert.Equal(t, int64(260000), got.Price)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryUpsertRejectsUnkeyed(t *testing.T) {
	store := listings.NewMemory()
	_, err := store.Upsert(context.Background(), listings.Property{MLSID: "MLS1"})
	assert.Error(t, err)
}

func TestMemoryPropertyNotFound(t *testing.T) {
	store := listings.NewMemory()
	_, err := store.Property(context.Background(), "metro-mls", "nope")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestMemorySameMLSIDAcrossProviders(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	created, err := store.Upsert(ctx, seedProperty("MLS1", "metro-mls"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.Upsert(ctx, seedProperty("MLS1", "coastal"))
	require.NoError(t, err)
	assert.True(t, created, "same MLS id under another provider is a distinct record")

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	a := seedProperty("MLS2", "metro-mls")
	b := seedProperty("MLS1", "metro-mls")
	c := seedProperty("MLS1", "coastal")
	c.Status = listings.StatusSold
	c.Price = 900000

	for _, p := range []listings.Property{a, b, c} {
		_, err := store.Upsert(ctx, p)
		require.NoError(t, err)
	}

	t.Run("ordered by provider then mls id", func(t *testing.T) {
		all, err := store.List(ctx, listings.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "coastal/MLS1", all[0].Key())
		assert.Equal(t, "metro-mls/MLS1", all[1].Key())
		assert.Equal(t, "metro-mls/MLS2", all[2].Key())
	})

	t.Run("filter by provider", func(t *testing.T) {
		got, err := store.List(ctx, listings.Filter{ProviderID: "metro-mls"})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("filter by status and price", func(t *testing.T) {
		got, err := store.List(ctx, listings.Filter{
			Status:   listings.StatusSold,
			MinPrice: 500000,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "coastal/MLS1", got[0].Key())
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.List(ctx, listings.Filter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	_, err := store.Upsert(ctx, seedProperty("MLS1", "metro-mls"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "metro-mls", "MLS1"))
	assert.True(t, pkgerrors.IsNotFound(store.Delete(ctx, "metro-mls", "MLS1")))
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	p := seedProperty("MLS1", "metro-mls")
	p.Media = []listings.MediaItem{{URL: "https://cdn.test/1.jpg", Primary: true}}
	_, err := store.Upsert(ctx, p)
	require.NoError(t, err)

	got, err := store.Property(ctx, "metro-mls", "MLS1")
	require.NoError(t, err)
	got.Media[0].URL = "https://cdn.test/mutated.jpg"
	got.Price = 1

	again, err := store.Property(ctx, "metro-mls", "MLS1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/1.jpg", again.Media[0].URL)
	assert.Equal(t, int64(250000), again.Price)
}

func newCandidate(id string) listings.DuplicateCandidate {
	source := seedProperty("MLS1", "metro-mls")
	target := seedProperty("MLS900", "coastal")
	return listings.DuplicateCandidate{
		ID:              id,
		Confidence:      0.91,
		Source:          source,
		Target:          target,
		MatchReasons:    []string{"address", "price"},
		SuggestedAction: listings.ActionKeepBoth,
	}
}

func TestMemorySaveCandidate(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	require.NoError(t, store.SaveCandidate(ctx, newCandidate("dup-1")))

	t.Run("requires id", func(t *testing.T) {
		err := store.SaveCandidate(ctx, listings.DuplicateCandidate{})
		assert.Error(t, err)
	})

	t.Run("re-filing same pair updates in place", func(t *testing.T) {
		refiled := newCandidate("dup-2")
		refiled.Confidence = 0.97
		refiled.MatchReasons = []string{"address", "price", "details"}
		require.NoError(t, store.SaveCandidate(ctx, refiled))

		all, err := store.Candidates(ctx, true)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "dup-1", all[0].ID)
		assert.InDelta(t, 0.97, all[0].Confidence, 1e-9)
		assert.Len(t, all[0].MatchReasons, 3)
	})

	t.Run("swapped source and target is the same pair", func(t *testing.T) {
		swapped := newCandidate("dup-3")
		swapped.Source, swapped.Target = swapped.Target, swapped.Source
		require.NoError(t, store.SaveCandidate(ctx, swapped))

		all, err := store.Candidates(ctx, true)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

func TestMemoryResolveCandidate(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	require.NoError(t, store.SaveCandidate(ctx, newCandidate("dup-1")))

	merged := seedProperty("MLS1", "metro-mls")
	merged.Price = 251000
	require.NoError(t, store.ResolveCandidate(ctx, "dup-1", listings.ActionMerge, &merged))

	got, err := store.Candidate(ctx, "dup-1")
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, listings.ActionMerge, got.ResolvedAction)
	require.NotNil(t, got.ResolvedAt)
	require.NotNil(t, got.Merged)
	assert.Equal(t, int64(251000), got.Merged.Price)

	t.Run("second resolve is a no-op", func(t *testing.T) {
		require.NoError(t, store.ResolveCandidate(ctx, "dup-1", listings.ActionSkip, nil))

		again, err := store.Candidate(ctx, "dup-1")
		require.NoError(t, err)
		assert.Equal(t, listings.ActionMerge, again.ResolvedAction)
		require.NotNil(t, again.Merged)
	})

	t.Run("resolved pair ignores new sightings", func(t *testing.T) {
		require.NoError(t, store.SaveCandidate(ctx, newCandidate("dup-9")))

		unresolved, err := store.Candidates(ctx, false)
		require.NoError(t, err)
		assert.Empty(t, unresolved)
	})

	t.Run("unknown candidate", func(t *testing.T) {
		err := store.ResolveCandidate(ctx, "missing", listings.ActionSkip, nil)
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("unknown action", func(t *testing.T) {
		err := store.ResolveCandidate(ctx, "dup-1", "purge", nil)
		assert.Error(t, err)
	})
}

func TestMemoryCandidatesOrder(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	first := newCandidate("dup-1")
	second := listings.DuplicateCandidate{
		ID:              "dup-2",
		Confidence:      0.88,
		Source:          seedProperty("MLS7", "metro-mls"),
		Target:          seedProperty("MLS8", "metro-mls"),
		SuggestedAction: listings.ActionKeepBoth,
	}
	require.NoError(t, store.SaveCandidate(ctx, first))
	require.NoError(t, store.SaveCandidate(ctx, second))
	require.NoError(t, store.ResolveCandidate(ctx, "dup-1", listings.ActionKeepBoth, nil))

	all, err := store.Candidates(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "dup-2", all[0].ID, "unresolved first")
	assert.Equal(t, "dup-1", all[1].ID)

	unresolved, err := store.Candidates(ctx, false)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, "dup-2", unresolved[0].ID)
}

func TestMemoryErrorLog(t *testing.T) {
	ctx := context.Background()
	store := listings.NewMemory()

	for i, msg := range []string{"first", "second", "third"} {
		err := store.AppendError(ctx, listings.SyncError{
			ID:      string(rune('a' + i)),
			Time:    time.Date(2025, 7, 1, 0, i, 0, 0, time.UTC),
			Type:    listings.ErrorTypeData,
			Message: msg,
		})
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		got, err := store.RecentErrors(ctx, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "third", got[0].Message)
		assert.Equal(t, "first", got[2].Message)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := store.RecentErrors(ctx, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "third", got[0].Message)
		assert.Equal(t, "second", got[1].Message)
	})

	t.Run("limit beyond length", func(t *testing.T) {
		got, err := store.RecentErrors(ctx, 50)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}
