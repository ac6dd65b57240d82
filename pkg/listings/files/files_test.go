package files_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/listings/files"
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

func TestNewEmptyDirectory(t *testing.T) {
	store, err := files.New(t.TempDir())
	require.NoError(t, err)

	n, err := store.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewRequiresPath(t *testing.T) {
	_, err := files.New("")
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := files.New(dir)
	require.NoError(t, err)

	for _, p := range []listings.Property{
		seedProperty("MLS1", "metro-mls"),
		seedProperty("MLS2", "metro-mls"),
		seedProperty("MLS1", "coastal"),
	} {
		_, err := store.Upsert(ctx, p)
		require.NoError(t, err)
	}

	candidate := listings.DuplicateCandidate{
		ID:              "dup-1",
		Confidence:      0.93,
		Source:          seedProperty("MLS1", "metro-mls"),
		Target:          seedProperty("MLS1", "coastal"),
		MatchReasons:    []string{"address", "price"},
		SuggestedAction: listings.ActionKeepBoth,
	}
	require.NoError(t, store.SaveCandidate(ctx, candidate))
	require.NoError(t, store.ResolveCandidate(ctx, "dup-1", listings.ActionKeepBoth, nil))

	require.NoError(t, store.AppendError(ctx, listings.SyncError{
		ID:      "err-1",
		Time:    time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Type:    listings.ErrorTypeNetwork,
		Message: "connection reset",
	}))

	require.NoError(t, store.Save(ctx))

	// One snapshot file per provider.
	for _, provider := range []string{"metro-mls", "coastal"} {
		path := filepath.Join(dir, "providers", provider, "listings.yaml")
		_, statErr := os.Stat(path)
		assert.NoError(t, statErr, "expected snapshot for %s", provider)
	}

	reloaded, err := files.New(dir)
	require.NoError(t, err)

	n, err := reloaded.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := reloaded.Property(ctx, "metro-mls", "MLS2")
	require.NoError(t, err)
	assert.Equal(t, int64(250000), got.Price)
	assert.Equal(t, "Springfield", got.Address.City)

	candidates, err := reloaded.Candidates(ctx, true)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "dup-1", candidates[0].ID)
	assert.True(t, candidates[0].Resolved, "resolution state survives reload")
	assert.Equal(t, listings.ActionKeepBoth, candidates[0].ResolvedAction)

	errs, err := reloaded.RecentErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "connection reset", errs[0].Message)
}

func TestNoAutoLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := files.New(dir)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, seedProperty("MLS1", "metro-mls"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx))

	fresh, err := files.New(dir, files.WithNoAutoLoad())
	require.NoError(t, err)

	n, err := fresh.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Load picks the snapshot up on demand.
	require.NoError(t, fresh.Load(ctx))
	n, err = fresh.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := files.New(dir)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, seedProperty("MLS1", "metro-mls"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx))

	ro, err := files.New(dir, files.WithReadOnly(true))
	require.NoError(t, err)

	got, err := ro.Property(ctx, "metro-mls", "MLS1")
	require.NoError(t, err)
	assert.Equal(t, "MLS1", got.MLSID)

	_, err = ro.Upsert(ctx, seedProperty("MLS2", "metro-mls"))
	assert.Error(t, err)
	assert.Error(t, ro.Delete(ctx, "metro-mls", "MLS1"))
	assert.Error(t, ro.Save(ctx))
}

func TestLoadReplacesWorkingSet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := files.New(dir)
	require.NoError(t, err)
	_, err = store.Upsert(ctx, seedProperty("MLS1", "metro-mls"))
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx))

	// Unsaved work is discarded by a reload.
	_, err = store.Upsert(ctx, seedProperty("MLS2", "metro-mls"))
	require.NoError(t, err)
	require.NoError(t, store.Load(ctx))

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadRejectsMalformedSnapshot(t *testing.T) {
	dir := t.TempDir()
	providerDir := filepath.Join(dir, "providers", "metro-mls")
	require.NoError(t, os.MkdirAll(providerDir, 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(providerDir, "listings.yaml"),
		[]byte("listings: [notamap"),
		0o644,
	))

	_, err := files.New(dir)
	assert.Error(t, err)
}
