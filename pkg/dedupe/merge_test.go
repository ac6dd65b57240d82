package dedupe_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlistings/mlsync/pkg/dedupe"
	"github.com/openlistings/mlsync/pkg/listings"
)

func TestMergeKeysOnMostRecentlyUpdated(t *testing.T) {
	stale := springfieldListing("MLS1", "metro-mls")
	stale.UpdatedAt = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	fresh := springfieldListing("MLS900", "coastal")
	fresh.UpdatedAt = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	merged := dedupe.Merge(stale, fresh)
	assert.Equal(t, "coastal/MLS900", merged.Key())
	assert.Equal(t, fresh.UpdatedAt, merged.UpdatedAt)
}

func TestMergeFillsMissingFields(t *testing.T) {
	base := springfieldListing("MLS1", "metro-mls")
	base.YearBuilt = 0
	base.Description = ""
	base.Agent = listings.Agent{}
	base.ListedAt = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	other := springfieldListing("MLS900", "coastal")
	other.UpdatedAt = base.UpdatedAt.Add(-24 * time.Hour)
	other.YearBuilt = 1987
	other.Description = "Charming three bedroom near the park."
	other.Agent = listings.Agent{ID: "A7", Name: "Jane Realtor", Phone: "555-0101"}
	other.ListedAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	sold := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	other.SoldAt = &sold

	merged := dedupe.Merge(base, other)
	assert.Equal(t, "metro-mls/MLS1", merged.Key(), "fresher record stays the base")
	assert.Equal(t, 1987, merged.YearBuilt)
	assert.Equal(t, "Charming three bedroom near the park.", merged.Description)
	assert.Equal(t, "Jane Realtor", merged.Agent.Name)
	assert.Equal(t, other.ListedAt, merged.ListedAt, "earliest listing date wins")
	require.NotNil(t, merged.SoldAt)
	assert.Equal(t, sold, *merged.SoldAt)
	assert.Equal(t, base.UpdatedAt, merged.UpdatedAt)
}

func TestMergeDoesNotOverwritePopulatedFields(t *testing.T) {
	base := springfieldListing("MLS1", "metro-mls")
	base.Price = 260000

	other := springfieldListing("MLS900", "coastal")
	other.UpdatedAt = base.UpdatedAt.Add(-time.Hour)
	other.Price = 250000
	other.Bedrooms = 4

	merged := dedupe.Merge(base, other)
	assert.Equal(t, int64(260000), merged.Price)
	assert.Equal(t, 3, merged.Bedrooms)
}

func TestMergeMediaUnion(t *testing.T) {
	base := springfieldListing("MLS1", "metro-mls")
	base.Media = []listings.MediaItem{
		{URL: "https://cdn.test/a.jpg", Primary: true},
		{URL: "https://cdn.test/b.jpg"},
	}

	other := springfieldListing("MLS900", "coastal")
	other.UpdatedAt = base.UpdatedAt.Add(-time.Hour)
	other.Media = []listings.MediaItem{
		{URL: "https://cdn.test/b.jpg", Primary: true},
		{URL: "https://cdn.test/c.jpg", Primary: true},
		{URL: ""},
	}

	merged := dedupe.Merge(base, other)
	require.Len(t, merged.Media, 3)
	assert.Equal(t, "https://cdn.test/a.jpg", merged.Media[0].URL, "base media keeps its order")

	primaries := 0
	for _, m := range merged.Media {
		if m.Primary {
			primaries++
			assert.Equal(t, "https://cdn.test/a.jpg", m.URL)
		}
	}
	assert.Equal(t, 1, primaries)
}

func TestMergeUsesOtherTypeWhenBaseIsOther(t *testing.T) {
	base := springfieldListing("MLS1", "metro-mls")
	base.PropertyType = listings.PropertyTypeOther

	other := springfieldListing("MLS900", "coastal")
	other.UpdatedAt = base.UpdatedAt.Add(-time.Hour)
	other.PropertyType = listings.PropertyTypeCondo

	merged := dedupe.Merge(base, other)
	assert.Equal(t, listings.PropertyTypeCondo, merged.PropertyType)
}

func TestMergeEquivalentRecordsIsLossless(t *testing.T) {
	record := springfieldListing("MLS1", "metro-mls")
	record.Media = []listings.MediaItem{{URL: "https://cdn.test/a.jpg", Primary: true}}

	merged := dedupe.Merge(record, record.Clone())
	if diff := cmp.Diff(record, merged); diff != "" {
		t.Errorf("expected a lossless merge, got diff: %s", diff)
	}
}
