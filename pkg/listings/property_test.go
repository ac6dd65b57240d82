package listings_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlistings/mlsync/pkg/listings"
)

func TestPropertyKey(t *testing.T) {
	p := listings.Property{MLSID: "MLS123456", ProviderID: "metro-mls"}
	assert.Equal(t, "metro-mls/MLS123456", p.Key())
}

func TestPropertyValidate(t *testing.T) {
	tests := []struct {
		name     string
		property listings.Property
		wantErr  bool
	}{
		{
			name:     "valid",
			property: listings.Property{MLSID: "MLS1", ProviderID: "metro-mls"},
			wantErr:  false,
		},
		{
			name:     "missing mls id",
			property: listings.Property{ProviderID: "metro-mls"},
			wantErr:  true,
		},
		{
			name:     "missing provider id",
			property: listings.Property{MLSID: "MLS1"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.property.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPropertyClone(t *testing.T) {
	sold := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	original := listings.Property{
		MLSID:      "MLS1",
		ProviderID: "metro-mls",
		Media: []listings.MediaItem{
			{URL: "https://cdn.test/1.jpg", Primary: true},
			{URL: "https://cdn.test/2.jpg"},
		},
		SoldAt: &sold,
	}

	clone := original.Clone()
	clone.Media[0].URL = "https://cdn.test/mutated.jpg"
	*clone.SoldAt = clone.SoldAt.AddDate(1, 0, 0)

	assert.Equal(t, "https://cdn.test/1.jpg", original.Media[0].URL)
	assert.Equal(t, sold, *original.SoldAt)
}

func TestPrimaryMedia(t *testing.T) {
	t.Run("returns marked item", func(t *testing.T) {
		p := listings.Property{
			Media: []listings.MediaItem{
				{URL: "https://cdn.test/1.jpg"},
				{URL: "https://cdn.test/2.jpg", Primary: true},
			},
		}
		primary := p.PrimaryMedia()
		require.NotNil(t, primary)
		assert.Equal(t, "https://cdn.test/2.jpg", primary.URL)
	})

	t.Run("nil when none marked", func(t *testing.T) {
		p := listings.Property{
			Media: []listings.MediaItem{{URL: "https://cdn.test/1.jpg"}},
		}
		assert.Nil(t, p.PrimaryMedia())
	})
}

func TestAddressString(t *testing.T) {
	tests := []struct {
		name    string
		address listings.Address
		want    string
	}{
		{
			name: "full address",
			address: listings.Address{
				Street: "123 Main St",
				City:   "Springfield",
				State:  "IL",
				ZIP:    "62704",
			},
			want: "123 Main St, Springfield, IL 62704",
		},
		{
			name:    "street only",
			address: listings.Address{Street: "123 Main St"},
			want:    "123 Main St",
		},
		{
			name:    "zip only",
			address: listings.Address{ZIP: "62704"},
			want:    "62704",
		},
		{
			name:    "empty",
			address: listings.Address{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.address.String())
		})
	}
}

func TestAddressEmpty(t *testing.T) {
	assert.True(t, listings.Address{}.Empty())
	assert.False(t, listings.Address{City: "Springfield"}.Empty())
}

func TestPropertyTypes(t *testing.T) {
	types := listings.PropertyTypes()
	assert.Len(t, types, 6)
	assert.Contains(t, types, listings.PropertyTypeSingleFamily)
	assert.Contains(t, types, listings.PropertyTypeOther)
}
