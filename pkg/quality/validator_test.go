package quality_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlistings/mlsync/pkg/listings"
	"github.com/openlistings/mlsync/pkg/quality"
)

// wellFormed returns a record with nothing to flag.
func wellFormed() listings.Property {
	return listings.Property{
		MLSID:      "M100",
		ProviderID: "metro-mls",
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
		LotAcres:     0.25,
		YearBuilt:    1999,
		Description:  "Tidy three bedroom ranch close to schools",
		Media:        []listings.MediaItem{{URL: "https://img.example/1.jpg", Primary: true}},
		Agent:        listings.Agent{ID: "AG7", Name: "Pat Lee"},
		ListedAt:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateWellFormedRecord(t *testing.T) {
	score := quality.New().Validate(wellFormed())

	assert.Equal(t, 100, score.Completeness)
	assert.Equal(t, 100, score.Accuracy)
	assert.Equal(t, 100, score.Consistency)
	assert.Equal(t, 100, score.Overall)
	assert.Empty(t, score.Issues)
}

func TestCompletenessDeductions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*listings.Property)
		want   int
	}{
		{"missing street", func(p *listings.Property) { p.Address.Street = "" }, 85},
		{"missing city", func(p *listings.Property) { p.Address.City = "" }, 90},
		{"missing state", func(p *listings.Property) { p.Address.State = "" }, 90},
		{"missing zip", func(p *listings.Property) { p.Address.ZIP = "" }, 95},
		{"zero price", func(p *listings.Property) { p.Price = 0 }, 80},
		{"zero bedrooms", func(p *listings.Property) { p.Bedrooms = 0 }, 92},
		{"zero bathrooms", func(p *listings.Property) { p.Bathrooms = 0 }, 92},
		{"zero square feet", func(p *listings.Property) { p.SquareFeet = 0 }, 90},
		{
			"missing street, city, and state",
			func(p *listings.Property) {
				p.Address.Street = ""
				p.Address.City = ""
				p.Address.State = ""
			},
			65,
		},
	}

	v := quality.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := wellFormed()
			tt.mutate(&p)
			score := v.Validate(p)
			assert.Equal(t, tt.want, score.Completeness)
			assert.NotEmpty(t, score.Issues)
		})
	}
}

func TestCompletenessMissingAddressBlock(t *testing.T) {
	p := wellFormed()
	p.Address = listings.Address{}
	p.SquareFeet = 0

	score := quality.New().Validate(p)

	assert.Equal(t, 50, score.Completeness)
	assert.LessOrEqual(t, score.Completeness, 55)
	// Nothing else about the record is implausible or inconsistent.
	assert.Equal(t, 100, score.Accuracy)
	assert.Equal(t, 100, score.Consistency)
	assert.Equal(t, 80, score.Overall, "0.4*50 + 0.4*100 + 0.2*100")
}

func TestCompletenessEmptyRecordStaysInRange(t *testing.T) {
	score := quality.New().Validate(listings.Property{MLSID: "X", ProviderID: "p"})

	assert.Equal(t, 14, score.Completeness, "every deduction applied")
	assert.GreaterOrEqual(t, score.Completeness, 0)
}

func TestAccuracyFlags(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*listings.Property)
		issue  string
	}{
		{
			"price above band",
			func(p *listings.Property) { p.Price = 50_000_000 },
			"outside plausible band",
		},
		{
			"price below band",
			func(p *listings.Property) { p.Price = 500 },
			"outside plausible band",
		},
		{
			"square footage below band",
			func(p *listings.Property) { p.SquareFeet = 50 },
			"square footage",
		},
		{
			"ancient year built",
			func(p *listings.Property) { p.YearBuilt = 1492 },
			"implausible year built",
		},
		{
			"bath ratio",
			func(p *listings.Property) { p.Bedrooms = 1; p.Bathrooms = 4 },
			"ratio exceeds 3",
		},
		{
			"malformed zip",
			func(p *listings.Property) { p.Address.ZIP = "ABCDE" },
			"malformed ZIP",
		},
	}

	v := quality.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := wellFormed()
			tt.mutate(&p)
			score := v.Validate(p)
			assert.Less(t, score.Accuracy, 100)
			require.NotEmpty(t, score.Issues)
			found := false
			for _, issue := range score.Issues {
				if strings.Contains(issue, tt.issue) {
					found = true
				}
			}
			assert.True(t, found, "issues %v should mention %q", score.Issues, tt.issue)
		})
	}
}

func TestAccuracyHighCostStateWidensBand(t *testing.T) {
	p := wellFormed()
	p.Price = 12_000_000
	p.SquareFeet = 6000

	v := quality.New()

	flagged := v.Validate(p)
	assert.Less(t, flagged.Accuracy, 100, "a $12M single family home in IL is implausible")

	p.Address.State = "CA"
	passed := v.Validate(p)
	assert.Equal(t, 100, passed.Accuracy, "the same price is plausible in CA")
}

func TestAccuracyFutureYearBuilt(t *testing.T) {
	fixed := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	v := quality.New(quality.WithClock(fixed))

	p := wellFormed()
	p.YearBuilt = 2025
	assert.Equal(t, 100, v.Validate(p).Accuracy, "next year is a valid new-construction year")

	p.YearBuilt = 2026
	assert.Less(t, v.Validate(p).Accuracy, 100)
}

func TestConsistencyFlags(t *testing.T) {
	v := quality.New()

	t.Run("price per square foot out of band", func(t *testing.T) {
		p := wellFormed()
		p.Price = 7_000_000
		p.SquareFeet = 1000
		score := v.Validate(p)
		assert.Less(t, score.Consistency, 100)
	})

	t.Run("listed after updated", func(t *testing.T) {
		p := wellFormed()
		p.ListedAt = p.UpdatedAt.AddDate(0, 1, 0)
		score := v.Validate(p)
		assert.Less(t, score.Consistency, 100)
	})

	t.Run("multiple primary media", func(t *testing.T) {
		p := wellFormed()
		p.Media = []listings.MediaItem{
			{URL: "https://img.example/1.jpg", Primary: true},
			{URL: "https://img.example/2.jpg", Primary: true},
		}
		score := v.Validate(p)
		assert.Less(t, score.Consistency, 100)
	})

	t.Run("land skips price per square foot", func(t *testing.T) {
		p := wellFormed()
		p.PropertyType = listings.PropertyTypeLand
		p.Price = 9_000_000
		p.SquareFeet = 100
		score := v.Validate(p)
		assert.Equal(t, 100, score.Consistency)
	})
}

func TestScoresAlwaysInRange(t *testing.T) {
	weird := []listings.Property{
		{},
		{Price: -5, Bedrooms: -2, Bathrooms: -1, SquareFeet: -100},
		{Price: 1, SquareFeet: 1, YearBuilt: 1, Address: listings.Address{ZIP: "!!"}},
		{
			Price: 99_999_999_999, SquareFeet: 2, Bedrooms: 1, Bathrooms: 90,
			YearBuilt: 3000,
			Address:   listings.Address{Street: "x", City: "y", State: "ZZ", ZIP: "bad-zip"},
			ListedAt:  time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
			Media: []listings.MediaItem{
				{URL: "a", Primary: true}, {URL: "b", Primary: true}, {URL: "c", Primary: true},
			},
		},
	}

	v := quality.New()
	for i, p := range weird {
		score := v.Validate(p)
		for name, dim := range map[string]int{
			"overall":      score.Overall,
			"completeness": score.Completeness,
			"accuracy":     score.Accuracy,
			"consistency":  score.Consistency,
		} {
			assert.GreaterOrEqual(t, dim, 0, "record %d %s", i, name)
			assert.LessOrEqual(t, dim, 100, "record %d %s", i, name)
		}
	}
}

func TestBatchPreservesOrder(t *testing.T) {
	good := wellFormed()
	bad := listings.Property{MLSID: "X", ProviderID: "p"}

	scores := quality.New().Batch([]listings.Property{good, bad, good})

	require.Len(t, scores, 3)
	assert.Equal(t, 100, scores[0].Overall)
	assert.Less(t, scores[1].Overall, scores[0].Overall)
	assert.Equal(t, scores[0].Overall, scores[2].Overall)
}

func TestRecommendationsAreAdvisory(t *testing.T) {
	p := wellFormed()
	p.Media = nil
	p.Description = "short"

	score := quality.New().Validate(p)

	assert.Contains(t, score.Recommendations, "add at least one photo")
	assert.Contains(t, score.Recommendations, "expand the listing description")
	assert.Equal(t, 100, score.Completeness, "recommendations never deduct")
	assert.Equal(t, 100, score.Consistency)
}
