package dedupe

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/openlistings/mlsync/pkg/listings"
)

// Address component weights. Street text carries the most signal.
const (
	streetWeight = 0.50
	cityWeight   = 0.20
	stateWeight  = 0.15
	zipWeight    = 0.15
)

// Pair score weights.
const (
	addressWeight = 0.4
	priceWeight   = 0.3
	detailsWeight = 0.3
)

// priceFloor is the min/max price ratio below which two prices are
// treated as entirely dissimilar.
const priceFloor = 0.5

// textSimilarity is normalized Levenshtein similarity over normalized
// text. Unknown on either side scores zero; absence is not evidence of
// a match.
func textSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	dist := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	return 1 - float64(dist)/float64(longest)
}

// addressSimilarity is the weighted average of street similarity, city
// similarity, exact state match, and exact five-digit ZIP match.
func addressSimilarity(a, b listings.Address) float64 {
	street := textSimilarity(normalizeStreet(a.Street), normalizeStreet(b.Street))
	city := textSimilarity(normalizeText(a.City), normalizeText(b.City))

	var state float64
	if sa, sb := strings.ToUpper(strings.TrimSpace(a.State)), strings.ToUpper(strings.TrimSpace(b.State)); sa != "" && sa == sb {
		state = 1
	}

	var zip float64
	if za, zb := zip5(a.ZIP), zip5(b.ZIP); za != "" && za == zb {
		zip = 1
	}

	return street*streetWeight + city*cityWeight + state*stateWeight + zip*zipWeight
}

// priceSimilarity is the min/max ratio of the two prices. Either price
// missing, or a spread wider than 2x, scores zero.
func priceSimilarity(a, b int64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}

	lo, hi := float64(a), float64(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	ratio := lo / hi
	if ratio < priceFloor {
		return 0
	}
	return ratio
}

// detailsSimilarity averages the structural field matches: exact
// bedrooms, bathrooms within 0.5, square footage within 10%, year
// built within 2 years. Fields unknown on either side are skipped; two
// records with no comparable details score zero.
func detailsSimilarity(a, b listings.Property) float64 {
	var comparable, matched float64

	if a.Bedrooms > 0 && b.Bedrooms > 0 {
		comparable++
		if a.Bedrooms == b.Bedrooms {
			matched++
		}
	}
	if a.Bathrooms > 0 && b.Bathrooms > 0 {
		comparable++
		if math.Abs(a.Bathrooms-b.Bathrooms) <= 0.5 {
			matched++
		}
	}
	if a.SquareFeet > 0 && b.SquareFeet > 0 {
		comparable++
		larger := a.SquareFeet
		if b.SquareFeet > larger {
			larger = b.SquareFeet
		}
		if math.Abs(float64(a.SquareFeet-b.SquareFeet)) <= 0.10*float64(larger) {
			matched++
		}
	}
	if a.YearBuilt != 0 && b.YearBuilt != 0 {
		comparable++
		diff := a.YearBuilt - b.YearBuilt
		if diff < 0 {
			diff = -diff
		}
		if diff <= 2 {
			matched++
		}
	}

	if comparable == 0 {
		return 0
	}
	return matched / comparable
}

// reasonThreshold is the component score above which a component
// contributes a human-readable match reason.
const reasonThreshold = 0.9

// Compare scores one pair of records and names the reasons the score
// rests on. The confidence is in [0, 1].
func (d *Detector) Compare(a, b listings.Property) (float64, []string) {
	address := addressSimilarity(a.Address, b.Address)
	price := priceSimilarity(a.Price, b.Price)
	details := detailsSimilarity(a, b)

	confidence := address*addressWeight + price*priceWeight + details*detailsWeight
	confidence = math.Round(confidence*10000) / 10000

	var reasons []string
	if address >= reasonThreshold {
		reasons = append(reasons, "addresses match closely")
	}
	if price >= reasonThreshold {
		reasons = append(reasons, "prices within tolerance")
	}
	if details >= reasonThreshold {
		reasons = append(reasons, "structural details match")
	}

	return confidence, reasons
}
