package quality

import "github.com/openlistings/mlsync/pkg/listings"

type priceRange struct {
	lo, hi int64
}

// basePriceBands are plausible list-price ranges per property type in
// a median-cost market. High-cost states stretch the upper bound.
var basePriceBands = map[listings.PropertyType]priceRange{
	listings.PropertyTypeSingleFamily: {20_000, 8_000_000},
	listings.PropertyTypeCondo:        {20_000, 5_000_000},
	listings.PropertyTypeTownhouse:    {20_000, 5_000_000},
	listings.PropertyTypeMultiFamily:  {50_000, 20_000_000},
	listings.PropertyTypeLand:         {1_000, 10_000_000},
	listings.PropertyTypeOther:        {1_000, 50_000_000},
}

// highCostMultipliers widen price bands in persistently expensive
// markets so legitimate coastal listings are not flagged.
var highCostMultipliers = map[string]int64{
	"CA": 3,
	"NY": 3,
	"HI": 3,
	"WA": 2,
	"MA": 2,
	"CO": 2,
	"DC": 2,
}

func priceBand(ptype listings.PropertyType, state string) (int64, int64) {
	band, ok := basePriceBands[ptype]
	if !ok {
		band = basePriceBands[listings.PropertyTypeOther]
	}
	if mult, ok := highCostMultipliers[state]; ok {
		return band.lo, band.hi * mult
	}
	return band.lo, band.hi
}

type sqftRange struct {
	lo, hi int
}

// sqftBands are plausible living-area ranges per property type. Land
// has no living area and is not checked.
var sqftBands = map[listings.PropertyType]sqftRange{
	listings.PropertyTypeSingleFamily: {200, 20_000},
	listings.PropertyTypeCondo:        {150, 10_000},
	listings.PropertyTypeTownhouse:    {300, 8_000},
	listings.PropertyTypeMultiFamily:  {500, 50_000},
}

func sqftBand(ptype listings.PropertyType) (int, int, bool) {
	band, ok := sqftBands[ptype]
	if !ok {
		return 0, 0, false
	}
	return band.lo, band.hi, true
}

type ppsfRange struct {
	lo, hi float64
}

// ppsfBands are expected price-per-square-foot ranges by state; the
// default band covers median markets.
var ppsfBands = map[string]ppsfRange{
	"CA": {100, 3_000},
	"NY": {100, 3_500},
	"HI": {150, 3_000},
	"WA": {75, 2_000},
	"MA": {75, 2_000},
	"CO": {60, 1_500},
	"DC": {100, 2_000},
}

var ppsfDefault = ppsfRange{25, 1_200}

func ppsfBand(state string) (float64, float64) {
	if band, ok := ppsfBands[state]; ok {
		return band.lo, band.hi
	}
	return ppsfDefault.lo, ppsfDefault.hi
}
