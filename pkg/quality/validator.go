// Package quality scores canonical property records for completeness,
// accuracy, and consistency. Scores are advisory: a low score never
// blocks ingestion by itself, policy (the provider's quality floor)
// decides what to do with it.
package quality

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/openlistings/mlsync/pkg/listings"
)

// Dimension weights for the overall score.
const (
	completenessWeight = 0.4
	accuracyWeight     = 0.4
	consistencyWeight  = 0.2
)

// Completeness deductions per missing required field.
const (
	deductStreet     = 15
	deductCity       = 10
	deductState      = 10
	deductZIP        = 5
	deductPrice      = 20
	deductBedrooms   = 8
	deductBathrooms  = 8
	deductSquareFeet = 10
)

// Accuracy and consistency deductions per flagged defect.
const (
	deductPriceBand    = 25
	deductSqftBand     = 20
	deductYearBuilt    = 15
	deductBathRatio    = 10
	deductZIPFormat    = 10
	deductPPSFBand     = 25
	deductDateOrder    = 20
	deductMultiPrimary = 15
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Validator scores records. The zero value is not usable; construct
// with New.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate scores one record. Every dimension and the overall score are
// in [0, 100].
func (v *Validator) Validate(p listings.Property) listings.QualityScore {
	var issues []string

	completeness, compIssues := v.completeness(p)
	issues = append(issues, compIssues...)

	accuracy, accIssues := v.accuracy(p)
	issues = append(issues, accIssues...)

	consistency, consIssues := v.consistency(p)
	issues = append(issues, consIssues...)

	overall := int(math.Round(
		float64(completeness)*completenessWeight +
			float64(accuracy)*accuracyWeight +
			float64(consistency)*consistencyWeight,
	))

	return listings.QualityScore{
		Overall:         overall,
		Completeness:    completeness,
		Accuracy:        accuracy,
		Consistency:     consistency,
		Issues:          issues,
		Recommendations: v.recommendations(p),
	}
}

// Batch scores records in input order.
func (v *Validator) Batch(records []listings.Property) []listings.QualityScore {
	scores := make([]listings.QualityScore, len(records))
	for i, p := range records {
		scores[i] = v.Validate(p)
	}
	return scores
}

// completeness applies fixed deductions per missing required field,
// floored at zero.
func (v *Validator) completeness(p listings.Property) (int, []string) {
	score := 100
	var issues []string

	deduct := func(points int, issue string) {
		score -= points
		issues = append(issues, issue)
	}

	if p.Address.Street == "" {
		deduct(deductStreet, "missing street address")
	}
	if p.Address.City == "" {
		deduct(deductCity, "missing city")
	}
	if p.Address.State == "" {
		deduct(deductState, "missing state")
	}
	if p.Address.ZIP == "" {
		deduct(deductZIP, "missing ZIP code")
	}
	if p.Price <= 0 {
		deduct(deductPrice, "price missing or non-positive")
	}
	if p.Bedrooms <= 0 {
		deduct(deductBedrooms, "missing bedroom count")
	}
	if p.Bathrooms <= 0 {
		deduct(deductBathrooms, "missing bathroom count")
	}
	if p.SquareFeet <= 0 {
		deduct(deductSquareFeet, "missing square footage")
	}

	if score < 0 {
		score = 0
	}
	return score, issues
}

// accuracy flags values outside plausible ranges for the property's
// type and state.
func (v *Validator) accuracy(p listings.Property) (int, []string) {
	score := 100
	var issues []string

	deduct := func(points int, issue string) {
		score -= points
		issues = append(issues, issue)
	}

	if p.Price > 0 {
		lo, hi := priceBand(p.PropertyType, p.Address.State)
		if p.Price < lo || p.Price > hi {
			deduct(deductPriceBand, fmt.Sprintf("price $%d outside plausible band for %s in %s",
				p.Price, p.PropertyType, stateOrUnknown(p.Address.State)))
		}
	}

	if p.SquareFeet > 0 {
		if lo, hi, ok := sqftBand(p.PropertyType); ok && (p.SquareFeet < lo || p.SquareFeet > hi) {
			deduct(deductSqftBand, fmt.Sprintf("square footage %d outside plausible band for %s",
				p.SquareFeet, p.PropertyType))
		}
	}

	if p.YearBuilt != 0 {
		if p.YearBuilt < 1800 || p.YearBuilt > v.now().Year()+1 {
			deduct(deductYearBuilt, fmt.Sprintf("implausible year built %d", p.YearBuilt))
		}
	}

	if p.Bedrooms > 0 && p.Bathrooms > float64(p.Bedrooms)*3 {
		deduct(deductBathRatio, "bathroom to bedroom ratio exceeds 3")
	}

	if p.Address.ZIP != "" && !zipPattern.MatchString(p.Address.ZIP) {
		deduct(deductZIPFormat, fmt.Sprintf("malformed ZIP code %q", p.Address.ZIP))
	}

	if score < 0 {
		score = 0
	}
	return score, issues
}

// consistency verifies cross-field agreements.
func (v *Validator) consistency(p listings.Property) (int, []string) {
	score := 100
	var issues []string

	deduct := func(points int, issue string) {
		score -= points
		issues = append(issues, issue)
	}

	if p.Price > 0 && p.SquareFeet > 0 && p.PropertyType != listings.PropertyTypeLand {
		ppsf := float64(p.Price) / float64(p.SquareFeet)
		lo, hi := ppsfBand(p.Address.State)
		if ppsf < lo || ppsf > hi {
			deduct(deductPPSFBand, fmt.Sprintf("price per square foot $%.0f outside expected band for %s",
				ppsf, stateOrUnknown(p.Address.State)))
		}
	}

	if !p.ListedAt.IsZero() && !p.UpdatedAt.IsZero() && p.ListedAt.After(p.UpdatedAt) {
		deduct(deductDateOrder, "listed date is after updated date")
	}

	primaries := 0
	for _, m := range p.Media {
		if m.Primary {
			primaries++
		}
	}
	if primaries > 1 {
		deduct(deductMultiPrimary, fmt.Sprintf("%d media items marked primary", primaries))
	}

	if score < 0 {
		score = 0
	}
	return score, issues
}

// recommendations are advisory improvements; they never affect scores.
func (v *Validator) recommendations(p listings.Property) []string {
	var recs []string

	if len(p.Media) == 0 {
		recs = append(recs, "add at least one photo")
	}
	if len(p.Description) < 20 {
		recs = append(recs, "expand the listing description")
	}
	if p.Address.Street == "" || p.Address.ZIP == "" {
		recs = append(recs, "complete the address to improve duplicate matching")
	}
	if p.YearBuilt == 0 {
		recs = append(recs, "set year built")
	}
	if p.Agent.Name == "" {
		recs = append(recs, "attach the listing agent")
	}

	return recs
}

func stateOrUnknown(state string) string {
	if state == "" {
		return "unknown state"
	}
	return state
}
