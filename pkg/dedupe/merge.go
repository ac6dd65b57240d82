package dedupe

import (
	"github.com/openlistings/mlsync/pkg/listings"
)

// completenessPoints scores a record on the ten-point checklist used to
// break merge-base ties: price, the four address fields, bedrooms,
// bathrooms, square feet, agent name, and media presence.
func completenessPoints(p listings.Property) int {
	points := 0
	if p.Price > 0 {
		points++
	}
	if p.Address.Street != "" {
		points++
	}
	if p.Address.City != "" {
		points++
	}
	if p.Address.State != "" {
		points++
	}
	if p.Address.ZIP != "" {
		points++
	}
	if p.Bedrooms > 0 {
		points++
	}
	if p.Bathrooms > 0 {
		points++
	}
	if p.SquareFeet > 0 {
		points++
	}
	if p.Agent.Name != "" {
		points++
	}
	if len(p.Media) > 0 {
		points++
	}
	return points
}

// mergeBase picks which record the merge payload is keyed on: the more
// recently updated record, ties broken by the completeness checklist,
// then by input order.
func mergeBase(source, target listings.Property) (base, other listings.Property) {
	if target.UpdatedAt.After(source.UpdatedAt) {
		return target, source
	}
	if source.UpdatedAt.After(target.UpdatedAt) {
		return source, target
	}
	if completenessPoints(target) > completenessPoints(source) {
		return target, source
	}
	return source, target
}

// Merge builds the proposed merge payload for two records: the base
// record filled with the other record's values wherever the base is
// missing one, media combined as a URL-deduplicated union.
func Merge(source, target listings.Property) listings.Property {
	base, other := mergeBase(source, target)
	merged := base.Clone()

	if merged.Price <= 0 {
		merged.Price = other.Price
	}
	if merged.Address.Street == "" {
		merged.Address.Street = other.Address.Street
	}
	if merged.Address.City == "" {
		merged.Address.City = other.Address.City
	}
	if merged.Address.State == "" {
		merged.Address.State = other.Address.State
	}
	if merged.Address.ZIP == "" {
		merged.Address.ZIP = other.Address.ZIP
	}
	if merged.PropertyType == "" || merged.PropertyType == listings.PropertyTypeOther {
		if other.PropertyType != "" {
			merged.PropertyType = other.PropertyType
		}
	}
	if merged.Bedrooms <= 0 {
		merged.Bedrooms = other.Bedrooms
	}
	if merged.Bathrooms <= 0 {
		merged.Bathrooms = other.Bathrooms
	}
	if merged.SquareFeet <= 0 {
		merged.SquareFeet = other.SquareFeet
	}
	if merged.LotAcres <= 0 {
		merged.LotAcres = other.LotAcres
	}
	if merged.YearBuilt == 0 {
		merged.YearBuilt = other.YearBuilt
	}
	if merged.Description == "" {
		merged.Description = other.Description
	}
	if merged.Agent.ID == "" {
		merged.Agent.ID = other.Agent.ID
	}
	if merged.Agent.Name == "" {
		merged.Agent.Name = other.Agent.Name
	}
	if merged.Agent.Phone == "" {
		merged.Agent.Phone = other.Agent.Phone
	}
	if merged.Agent.Email == "" {
		merged.Agent.Email = other.Agent.Email
	}
	if merged.Office.ID == "" {
		merged.Office.ID = other.Office.ID
	}
	if merged.Office.Name == "" {
		merged.Office.Name = other.Office.Name
	}

	if merged.ListedAt.IsZero() || (!other.ListedAt.IsZero() && other.ListedAt.Before(merged.ListedAt)) {
		merged.ListedAt = other.ListedAt
	}
	if other.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = other.UpdatedAt
	}
	if merged.SoldAt == nil && other.SoldAt != nil {
		t := *other.SoldAt
		merged.SoldAt = &t
	}

	merged.Media = mergeMedia(merged.Media, other.Media)
	return merged
}

// mergeMedia unions two media lists by URL, base items first, and
// guarantees at most one item is marked primary.
func mergeMedia(base, other []listings.MediaItem) []listings.MediaItem {
	seen := make(map[string]bool, len(base)+len(other))
	merged := make([]listings.MediaItem, 0, len(base)+len(other))

	for _, m := range base {
		if m.URL == "" || seen[m.URL] {
			continue
		}
		seen[m.URL] = true
		merged = append(merged, m)
	}
	for _, m := range other {
		if m.URL == "" || seen[m.URL] {
			continue
		}
		seen[m.URL] = true
		merged = append(merged, m)
	}

	sawPrimary := false
	for i := range merged {
		if merged[i].Primary {
			if sawPrimary {
				merged[i].Primary = false
			}
			sawPrimary = true
		}
	}
	return merged
}
