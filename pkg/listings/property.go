// Package listings defines the canonical, provider-agnostic property model
// and the catalog store that holds it. Provider adapters transform raw MLS
// payloads into Property values; every downstream stage (validation,
// duplicate detection, sync bookkeeping) operates on these types only.
package listings

import (
	"fmt"
	"strings"
	"time"
)

// Property is the canonical representation of a single MLS listing.
// MLSID is unique within a provider; the (ProviderID, MLSID) pair is the
// catalog's upsert key.
type Property struct {
	MLSID      string     `json:"mls_id" yaml:"mls_id"`
	ProviderID ProviderID `json:"provider_id" yaml:"provider_id"`

	Address Address `json:"address" yaml:"address"`

	// Price is the current list price in whole US dollars.
	Price int64 `json:"price" yaml:"price"`

	PropertyType PropertyType `json:"property_type" yaml:"property_type"`
	Status       ListingStatus `json:"status" yaml:"status"`

	Bedrooms   int     `json:"bedrooms" yaml:"bedrooms"`
	Bathrooms  float64 `json:"bathrooms" yaml:"bathrooms"`
	SquareFeet int     `json:"square_feet" yaml:"square_feet"`
	LotAcres   float64 `json:"lot_acres,omitempty" yaml:"lot_acres,omitempty"`
	YearBuilt  int     `json:"year_built,omitempty" yaml:"year_built,omitempty"`

	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Media       []MediaItem `json:"media,omitempty" yaml:"media,omitempty"`

	Agent  Agent  `json:"agent,omitempty" yaml:"agent,omitempty"`
	Office Office `json:"office,omitempty" yaml:"office,omitempty"`

	// Lifecycle dates as reported by the provider, normalized to UTC.
	ListedAt  time.Time  `json:"listed_at,omitempty" yaml:"listed_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	SoldAt    *time.Time `json:"sold_at,omitempty" yaml:"sold_at,omitempty"`
}

// Key returns the catalog upsert key for this property.
func (p *Property) Key() string {
	return string(p.ProviderID) + "/" + p.MLSID
}

// PrimaryMedia returns the media item marked primary, or nil.
func (p *Property) PrimaryMedia() *MediaItem {
	for i := range p.Media {
		if p.Media[i].Primary {
			return &p.Media[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the property.
func (p Property) Clone() Property {
	out := p
	out.Media = make([]MediaItem, len(p.Media))
	copy(out.Media, p.Media)
	if p.SoldAt != nil {
		t := *p.SoldAt
		out.SoldAt = &t
	}
	return out
}

// Address is a US-style street address. Missing components are empty
// strings, never sentinel values.
type Address struct {
	Street string `json:"street" yaml:"street"`
	City   string `json:"city" yaml:"city"`
	State  string `json:"state" yaml:"state"`
	ZIP    string `json:"zip" yaml:"zip"`
}

// String renders the address in the usual one-line form.
func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.City, a.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	s := strings.Join(parts, ", ")
	if a.ZIP != "" {
		s = strings.TrimSpace(s + " " + a.ZIP)
	}
	return s
}

// Empty reports whether no address component is set.
func (a Address) Empty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.ZIP == ""
}

// MediaItem is a photo, tour, or document attached to a listing.
type MediaItem struct {
	URL     string `json:"url" yaml:"url"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"` // photo, virtual_tour, document
	Primary bool   `json:"primary,omitempty" yaml:"primary,omitempty"`
	Caption string `json:"caption,omitempty" yaml:"caption,omitempty"`
}

// Agent identifies the listing agent as reported by the provider.
type Agent struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Phone string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Office identifies the listing brokerage office.
type Office struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// PropertyType classifies the physical property.
type PropertyType string

// String returns the string representation of a PropertyType.
func (pt PropertyType) String() string { return string(pt) }

// Canonical property types. Adapters map provider-specific class codes
// onto these; unknown codes become PropertyTypeOther.
const (
	PropertyTypeSingleFamily PropertyType = "single_family"
	PropertyTypeCondo        PropertyType = "condo"
	PropertyTypeTownhouse    PropertyType = "townhouse"
	PropertyTypeMultiFamily  PropertyType = "multi_family"
	PropertyTypeLand         PropertyType = "land"
	PropertyTypeOther        PropertyType = "other"
)

// PropertyTypes returns all canonical property types.
func PropertyTypes() []PropertyType {
	return []PropertyType{
		PropertyTypeSingleFamily,
		PropertyTypeCondo,
		PropertyTypeTownhouse,
		PropertyTypeMultiFamily,
		PropertyTypeLand,
		PropertyTypeOther,
	}
}

// ListingStatus is the listing's position in its market lifecycle.
type ListingStatus string

// String returns the string representation of a ListingStatus.
func (ls ListingStatus) String() string { return string(ls) }

// Canonical listing statuses.
const (
	StatusActive    ListingStatus = "active"
	StatusPending   ListingStatus = "pending"
	StatusSold      ListingStatus = "sold"
	StatusWithdrawn ListingStatus = "withdrawn"
	StatusExpired   ListingStatus = "expired"
)

// Validate checks the minimal integrity requirements for storing a
// property. Quality scoring is a separate, softer concern; Validate only
// rejects records the catalog cannot key.
func (p *Property) Validate() error {
	if p.MLSID == "" {
		return fmt.Errorf("property missing mls_id")
	}
	if p.ProviderID == "" {
		return fmt.Errorf("property %s missing provider_id", p.MLSID)
	}
	return nil
}
