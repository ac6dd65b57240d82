package bridge

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// listingsEnvelope wraps the paged listings response. Records decode
// individually so one malformed record cannot sink the page.
type listingsEnvelope struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Listings []json.RawMessage `json:"listings"`
}

// detailEnvelope wraps the single-listing response.
type detailEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Listing json.RawMessage `json:"listing"`
}

// rawListing is the nested camelCase record shape.
type rawListing struct {
	MLSNumber   string     `json:"mlsNumber"`
	ListPrice   int64      `json:"listPrice"`
	Status      string     `json:"status"`
	Description string     `json:"description"`
	Address     rawAddress `json:"address"`
	Details     rawDetails `json:"details"`
	Photos      []rawPhoto `json:"photos"`
	Agent       rawAgent   `json:"agent"`
	Office      rawOffice  `json:"office"`
	Dates       rawDates   `json:"dates"`
}

type rawAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

type rawDetails struct {
	Bedrooms       int     `json:"bedrooms"`
	Bathrooms      float64 `json:"bathrooms"`
	LivingAreaSqFt int     `json:"livingAreaSqFt"`
	LotAcres       float64 `json:"lotAcres"`
	YearBuilt      int     `json:"yearBuilt"`
	PropertyType   string  `json:"propertyType"`
}

type rawPhoto struct {
	URL       string `json:"url"`
	IsPrimary bool   `json:"isPrimary"`
	Caption   string `json:"caption"`
}

type rawAgent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type rawOffice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type rawDates struct {
	Listed  string `json:"listed"`
	Updated string `json:"updated"`
	Sold    string `json:"sold"`
}

// decodeListing unmarshals and transforms one raw record.
func decodeListing(provider listings.ProviderID, raw json.RawMessage) (listings.Property, error) {
	var rec rawListing
	if err := json.Unmarshal(raw, &rec); err != nil {
		return listings.Property{}, errors.NewRecordError(string(provider), "", "malformed listing payload", err)
	}
	return rec.toProperty(provider)
}

func (r rawListing) toProperty(provider listings.ProviderID) (listings.Property, error) {
	if r.MLSNumber == "" {
		return listings.Property{}, errors.NewRecordError(string(provider), "", "listing has no mlsNumber", nil)
	}

	p := listings.Property{
		MLSID:      r.MLSNumber,
		ProviderID: provider,
		Address: listings.Address{
			Street: strings.TrimSpace(r.Address.Street),
			City:   strings.TrimSpace(r.Address.City),
			State:  strings.ToUpper(strings.TrimSpace(r.Address.State)),
			ZIP:    strings.TrimSpace(r.Address.PostalCode),
		},
		Price:        r.ListPrice,
		PropertyType: typeFromCamel(r.Details.PropertyType),
		Status:       statusFromCamel(r.Status),
		Bedrooms:     r.Details.Bedrooms,
		Bathrooms:    r.Details.Bathrooms,
		SquareFeet:   r.Details.LivingAreaSqFt,
		LotAcres:     r.Details.LotAcres,
		YearBuilt:    r.Details.YearBuilt,
		Description:  strings.TrimSpace(r.Description),
		Media:        mediaFromPhotos(r.Photos),
		Agent: listings.Agent{
			ID:    r.Agent.ID,
			Name:  strings.TrimSpace(r.Agent.Name),
			Phone: strings.TrimSpace(r.Agent.Phone),
			Email: strings.TrimSpace(r.Agent.Email),
		},
		Office: listings.Office{
			ID:   r.Office.ID,
			Name: strings.TrimSpace(r.Office.Name),
		},
	}

	var err error
	if p.ListedAt, err = parseDate(r.Dates.Listed); err != nil {
		return listings.Property{}, errors.NewRecordError(string(provider), r.MLSNumber, "unparseable listed date", err)
	}
	if p.UpdatedAt, err = parseDate(r.Dates.Updated); err != nil {
		return listings.Property{}, errors.NewRecordError(string(provider), r.MLSNumber, "unparseable updated date", err)
	}
	if r.Dates.Sold != "" {
		sold, err := parseDate(r.Dates.Sold)
		if err != nil {
			return listings.Property{}, errors.NewRecordError(string(provider), r.MLSNumber, "unparseable sold date", err)
		}
		p.SoldAt = &sold
	}

	return p, nil
}

// statusFromCamel maps the platform's camelCase status vocabulary.
func statusFromCamel(status string) listings.ListingStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "comingsoon":
		return listings.StatusActive
	case "pending", "undercontract":
		return listings.StatusPending
	case "sold", "closed":
		return listings.StatusSold
	case "withdrawn", "cancelled":
		return listings.StatusWithdrawn
	case "expired":
		return listings.StatusExpired
	default:
		return listings.StatusActive
	}
}

// typeFromCamel maps the platform's property type vocabulary.
func typeFromCamel(propertyType string) listings.PropertyType {
	switch strings.ToLower(strings.TrimSpace(propertyType)) {
	case "singlefamily":
		return listings.PropertyTypeSingleFamily
	case "condo", "condominium":
		return listings.PropertyTypeCondo
	case "townhouse", "townhome":
		return listings.PropertyTypeTownhouse
	case "multifamily":
		return listings.PropertyTypeMultiFamily
	case "land", "lot":
		return listings.PropertyTypeLand
	default:
		return listings.PropertyTypeOther
	}
}

// parseDate parses the platform's RFC 3339 dates. Empty strings parse
// to the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// mediaFromPhotos keeps the feed's photo order and primary flag. When
// no photo is flagged primary the first one is promoted.
func mediaFromPhotos(photos []rawPhoto) []listings.MediaItem {
	var media []listings.MediaItem
	sawPrimary := false
	for _, ph := range photos {
		u := strings.TrimSpace(ph.URL)
		if u == "" {
			continue
		}
		media = append(media, listings.MediaItem{
			URL:     u,
			Kind:    "photo",
			Primary: ph.IsPrimary && !sawPrimary,
			Caption: strings.TrimSpace(ph.Caption),
		})
		if ph.IsPrimary {
			sawPrimary = true
		}
	}
	if len(media) > 0 && !sawPrimary {
		media[0].Primary = true
	}
	return media
}
