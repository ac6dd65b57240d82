package reso

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// odataEnvelope is the OData collection response. Records decode
// individually so one malformed record cannot sink the page.
type odataEnvelope struct {
	Count    int               `json:"@odata.count"`
	NextLink string            `json:"@odata.nextLink"`
	Value    []json.RawMessage `json:"value"`
}

// rawListing carries the RESO Data Dictionary fields we map. Servers
// send many more; unknown fields are ignored.
type rawListing struct {
	ListingKey              string     `json:"ListingKey"`
	StandardStatus          string     `json:"StandardStatus"`
	PropertyType            string     `json:"PropertyType"`
	PropertySubType         string     `json:"PropertySubType"`
	ListPrice               float64    `json:"ListPrice"`
	UnparsedAddress         string     `json:"UnparsedAddress"`
	City                    string     `json:"City"`
	StateOrProvince         string     `json:"StateOrProvince"`
	PostalCode              string     `json:"PostalCode"`
	BedroomsTotal           int        `json:"BedroomsTotal"`
	BathroomsTotalDecimal   float64    `json:"BathroomsTotalDecimal"`
	LivingArea              int        `json:"LivingArea"`
	LotSizeAcres            float64    `json:"LotSizeAcres"`
	YearBuilt               int        `json:"YearBuilt"`
	PublicRemarks           string     `json:"PublicRemarks"`
	ListAgentKey            string     `json:"ListAgentKey"`
	ListAgentFullName       string     `json:"ListAgentFullName"`
	ListAgentPreferredPhone string     `json:"ListAgentPreferredPhone"`
	ListAgentEmail          string     `json:"ListAgentEmail"`
	ListOfficeKey           string     `json:"ListOfficeKey"`
	ListOfficeName          string     `json:"ListOfficeName"`
	ListingContractDate     string     `json:"ListingContractDate"`
	ModificationTimestamp   string     `json:"ModificationTimestamp"`
	CloseDate               string     `json:"CloseDate"`
	Media                   []rawMedia `json:"Media"`
}

type rawMedia struct {
	MediaURL         string `json:"MediaURL"`
	Order            int    `json:"Order"`
	ShortDescription string `json:"ShortDescription"`
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
	if r.ListingKey == "" {
		return listings.Property{}, errors.NewRecordError(string(provider), "", "listing has no ListingKey", nil)
	}

	p := listings.Property{
		MLSID:      r.ListingKey,
		ProviderID: provider,
		Address: listings.Address{
			Street: strings.TrimSpace(r.UnparsedAddress),
			City:   strings.TrimSpace(r.City),
			State:  strings.ToUpper(strings.TrimSpace(r.StateOrProvince)),
			ZIP:    strings.TrimSpace(r.PostalCode),
		},
		Price:        int64(math.Round(r.ListPrice)),
		PropertyType: subTypeToType(r.PropertyType, r.PropertySubType),
		Status:       statusFromStandard(r.StandardStatus),
		Bedrooms:     r.BedroomsTotal,
		Bathrooms:    r.BathroomsTotalDecimal,
		SquareFeet:   r.LivingArea,
		LotAcres:     r.LotSizeAcres,
		YearBuilt:    r.YearBuilt,
		Description:  strings.TrimSpace(r.PublicRemarks),
		Media:        mediaFromOData(r.Media),
		Agent: listings.Agent{
			ID:    r.ListAgentKey,
			Name:  strings.TrimSpace(r.ListAgentFullName),
			Phone: strings.TrimSpace(r.ListAgentPreferredPhone),
			Email: strings.TrimSpace(r.ListAgentEmail),
		},
		Office: listings.Office{
			ID:   r.ListOfficeKey,
			Name: strings.TrimSpace(r.ListOfficeName),
		},
	}

	var err error
	if p.ListedAt, err = parseTimestamp(r.ListingContractDate); err != nil {
		return listings.Property{}, errors.NewRecordError(string(provider), r.ListingKey, "unparseable ListingContractDate", err)
	}
	if p.UpdatedAt, err = parseTimestamp(r.ModificationTimestamp); err != nil {
		return listings.Property{}, errors.NewRecordError(string(provider), r.ListingKey, "unparseable ModificationTimestamp", err)
	}
	if r.CloseDate != "" {
		closed, err := parseTimestamp(r.CloseDate)
		if err != nil {
			return listings.Property{}, errors.NewRecordError(string(provider), r.ListingKey, "unparseable CloseDate", err)
		}
		p.SoldAt = &closed
	}

	return p, nil
}

// statusFromStandard maps RESO StandardStatus values. Closed listings
// are sold in the canonical vocabulary.
func statusFromStandard(status string) listings.ListingStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return listings.StatusActive
	case "pending", "active under contract":
		return listings.StatusPending
	case "closed":
		return listings.StatusSold
	case "withdrawn", "canceled":
		return listings.StatusWithdrawn
	case "expired":
		return listings.StatusExpired
	default:
		return listings.StatusActive
	}
}

// subTypeToType maps PropertyType/PropertySubType pairs onto canonical
// types. The subtype is more specific and wins when recognized.
func subTypeToType(propertyType, subType string) listings.PropertyType {
	switch strings.ToLower(strings.TrimSpace(subType)) {
	case "single family residence", "single family detached":
		return listings.PropertyTypeSingleFamily
	case "condominium":
		return listings.PropertyTypeCondo
	case "townhouse":
		return listings.PropertyTypeTownhouse
	case "duplex", "triplex", "quadruplex", "multi family":
		return listings.PropertyTypeMultiFamily
	}

	switch strings.ToLower(strings.TrimSpace(propertyType)) {
	case "residential":
		return listings.PropertyTypeSingleFamily
	case "residential income", "multifamily":
		return listings.PropertyTypeMultiFamily
	case "land", "vacant land":
		return listings.PropertyTypeLand
	default:
		return listings.PropertyTypeOther
	}
}

// timestampFormats covers the two shapes RESO servers emit: full
// timestamps for modification times, bare dates for contract dates.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	var lastErr error
	for _, layout := range timestampFormats {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// mediaFromOData orders media by the feed's Order field; the lowest
// order is the primary image.
func mediaFromOData(raw []rawMedia) []listings.MediaItem {
	if len(raw) == 0 {
		return nil
	}

	sorted := make([]rawMedia, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var media []listings.MediaItem
	for _, m := range sorted {
		if strings.TrimSpace(m.MediaURL) == "" {
			continue
		}
		media = append(media, listings.MediaItem{
			URL:     strings.TrimSpace(m.MediaURL),
			Kind:    "photo",
			Primary: len(media) == 0,
			Caption: strings.TrimSpace(m.ShortDescription),
		})
	}
	return media
}
