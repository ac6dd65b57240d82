package ridx

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/openlistings/mlsync/pkg/errors"
	"github.com/openlistings/mlsync/pkg/listings"
)

// searchEnvelope is the RIDX search response. Listings decode
// individually so one malformed record cannot sink the page.
type searchEnvelope struct {
	TotalCount int               `json:"TotalCount"`
	Listings   []json.RawMessage `json:"Listings"`
}

// rawListing is the flat legacy record shape. Dates arrive as strings
// in whichever of the three historical formats the server was built on.
type rawListing struct {
	ListingID   string  `json:"L_ListingID"`
	Class       string  `json:"L_Class"`
	Status      string  `json:"L_Status"`
	AskingPrice int64   `json:"L_AskingPrice"`
	Address     string  `json:"L_Address"`
	City        string  `json:"L_City"`
	State       string  `json:"L_State"`
	Zip         string  `json:"L_Zip"`
	Bedrooms    int     `json:"L_Bedrooms"`
	Bathrooms   float64 `json:"L_Bathrooms"`
	SquareFeet  int     `json:"L_SquareFeet"`
	LotAcres    float64 `json:"L_LotAcres"`
	YearBuilt   int     `json:"L_YearBuilt"`
	Remarks     string  `json:"L_Remarks"`
	ListingDate string  `json:"L_ListingDate"`
	UpdateDate  string  `json:"L_UpdateDate"`
	SoldDate    string  `json:"L_SoldDate"`
	AgentID     string  `json:"L_AgentID"`
	AgentName   string  `json:"L_AgentName"`
	AgentPhone  string  `json:"L_AgentPhone"`
	OfficeID    string  `json:"L_OfficeID"`
	OfficeName  string  `json:"L_OfficeName"`
	PhotoURLs   string  `json:"L_PhotoURLs"`
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
	if r.ListingID == "" {
		return listings.Property{}, errors.NewRecordError(string(provider), "", "listing has no L_ListingID", nil)
	}

	p := listings.Property{
		MLSID:      r.ListingID,
		ProviderID: provider,
		Address: listings.Address{
			Street: strings.TrimSpace(r.Address),
			City:   strings.TrimSpace(r.City),
			State:  strings.ToUpper(strings.TrimSpace(r.State)),
			ZIP:    strings.TrimSpace(r.Zip),
		},
		Price:        r.AskingPrice,
		PropertyType: classToType(r.Class),
		Status:       codeToStatus(r.Status),
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		SquareFeet:   r.SquareFeet,
		LotAcres:     r.LotAcres,
		YearBuilt:    r.YearBuilt,
		Description:  strings.TrimSpace(r.Remarks),
		Media:        mediaFromPhotoList(r.PhotoURLs),
		Agent: listings.Agent{
			ID:    r.AgentID,
			Name:  strings.TrimSpace(r.AgentName),
			Phone: strings.TrimSpace(r.AgentPhone),
		},
		Office: listings.Office{
			ID:   r.OfficeID,
			Name: strings.TrimSpace(r.OfficeName),
		},
	}

	var err error
	if p.ListedAt, err = parseLegacyTime(r.ListingDate); err != nil {
		return listings.Property{}, errors.NewRecordError(string(provider), r.ListingID, "unparseable L_ListingDate", err)
	}
	if p.UpdatedAt, err = parseLegacyTime(r.UpdateDate); err != nil {
		return listings.Property{}, errors.NewRecordError(string(provider), r.ListingID, "unparseable L_UpdateDate", err)
	}
	if r.SoldDate != "" {
		sold, err := parseLegacyTime(r.SoldDate)
		if err != nil {
			return listings.Property{}, errors.NewRecordError(string(provider), r.ListingID, "unparseable L_SoldDate", err)
		}
		p.SoldAt = &sold
	}

	return p, nil
}

// classToType maps legacy property class codes onto canonical types.
// Unknown codes land in PropertyTypeOther rather than failing the record.
func classToType(class string) listings.PropertyType {
	switch strings.ToUpper(strings.TrimSpace(class)) {
	case "RES":
		return listings.PropertyTypeSingleFamily
	case "CND":
		return listings.PropertyTypeCondo
	case "TWN":
		return listings.PropertyTypeTownhouse
	case "MUL":
		return listings.PropertyTypeMultiFamily
	case "LND":
		return listings.PropertyTypeLand
	default:
		return listings.PropertyTypeOther
	}
}

// codeToStatus maps single-letter legacy status codes. Feeds only carry
// codes for listings they still publish, so unknowns read as active.
func codeToStatus(code string) listings.ListingStatus {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "A":
		return listings.StatusActive
	case "P":
		return listings.StatusPending
	case "S":
		return listings.StatusSold
	case "W":
		return listings.StatusWithdrawn
	case "X":
		return listings.StatusExpired
	default:
		return listings.StatusActive
	}
}

// legacyTimeFormats lists the formats observed across RIDX deployments,
// most common first.
var legacyTimeFormats = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// parseLegacyTime parses a RIDX date string. Empty strings are not an
// error; they parse to the zero time.
func parseLegacyTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	var lastErr error
	for _, layout := range legacyTimeFormats {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// mediaFromPhotoList splits the comma-separated photo URL list. The
// first photo is the listing's primary image by RIDX convention.
func mediaFromPhotoList(raw string) []listings.MediaItem {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	var media []listings.MediaItem
	for _, u := range strings.Split(raw, ",") {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		media = append(media, listings.MediaItem{
			URL:     u,
			Kind:    "photo",
			Primary: len(media) == 0,
		})
	}
	return media
}
