package listings

import (
	"time"
)

// SyncOptions tune a single run. The zero value is an incremental sync
// of every record type and status, no validation pass.
type SyncOptions struct {
	// FullSync ignores the provider's last-modified watermark and
	// refetches the whole catalog.
	FullSync bool `json:"full_sync" yaml:"full_sync"`

	// DateRange restricts the fetch to records modified inside the
	// window. Nil means no restriction.
	DateRange *DateRange `json:"date_range,omitempty" yaml:"date_range,omitempty"`

	// PropertyTypes keeps only the named types. Empty means all.
	PropertyTypes []PropertyType `json:"property_types,omitempty" yaml:"property_types,omitempty"`

	// StatusFilter keeps only the named listing statuses. Empty means all.
	StatusFilter []ListingStatus `json:"status_filter,omitempty" yaml:"status_filter,omitempty"`

	// MaxRecords caps how many records the run will process. Zero means
	// unbounded.
	MaxRecords int `json:"max_records" yaml:"max_records"`

	// SkipDuplicates skips the duplicate-detection pass after ingest.
	SkipDuplicates bool `json:"skip_duplicates" yaml:"skip_duplicates"`

	// ValidateData scores each record and records validation errors for
	// those under the provider's quality floor.
	ValidateData bool `json:"validate_data" yaml:"validate_data"`
}

// DateRange is a closed interval on record modification time.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Contains reports whether t falls inside the range, inclusive.
func (dr DateRange) Contains(t time.Time) bool {
	return !t.Before(dr.Start) && !t.After(dr.End)
}

// WantsType reports whether the options admit the given property type.
func (o SyncOptions) WantsType(pt PropertyType) bool {
	if len(o.PropertyTypes) == 0 {
		return true
	}
	for _, want := range o.PropertyTypes {
		if want == pt {
			return true
		}
	}
	return false
}

// WantsStatus reports whether the options admit the given listing status.
func (o SyncOptions) WantsStatus(ls ListingStatus) bool {
	if len(o.StatusFilter) == 0 {
		return true
	}
	for _, want := range o.StatusFilter {
		if want == ls {
			return true
		}
	}
	return false
}

// Admits applies the client-side option filters to one record. Records
// without a modification timestamp pass the date-range filter; the
// range is enforced upstream where the provider supports it.
func (o SyncOptions) Admits(p Property) bool {
	if !o.WantsType(p.PropertyType) {
		return false
	}
	if !o.WantsStatus(p.Status) {
		return false
	}
	if o.DateRange != nil && !p.UpdatedAt.IsZero() && !o.DateRange.Contains(p.UpdatedAt) {
		return false
	}
	return true
}
