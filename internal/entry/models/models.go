// Package models defines the per-destination entry record: everything a
// traveler has filled in for one country's arrival form.
package models

import (
	"strings"
	"time"

	id "entrypass/pkg/domain"
)

// Category names one of the record's independent sub-sections.
type Category string

const (
	CategoryPassport Category = "passport"
	CategoryPersonal Category = "personal_info"
	CategoryFunds    Category = "funds"
	CategoryTravel   Category = "travel"
)

// Categories lists all sub-sections in display order.
func Categories() []Category {
	return []Category{CategoryPassport, CategoryPersonal, CategoryFunds, CategoryTravel}
}

// FieldValues is one section's field-name to value mapping.
type FieldValues map[string]string

// Clone returns a copy of the field map.
func (f FieldValues) Clone() FieldValues {
	if f == nil {
		return nil
	}
	cp := make(FieldValues, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return cp
}

// EntryRecord aggregates the four independent sub-records for one
// destination. Funds is an ordered list: travelers can declare several
// funding sources and the order is user-visible.
type EntryRecord struct {
	DestinationID id.DestinationID `json:"destination_id"`
	Passport      FieldValues      `json:"passport"`
	PersonalInfo  FieldValues      `json:"personal_info"`
	Funds         []FieldValues    `json:"funds"`
	Travel        FieldValues      `json:"travel"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewEntryRecord returns an empty record for a destination.
func NewEntryRecord(dest id.DestinationID) *EntryRecord {
	return &EntryRecord{
		DestinationID: dest,
		Passport:      make(FieldValues),
		PersonalInfo:  make(FieldValues),
		Funds:         nil,
		Travel:        make(FieldValues),
	}
}

// Clone returns a deep copy.
func (r *EntryRecord) Clone() *EntryRecord {
	if r == nil {
		return nil
	}
	cp := &EntryRecord{
		DestinationID: r.DestinationID,
		Passport:      r.Passport.Clone(),
		PersonalInfo:  r.PersonalInfo.Clone(),
		Travel:        r.Travel.Clone(),
		UpdatedAt:     r.UpdatedAt,
	}
	for _, item := range r.Funds {
		cp.Funds = append(cp.Funds, item.Clone())
	}
	return cp
}

// Section returns the field map for a non-funds category, or nil for
// CategoryFunds (which is list-shaped) and unknown categories.
func (r *EntryRecord) Section(cat Category) FieldValues {
	if r == nil {
		return nil
	}
	switch cat {
	case CategoryPassport:
		return r.Passport
	case CategoryPersonal:
		return r.PersonalInfo
	case CategoryTravel:
		return r.Travel
	default:
		return nil
	}
}

// Empty reports whether no field anywhere in the record holds a value.
// An empty record reports 0% completion.
func (r *EntryRecord) Empty() bool {
	if r == nil {
		return true
	}
	for _, section := range []FieldValues{r.Passport, r.PersonalInfo, r.Travel} {
		if populated(section) {
			return false
		}
	}
	for _, item := range r.Funds {
		if populated(item) {
			return false
		}
	}
	return true
}

func populated(f FieldValues) bool {
	for _, v := range f {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
