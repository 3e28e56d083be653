// Package fieldstate decides which field values are safe to persist and
// computes completion metrics. The central rule protects stored data from
// being clobbered by blank prefill-stage values: only user edits, always-save
// fields, and preserved non-empty values get written.
package fieldstate

import (
	"strings"

	"entrypass/internal/interaction/models"
)

// Options tunes save filtering.
type Options struct {
	// PreserveExisting keeps non-empty values that the traveler has not
	// touched. On by default; turning it off drops untouched values from
	// saves entirely.
	PreserveExisting bool
	// AlwaysSaveFields are persisted regardless of interaction state or
	// emptiness (e.g. hidden bookkeeping fields).
	AlwaysSaveFields []string
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{PreserveExisting: true}
}

func (o Options) alwaysSave(field string) bool {
	for _, f := range o.AlwaysSaveFields {
		if f == field {
			return true
		}
	}
	return false
}

// Empty reports whether a value counts as empty for save and completion
// decisions. Whitespace-only values are empty.
func Empty(value string) bool {
	return strings.TrimSpace(value) == ""
}

// ShouldSave reports whether one field's value is save-worthy:
// it is in the always-save allowlist, OR the traveler modified it (even to
// empty, which expresses deletion), OR PreserveExisting is on and the value
// is non-empty. Everything else is prefill-stage noise and is not written.
func ShouldSave(field, value string, userModified bool, opts Options) bool {
	if opts.alwaysSave(field) {
		return true
	}
	if userModified {
		return true
	}
	return opts.PreserveExisting && !Empty(value)
}

// FilterSaveable applies ShouldSave across a field map. A missing or
// corrupted interaction entry for a field falls back to "preserve existing
// non-empty value" rather than failing the batch.
func FilterSaveable(fields map[string]string, state *models.State, opts Options) map[string]string {
	out := make(map[string]string, len(fields))
	for field, value := range fields {
		modified := false
		if state != nil {
			modified = state.Fields[field].UserModified
		}
		if ShouldSave(field, value, modified, opts) {
			out[field] = value
		}
	}
	return out
}
