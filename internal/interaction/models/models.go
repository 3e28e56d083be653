// Package models defines the per-field interaction records that distinguish
// user-authored values from prefill.
package models

import (
	"encoding/json"
	"time"

	id "entrypass/pkg/domain"
)

// FieldRecord is the bookkeeping for one field on one screen.
type FieldRecord struct {
	// UserModified is true once the traveler has edited the field through
	// the UI. Prefill and hydration never set it back to false.
	UserModified bool `json:"user_modified"`
	// LastModified is the instant of the most recent mark.
	LastModified time.Time `json:"last_modified"`
	// InitialValue is the value observed when the field was first tracked.
	// Diagnostic only; never consulted by save decisions.
	InitialValue string `json:"initial_value,omitempty"`
}

// State is the full interaction record for one screen, persisted as a single
// keyed document.
type State struct {
	SessionID   id.SessionID           `json:"session_id"`
	Fields      map[string]FieldRecord `json:"fields"`
	LastUpdated time.Time              `json:"last_updated"`
}

// NewState returns an empty state owned by the given session.
func NewState(session id.SessionID, now time.Time) *State {
	return &State{
		SessionID:   session,
		Fields:      make(map[string]FieldRecord),
		LastUpdated: now,
	}
}

// Clone returns a deep copy so callers can hand states across goroutines
// without sharing the field map.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	cp := &State{
		SessionID:   s.SessionID,
		Fields:      make(map[string]FieldRecord, len(s.Fields)),
		LastUpdated: s.LastUpdated,
	}
	for name, rec := range s.Fields {
		cp.Fields[name] = rec
	}
	return cp
}

// RawState mirrors State with loosely typed fields. Stored documents are
// decoded into this shape first so a single corrupted entry can be reported
// and repaired instead of failing the whole load.
type RawState struct {
	SessionID   string               `json:"session_id"`
	Fields      map[string]RawRecord `json:"fields"`
	LastUpdated string               `json:"last_updated"`
}

// RawRecord is the loosely typed form of FieldRecord.
type RawRecord struct {
	UserModified json.RawMessage `json:"user_modified"`
	LastModified string          `json:"last_modified"`
	InitialValue json.RawMessage `json:"initial_value"`
}

// Issue describes one malformed entry found during validation.
type Issue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Report is the outcome of validating a raw state. Valid is false when any
// entry had to be repaired; State always holds a usable sanitized copy.
type Report struct {
	Valid  bool
	Issues []Issue
	State  *State
}
