// Package domain holds the typed identifiers shared across the engine.
// Keeping them in one leaf package lets stores, services and transport agree
// on identity types without import cycles.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// SessionID identifies one traveler session (one app launch / login).
type SessionID uuid.UUID

// NewSessionID returns a fresh random session ID.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID parses a session ID from its string form.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, fmt.Errorf("parse session id: %w", err)
	}
	return SessionID(u), nil
}

func (s SessionID) String() string { return uuid.UUID(s).String() }

// IsZero reports whether the ID is the zero UUID.
func (s SessionID) IsZero() bool { return uuid.UUID(s) == uuid.Nil }

// ScreenID identifies one form screen instance, e.g. "arrival-card:th".
// Interaction state is scoped per screen.
type ScreenID string

func (s ScreenID) String() string { return string(s) }

// Valid rejects empty and whitespace-only screen IDs.
func (s ScreenID) Valid() bool { return strings.TrimSpace(string(s)) != "" }

// DestinationID identifies one destination country context ("th", "jp", "sg").
type DestinationID string

func (d DestinationID) String() string { return string(d) }

// Valid rejects empty destination IDs.
func (d DestinationID) Valid() bool { return strings.TrimSpace(string(d)) != "" }

// SaveKey addresses one debounced save slot. By convention it is
// "<screenID>:<section>" or "<screenID>:<field>" but the engine treats it as
// opaque.
type SaveKey string

func (k SaveKey) String() string { return string(k) }

// FieldSaveKey builds the conventional save key for a single field.
func FieldSaveKey(screen ScreenID, field string) SaveKey {
	return SaveKey(string(screen) + ":" + field)
}
