// Package audit captures engine events worth keeping: save outcomes,
// exhausted retries, flushes. Events flow to Kafka for the analytics
// pipeline and to Postgres for support lookups.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action classifies an audit event.
type Action string

const (
	ActionSaveFailed    Action = "save_failed"
	ActionSaveRecovered Action = "save_recovered"
	ActionScreenFlushed Action = "screen_flushed"
	ActionScreenOpened  Action = "screen_opened"
	ActionStateRepaired Action = "state_repaired"
)

// Event is one audit record. Keep it transport-agnostic so sinks can fan
// out; field values themselves are never recorded, only field names and
// outcomes, to keep traveler PII out of the pipeline.
type Event struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Action        Action    `json:"action"`
	SessionID     string    `json:"session_id,omitempty"`
	ScreenID      string    `json:"screen_id,omitempty"`
	DestinationID string    `json:"destination_id,omitempty"`
	SaveKey       string    `json:"save_key,omitempty"`
	Field         string    `json:"field,omitempty"`
	Device        string    `json:"device,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	RetryCount    int       `json:"retry_count,omitempty"`
}

// NewEvent stamps an event with an ID and timestamp.
func NewEvent(action Action, now time.Time) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: now,
		Action:    action,
	}
}
