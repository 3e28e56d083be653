package persistence

import "time"

// SaveState is the per-key save lifecycle state.
type SaveState string

const (
	// StateIdle: tracked but nothing pending.
	StateIdle SaveState = "idle"
	// StatePending: debounce timer running, callback not yet fired.
	StatePending SaveState = "pending"
	// StateSaving: callback executing.
	StateSaving SaveState = "saving"
	// StateRetrying: waiting out a backoff delay before the next attempt.
	StateRetrying SaveState = "retrying"
	// StateSaved: last cycle completed successfully.
	StateSaved SaveState = "saved"
	// StateError: retries exhausted; auto-expires after the error TTL.
	StateError SaveState = "error"
)

// ErrorDetail describes a save that exhausted its retries. It stays
// inspectable until the error state expires.
type ErrorDetail struct {
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}
