package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StoreSchema is the DDL for the audit_events table.
const StoreSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id             TEXT PRIMARY KEY,
    ts             TIMESTAMPTZ NOT NULL,
    action         TEXT NOT NULL,
    session_id     TEXT NOT NULL DEFAULT '',
    screen_id      TEXT NOT NULL DEFAULT '',
    destination_id TEXT NOT NULL DEFAULT '',
    save_key       TEXT NOT NULL DEFAULT '',
    field          TEXT NOT NULL DEFAULT '',
    device         TEXT NOT NULL DEFAULT '',
    reason         TEXT NOT NULL DEFAULT '',
    retry_count    INT NOT NULL DEFAULT 0
)`

// PostgresStore keeps audit events queryable for support lookups ("why did
// this traveler's form not save"). Kafka handles the analytics fan-out; this
// table is the short-retention operational copy.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an existing database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts one event.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, ts, action, session_id, screen_id, destination_id, save_key, field, device, reason, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.Timestamp, string(event.Action), event.SessionID, event.ScreenID,
		event.DestinationID, event.SaveKey, event.Field, event.Device, event.Reason, event.RetryCount)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Publish implements Publisher by appending to the table, so the store can
// sit in a Fanout next to the Kafka sink.
func (s *PostgresStore) Publish(ctx context.Context, event Event) error {
	return s.Append(ctx, event)
}

// ListBySession returns a session's events, newest first.
func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ts, action, session_id, screen_id, destination_id, save_key, field, device, reason, retry_count
		FROM audit_events WHERE session_id = $1 ORDER BY ts DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var action string
		var ts time.Time
		if err := rows.Scan(&e.ID, &ts, &action, &e.SessionID, &e.ScreenID, &e.DestinationID,
			&e.SaveKey, &e.Field, &e.Device, &e.Reason, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Timestamp = ts
		e.Action = Action(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
