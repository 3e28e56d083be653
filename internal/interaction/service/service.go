// Package service implements the interaction state tracker: per-field
// bookkeeping of "the traveler typed this" versus "this arrived from
// storage or prefill".
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"entrypass/internal/interaction/models"
	"entrypass/internal/interaction/store"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/requestcontext"
)

// Store persists one interaction record per screen.
type Store interface {
	Load(ctx context.Context, screen id.ScreenID) (*models.RawState, error)
	Save(ctx context.Context, screen id.ScreenID, state *models.State) error
	Delete(ctx context.Context, screen id.ScreenID) error
}

// Tracker tracks interaction state for open screens. State is hydrated from
// the store when a screen opens, mutated only through Tracker methods, and
// persisted after every mutation.
type Tracker struct {
	mu      sync.RWMutex
	store   Store
	logger  *slog.Logger
	enabled bool
	states  map[id.ScreenID]*models.State
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithTrackingDisabled turns interaction tracking off. IsModified then
// reports true for every field: with no bookkeeping to consult, everything
// is treated as user data so nothing is silently dropped from saves.
func WithTrackingDisabled() Option {
	return func(t *Tracker) { t.enabled = false }
}

// New builds a Tracker backed by the given store.
func New(st Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:   st,
		logger:  slog.Default(),
		enabled: true,
		states:  make(map[id.ScreenID]*models.State),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Open hydrates the screen's state from the store, repairing any corrupted
// entries, or starts a fresh state when none exists. Detected issues are
// returned for diagnostics, never as an error.
func (t *Tracker) Open(ctx context.Context, screen id.ScreenID, session id.SessionID) ([]models.Issue, error) {
	if !screen.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "screen id must not be empty")
	}
	now := requestcontext.Now(ctx)

	raw, err := t.store.Load(ctx, screen)
	if err != nil {
		if errors.Is(err, store.ErrStateNotFound) {
			t.mu.Lock()
			t.states[screen] = models.NewState(session, now)
			t.mu.Unlock()
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load interaction state")
	}

	report := Validate(raw, now)
	if !report.Valid {
		t.logger.WarnContext(ctx, "recovered corrupted interaction state",
			"screen_id", screen.String(),
			"issues", len(report.Issues),
		)
	}
	state := report.State
	if state.SessionID.IsZero() {
		state.SessionID = session
	}

	t.mu.Lock()
	t.states[screen] = state
	t.mu.Unlock()
	return report.Issues, nil
}

// Close persists and evicts the screen's state.
func (t *Tracker) Close(ctx context.Context, screen id.ScreenID) error {
	t.mu.Lock()
	state := t.states[screen]
	delete(t.states, screen)
	t.mu.Unlock()
	if state == nil {
		return nil
	}
	if err := t.store.Save(ctx, screen, state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeSaveFailed, "persist interaction state")
	}
	return nil
}

// MarkModified records that the traveler edited a field. Idempotent; repeated
// calls refresh the timestamp.
func (t *Tracker) MarkModified(ctx context.Context, screen id.ScreenID, field, value string) error {
	return t.mark(ctx, screen, field, value, true)
}

// MarkPreFilled records that a field arrived from storage or prefill. A field
// the traveler already modified is left untouched: prefill never clobbers a
// user edit.
func (t *Tracker) MarkPreFilled(ctx context.Context, screen id.ScreenID, field, value string) error {
	return t.mark(ctx, screen, field, value, false)
}

func (t *Tracker) mark(ctx context.Context, screen id.ScreenID, field, value string, modified bool) error {
	if field == "" {
		return dErrors.New(dErrors.CodeBadRequest, "field name must not be empty")
	}
	now := requestcontext.Now(ctx)

	t.mu.Lock()
	state := t.ensureStateLocked(ctx, screen, now)
	rec, tracked := state.Fields[field]
	switch {
	case !tracked:
		rec = models.FieldRecord{
			UserModified: modified,
			LastModified: now,
			InitialValue: value,
		}
	case modified:
		rec.UserModified = true
		rec.LastModified = now
	case rec.UserModified:
		// Prefill on a user-modified field: no-op.
		t.mu.Unlock()
		return nil
	default:
		rec.InitialValue = value
		rec.LastModified = now
	}
	state.Fields[field] = rec
	state.LastUpdated = now
	snapshot := state.Clone()
	t.mu.Unlock()

	return t.persist(ctx, screen, snapshot)
}

// Reset removes a field's tracking entry. Called when the traveler clears a
// value back to empty; the explicit reset is the only path that can take a
// field out of the user-modified set.
func (t *Tracker) Reset(ctx context.Context, screen id.ScreenID, field string) error {
	now := requestcontext.Now(ctx)

	t.mu.Lock()
	state, ok := t.states[screen]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	if _, tracked := state.Fields[field]; !tracked {
		t.mu.Unlock()
		return nil
	}
	delete(state.Fields, field)
	state.LastUpdated = now
	snapshot := state.Clone()
	t.mu.Unlock()

	return t.persist(ctx, screen, snapshot)
}

// IsModified reports whether the traveler has edited the field. When
// tracking is disabled it reports true: with no bookkeeping, every value is
// treated as user data rather than risk dropping real edits.
func (t *Tracker) IsModified(screen id.ScreenID, field string) bool {
	if !t.enabled {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.states[screen]
	if !ok {
		return false
	}
	return state.Fields[field].UserModified
}

// State returns a deep copy of the screen's current state, or nil when the
// screen is not open.
func (t *Tracker) State(screen id.ScreenID) *models.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[screen].Clone()
}

func (t *Tracker) ensureStateLocked(ctx context.Context, screen id.ScreenID, now time.Time) *models.State {
	state, ok := t.states[screen]
	if !ok {
		state = models.NewState(requestcontext.SessionID(ctx), now)
		t.states[screen] = state
	}
	return state
}

func (t *Tracker) persist(ctx context.Context, screen id.ScreenID, state *models.State) error {
	if err := t.store.Save(ctx, screen, state); err != nil {
		t.logger.WarnContext(ctx, "interaction state persist failed",
			"screen_id", screen.String(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeSaveFailed, "persist interaction state")
	}
	return nil
}

// Validate checks a raw stored state entry by entry. Malformed entries are
// reported by field name and replaced with safe defaults; the returned
// report always carries a usable state.
func Validate(raw *models.RawState, now time.Time) models.Report {
	report := models.Report{Valid: true}
	if raw == nil {
		report.Valid = false
		report.Issues = append(report.Issues, models.Issue{Field: "", Reason: "state is nil"})
		report.State = models.NewState(id.SessionID{}, now)
		return report
	}

	session, err := id.ParseSessionID(raw.SessionID)
	if err != nil {
		report.Valid = false
		report.Issues = append(report.Issues, models.Issue{Field: "session_id", Reason: "not a valid session id"})
	}

	state := models.NewState(session, now)
	if ts, err := time.Parse(time.RFC3339Nano, raw.LastUpdated); err == nil {
		state.LastUpdated = ts
	}

	for name, rec := range raw.Fields {
		clean, issue := sanitizeRecord(rec, now)
		if issue != "" {
			report.Valid = false
			report.Issues = append(report.Issues, models.Issue{Field: name, Reason: issue})
		}
		state.Fields[name] = clean
	}
	report.State = state
	return report
}

// Recover returns a sanitized copy of a raw state, with every malformed
// entry replaced by a safe default instead of dropping the whole record.
func Recover(raw *models.RawState, now time.Time) *models.State {
	return Validate(raw, now).State
}

func sanitizeRecord(rec models.RawRecord, now time.Time) (models.FieldRecord, string) {
	fallback := models.FieldRecord{UserModified: false, LastModified: now}

	var modified bool
	if err := json.Unmarshal(rec.UserModified, &modified); err != nil {
		return fallback, "user_modified is not a boolean"
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.LastModified)
	if err != nil {
		return fallback, "last_modified is not a valid timestamp"
	}
	clean := models.FieldRecord{UserModified: modified, LastModified: ts}
	if len(rec.InitialValue) > 0 {
		var initial string
		if err := json.Unmarshal(rec.InitialValue, &initial); err != nil {
			return fallback, "initial_value is not a string"
		}
		clean.InitialValue = initial
	}
	return clean, ""
}

// MergeOptions controls how two overlapping states are reconciled.
type MergeOptions struct {
	// PreferPrimary makes the primary entry win every conflict. When false,
	// the entry with the more recent LastModified wins.
	PreferPrimary bool
}

// Merge reconciles two independently tracked states for overlapping fields.
// A field's user-modified flag survives the merge whenever either side has
// it set and that side wins the conflict.
func Merge(primary, secondary *models.State, opts MergeOptions) *models.State {
	if primary == nil {
		return secondary.Clone()
	}
	merged := primary.Clone()
	if secondary == nil {
		return merged
	}
	for name, rec := range secondary.Fields {
		existing, ok := merged.Fields[name]
		if !ok {
			merged.Fields[name] = rec
			continue
		}
		if opts.PreferPrimary {
			continue
		}
		if rec.LastModified.After(existing.LastModified) {
			merged.Fields[name] = rec
		}
	}
	if secondary.LastUpdated.After(merged.LastUpdated) {
		merged.LastUpdated = secondary.LastUpdated
	}
	return merged
}
