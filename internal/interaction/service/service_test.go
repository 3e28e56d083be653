package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/interaction/models"
	"entrypass/internal/interaction/service"
	"entrypass/internal/interaction/store/memory"
	id "entrypass/pkg/domain"
	"entrypass/pkg/requestcontext"
)

const screen = id.ScreenID("arrival-card:th")

func newSession(t *testing.T) id.SessionID {
	t.Helper()
	return id.NewSessionID()
}

func openTracker(t *testing.T) (*service.Tracker, *memory.Store, context.Context) {
	t.Helper()
	st := memory.New()
	tracker := service.New(st)
	ctx := context.Background()
	_, err := tracker.Open(ctx, screen, newSession(t))
	require.NoError(t, err)
	return tracker, st, ctx
}

func TestTracker_MarkModified(t *testing.T) {
	tracker, _, ctx := openTracker(t)

	t.Run("sets the user-modified flag", func(t *testing.T) {
		require.NoError(t, tracker.MarkModified(ctx, screen, "passportNumber", "AB123456"))
		assert.True(t, tracker.IsModified(screen, "passportNumber"))
	})

	t.Run("is idempotent and refreshes the timestamp", func(t *testing.T) {
		first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		second := first.Add(5 * time.Minute)

		require.NoError(t, tracker.MarkModified(requestcontext.WithTime(ctx, first), screen, "surname", "Ng"))
		require.NoError(t, tracker.MarkModified(requestcontext.WithTime(ctx, second), screen, "surname", "Nguyen"))

		state := tracker.State(screen)
		require.NotNil(t, state)
		rec := state.Fields["surname"]
		assert.True(t, rec.UserModified)
		assert.Equal(t, second, rec.LastModified)
		assert.Equal(t, "Ng", rec.InitialValue, "initial value records the first observation")
	})

	t.Run("rejects empty field names", func(t *testing.T) {
		assert.Error(t, tracker.MarkModified(ctx, screen, "", "x"))
	})
}

func TestTracker_MarkPreFilled(t *testing.T) {
	tracker, _, ctx := openTracker(t)

	t.Run("tracks an untouched field as not modified", func(t *testing.T) {
		require.NoError(t, tracker.MarkPreFilled(ctx, screen, "nationality", "THA"))
		assert.False(t, tracker.IsModified(screen, "nationality"))
	})

	t.Run("never downgrades a user edit", func(t *testing.T) {
		require.NoError(t, tracker.MarkModified(ctx, screen, "email", "me@example.com"))
		require.NoError(t, tracker.MarkPreFilled(ctx, screen, "email", "stale@example.com"))

		assert.True(t, tracker.IsModified(screen, "email"))
		state := tracker.State(screen)
		assert.Equal(t, "me@example.com", state.Fields["email"].InitialValue,
			"prefill on a modified field must be a full no-op")
	})

	t.Run("repeated prefill refreshes the observed value", func(t *testing.T) {
		require.NoError(t, tracker.MarkPreFilled(ctx, screen, "flightNumber", "TG910"))
		require.NoError(t, tracker.MarkPreFilled(ctx, screen, "flightNumber", "TG916"))

		state := tracker.State(screen)
		rec := state.Fields["flightNumber"]
		assert.False(t, rec.UserModified)
		assert.Equal(t, "TG916", rec.InitialValue)
	})
}

func TestTracker_Reset(t *testing.T) {
	tracker, _, ctx := openTracker(t)

	require.NoError(t, tracker.MarkModified(ctx, screen, "visaNumber", "V-1"))
	require.True(t, tracker.IsModified(screen, "visaNumber"))

	require.NoError(t, tracker.Reset(ctx, screen, "visaNumber"))
	assert.False(t, tracker.IsModified(screen, "visaNumber"))

	state := tracker.State(screen)
	_, tracked := state.Fields["visaNumber"]
	assert.False(t, tracked, "reset removes the entry entirely")

	assert.NoError(t, tracker.Reset(ctx, screen, "neverTracked"), "resetting an untracked field is a no-op")
}

func TestTracker_TrackingDisabled(t *testing.T) {
	tracker := service.New(memory.New(), service.WithTrackingDisabled())
	assert.True(t, tracker.IsModified(screen, "anything"),
		"disabled tracking fails open toward treating values as user data")
}

func TestTracker_IsModified_UnknownScreen(t *testing.T) {
	tracker := service.New(memory.New())
	assert.False(t, tracker.IsModified("never-opened", "field"))
}

func TestTracker_OpenHydratesFromStore(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	session := id.NewSessionID()

	first := service.New(st)
	_, err := first.Open(ctx, screen, session)
	require.NoError(t, err)
	require.NoError(t, first.MarkModified(ctx, screen, "passportNumber", "AB123456"))
	require.NoError(t, first.Close(ctx, screen))

	second := service.New(st)
	issues, err := second.Open(ctx, screen, session)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.True(t, second.IsModified(screen, "passportNumber"))
}

func TestTracker_OpenRecoversCorruptedState(t *testing.T) {
	st := memory.New()
	session := id.NewSessionID()
	doc := map[string]any{
		"session_id": session.String(),
		"fields": map[string]any{
			"good": map[string]any{
				"user_modified": true,
				"last_modified": "2026-03-01T10:00:00Z",
			},
			"badFlag": map[string]any{
				"user_modified": "yes",
				"last_modified": "2026-03-01T10:00:00Z",
			},
			"badTime": map[string]any{
				"user_modified": false,
				"last_modified": "not-a-timestamp",
			},
		},
		"last_updated": "2026-03-01T10:00:00Z",
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	st.SeedRaw(screen, data)

	tracker := service.New(st)
	issues, err := tracker.Open(context.Background(), screen, session)
	require.NoError(t, err, "corrupted state must never surface as an error")
	require.Len(t, issues, 2)

	names := []string{issues[0].Field, issues[1].Field}
	assert.ElementsMatch(t, []string{"badFlag", "badTime"}, names)

	assert.True(t, tracker.IsModified(screen, "good"), "valid entries survive recovery")
	assert.False(t, tracker.IsModified(screen, "badFlag"), "repaired entries default to not modified")
	assert.False(t, tracker.IsModified(screen, "badTime"))
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("nil state", func(t *testing.T) {
		report := service.Validate(nil, now)
		assert.False(t, report.Valid)
		require.NotNil(t, report.State)
		assert.Empty(t, report.State.Fields)
	})

	t.Run("clean state passes", func(t *testing.T) {
		raw := &models.RawState{
			SessionID: uuid.NewString(),
			Fields: map[string]models.RawRecord{
				"surname": {
					UserModified: json.RawMessage(`true`),
					LastModified: "2026-03-01T09:00:00Z",
					InitialValue: json.RawMessage(`"Ng"`),
				},
			},
			LastUpdated: "2026-03-01T09:00:00Z",
		}
		report := service.Validate(raw, now)
		assert.True(t, report.Valid)
		assert.Empty(t, report.Issues)
		assert.True(t, report.State.Fields["surname"].UserModified)
		assert.Equal(t, "Ng", report.State.Fields["surname"].InitialValue)
	})

	t.Run("bad session id is reported but state stays usable", func(t *testing.T) {
		raw := &models.RawState{SessionID: "garbage"}
		report := service.Validate(raw, now)
		assert.False(t, report.Valid)
		require.Len(t, report.Issues, 1)
		assert.Equal(t, "session_id", report.Issues[0].Field)
	})
}

func TestRecover(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := &models.RawState{
		SessionID: uuid.NewString(),
		Fields: map[string]models.RawRecord{
			"broken": {
				UserModified: json.RawMessage(`1`),
				LastModified: "2026-03-01T09:00:00Z",
			},
		},
	}
	state := service.Recover(raw, now)
	require.NotNil(t, state)
	rec, ok := state.Fields["broken"]
	require.True(t, ok, "recovery keeps the entry with safe defaults instead of dropping it")
	assert.False(t, rec.UserModified)
	assert.Equal(t, now, rec.LastModified)
}

func TestMerge(t *testing.T) {
	older := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	session := id.NewSessionID()

	primary := models.NewState(session, older)
	primary.Fields["surname"] = models.FieldRecord{UserModified: true, LastModified: older}
	primary.Fields["onlyPrimary"] = models.FieldRecord{UserModified: true, LastModified: older}

	secondary := models.NewState(session, newer)
	secondary.Fields["surname"] = models.FieldRecord{UserModified: false, LastModified: newer}
	secondary.Fields["onlySecondary"] = models.FieldRecord{UserModified: false, LastModified: newer}

	t.Run("prefer primary", func(t *testing.T) {
		merged := service.Merge(primary, secondary, service.MergeOptions{PreferPrimary: true})
		assert.True(t, merged.Fields["surname"].UserModified)
		assert.Contains(t, merged.Fields, "onlyPrimary")
		assert.Contains(t, merged.Fields, "onlySecondary")
	})

	t.Run("most recent wins", func(t *testing.T) {
		merged := service.Merge(primary, secondary, service.MergeOptions{})
		assert.False(t, merged.Fields["surname"].UserModified, "newer secondary entry wins")
		assert.Equal(t, newer, merged.Fields["surname"].LastModified)
	})

	t.Run("nil sides", func(t *testing.T) {
		assert.NotNil(t, service.Merge(nil, secondary, service.MergeOptions{}))
		assert.NotNil(t, service.Merge(primary, nil, service.MergeOptions{}))
	})
}
