package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/interaction/models"
	"entrypass/internal/interaction/store"
	id "entrypass/pkg/domain"
)

func TestMemoryStore(t *testing.T) {
	s := New()
	ctx := context.Background()
	screen := id.ScreenID("arrival-card:jp")

	t.Run("load missing returns ErrStateNotFound", func(t *testing.T) {
		_, err := s.Load(ctx, screen)
		assert.True(t, errors.Is(err, store.ErrStateNotFound))
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		state := models.NewState(id.NewSessionID(), time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
		state.Fields["surname"] = models.FieldRecord{UserModified: true, LastModified: state.LastUpdated}
		require.NoError(t, s.Save(ctx, screen, state))

		raw, err := s.Load(ctx, screen)
		require.NoError(t, err)
		assert.Equal(t, state.SessionID.String(), raw.SessionID)
		assert.Contains(t, raw.Fields, "surname")
	})

	t.Run("delete removes state", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, screen))
		_, err := s.Load(ctx, screen)
		assert.True(t, errors.Is(err, store.ErrStateNotFound))
	})

	t.Run("non-JSON document is treated as absent", func(t *testing.T) {
		s.SeedRaw(screen, []byte("not json"))
		_, err := s.Load(ctx, screen)
		assert.True(t, errors.Is(err, store.ErrStateNotFound))
	})
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(n int) {
			defer wg.Done()
			screen := id.ScreenID("screen")
			state := models.NewState(id.NewSessionID(), time.Now())
			assert.NoError(t, s.Save(ctx, screen, state))
			_, _ = s.Load(ctx, screen)
		}(i)
	}
	wg.Wait()
}
