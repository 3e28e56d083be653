// Package memory provides the in-memory interaction state store used in
// tests and single-instance deployments.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	"entrypass/internal/interaction/models"
	"entrypass/internal/interaction/store"
	id "entrypass/pkg/domain"
)

// Store keeps serialized states keyed by screen. Values are stored as JSON
// bytes so the memory and Redis stores exercise the same encode/decode path.
type Store struct {
	mu     sync.RWMutex
	states map[id.ScreenID][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{states: make(map[id.ScreenID][]byte)}
}

// Load returns the raw state for a screen, or ErrStateNotFound.
func (s *Store) Load(ctx context.Context, screen id.ScreenID) (*models.RawState, error) {
	s.mu.RLock()
	data, ok := s.states[screen]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrStateNotFound
	}
	var raw models.RawState
	if err := json.Unmarshal(data, &raw); err != nil {
		// A document that is not even JSON is treated as absent; the
		// tracker rebuilds from scratch rather than erroring out.
		return nil, store.ErrStateNotFound
	}
	return &raw, nil
}

// Save serializes and stores the state for a screen.
func (s *Store) Save(ctx context.Context, screen id.ScreenID, state *models.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[screen] = data
	s.mu.Unlock()
	return nil
}

// Delete removes the state for a screen. Deleting an absent screen is a no-op.
func (s *Store) Delete(ctx context.Context, screen id.ScreenID) error {
	s.mu.Lock()
	delete(s.states, screen)
	s.mu.Unlock()
	return nil
}

// SeedRaw stores pre-serialized bytes for a screen. Test helper for
// exercising corrupted-document recovery.
func (s *Store) SeedRaw(screen id.ScreenID, data []byte) {
	s.mu.Lock()
	s.states[screen] = data
	s.mu.Unlock()
}
