// Package redis provides the Redis-backed interaction state store for
// deployments where app servers share state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"entrypass/internal/interaction/models"
	"entrypass/internal/interaction/store"
	id "entrypass/pkg/domain"
)

const stateKeyPrefix = "interaction-state:"

// Store is a Redis-backed interaction state store. Each screen's state lives
// under "interaction-state:<screenID>" with a TTL so abandoned screens age out.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures the store.
type Option func(*Store)

// WithTTL overrides the retention window for persisted states.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// New constructs a Redis-backed store. Default retention is 30 days, enough
// to span a trip without keeping abandoned drafts forever.
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, ttl: 30 * 24 * time.Hour}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func stateKey(screen id.ScreenID) string {
	return stateKeyPrefix + screen.String()
}

// Load returns the raw state for a screen, or ErrStateNotFound.
func (s *Store) Load(ctx context.Context, screen id.ScreenID) (*models.RawState, error) {
	data, err := s.client.Get(ctx, stateKey(screen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	var raw models.RawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, store.ErrStateNotFound
	}
	return &raw, nil
}

// Save serializes and stores the state, refreshing the TTL.
func (s *Store) Save(ctx context.Context, screen id.ScreenID, state *models.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKey(screen), data, s.ttl).Err()
}

// Delete removes the state for a screen.
func (s *Store) Delete(ctx context.Context, screen id.ScreenID) error {
	return s.client.Del(ctx, stateKey(screen)).Err()
}
