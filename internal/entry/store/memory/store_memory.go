// Package memory provides the in-memory entry record store.
package memory

import (
	"context"
	"sync"

	"entrypass/internal/entry/models"
	"entrypass/internal/entry/store"
	id "entrypass/pkg/domain"
)

// Store keeps entry records keyed by destination. Records are cloned on the
// way in and out so callers never share mutable state with the store.
type Store struct {
	mu      sync.RWMutex
	records map[id.DestinationID]*models.EntryRecord
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{records: make(map[id.DestinationID]*models.EntryRecord)}
}

// Get returns the record for a destination, or ErrEntryNotFound.
func (s *Store) Get(ctx context.Context, dest id.DestinationID) (*models.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[dest]
	if !ok {
		return nil, store.ErrEntryNotFound
	}
	return rec.Clone(), nil
}

// Save stores (or replaces) a record.
func (s *Store) Save(ctx context.Context, record *models.EntryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.DestinationID] = record.Clone()
	return nil
}

// Delete removes a destination's record. Absent records are a no-op.
func (s *Store) Delete(ctx context.Context, dest id.DestinationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, dest)
	return nil
}

// List returns all stored records.
func (s *Store) List(ctx context.Context) ([]*models.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.EntryRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}
