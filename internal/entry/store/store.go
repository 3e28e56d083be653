// Package store defines persistence for per-destination entry records.
package store

import (
	"context"

	"entrypass/internal/entry/models"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// ErrEntryNotFound is returned when no record exists for a destination.
var ErrEntryNotFound = dErrors.New(dErrors.CodeNotFound, "entry record not found")

// Store persists entry records keyed by destination.
type Store interface {
	Get(ctx context.Context, dest id.DestinationID) (*models.EntryRecord, error)
	Save(ctx context.Context, record *models.EntryRecord) error
	Delete(ctx context.Context, dest id.DestinationID) error
	// List returns all stored records. Used by the multi-destination
	// completion summary.
	List(ctx context.Context) ([]*models.EntryRecord, error)
}
