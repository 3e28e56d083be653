// Package store defines persistence for per-screen interaction state.
package store

import (
	"context"

	"entrypass/internal/interaction/models"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// ErrStateNotFound is returned when no state has been persisted for a screen.
var ErrStateNotFound = dErrors.New(dErrors.CodeNotFound, "interaction state not found")

// Store persists one serialized interaction record per screen. Load returns
// the loosely typed RawState so the service can validate and repair entries
// field by field; corrupted documents are a data problem, not an I/O error.
type Store interface {
	Load(ctx context.Context, screen id.ScreenID) (*models.RawState, error)
	Save(ctx context.Context, screen id.ScreenID, state *models.State) error
	Delete(ctx context.Context, screen id.ScreenID) error
}
