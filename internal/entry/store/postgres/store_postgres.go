// Package postgres provides the Postgres-backed entry record store. Each
// sub-section is a JSONB column: per-country forms differ too much for a
// fixed column set, and the engine treats field names as opaque anyway.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"entrypass/internal/entry/models"
	"entrypass/internal/entry/store"
	id "entrypass/pkg/domain"
)

// Schema is the DDL for the entry_records table. Applied by deploy
// tooling and by integration test suites.
const Schema = `
CREATE TABLE IF NOT EXISTS entry_records (
    destination_id TEXT PRIMARY KEY,
    passport       JSONB NOT NULL DEFAULT '{}',
    personal_info  JSONB NOT NULL DEFAULT '{}',
    funds          JSONB NOT NULL DEFAULT '[]',
    travel         JSONB NOT NULL DEFAULT '{}',
    updated_at     TIMESTAMPTZ NOT NULL
)`

// Store is a pgx-backed entry record store.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs the store. The pool's lifecycle is managed by the caller.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the record for a destination, or ErrEntryNotFound.
func (s *Store) Get(ctx context.Context, dest id.DestinationID) (*models.EntryRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT destination_id, passport, personal_info, funds, travel, updated_at
		FROM entry_records WHERE destination_id = $1`, dest.String())
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry record: %w", err)
	}
	return rec, nil
}

// Save upserts a record.
func (s *Store) Save(ctx context.Context, record *models.EntryRecord) error {
	passport, personal, funds, travel, err := marshalSections(record)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO entry_records (destination_id, passport, personal_info, funds, travel, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (destination_id) DO UPDATE SET
			passport = EXCLUDED.passport,
			personal_info = EXCLUDED.personal_info,
			funds = EXCLUDED.funds,
			travel = EXCLUDED.travel,
			updated_at = EXCLUDED.updated_at`,
		record.DestinationID.String(), passport, personal, funds, travel, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save entry record: %w", err)
	}
	return nil
}

// Delete removes a destination's record.
func (s *Store) Delete(ctx context.Context, dest id.DestinationID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM entry_records WHERE destination_id = $1`, dest.String())
	if err != nil {
		return fmt.Errorf("delete entry record: %w", err)
	}
	return nil
}

// List returns all stored records.
func (s *Store) List(ctx context.Context) ([]*models.EntryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT destination_id, passport, personal_info, funds, travel, updated_at
		FROM entry_records ORDER BY destination_id`)
	if err != nil {
		return nil, fmt.Errorf("list entry records: %w", err)
	}
	defer rows.Close()

	var out []*models.EntryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list entry records: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.EntryRecord, error) {
	var (
		rec                              models.EntryRecord
		destID                           string
		passport, personal, funds, travel []byte
	)
	if err := row.Scan(&destID, &passport, &personal, &funds, &travel, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.DestinationID = id.DestinationID(destID)
	if err := json.Unmarshal(passport, &rec.Passport); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(personal, &rec.PersonalInfo); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(funds, &rec.Funds); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(travel, &rec.Travel); err != nil {
		return nil, err
	}
	return &rec, nil
}

func marshalSections(record *models.EntryRecord) (passport, personal, funds, travel []byte, err error) {
	if passport, err = json.Marshal(orEmptyMap(record.Passport)); err != nil {
		return
	}
	if personal, err = json.Marshal(orEmptyMap(record.PersonalInfo)); err != nil {
		return
	}
	if record.Funds == nil {
		funds = []byte("[]")
	} else if funds, err = json.Marshal(record.Funds); err != nil {
		return
	}
	travel, err = json.Marshal(orEmptyMap(record.Travel))
	return
}

func orEmptyMap(f models.FieldValues) models.FieldValues {
	if f == nil {
		return models.FieldValues{}
	}
	return f
}
