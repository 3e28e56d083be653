//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"entrypass/internal/entry/models"
	"entrypass/internal/entry/store"
	"entrypass/internal/entry/store/postgres"
	"entrypass/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(s.postgres.ExecSQL(context.Background(), postgres.Schema))
	s.store = postgres.New(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "entry_records"))
}

func newRecord() *models.EntryRecord {
	rec := models.NewEntryRecord("th")
	rec.Passport["passportNumber"] = "AB123456"
	rec.Passport["nationality"] = "VNM"
	rec.PersonalInfo["surname"] = "Nguyen"
	rec.Funds = []models.FieldValues{
		{"type": "cash", "amount": "20000", "currency": "THB"},
		{"type": "card", "amount": "50000", "currency": "THB"},
	}
	rec.Travel["flightNumber"] = "TG910"
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return rec
}

func (s *PostgresStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(context.Background(), "nowhere")
	s.True(errors.Is(err, store.ErrEntryNotFound))
}

func (s *PostgresStoreSuite) TestSaveGetRoundTrip() {
	ctx := context.Background()
	rec := newRecord()
	s.Require().NoError(s.store.Save(ctx, rec))

	got, err := s.store.Get(ctx, "th")
	s.Require().NoError(err)
	s.Equal(rec.Passport, got.Passport)
	s.Equal(rec.PersonalInfo, got.PersonalInfo)
	s.Equal(rec.Travel, got.Travel)
	s.Require().Len(got.Funds, 2)
	s.Equal("cash", got.Funds[0]["type"], "fund item order is preserved")
	s.Equal("card", got.Funds[1]["type"])
}

func (s *PostgresStoreSuite) TestSaveUpserts() {
	ctx := context.Background()
	rec := newRecord()
	s.Require().NoError(s.store.Save(ctx, rec))

	rec.Passport["passportNumber"] = "CD789012"
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	s.Require().NoError(s.store.Save(ctx, rec))

	got, err := s.store.Get(ctx, "th")
	s.Require().NoError(err)
	s.Equal("CD789012", got.Passport["passportNumber"])
}

func (s *PostgresStoreSuite) TestListAndDelete() {
	ctx := context.Background()
	s.Require().NoError(s.store.Save(ctx, newRecord()))

	jp := models.NewEntryRecord("jp")
	jp.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.store.Save(ctx, jp))

	recs, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(recs, 2)

	s.Require().NoError(s.store.Delete(ctx, "jp"))
	recs, err = s.store.List(ctx)
	s.Require().NoError(err)
	s.Len(recs, 1)
	s.Equal("th", recs[0].DestinationID.String())
}
