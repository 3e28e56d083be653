package completion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"entrypass/internal/entry/models"
	"entrypass/internal/fieldstate"
	id "entrypass/pkg/domain"
	"entrypass/pkg/requestcontext"
)

func testConfig() Config {
	return Config{
		ReadinessThreshold: 90,
		Fields: map[models.Category]map[string]fieldstate.FieldConfig{
			models.CategoryPassport: {
				"passportNumber": {Name: "passportNumber", Required: true},
				"nationality":    {Name: "nationality", Required: true},
			},
			models.CategoryPersonal: {
				"surname":   {Name: "surname", Required: true},
				"firstName": {Name: "firstName", Required: true},
			},
			models.CategoryFunds: {
				"amount":   {Name: "amount", Required: true},
				"currency": {Name: "currency"},
			},
			models.CategoryTravel: {
				"flightNumber": {Name: "flightNumber", Required: true},
				"arrivalDate":  {Name: "arrivalDate", Required: true},
			},
		},
	}
}

func fullRecord(dest id.DestinationID) *models.EntryRecord {
	rec := models.NewEntryRecord(dest)
	rec.Passport["passportNumber"] = "AB123456"
	rec.Passport["nationality"] = "VNM"
	rec.PersonalInfo["surname"] = "Nguyen"
	rec.PersonalInfo["firstName"] = "Linh"
	rec.Funds = []models.FieldValues{{"amount": "20000", "currency": "THB"}}
	rec.Travel["flightNumber"] = "TG910"
	rec.Travel["arrivalDate"] = "2026-03-10"
	return rec
}

func partialRecord(dest id.DestinationID) *models.EntryRecord {
	rec := models.NewEntryRecord(dest)
	rec.Passport["passportNumber"] = "CD789012"
	return rec
}

func testCtx() context.Context {
	return requestcontext.WithTime(context.Background(),
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestSummary(t *testing.T) {
	c := New(testConfig())
	ctx := testCtx()

	t.Run("fully populated record is ready", func(t *testing.T) {
		m := c.Summary(ctx, "th", fullRecord("th"))
		assert.InDelta(t, 100.0, m.TotalPercent, 0.001)
		assert.True(t, m.Ready)
		assert.Len(t, m.Categories, 4)
		assert.InDelta(t, 100.0, m.Categories[models.CategoryFunds].TotalPercent, 0.001)
	})

	t.Run("partial record is in progress, not ready", func(t *testing.T) {
		m := c.Summary(ctx, "jp", partialRecord("jp"))
		assert.Greater(t, m.TotalPercent, 0.0)
		assert.Less(t, m.TotalPercent, 100.0)
		assert.False(t, m.Ready)
	})

	t.Run("nil record reports zero", func(t *testing.T) {
		m := c.Summary(ctx, "sg", nil)
		assert.Zero(t, m.TotalPercent)
		assert.False(t, m.Ready)
	})

	t.Run("empty record reports zero", func(t *testing.T) {
		m := c.Summary(ctx, "my", models.NewEntryRecord("my"))
		assert.Zero(t, m.TotalPercent)
	})

	t.Run("mandatory category gates readiness regardless of percent", func(t *testing.T) {
		cfg := testConfig()
		cfg.ReadinessThreshold = 10
		gated := New(cfg)

		rec := fullRecord("th")
		rec.Passport = models.FieldValues{} // wipe a mandatory category
		m := gated.Summary(ctx, "th", rec)
		assert.Greater(t, m.TotalPercent, 10.0)
		assert.False(t, m.Ready, "missing mandatory passport data must block readiness")
	})
}

func TestSummary_Cache(t *testing.T) {
	var computes atomic.Int32
	c := New(testConfig(), WithComputeObserver(func(id.DestinationID) {
		computes.Add(1)
	}))
	ctx := testCtx()

	t.Run("structurally identical records hit", func(t *testing.T) {
		first := c.Summary(ctx, "th", fullRecord("th"))
		second := c.Summary(ctx, "th", fullRecord("th"))

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), computes.Load(), "the second call must not recompute")
	})

	t.Run("a changed field misses", func(t *testing.T) {
		rec := fullRecord("th")
		rec.Travel["flightNumber"] = "TG916"
		c.Summary(ctx, "th", rec)
		assert.Equal(t, int32(2), computes.Load())
	})

	t.Run("toggled-and-toggled-back content still hits by identity", func(t *testing.T) {
		c.Summary(ctx, "th", fullRecord("th"))
		assert.Equal(t, int32(3), computes.Load(), "content changed back, identity differs from last cached")
		c.Summary(ctx, "th", fullRecord("th"))
		assert.Equal(t, int32(3), computes.Load())
	})

	t.Run("ClearCache for one destination", func(t *testing.T) {
		c.Summary(ctx, "jp", partialRecord("jp"))
		before := computes.Load()

		c.ClearCache("jp")
		c.Summary(ctx, "jp", partialRecord("jp"))
		assert.Equal(t, before+1, computes.Load())

		c.Summary(ctx, "th", fullRecord("th"))
		assert.Equal(t, before+1, computes.Load(), "clearing jp must not evict th")
	})

	t.Run("ClearCache with no arguments drops everything", func(t *testing.T) {
		c.ClearCache()
		before := computes.Load()
		c.Summary(ctx, "th", fullRecord("th"))
		c.Summary(ctx, "jp", partialRecord("jp"))
		assert.Equal(t, before+2, computes.Load())
	})
}

func TestMultiDestinationSummary(t *testing.T) {
	c := New(testConfig())
	ctx := testCtx()

	records := map[id.DestinationID]*models.EntryRecord{
		"th": fullRecord("th"),
		"jp": partialRecord("jp"),
		"sg": nil,
	}
	out := c.MultiDestinationSummary(ctx, records)

	require.Len(t, out.Destinations, 3)
	assert.True(t, out.Destinations["th"].Ready)
	assert.False(t, out.Destinations["jp"].Ready)
	assert.Greater(t, out.Destinations["jp"].TotalPercent, 0.0)
	assert.Less(t, out.Destinations["jp"].TotalPercent, 100.0)
	assert.Zero(t, out.Destinations["sg"].TotalPercent)

	assert.Equal(t, 3, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Ready)
	assert.Equal(t, 1, out.Summary.InProgress)
	assert.True(t, out.Summary.AnyProgress)

	t.Run("empty trip has no progress", func(t *testing.T) {
		out := c.MultiDestinationSummary(ctx, map[id.DestinationID]*models.EntryRecord{"sg": nil})
		assert.False(t, out.Summary.AnyProgress)
		assert.Zero(t, out.Summary.Ready)
		assert.Zero(t, out.Summary.InProgress)
	})
}

func TestSwitchContext(t *testing.T) {
	ctx := testCtx()

	t.Run("successful switch summarizes both sides", func(t *testing.T) {
		c := New(testConfig())
		load := func(_ context.Context, dest id.DestinationID) (*models.EntryRecord, error) {
			if dest == "th" {
				return fullRecord("th"), nil
			}
			return partialRecord(dest), nil
		}
		res := c.SwitchContext(ctx, "th", "jp", load)
		require.True(t, res.Success)
		require.NotNil(t, res.From)
		require.NotNil(t, res.To)
		assert.True(t, res.From.Ready)
		assert.False(t, res.To.Ready)
	})

	t.Run("load failure is captured, prior state preserved", func(t *testing.T) {
		c := New(testConfig())
		// Warm the cache for th.
		warm := c.Summary(ctx, "th", fullRecord("th"))

		load := func(_ context.Context, dest id.DestinationID) (*models.EntryRecord, error) {
			if dest == "th" {
				return nil, errors.New("storage down")
			}
			return partialRecord(dest), nil
		}
		res := c.SwitchContext(ctx, "th", "jp", load)

		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "th")
		require.NotNil(t, res.From, "previously computed metrics survive the failure")
		assert.Equal(t, warm.TotalPercent, res.From.TotalPercent)
		require.NotNil(t, res.To, "the healthy side still loads")
	})
}
