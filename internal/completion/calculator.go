// Package completion aggregates per-destination completion metrics over
// persisted entry records, with a content-keyed cache and ready/in-progress
// categorization for the trip overview screen.
package completion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"entrypass/internal/entry/models"
	"entrypass/internal/fieldstate"
	interaction "entrypass/internal/interaction/models"
	"entrypass/internal/platform/metrics"
	id "entrypass/pkg/domain"
	"entrypass/pkg/requestcontext"
)

// Config is the calculator's declarative input: which fields each category
// carries, which categories are mandatory, and the readiness threshold.
type Config struct {
	// ReadinessThreshold is the overall percent at or above which a
	// destination counts as ready. Defaults to 90.
	ReadinessThreshold float64
	// MandatoryCategories must each be required-complete for readiness,
	// independent of the overall percent. Defaults to passport and
	// personal info.
	MandatoryCategories []models.Category
	// Fields holds the per-category field configuration. CategoryFunds
	// configures one fund item; the list is scored item by item.
	Fields map[models.Category]map[string]fieldstate.FieldConfig
}

func (c Config) normalized() Config {
	if c.ReadinessThreshold <= 0 || c.ReadinessThreshold > 100 {
		c.ReadinessThreshold = 90
	}
	if c.MandatoryCategories == nil {
		c.MandatoryCategories = []models.Category{models.CategoryPassport, models.CategoryPersonal}
	}
	return c
}

// Metrics is the completion summary for one destination.
type Metrics struct {
	DestinationID   id.DestinationID                      `json:"destination_id"`
	TotalPercent    float64                               `json:"total_percent"`
	RequiredPercent float64                               `json:"required_percent"`
	WeightedPercent float64                               `json:"weighted_percent"`
	Ready           bool                                  `json:"is_ready"`
	Categories      map[models.Category]fieldstate.Metrics `json:"category_breakdown"`
	LastUpdated     time.Time                             `json:"last_updated"`
}

// Aggregate summarizes progress across all destinations of a trip.
type Aggregate struct {
	Total       int  `json:"total_destinations"`
	Ready       int  `json:"ready"`
	InProgress  int  `json:"in_progress"`
	AnyProgress bool `json:"any_progress"`
}

// MultiSummary is the trip-wide completion view.
type MultiSummary struct {
	Destinations map[id.DestinationID]Metrics `json:"destinations"`
	Summary      Aggregate                    `json:"summary"`
}

// Calculator computes and caches completion metrics. The cache is owned by
// the instance and keyed by (destination, content identity); it is only
// invalidated through ClearCache or by the content changing.
type Calculator struct {
	mu       sync.Mutex
	cfg      Config
	cache    map[id.DestinationID]cacheEntry
	identity IdentityFunc
	logger   *slog.Logger
	metrics  *metrics.Metrics
	observer func(id.DestinationID)
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics wires cache hit/miss counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Calculator) { c.metrics = m }
}

// WithIdentityFunc overrides the content identity derivation.
func WithIdentityFunc(fn IdentityFunc) Option {
	return func(c *Calculator) {
		if fn != nil {
			c.identity = fn
		}
	}
}

// WithComputeObserver registers a hook invoked on every cache miss, before
// recomputation. Used by tests to assert cache behavior.
func WithComputeObserver(fn func(id.DestinationID)) Option {
	return func(c *Calculator) { c.observer = fn }
}

// New builds a Calculator.
func New(cfg Config, opts ...Option) *Calculator {
	c := &Calculator{
		cfg:      cfg.normalized(),
		cache:    make(map[id.DestinationID]cacheEntry),
		identity: ContentIdentity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Summary computes (or serves from cache) the completion metrics for one
// destination. A nil or empty record reports zero percent, not an error.
func (c *Calculator) Summary(ctx context.Context, dest id.DestinationID, record *models.EntryRecord) Metrics {
	identity := c.identity(record)

	c.mu.Lock()
	if cached, ok := c.cache[dest]; ok && identity != "" && cached.identity == identity {
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.SummaryCacheHits.Inc()
		}
		return cached.metrics
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SummaryCacheMisses.Inc()
	}
	if c.observer != nil {
		c.observer(dest)
	}

	m := c.compute(dest, record, requestcontext.Now(ctx))

	c.mu.Lock()
	c.cache[dest] = cacheEntry{identity: identity, metrics: m}
	c.mu.Unlock()
	return m
}

// compute scores each category and folds them into the overall metrics.
func (c *Calculator) compute(dest id.DestinationID, record *models.EntryRecord, now time.Time) Metrics {
	m := Metrics{
		DestinationID: dest,
		Categories:    make(map[models.Category]fieldstate.Metrics, len(c.cfg.Fields)),
		LastUpdated:   now,
	}

	var total, required, weighted float64
	var scored int
	for _, cat := range models.Categories() {
		configs, ok := c.cfg.Fields[cat]
		if !ok {
			continue
		}
		var cm fieldstate.Metrics
		if cat == models.CategoryFunds {
			cm = c.fundsMetrics(record, configs, now)
		} else {
			cm = sectionMetrics(record.Section(cat), configs, now)
		}
		m.Categories[cat] = cm
		total += cm.TotalPercent
		required += cm.RequiredPercent
		weighted += cm.WeightedPercent
		scored++
	}
	if scored == 0 {
		return m
	}

	m.TotalPercent = total / float64(scored)
	m.RequiredPercent = required / float64(scored)
	m.WeightedPercent = weighted / float64(scored)
	m.Ready = c.ready(m)
	return m
}

func (c *Calculator) ready(m Metrics) bool {
	if m.TotalPercent < c.cfg.ReadinessThreshold {
		return false
	}
	for _, cat := range c.cfg.MandatoryCategories {
		cm, ok := m.Categories[cat]
		if !ok || cm.RequiredPercent < 100 {
			return false
		}
	}
	return true
}

// sectionMetrics delegates to the field-state completion logic. Persisted
// values already passed the save filter, which only admits user-confirmed
// or preserved data, so every non-empty stored field counts as confirmed.
func sectionMetrics(fields models.FieldValues, configs map[string]fieldstate.FieldConfig, now time.Time) fieldstate.Metrics {
	state := interaction.NewState(id.SessionID{}, now)
	for name, value := range fields {
		if !fieldstate.Empty(value) {
			state.Fields[name] = interaction.FieldRecord{UserModified: true, LastModified: now}
		}
	}
	return fieldstate.Completion(map[string]string(fields), state, configs, now)
}

// fundsMetrics scores the fund list: each item is scored against the item
// config and the list's percent is the mean. No items means zero percent.
func (c *Calculator) fundsMetrics(record *models.EntryRecord, configs map[string]fieldstate.FieldConfig, now time.Time) fieldstate.Metrics {
	out := fieldstate.Metrics{LastUpdated: now}
	if record == nil || len(record.Funds) == 0 {
		return out
	}
	for _, item := range record.Funds {
		im := sectionMetrics(item, configs, now)
		out.TotalPercent += im.TotalPercent
		out.RequiredPercent += im.RequiredPercent
		out.WeightedPercent += im.WeightedPercent
		out.CompletedFields += im.CompletedFields
		out.TotalFields += im.TotalFields
	}
	n := float64(len(record.Funds))
	out.TotalPercent /= n
	out.RequiredPercent /= n
	out.WeightedPercent /= n
	return out
}

// MultiDestinationSummary computes per-destination metrics for a whole trip.
// Nil records are empty destinations (0%), not errors, and one
// destination's failure never poisons the others.
func (c *Calculator) MultiDestinationSummary(ctx context.Context, records map[id.DestinationID]*models.EntryRecord) MultiSummary {
	out := MultiSummary{Destinations: make(map[id.DestinationID]Metrics, len(records))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for dest, record := range records {
		g.Go(func() error {
			m := c.Summary(gctx, dest, record)
			mu.Lock()
			out.Destinations[dest] = m
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; the group is used for bounded fan-out.
	_ = g.Wait()

	for _, m := range out.Destinations {
		out.Summary.Total++
		switch {
		case m.Ready:
			out.Summary.Ready++
			out.Summary.AnyProgress = true
		case m.TotalPercent > 0:
			out.Summary.InProgress++
			out.Summary.AnyProgress = true
		}
	}
	return out
}

// ClearCache drops cached metrics for the given destinations, or the whole
// cache when none are named.
func (c *Calculator) ClearCache(dests ...id.DestinationID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(dests) == 0 {
		c.cache = make(map[id.DestinationID]cacheEntry)
		return
	}
	for _, dest := range dests {
		delete(c.cache, dest)
	}
}

// LoadFunc fetches a destination's record; nil means no record yet.
type LoadFunc func(ctx context.Context, dest id.DestinationID) (*models.EntryRecord, error)

// SwitchResult reports a context switch between destinations. Failures are
// captured here rather than returned as errors so the caller's UI can
// degrade gracefully; previously computed metrics survive a failed switch.
type SwitchResult struct {
	Success bool                       `json:"success"`
	From    *Metrics                   `json:"from,omitempty"`
	To      *Metrics                   `json:"to,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// SwitchContext loads and summarizes both sides of a destination switch.
func (c *Calculator) SwitchContext(ctx context.Context, from, to id.DestinationID, load LoadFunc) SwitchResult {
	result := SwitchResult{Success: true}

	for _, step := range []struct {
		dest   id.DestinationID
		target **Metrics
	}{
		{from, &result.From},
		{to, &result.To},
	} {
		if !step.dest.Valid() {
			continue
		}
		record, err := load(ctx, step.dest)
		if err != nil {
			c.logger.WarnContext(ctx, "context switch load failed",
				"destination_id", step.dest.String(),
				"error", err,
			)
			result.Success = false
			result.Error = fmt.Sprintf("load %s: %v", step.dest.String(), err)
			// Keep whatever was cached before; do not clobber it.
			if cached, ok := c.cached(step.dest); ok {
				*step.target = &cached
			}
			continue
		}
		m := c.Summary(ctx, step.dest, record)
		*step.target = &m
	}
	return result
}

func (c *Calculator) cached(dest id.DestinationID) (Metrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[dest]
	return entry.metrics, ok
}
