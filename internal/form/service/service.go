// Package service orchestrates the form engine: every field edit flows
// through interaction tracking, validation, save filtering and the debounced
// persistence layer, and completion summaries are computed over the stored
// entry records.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"entrypass/internal/audit"
	"entrypass/internal/completion"
	entrymodels "entrypass/internal/entry/models"
	entrystore "entrypass/internal/entry/store"
	"entrypass/internal/fieldstate"
	interaction "entrypass/internal/interaction/models"
	"entrypass/internal/persistence"
	"entrypass/internal/platform/config"
	"entrypass/internal/platform/metrics"
	"entrypass/internal/validation"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
	"entrypass/pkg/requestcontext"
)

// FieldSpec declares one field of a screen: its validation posture and its
// save behavior.
type FieldSpec struct {
	Name       string  `json:"name"`
	Required   bool    `json:"required"`
	WarnOnly   bool    `json:"warn_only"`
	AlwaysSave bool    `json:"always_save"`
	Weight     float64 `json:"weight"`
	// Rule optionally overrides the name-matched builtin with a declarative
	// rule descriptor (per-country configuration).
	Rule *validation.Spec `json:"rule,omitempty"`
}

// ScreenConfig binds a screen to a destination, a record category and its
// fields. Funds screens address one fund item by index.
type ScreenConfig struct {
	ScreenID      id.ScreenID          `json:"screen_id"`
	DestinationID id.DestinationID     `json:"destination_id"`
	Category      entrymodels.Category `json:"category"`
	FundIndex     int                  `json:"fund_index,omitempty"`
	Fields        []FieldSpec          `json:"fields"`
}

func (c ScreenConfig) field(name string) (FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

func (c ScreenConfig) mustKeep(field string) bool {
	f, ok := c.field(field)
	return ok && f.AlwaysSave
}

func (c ScreenConfig) saveOptions() fieldstate.Options {
	opts := fieldstate.DefaultOptions()
	for _, f := range c.Fields {
		if f.AlwaysSave {
			opts.AlwaysSaveFields = append(opts.AlwaysSaveFields, f.Name)
		}
	}
	return opts
}

// CompletionFields folds screen configurations into the per-category field
// configuration the completion calculator scores against.
func CompletionFields(screens []ScreenConfig) map[entrymodels.Category]map[string]fieldstate.FieldConfig {
	out := make(map[entrymodels.Category]map[string]fieldstate.FieldConfig)
	for _, sc := range screens {
		fields, ok := out[sc.Category]
		if !ok {
			fields = make(map[string]fieldstate.FieldConfig)
			out[sc.Category] = fields
		}
		for _, f := range sc.Fields {
			fields[f.Name] = fieldstate.FieldConfig{
				Name:       f.Name,
				Required:   f.Required,
				AlwaysSave: f.AlwaysSave,
				WarnOnly:   f.WarnOnly,
				Weight:     f.Weight,
			}
		}
	}
	return out
}

// Tracker is the interaction-state dependency of the form service.
type Tracker interface {
	Open(ctx context.Context, screen id.ScreenID, session id.SessionID) ([]interaction.Issue, error)
	Close(ctx context.Context, screen id.ScreenID) error
	MarkModified(ctx context.Context, screen id.ScreenID, field, value string) error
	MarkPreFilled(ctx context.Context, screen id.ScreenID, field, value string) error
	Reset(ctx context.Context, screen id.ScreenID, field string) error
	IsModified(screen id.ScreenID, field string) bool
	State(screen id.ScreenID) *interaction.State
}

// UpdateResult is the outcome of one field edit.
type UpdateResult struct {
	Field      string                `json:"field"`
	SaveKey    id.SaveKey            `json:"save_key"`
	Validation validation.Result     `json:"validation"`
	SaveState  persistence.SaveState `json:"save_state"`
	// Saved reports whether the edit was admitted to the save pipeline.
	// Prefill-stage values and hard validation failures are not.
	Saved bool `json:"save_scheduled"`
}

// OpenResult is what a screen gets when it opens: stored values to prefill
// and any repairs made while hydrating interaction state.
type OpenResult struct {
	ScreenID id.ScreenID         `json:"screen_id"`
	Values   map[string]string   `json:"values"`
	Issues   []interaction.Issue `json:"issues,omitempty"`
}

// SaveStatus is one entry of the admin debug view.
type SaveStatus struct {
	Key       id.SaveKey               `json:"key"`
	State     persistence.SaveState    `json:"state"`
	LastError *persistence.ErrorDetail `json:"last_error,omitempty"`
}

// Service wires the five engine modules together behind screen-level
// operations.
type Service struct {
	screens    map[id.ScreenID]ScreenConfig
	tracker    Tracker
	engine     *validation.Engine
	entries    entrystore.Store
	saves      *persistence.Debouncer
	calculator *completion.Calculator
	publisher  audit.Publisher
	engineCfg  config.Engine
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	// destMu serializes the read-modify-write save cycle per destination so
	// two fields of the same record cannot clobber each other's write.
	destMu sync.Map // id.DestinationID -> *sync.Mutex
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics wires the edit and validation counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditPublisher sets the audit sink.
func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// New builds the form service. Screen configs with per-field rule descriptors
// are compiled into the validation engine up front; a descriptor that fails
// to compile falls back to the name-matched builtin.
func New(
	screens []ScreenConfig,
	tracker Tracker,
	engine *validation.Engine,
	entries entrystore.Store,
	saves *persistence.Debouncer,
	calculator *completion.Calculator,
	engineCfg config.Engine,
	opts ...Option,
) *Service {
	s := &Service{
		screens:    make(map[id.ScreenID]ScreenConfig, len(screens)),
		tracker:    tracker,
		engine:     engine,
		entries:    entries,
		saves:      saves,
		calculator: calculator,
		publisher:  audit.NewMemoryPublisher(),
		engineCfg:  engineCfg,
		logger:     slog.Default(),
		tracer:     otel.Tracer("entrypass/form"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	for _, sc := range screens {
		s.screens[sc.ScreenID] = sc
		for _, f := range sc.Fields {
			if f.Rule == nil {
				continue
			}
			if err := engine.AddSpec(f.Name, *f.Rule); err != nil {
				s.logger.Warn("invalid rule descriptor, using builtin",
					"screen_id", sc.ScreenID.String(),
					"field", f.Name,
					"error", err,
				)
			}
		}
	}
	return s
}

func (s *Service) screen(screen id.ScreenID) (ScreenConfig, error) {
	sc, ok := s.screens[screen]
	if !ok {
		return ScreenConfig{}, dErrors.Newf(dErrors.CodeNotFound, "unknown screen %q", screen.String())
	}
	return sc, nil
}

// OpenScreen hydrates interaction state, loads the stored record and marks
// every stored value as prefilled so it is never mistaken for a user edit.
func (s *Service) OpenScreen(ctx context.Context, screen id.ScreenID) (*OpenResult, error) {
	ctx, span := s.tracer.Start(ctx, "form.OpenScreen",
		trace.WithAttributes(attribute.String("screen_id", screen.String())))
	defer span.End()

	sc, err := s.screen(screen)
	if err != nil {
		return nil, err
	}
	session := requestcontext.SessionID(ctx)

	issues, err := s.tracker.Open(ctx, screen, session)
	if err != nil {
		return nil, err
	}

	values, err := s.storedValues(ctx, sc)
	if err != nil {
		return nil, err
	}
	for name, value := range values {
		if fieldstate.Empty(value) {
			continue
		}
		if err := s.tracker.MarkPreFilled(ctx, screen, name, value); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.FieldEdits.WithLabelValues("prefill").Inc()
		}
	}

	s.emit(ctx, audit.ActionScreenOpened, sc, "", "", 0)
	if len(issues) > 0 {
		s.emit(ctx, audit.ActionStateRepaired, sc, "", fmt.Sprintf("%d corrupted entries repaired", len(issues)), 0)
	}
	return &OpenResult{ScreenID: screen, Values: values, Issues: issues}, nil
}

// CloseScreen persists and evicts the screen's interaction state after
// flushing its pending saves.
func (s *Service) CloseScreen(ctx context.Context, screen id.ScreenID) error {
	sc, err := s.screen(screen)
	if err != nil {
		return err
	}
	s.saves.Flush(ctx, s.screenKeys(sc)...)
	return s.tracker.Close(ctx, screen)
}

// UpdateField runs the full edit pipeline for one field value.
//
// Prefill-stage values only mark interaction state. User edits are validated;
// a hard failure stops before the save pipeline. A cleared field is saved
// (deletion is an edit worth persisting) and its tracking entry is then
// reset, so a later prefill can repopulate it.
func (s *Service) UpdateField(ctx context.Context, screen id.ScreenID, field, value string, prefill bool) (*UpdateResult, error) {
	ctx, span := s.tracer.Start(ctx, "form.UpdateField",
		trace.WithAttributes(
			attribute.String("screen_id", screen.String()),
			attribute.String("field", field),
			attribute.Bool("prefill", prefill),
		))
	defer span.End()

	sc, err := s.screen(screen)
	if err != nil {
		return nil, err
	}
	spec, ok := sc.field(field)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "field %q is not part of screen %q", field, screen.String())
	}
	key := id.FieldSaveKey(screen, field)
	result := &UpdateResult{Field: field, SaveKey: key, Validation: validation.OK()}

	if prefill {
		if err := s.tracker.MarkPreFilled(ctx, screen, field, value); err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.FieldEdits.WithLabelValues("prefill").Inc()
		}
		result.SaveState = s.saves.State(key)
		return result, nil
	}

	if s.metrics != nil {
		s.metrics.FieldEdits.WithLabelValues("user").Inc()
	}
	if err := s.tracker.MarkModified(ctx, screen, field, value); err != nil {
		return nil, err
	}

	result.Validation = s.validate(ctx, sc, spec, field, value)
	s.countValidation(result.Validation)

	cleared := fieldstate.Empty(value) && !spec.AlwaysSave
	// A hard failure stops an invalid value from reaching storage. Clearing
	// is the exception: the deletion persists even when the now-empty field
	// fails its required check, otherwise storage would keep a value the
	// traveler explicitly removed.
	if !result.Validation.Valid && !cleared {
		result.SaveState = s.saves.State(key)
		return result, nil
	}
	if !fieldstate.ShouldSave(field, value, true, sc.saveOptions()) {
		result.SaveState = s.saves.State(key)
		return result, nil
	}

	s.scheduleSave(ctx, sc, field, key)(value)
	result.Saved = true
	if spec.AlwaysSave {
		// Critical fields skip the debounce window entirely.
		s.saves.Flush(ctx, key)
	}
	if cleared {
		// The deletion is on its way to storage; take the field out of the
		// user-modified set so the next prefill can repopulate it.
		if err := s.tracker.Reset(ctx, screen, field); err != nil {
			return nil, err
		}
	}
	result.SaveState = s.saves.State(key)
	return result, nil
}

func (s *Service) validate(ctx context.Context, sc ScreenConfig, spec FieldSpec, field, value string) validation.Result {
	siblings, err := s.storedValues(ctx, sc)
	if err != nil {
		siblings = map[string]string{}
	}
	siblings[field] = value
	return s.engine.Validate(validation.Context{
		Field:    field,
		Required: spec.Required,
		WarnOnly: spec.WarnOnly,
		Fields:   siblings,
		Now:      requestcontext.Now(ctx),
	}, value)
}

func (s *Service) countValidation(res validation.Result) {
	if s.metrics == nil {
		return
	}
	switch {
	case !res.Valid:
		s.metrics.ValidationFailures.WithLabelValues("error").Inc()
	case res.Warning:
		s.metrics.ValidationFailures.WithLabelValues("warning").Inc()
	}
}

// scheduleSave registers the persistence callback for a field and returns
// its trigger. The audit hooks capture the session from the edit context;
// the save itself runs detached from any request.
func (s *Service) scheduleSave(ctx context.Context, sc ScreenConfig, field string, key id.SaveKey) persistence.Trigger {
	session := requestcontext.SessionID(ctx)
	device := requestcontext.DeviceName(ctx)

	opts := persistence.Options{
		MaxRetries: s.engineCfg.MaxRetries,
		RetryDelay: s.engineCfg.RetryDelay,
		ErrorTTL:   s.engineCfg.ErrorTTL,
		OnError: func(err error, retryCount int) {
			event := audit.NewEvent(audit.ActionSaveFailed, time.Now())
			event.SessionID = session.String()
			event.ScreenID = sc.ScreenID.String()
			event.DestinationID = sc.DestinationID.String()
			event.SaveKey = key.String()
			event.Field = field
			event.Device = device
			event.Reason = err.Error()
			event.RetryCount = retryCount
			if perr := s.publisher.Publish(context.Background(), event); perr != nil {
				s.logger.Warn("audit publish failed", "action", string(event.Action), "error", perr)
			}
		},
	}
	return s.saves.Schedule(key, s.saveField(sc, field), s.engineCfg.DebounceDelay, opts)
}

// saveField is the persistence callback: load the destination record, apply
// the single field write (or delete, for an empty value), store it and drop
// the destination's cached completion metrics.
func (s *Service) saveField(sc ScreenConfig, field string) persistence.SaveFunc {
	return func(ctx context.Context, args ...any) error {
		if len(args) == 0 {
			return dErrors.New(dErrors.CodeBadRequest, "save invoked without a value")
		}
		value, ok := args[0].(string)
		if !ok {
			return dErrors.Newf(dErrors.CodeBadRequest, "save value must be a string, got %T", args[0])
		}

		mu := s.destLock(sc.DestinationID)
		mu.Lock()
		defer mu.Unlock()

		record, err := s.entries.Get(ctx, sc.DestinationID)
		if err != nil {
			if !dErrors.HasCode(err, dErrors.CodeNotFound) {
				return err
			}
			record = entrymodels.NewEntryRecord(sc.DestinationID)
		}

		section := s.sectionFor(record, sc)
		if fieldstate.Empty(value) && !sc.mustKeep(field) {
			delete(section, field)
		} else {
			section[field] = value
		}
		record.UpdatedAt = time.Now()

		if err := s.entries.Save(ctx, record); err != nil {
			return err
		}
		s.calculator.ClearCache(sc.DestinationID)
		return nil
	}
}

// sectionFor resolves the mutable field map a screen writes into, growing
// the funds list when the screen addresses an item that does not exist yet.
func (s *Service) sectionFor(record *entrymodels.EntryRecord, sc ScreenConfig) entrymodels.FieldValues {
	if sc.Category != entrymodels.CategoryFunds {
		return record.Section(sc.Category)
	}
	for len(record.Funds) <= sc.FundIndex {
		record.Funds = append(record.Funds, make(entrymodels.FieldValues))
	}
	return record.Funds[sc.FundIndex]
}

func (s *Service) destLock(dest id.DestinationID) *sync.Mutex {
	mu, _ := s.destMu.LoadOrStore(dest, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// storedValues reads the screen's current persisted values. A missing record
// is an empty map, not an error.
func (s *Service) storedValues(ctx context.Context, sc ScreenConfig) (map[string]string, error) {
	record, err := s.entries.Get(ctx, sc.DestinationID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	section := s.sectionFor(record, sc)
	out := make(map[string]string, len(section))
	for k, v := range section {
		out[k] = v
	}
	return out, nil
}

func (s *Service) screenKeys(sc ScreenConfig) []id.SaveKey {
	keys := make([]id.SaveKey, 0, len(sc.Fields))
	for _, f := range sc.Fields {
		keys = append(keys, id.FieldSaveKey(sc.ScreenID, f.Name))
	}
	return keys
}

// FlushScreen synchronously executes the screen's pending debounced saves.
func (s *Service) FlushScreen(ctx context.Context, screen id.ScreenID) error {
	ctx, span := s.tracer.Start(ctx, "form.FlushScreen",
		trace.WithAttributes(attribute.String("screen_id", screen.String())))
	defer span.End()

	sc, err := s.screen(screen)
	if err != nil {
		return err
	}
	s.saves.Flush(ctx, s.screenKeys(sc)...)
	s.emit(ctx, audit.ActionScreenFlushed, sc, "", "", 0)
	return nil
}

// RetrySave manually re-runs the last save for a field after an exhausted
// failure. A success is audited as a recovery.
func (s *Service) RetrySave(ctx context.Context, screen id.ScreenID, field string) (persistence.SaveState, error) {
	sc, err := s.screen(screen)
	if err != nil {
		return persistence.StateIdle, err
	}
	key := id.FieldSaveKey(screen, field)
	if err := s.saves.Retry(ctx, key); err != nil {
		return persistence.StateIdle, err
	}
	state := s.saves.State(key)
	if state == persistence.StateSaved {
		s.emit(ctx, audit.ActionSaveRecovered, sc, field, "", 0)
	}
	return state, nil
}

// InteractionState exposes the tracker's view of a screen for diagnostics.
func (s *Service) InteractionState(ctx context.Context, screen id.ScreenID) (*interaction.State, error) {
	if _, err := s.screen(screen); err != nil {
		return nil, err
	}
	state := s.tracker.State(screen)
	if state == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "screen %q is not open", screen.String())
	}
	return state, nil
}

// TripSummary computes the multi-destination completion view over every
// destination the screen configuration knows about, whether or not a record
// exists for it yet.
func (s *Service) TripSummary(ctx context.Context) (completion.MultiSummary, error) {
	ctx, span := s.tracer.Start(ctx, "form.TripSummary")
	defer span.End()

	records := make(map[id.DestinationID]*entrymodels.EntryRecord)
	for _, sc := range s.screens {
		records[sc.DestinationID] = nil
	}
	stored, err := s.entries.List(ctx)
	if err != nil {
		return completion.MultiSummary{}, dErrors.Wrap(err, dErrors.CodeInternal, "list entry records")
	}
	for _, record := range stored {
		records[record.DestinationID] = record
	}
	return s.calculator.MultiDestinationSummary(ctx, records), nil
}

// DestinationSummary computes one destination's completion metrics. A
// destination with no record yet reports zero percent.
func (s *Service) DestinationSummary(ctx context.Context, dest id.DestinationID) (completion.Metrics, error) {
	if !dest.Valid() {
		return completion.Metrics{}, dErrors.New(dErrors.CodeBadRequest, "destination id must not be empty")
	}
	record, err := s.entries.Get(ctx, dest)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return completion.Metrics{}, err
	}
	return s.calculator.Summary(ctx, dest, record), nil
}

// Switch performs a destination context switch, summarizing both sides.
func (s *Service) Switch(ctx context.Context, from, to id.DestinationID) (completion.SwitchResult, error) {
	if !to.Valid() {
		return completion.SwitchResult{}, dErrors.New(dErrors.CodeBadRequest, "switch target must not be empty")
	}
	load := func(ctx context.Context, dest id.DestinationID) (*entrymodels.EntryRecord, error) {
		record, err := s.entries.Get(ctx, dest)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return record, nil
	}
	return s.calculator.SwitchContext(ctx, from, to, load), nil
}

// SaveStates snapshots the debouncer for the admin debug view.
func (s *Service) SaveStates(ctx context.Context) []SaveStatus {
	states := s.saves.States()
	out := make([]SaveStatus, 0, len(states))
	for key, state := range states {
		out = append(out, SaveStatus{
			Key:       key,
			State:     state,
			LastError: s.saves.LastError(key),
		})
	}
	return out
}

func (s *Service) emit(ctx context.Context, action audit.Action, sc ScreenConfig, field, reason string, retries int) {
	event := audit.NewEvent(action, requestcontext.Now(ctx))
	event.SessionID = requestcontext.SessionID(ctx).String()
	event.ScreenID = sc.ScreenID.String()
	event.DestinationID = sc.DestinationID.String()
	event.Field = field
	event.Device = requestcontext.DeviceName(ctx)
	event.Reason = reason
	event.RetryCount = retries
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit publish failed",
			"action", string(action),
			"error", err,
		)
	}
}
