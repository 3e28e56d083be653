// Package persistence provides per-key debounced saves with retry,
// exponential backoff, and an inspectable save-state machine.
//
// Every save key runs independently: one key's failure or slow callback
// never blocks another key. Within a key, executions are strictly
// serialized; a trigger during an in-flight cycle replaces the pending
// arguments but never preempts the running callback.
package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"entrypass/internal/platform/metrics"
	id "entrypass/pkg/domain"
	dErrors "entrypass/pkg/domain-errors"
)

// SaveFunc is the caller-supplied save callback. Any returned error (or
// panic) is treated uniformly as a retryable failure.
type SaveFunc func(ctx context.Context, args ...any) error

// Options tunes one save key's retry behavior. All fields are optional;
// nonsensical values (negative retries or delays) are coerced to defaults.
type Options struct {
	// MaxRetries bounds automatic retries after the initial attempt.
	// Zero means a single attempt with no retries.
	MaxRetries int
	// RetryDelay is the backoff base: retry n waits RetryDelay * 2^n.
	RetryDelay time.Duration
	// ErrorTTL is how long the key stays in the error state before being
	// reset to untracked.
	ErrorTTL time.Duration
	// OnRetry fires before each retry attempt. A panic inside it is
	// swallowed; the retry proceeds regardless.
	OnRetry func(err error, attempt, maxRetries int)
	// OnError fires once retries are exhausted. Panics are swallowed so a
	// broken observer cannot corrupt engine state.
	OnError func(err error, retryCount int)
}

// DefaultErrorTTL is how long a key stays inspectable in the error state.
const DefaultErrorTTL = 10 * time.Second

func (o Options) normalized() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.ErrorTTL <= 0 {
		o.ErrorTTL = DefaultErrorTTL
	}
	return o
}

// Trigger requests a debounced save with fresh arguments. Each call resets
// the key's debounce window.
type Trigger func(args ...any)

type entry struct {
	state      SaveState
	fn         SaveFunc
	args       []any
	delay      time.Duration
	opts       Options
	retryCount int
	lastError  *ErrorDetail

	timer      *time.Timer
	timerGen   int
	errTimer   *time.Timer
	errGen     int
	hasPending bool

	// execMu serializes execution cycles for this key. Held for the whole
	// attempt/backoff/retry cycle.
	execMu sync.Mutex
}

// Debouncer owns the per-key save slots.
type Debouncer struct {
	mu      sync.Mutex
	keys    map[id.SaveKey]*entry
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Debouncer.
type Option func(*Debouncer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Debouncer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics wires save counters into the platform metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Debouncer) { d.metrics = m }
}

// New builds a Debouncer.
func New(opts ...Option) *Debouncer {
	d := &Debouncer{
		keys:   make(map[id.SaveKey]*entry),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Schedule registers a save callback for a key and returns its trigger.
// Triggering arms (or re-arms) a trailing-edge debounce: only the last call
// within the window fires, with the arguments of that last call.
func (d *Debouncer) Schedule(key id.SaveKey, fn SaveFunc, delay time.Duration, opts Options) Trigger {
	if delay < 0 {
		delay = 0
	}
	opts = opts.normalized()

	return func(args ...any) {
		d.mu.Lock()
		e := d.entryLocked(key)
		e.fn = fn
		e.args = args
		e.delay = delay
		e.opts = opts
		d.clearErrorLocked(e)
		d.armLocked(key, e)
		d.mu.Unlock()

		if d.metrics != nil {
			d.metrics.SavesScheduled.Inc()
		}
	}
}

// armLocked (re)starts the debounce timer. Caller holds d.mu.
func (d *Debouncer) armLocked(key id.SaveKey, e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerGen++
	gen := e.timerGen
	e.hasPending = true
	if e.state != StateSaving && e.state != StateRetrying {
		e.state = StatePending
	}
	e.timer = time.AfterFunc(e.delay, func() {
		d.fire(key, gen)
	})
}

// fire runs when a debounce timer elapses. A stale generation means the
// timer was reset or cleared after this callback was queued.
func (d *Debouncer) fire(key id.SaveKey, gen int) {
	d.mu.Lock()
	e, ok := d.keys[key]
	if !ok || gen != e.timerGen || !e.hasPending {
		d.mu.Unlock()
		return
	}
	e.hasPending = false
	d.mu.Unlock()

	d.runCycle(key, e)
}

// runCycle executes one save cycle (initial attempt plus retries) for a key.
// Serialized per key by execMu; cross-key cycles run concurrently.
func (d *Debouncer) runCycle(key id.SaveKey, e *entry) {
	e.execMu.Lock()
	defer e.execMu.Unlock()

	d.mu.Lock()
	fn := e.fn
	args := e.args
	opts := e.opts
	d.mu.Unlock()

	if fn == nil {
		return
	}

	attempt := 0
	for {
		d.setState(e, StateSaving)
		if d.metrics != nil {
			d.metrics.SavesFired.Inc()
		}

		err := d.invoke(fn, args)
		if err == nil {
			d.mu.Lock()
			e.retryCount = 0
			e.lastError = nil
			e.state = StateSaved
			d.mu.Unlock()
			return
		}

		if attempt >= opts.MaxRetries {
			d.exhaust(key, e, err, attempt, opts)
			return
		}

		attempt++
		d.mu.Lock()
		e.retryCount = attempt
		e.state = StateRetrying
		d.mu.Unlock()
		if d.metrics != nil {
			d.metrics.SaveRetries.Inc()
		}

		d.notifyRetry(opts, err, attempt)
		// Exponential backoff: retry n waits RetryDelay * 2^n.
		time.Sleep(opts.RetryDelay * time.Duration(1<<attempt))
	}
}

// invoke calls the save callback, converting panics into errors so a broken
// callback behaves like any other transient failure.
func (d *Debouncer) invoke(fn SaveFunc, args []any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("save callback panicked: %v", rec)
		}
	}()
	return fn(context.Background(), args...)
}

func (d *Debouncer) notifyRetry(opts Options, err error, attempt int) {
	if opts.OnRetry == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Warn("onRetry observer panicked", "panic", fmt.Sprint(rec))
		}
	}()
	opts.OnRetry(err, attempt, opts.MaxRetries)
}

// exhaust records the terminal error state and schedules its expiry.
func (d *Debouncer) exhaust(key id.SaveKey, e *entry, err error, retries int, opts Options) {
	now := time.Now()

	d.mu.Lock()
	e.state = StateError
	e.retryCount = retries
	e.lastError = &ErrorDetail{
		Message:    err.Error(),
		Timestamp:  now,
		RetryCount: retries,
	}
	e.errGen++
	gen := e.errGen
	if e.errTimer != nil {
		e.errTimer.Stop()
	}
	e.errTimer = time.AfterFunc(opts.ErrorTTL, func() {
		d.expireError(key, gen)
	})
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.SaveErrors.Inc()
	}
	d.logger.Warn("save exhausted retries",
		"save_key", key.String(),
		"retries", retries,
		"error", err,
	)

	if opts.OnError == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Warn("onError observer panicked", "panic", fmt.Sprint(rec))
		}
	}()
	opts.OnError(err, retries)
}

// expireError resets an error-state key back to untracked once the TTL
// elapses, unless the key was rescheduled or cleared in the meantime.
func (d *Debouncer) expireError(key id.SaveKey, gen int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.keys[key]
	if !ok || gen != e.errGen || e.state != StateError {
		return
	}
	delete(d.keys, key)
}

// Retry manually re-invokes the last callback for a key with its last
// arguments, resetting the retry count first. The save outcome lands in the
// key's state; the returned error only reports an unknown key.
func (d *Debouncer) Retry(ctx context.Context, key id.SaveKey) error {
	d.mu.Lock()
	e, ok := d.keys[key]
	if !ok || e.fn == nil {
		d.mu.Unlock()
		return dErrors.Newf(dErrors.CodeNotFound, "no save callback registered for key %q", key.String())
	}
	e.retryCount = 0
	d.clearErrorLocked(e)
	d.mu.Unlock()

	d.runCycle(key, e)
	return nil
}

// Flush immediately executes pending debounced saves. With no keys it
// flushes everything. It waits out full cycles, including retries and any
// already in-flight execution, and never fails: save failures surface only
// through each key's own error state.
func (d *Debouncer) Flush(ctx context.Context, keys ...id.SaveKey) {
	start := time.Now()

	d.mu.Lock()
	if len(keys) == 0 {
		keys = make([]id.SaveKey, 0, len(d.keys))
		for key := range d.keys {
			keys = append(keys, key)
		}
	}
	type flushTarget struct {
		key     id.SaveKey
		e       *entry
		pending bool
	}
	targets := make([]flushTarget, 0, len(keys))
	for _, key := range keys {
		e, ok := d.keys[key]
		if !ok {
			continue
		}
		pending := e.hasPending
		if pending {
			if e.timer != nil {
				e.timer.Stop()
			}
			e.timerGen++
			e.hasPending = false
		}
		targets = append(targets, flushTarget{key: key, e: e, pending: pending})
	}
	d.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t flushTarget) {
			defer wg.Done()
			if t.pending {
				d.runCycle(t.key, t.e)
				return
			}
			// Nothing pending: just wait for any in-flight cycle.
			t.e.execMu.Lock()
			t.e.execMu.Unlock() //nolint:staticcheck // barrier, not a critical section
		}(t)
	}
	wg.Wait()

	if d.metrics != nil {
		d.metrics.FlushDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}
}

// Clear cancels a still-pending debounce for a key. An in-flight execution
// is not preempted; it runs to completion under its own state transitions.
func (d *Debouncer) Clear(key id.SaveKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.keys[key]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerGen++
	e.hasPending = false
	if e.state == StatePending {
		e.state = StateIdle
	}
}

// State returns the save state for one key; untracked keys are idle.
func (d *Debouncer) State(key id.SaveKey) SaveState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.keys[key]; ok {
		return e.state
	}
	return StateIdle
}

// States snapshots all tracked keys for debug introspection.
func (d *Debouncer) States() map[id.SaveKey]SaveState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[id.SaveKey]SaveState, len(d.keys))
	for key, e := range d.keys {
		out[key] = e.state
	}
	return out
}

// PendingKeys lists keys whose debounce timer has not fired yet.
func (d *Debouncer) PendingKeys() []id.SaveKey {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []id.SaveKey
	for key, e := range d.keys {
		if e.hasPending {
			out = append(out, key)
		}
	}
	return out
}

// LastError returns the stored error detail for a key, or nil.
func (d *Debouncer) LastError(key id.SaveKey) *ErrorDetail {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.keys[key]; ok && e.lastError != nil {
		detail := *e.lastError
		return &detail
	}
	return nil
}

func (d *Debouncer) entryLocked(key id.SaveKey) *entry {
	e, ok := d.keys[key]
	if !ok {
		e = &entry{state: StateIdle}
		d.keys[key] = e
	}
	return e
}

// clearErrorLocked cancels a scheduled error expiry when the key comes back
// to life. Caller holds d.mu.
func (d *Debouncer) clearErrorLocked(e *entry) {
	if e.errTimer != nil {
		e.errTimer.Stop()
		e.errTimer = nil
	}
	e.errGen++
	if e.state == StateError {
		e.state = StateIdle
		e.lastError = nil
	}
}

func (d *Debouncer) setState(e *entry, s SaveState) {
	d.mu.Lock()
	e.state = s
	d.mu.Unlock()
}
