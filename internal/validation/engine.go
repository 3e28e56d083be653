// Package validation is the composable per-field rule engine. Rules are
// plain functions resolved per field name; per-country behavior is layered
// on by registering overrides at runtime, the engine itself never changes.
package validation

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Result is the outcome of validating one value. A warning is a soft
// failure: the value may proceed but the message is surfaced. Only
// Valid=false blocks progression.
type Result struct {
	Valid   bool   `json:"is_valid"`
	Warning bool   `json:"is_warning"`
	Message string `json:"error_message,omitempty"`
}

// OK is a clean pass.
func OK() Result { return Result{Valid: true} }

// Fail is a hard failure that blocks progression.
func Fail(message string) Result { return Result{Valid: false, Message: message} }

// Warn is a soft failure: surfaced, but the value may proceed.
func Warn(message string) Result { return Result{Valid: true, Warning: true, Message: message} }

// Context carries everything a rule may consult beside the value itself.
// Fields holds sibling values on the same screen so cross-field rules
// (departure after arrival) can resolve their bound.
type Context struct {
	Field    string
	Required bool
	// WarnOnly downgrades this field's hard failures to warnings.
	WarnOnly bool
	Fields   map[string]string
	Now      time.Time
}

// Rule validates one value. Rules must return a Result rather than panic;
// a panicking rule is contained and reported as a hard failure.
type Rule func(ctx Context, value string) Result

// Engine resolves the rule for a field: explicit override first, then a
// builtin matched on the field name, then a generic fallback that only
// enforces required semantics.
type Engine struct {
	mu        sync.RWMutex
	overrides map[string]Rule
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an Engine with the builtin rule set.
func New(opts ...Option) *Engine {
	e := &Engine{
		overrides: make(map[string]Rule),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// AddRule registers (or replaces) the rule for a field name. Nil removes a
// previously registered override.
func (e *Engine) AddRule(field string, rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rule == nil {
		delete(e.overrides, field)
		return
	}
	e.overrides[field] = rule
}

// AddSpec compiles a declarative rule descriptor and registers it for the
// field. This is how per-country configuration parametrizes the builtins
// without shipping code.
func (e *Engine) AddSpec(field string, spec Spec) error {
	rule, err := Compile(spec)
	if err != nil {
		return fmt.Errorf("compile rule for %q: %w", field, err)
	}
	e.AddRule(field, rule)
	return nil
}

// Validate runs the resolved rule for the field. Empty values short-circuit:
// a missing required value fails, a missing optional value passes, and type
// rules only ever see non-empty input.
func (e *Engine) Validate(ctx Context, value string) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Warn("validation rule panicked",
				"field", ctx.Field,
				"panic", fmt.Sprint(rec),
			)
			res = e.downgrade(ctx, Fail("validation failed"))
		}
	}()

	if strings.TrimSpace(value) == "" {
		if ctx.Required {
			return e.downgrade(ctx, Fail("this field is required"))
		}
		return OK()
	}

	rule := e.resolve(ctx.Field)
	return e.downgrade(ctx, rule(ctx, value))
}

func (e *Engine) resolve(field string) Rule {
	e.mu.RLock()
	rule, ok := e.overrides[field]
	e.mu.RUnlock()
	if ok {
		return rule
	}
	if builtin := builtinFor(field); builtin != nil {
		return builtin
	}
	// Generic fallback: required was already enforced, anything else passes.
	return func(Context, string) Result { return OK() }
}

// downgrade converts hard failures to warnings for warn-only fields.
func (e *Engine) downgrade(ctx Context, res Result) Result {
	if ctx.WarnOnly && !res.Valid {
		return Warn(res.Message)
	}
	return res
}
