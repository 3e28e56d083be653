package validation

import (
	"fmt"
	"regexp"
	"time"
)

// Kind tags a rule descriptor variant.
type Kind string

const (
	KindPattern      Kind = "pattern"
	KindDate         Kind = "date"
	KindEmail        Kind = "email"
	KindPhone        Kind = "phone"
	KindAlphanumeric Kind = "alphanumeric"
	KindCountry      Kind = "country"
	KindFlight       Kind = "flight"
	KindCustom       Kind = "custom"
)

// CustomFunc is the contract for caller-supplied validators: return "" for
// valid, or the failure message. Returning a value instead of panicking is
// the explicit contract; panics are contained but reported as failures.
type CustomFunc func(ctx Context, value string) string

// Spec is a declarative rule descriptor: a tagged variant where everything
// except the optional custom function is pure data, so per-country rule
// tables can live in configuration.
type Spec struct {
	Kind Kind `json:"kind"`

	// KindPattern fields.
	Pattern        string `json:"pattern,omitempty"`
	MinLen         int    `json:"min_len,omitempty"`
	MaxLen         int    `json:"max_len,omitempty"`
	RejectNonLatin bool   `json:"reject_non_latin,omitempty"`

	// KindDate fields. Dates are YYYY-MM-DD strings.
	BeforeToday bool   `json:"before_today,omitempty"`
	AfterToday  bool   `json:"after_today,omitempty"`
	MinDate     string `json:"min_date,omitempty"`
	MaxDate     string `json:"max_date,omitempty"`
	AfterField  string `json:"after_field,omitempty"`

	// KindCustom carries a function resolved by the host, not serialized.
	Custom CustomFunc `json:"-"`
}

// Compile turns a descriptor into an executable rule.
func Compile(spec Spec) (Rule, error) {
	switch spec.Kind {
	case KindPattern:
		opts := TextOptions{
			MinLen:         spec.MinLen,
			MaxLen:         spec.MaxLen,
			RejectNonLatin: spec.RejectNonLatin,
		}
		if spec.Pattern != "" {
			re, err := regexp.Compile(spec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern: %w", err)
			}
			opts.Pattern = re
		}
		return FreeText(opts), nil

	case KindDate:
		bounds := DateBounds{
			BeforeToday: spec.BeforeToday,
			AfterToday:  spec.AfterToday,
			AfterField:  spec.AfterField,
		}
		if spec.MinDate != "" {
			d, err := time.Parse(dateLayout, spec.MinDate)
			if err != nil {
				return nil, fmt.Errorf("invalid min_date: %w", err)
			}
			bounds.Min = d
		}
		if spec.MaxDate != "" {
			d, err := time.Parse(dateLayout, spec.MaxDate)
			if err != nil {
				return nil, fmt.Errorf("invalid max_date: %w", err)
			}
			bounds.Max = d
		}
		return Date(bounds), nil

	case KindEmail:
		return Email(), nil
	case KindPhone:
		return Phone(), nil
	case KindAlphanumeric:
		return Alphanumeric(spec.MinLen, spec.MaxLen), nil
	case KindCountry:
		return CountryCode(), nil
	case KindFlight:
		return FlightNumber(), nil

	case KindCustom:
		if spec.Custom == nil {
			return nil, fmt.Errorf("custom rule requires a function")
		}
		custom := spec.Custom
		return func(ctx Context, value string) Result {
			if msg := custom(ctx, value); msg != "" {
				return Fail(msg)
			}
			return OK()
		}, nil

	default:
		return nil, fmt.Errorf("unknown rule kind %q", spec.Kind)
	}
}
