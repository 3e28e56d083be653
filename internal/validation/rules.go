package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// dateLayout is the wire format for date fields.
const dateLayout = "2006-01-02"

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	// phonePattern accepts an optional +country-code followed by 6-14
	// digits with common separators.
	phonePattern        = regexp.MustCompile(`^\+?[0-9]{1,3}[ -]?[0-9][0-9 ()-]{5,13}$`)
	alphanumericPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	// countryPattern matches ISO 3166-1 alpha-2 or alpha-3 codes.
	countryPattern = regexp.MustCompile(`^[A-Za-z]{2,3}$`)
	// flightPattern matches an airline designator plus flight number, e.g.
	// TG910, SQ12, JL709A.
	flightPattern = regexp.MustCompile(`^[A-Z0-9]{2,3} ?[0-9]{1,4}[A-Z]?$`)
)

// builtinFor matches a builtin rule on the field name. Matching is
// deliberately loose ("arrivalDate", "dateOfBirth" both hit the date rule)
// so per-country configs get sane defaults without registering anything.
func builtinFor(field string) Rule {
	name := strings.ToLower(field)
	switch {
	case strings.Contains(name, "email"):
		return Email()
	case strings.Contains(name, "phone"):
		return Phone()
	case strings.Contains(name, "date") || strings.HasSuffix(name, "birth"):
		return Date(DateBounds{})
	case strings.Contains(name, "passport") || strings.Contains(name, "visa"):
		return Alphanumeric(6, 12)
	case strings.Contains(name, "nationality") || strings.Contains(name, "country"):
		return CountryCode()
	case strings.Contains(name, "flight"):
		return FlightNumber()
	default:
		return nil
	}
}

// Email validates address shape.
func Email() Rule {
	return func(_ Context, value string) Result {
		if !emailPattern.MatchString(value) {
			return Fail("enter a valid email address")
		}
		return OK()
	}
}

// Phone validates an international phone number with optional country code.
func Phone() Rule {
	return func(_ Context, value string) Result {
		if !phonePattern.MatchString(strings.TrimSpace(value)) {
			return Fail("enter a valid phone number with country code")
		}
		return OK()
	}
}

// DateBounds constrains a date rule.
type DateBounds struct {
	// BeforeToday requires a date strictly in the past (date of birth,
	// passport issue date).
	BeforeToday bool
	// AfterToday requires a date strictly in the future (passport expiry).
	AfterToday bool
	Min        time.Time
	Max        time.Time
	// AfterField names a sibling field whose date this one must follow
	// (departure after arrival). When the sibling is absent or itself
	// unparsable the bound is skipped; the sibling's own rule reports it.
	AfterField string
}

// Date validates a YYYY-MM-DD date against the given bounds. "Today" is
// resolved from Context.Now so tests and request pinning stay deterministic.
func Date(bounds DateBounds) Rule {
	return func(ctx Context, value string) Result {
		d, err := time.Parse(dateLayout, strings.TrimSpace(value))
		if err != nil {
			return Fail("enter a date as YYYY-MM-DD")
		}
		now := ctx.Now
		if now.IsZero() {
			now = time.Now()
		}
		today := now.Truncate(24 * time.Hour)
		if bounds.BeforeToday && !d.Before(today) {
			return Fail("date must be in the past")
		}
		if bounds.AfterToday && !d.After(today) {
			return Fail("date must be in the future")
		}
		if !bounds.Min.IsZero() && d.Before(bounds.Min) {
			return Fail(fmt.Sprintf("date must not be before %s", bounds.Min.Format(dateLayout)))
		}
		if !bounds.Max.IsZero() && d.After(bounds.Max) {
			return Fail(fmt.Sprintf("date must not be after %s", bounds.Max.Format(dateLayout)))
		}
		if bounds.AfterField != "" {
			if other, err := time.Parse(dateLayout, strings.TrimSpace(ctx.Fields[bounds.AfterField])); err == nil {
				if !d.After(other) {
					return Fail(fmt.Sprintf("date must be after %s", bounds.AfterField))
				}
			}
		}
		return OK()
	}
}

// TextOptions constrains a free text rule.
type TextOptions struct {
	Pattern *regexp.Regexp
	MinLen  int
	MaxLen  int
	// RejectNonLatin fails values containing non-Latin script characters,
	// for forms that must be machine-readable by immigration systems.
	RejectNonLatin bool
}

// FreeText validates free text fields against pattern, length, and script
// constraints.
func FreeText(opts TextOptions) Rule {
	return func(_ Context, value string) Result {
		runes := []rune(value)
		if opts.MinLen > 0 && len(runes) < opts.MinLen {
			return Fail(fmt.Sprintf("must be at least %d characters", opts.MinLen))
		}
		if opts.MaxLen > 0 && len(runes) > opts.MaxLen {
			return Fail(fmt.Sprintf("must be at most %d characters", opts.MaxLen))
		}
		if opts.RejectNonLatin {
			for _, r := range runes {
				if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
					return Fail("use Latin characters only")
				}
			}
		}
		if opts.Pattern != nil && !opts.Pattern.MatchString(value) {
			return Fail("value has an invalid format")
		}
		return OK()
	}
}

// Alphanumeric validates document numbers (passport, visa): letters and
// digits only, within the given length bounds.
func Alphanumeric(minLen, maxLen int) Rule {
	return func(_ Context, value string) Result {
		v := strings.TrimSpace(value)
		if !alphanumericPattern.MatchString(v) {
			return Fail("use letters and numbers only")
		}
		if minLen > 0 && len(v) < minLen {
			return Fail(fmt.Sprintf("must be at least %d characters", minLen))
		}
		if maxLen > 0 && len(v) > maxLen {
			return Fail(fmt.Sprintf("must be at most %d characters", maxLen))
		}
		return OK()
	}
}

// CountryCode validates ISO 3166-1 alpha-2/alpha-3 code shape.
func CountryCode() Rule {
	return func(_ Context, value string) Result {
		v := strings.TrimSpace(value)
		if !countryPattern.MatchString(v) {
			return Fail("enter a 2 or 3 letter country code")
		}
		if v != strings.ToUpper(v) {
			return Fail("country code must be uppercase")
		}
		return OK()
	}
}

// FlightNumber validates an airline designator plus flight number.
func FlightNumber() Rule {
	return func(_ Context, value string) Result {
		if !flightPattern.MatchString(strings.ToUpper(strings.TrimSpace(value))) {
			return Fail("enter a valid flight number, e.g. TG910")
		}
		return OK()
	}
}
