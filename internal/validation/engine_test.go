package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEngine_RequiredSemantics(t *testing.T) {
	e := New()

	t.Run("empty required value fails", func(t *testing.T) {
		res := e.Validate(Context{Field: "surname", Required: true}, "")
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Message)
	})

	t.Run("empty optional value passes without running type rules", func(t *testing.T) {
		res := e.Validate(Context{Field: "email"}, "   ")
		assert.True(t, res.Valid)
		assert.False(t, res.Warning)
	})

	t.Run("unknown field falls back to required-only", func(t *testing.T) {
		res := e.Validate(Context{Field: "favoriteColor"}, "anything at all")
		assert.True(t, res.Valid)
	})
}

func TestEngine_ResolutionOrder(t *testing.T) {
	e := New()

	// Builtin by name: "email" matches the email rule.
	res := e.Validate(Context{Field: "email"}, "not-an-email")
	require.False(t, res.Valid)

	// Explicit override wins over the builtin.
	e.AddRule("email", func(Context, string) Result { return OK() })
	res = e.Validate(Context{Field: "email"}, "not-an-email")
	assert.True(t, res.Valid, "override must shadow the builtin")

	// Removing the override restores the builtin.
	e.AddRule("email", nil)
	res = e.Validate(Context{Field: "email"}, "not-an-email")
	assert.False(t, res.Valid)
}

func TestEngine_WarnOnlyDowngradesFailures(t *testing.T) {
	e := New()
	res := e.Validate(Context{Field: "email", WarnOnly: true}, "not-an-email")
	assert.True(t, res.Valid, "warn-only failures do not block")
	assert.True(t, res.Warning)
	assert.NotEmpty(t, res.Message)
}

func TestEngine_PanickingRuleIsContained(t *testing.T) {
	e := New()
	e.AddRule("surname", func(Context, string) Result { panic("rule bug") })

	res := e.Validate(Context{Field: "surname"}, "Nguyen")
	assert.False(t, res.Valid, "a panicking rule reports a hard failure, never crashes the engine")
}

func TestBuiltinRules(t *testing.T) {
	e := New()
	ctx := func(field string) Context { return Context{Field: field, Now: testNow} }

	tests := []struct {
		field string
		value string
		valid bool
	}{
		{"email", "traveler@example.com", true},
		{"email", "nope@", false},
		{"contactPhone", "+66 812345678", true},
		{"contactPhone", "abc", false},
		{"passportNumber", "AB123456", true},
		{"passportNumber", "AB 1234!", false},
		{"passportNumber", "A1", false}, // too short
		{"visaNumber", "V12345678", true},
		{"nationality", "THA", true},
		{"nationality", "th", false},
		{"nationality", "THAI", false},
		{"flightNumber", "TG910", true},
		{"flightNumber", "TG 910", true},
		{"flightNumber", "FLIGHT-910", false},
		{"dateOfBirth", "1990-04-12", true},
		{"dateOfBirth", "12/04/1990", false},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.value, func(t *testing.T) {
			res := e.Validate(ctx(tt.field), tt.value)
			assert.Equal(t, tt.valid, res.Valid, "message: %s", res.Message)
		})
	}
}

func TestDateBounds(t *testing.T) {
	ctx := Context{Field: "d", Now: testNow}

	t.Run("before today", func(t *testing.T) {
		rule := Date(DateBounds{BeforeToday: true})
		assert.True(t, rule(ctx, "1990-04-12").Valid)
		assert.False(t, rule(ctx, "2030-01-01").Valid)
	})

	t.Run("after today", func(t *testing.T) {
		rule := Date(DateBounds{AfterToday: true})
		assert.True(t, rule(ctx, "2030-01-01").Valid)
		assert.False(t, rule(ctx, "2020-01-01").Valid)
	})

	t.Run("min and max", func(t *testing.T) {
		rule := Date(DateBounds{
			Min: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Max: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		})
		assert.True(t, rule(ctx, "2026-06-15").Valid)
		assert.False(t, rule(ctx, "2025-12-31").Valid)
		assert.False(t, rule(ctx, "2027-01-01").Valid)
	})

	t.Run("cross-field after bound", func(t *testing.T) {
		rule := Date(DateBounds{AfterField: "arrivalDate"})
		withArrival := Context{
			Field:  "departureDate",
			Now:    testNow,
			Fields: map[string]string{"arrivalDate": "2026-03-10"},
		}
		assert.True(t, rule(withArrival, "2026-03-15").Valid)

		res := rule(withArrival, "2026-03-05")
		assert.False(t, res.Valid)
		assert.Contains(t, res.Message, "arrivalDate")

		t.Run("missing sibling skips the bound", func(t *testing.T) {
			assert.True(t, rule(Context{Field: "departureDate", Now: testNow}, "2026-03-05").Valid,
				"the sibling's own rule reports its absence, not this one")
		})
	})
}

func TestFreeText(t *testing.T) {
	t.Run("length bounds", func(t *testing.T) {
		rule := FreeText(TextOptions{MinLen: 2, MaxLen: 5})
		assert.False(t, rule(Context{}, "a").Valid)
		assert.True(t, rule(Context{}, "abc").Valid)
		assert.False(t, rule(Context{}, "abcdef").Valid)
	})

	t.Run("non-Latin rejection", func(t *testing.T) {
		rule := FreeText(TextOptions{RejectNonLatin: true})
		assert.True(t, rule(Context{}, "Nguyen Van A").Valid)
		assert.False(t, rule(Context{}, "สมชาย").Valid)
	})
}

func TestAddSpec(t *testing.T) {
	e := New()

	t.Run("pattern descriptor", func(t *testing.T) {
		require.NoError(t, e.AddSpec("postalCode", Spec{Kind: KindPattern, Pattern: `^[0-9]{5}$`}))
		assert.True(t, e.Validate(Context{Field: "postalCode"}, "10110").Valid)
		assert.False(t, e.Validate(Context{Field: "postalCode"}, "101").Valid)
	})

	t.Run("date descriptor with cross-field bound", func(t *testing.T) {
		require.NoError(t, e.AddSpec("departureDate", Spec{Kind: KindDate, AfterField: "arrivalDate"}))
		ctx := Context{
			Field:  "departureDate",
			Now:    testNow,
			Fields: map[string]string{"arrivalDate": "2026-03-10"},
		}
		assert.False(t, e.Validate(ctx, "2026-03-09").Valid)
		assert.True(t, e.Validate(ctx, "2026-03-11").Valid)
	})

	t.Run("custom descriptor returns message string", func(t *testing.T) {
		require.NoError(t, e.AddSpec("occupation", Spec{
			Kind: KindCustom,
			Custom: func(_ Context, value string) string {
				if value == "forbidden" {
					return "occupation not allowed"
				}
				return ""
			},
		}))
		assert.True(t, e.Validate(Context{Field: "occupation"}, "engineer").Valid)
		res := e.Validate(Context{Field: "occupation"}, "forbidden")
		assert.False(t, res.Valid)
		assert.Equal(t, "occupation not allowed", res.Message)
	})

	t.Run("invalid descriptors are rejected", func(t *testing.T) {
		assert.Error(t, e.AddSpec("x", Spec{Kind: KindPattern, Pattern: `($`}))
		assert.Error(t, e.AddSpec("x", Spec{Kind: KindCustom}))
		assert.Error(t, e.AddSpec("x", Spec{Kind: "nope"}))
		assert.Error(t, e.AddSpec("x", Spec{Kind: KindDate, MinDate: "garbage"}))
	})
}
