package fieldstate

import (
	"time"

	"entrypass/internal/interaction/models"
)

// FieldConfig is the declarative per-field configuration the engine consumes.
// Produced by per-country configuration data, treated as opaque input here.
type FieldConfig struct {
	Name       string  `json:"name"`
	Required   bool    `json:"required"`
	AlwaysSave bool    `json:"always_save"`
	// WarnOnly downgrades validation failures to warnings for this field.
	WarnOnly bool `json:"warn_only"`
	// Weight biases the weighted completion percentage. Values <= 0 count
	// as weight 1.
	Weight float64 `json:"weight"`
}

// Metrics summarizes completion over one set of fields.
type Metrics struct {
	// TotalPercent is completed/total over all configured fields, 0-100.
	TotalPercent float64 `json:"total_percent"`
	// RequiredPercent is completed/total over required fields only.
	RequiredPercent float64 `json:"required_percent"`
	// WeightedPercent is sum(weight of completed)/sum(weight of all)*100.
	WeightedPercent float64 `json:"weighted_percent"`
	CompletedFields int     `json:"completed_fields"`
	TotalFields     int     `json:"total_fields"`
	LastUpdated     time.Time `json:"last_updated"`
}

// Completion computes completion metrics. A field counts as completed only
// when it holds a non-empty value AND the traveler modified it: a value that
// merely arrived from prefill is visible but unconfirmed, and progress
// tracks confirmation. Nil or empty inputs yield zeroed metrics, never a
// panic.
func Completion(fields map[string]string, state *models.State, configs map[string]FieldConfig, now time.Time) Metrics {
	m := Metrics{LastUpdated: now}
	if len(configs) == 0 {
		return m
	}

	var (
		requiredTotal, requiredDone int
		weightTotal, weightDone     float64
	)
	for name, cfg := range configs {
		weight := cfg.Weight
		if weight <= 0 {
			weight = 1
		}
		m.TotalFields++
		weightTotal += weight
		if cfg.Required {
			requiredTotal++
		}

		var value string
		if fields != nil {
			value = fields[name]
		}
		modified := false
		if state != nil {
			modified = state.Fields[name].UserModified
		}
		if Empty(value) || !modified {
			continue
		}

		m.CompletedFields++
		weightDone += weight
		if cfg.Required {
			requiredDone++
		}
	}

	m.TotalPercent = percent(m.CompletedFields, m.TotalFields)
	if requiredTotal == 0 {
		// No required fields: the required subset is vacuously complete.
		m.RequiredPercent = 100
	} else {
		m.RequiredPercent = percent(requiredDone, requiredTotal)
	}
	if weightTotal > 0 {
		m.WeightedPercent = clampPercent(weightDone / weightTotal * 100)
	}
	return m
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return clampPercent(float64(done) / float64(total) * 100)
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
