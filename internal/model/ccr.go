package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// CCR is a capacity-constrained resource: the drum that paces a board.
type CCR struct {
	ID                  string    `json:"id"`
	OrganizationID      string    `json:"organization_id"`
	Name                string    `json:"name"`
	CapacityPerTimeUnit float64   `json:"capacity_per_time_unit"` // hours per time unit
	CreatedAt           time.Time `json:"created_at"`
}

// Key returns the lookup key used in WorkItem.CCRHoursRequired.
func (c *CCR) Key() string {
	return CCRKey(c.Name)
}

// CCRKey normalizes a CCR name into a hours-map key: trimmed, NFC, lower
// case, spaces replaced with underscores. "Dev Team" becomes "dev_team".
// Names are trimmed when a CCR is created, so keys trim too.
func CCRKey(name string) string {
	s := norm.NFC.String(strings.TrimSpace(name))
	s = cases.Lower(language.Und).String(s)
	return strings.ReplaceAll(s, " ", "_")
}

// NormalizeCCRHours rewrites every key of m with CCRKey. Two keys that
// normalize to the same value are reported as a field error.
func NormalizeCCRHours(m map[string]float64) (map[string]float64, error) {
	if len(m) == 0 {
		return m, nil
	}
	out := make(map[string]float64, len(m))
	var ve ValidationError
	for k, v := range m {
		key := CCRKey(k)
		if _, dup := out[key]; dup {
			ve.Errors = append(ve.Errors, FieldError{
				Field:   "ccr_hours_required",
				Message: "duplicate CCR key " + key,
			})
			continue
		}
		out[key] = v
	}
	if ve.HasErrors() {
		return nil, &ve
	}
	return out, nil
}
