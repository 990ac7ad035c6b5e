package model

import (
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is(err, ErrValidation) match field errors.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) result() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func validateName(ve *ValidationError, field, value string, max int) {
	v := strings.TrimSpace(value)
	if v == "" {
		ve.add(field, "is required")
	} else if len([]rune(v)) > max {
		ve.add(field, "must be %d characters or fewer", max)
	}
}

// ValidateOrganization checks an Organization for constraint violations.
func ValidateOrganization(o *Organization) error {
	var ve ValidationError
	validateName(&ve, "name", o.Name, 200)
	return ve.result()
}

// ValidateWorkItem checks a WorkItem for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the item is valid.
func ValidateWorkItem(w *WorkItem) error {
	var ve ValidationError

	validateName(&ve, "title", w.Title, 500)

	if strings.TrimSpace(w.OrganizationID) == "" {
		ve.add("organization_id", "is required")
	}

	if !w.Status.IsValid() {
		ve.add("status", "invalid value %q", w.Status)
	}

	for key, hours := range w.CCRHoursRequired {
		if key == "" {
			ve.add("ccr_hours_required", "empty CCR key")
			continue
		}
		if hours < 0 {
			ve.add("ccr_hours_required", "hours for %s must be non-negative, got %g", key, hours)
		}
	}

	return ve.result()
}

// ValidateCCR checks a CCR for constraint violations.
func ValidateCCR(c *CCR) error {
	var ve ValidationError

	validateName(&ve, "name", c.Name, 200)

	if strings.TrimSpace(c.OrganizationID) == "" {
		ve.add("organization_id", "is required")
	}

	if c.CapacityPerTimeUnit < 0 {
		ve.add("capacity_per_time_unit", "must be non-negative, got %g", c.CapacityPerTimeUnit)
	}

	return ve.result()
}

// ValidateBoardConfig checks a BoardConfig for constraint violations.
func ValidateBoardConfig(b *BoardConfig) error {
	var ve ValidationError

	validateName(&ve, "name", b.Name, 200)

	if strings.TrimSpace(b.OrganizationID) == "" {
		ve.add("organization_id", "is required")
	}
	if strings.TrimSpace(b.CCRID) == "" {
		ve.add("ccr_id", "is required")
	}
	if b.PreConstraintBufferSize < 0 {
		ve.add("pre_constraint_buffer_size", "must be non-negative, got %d", b.PreConstraintBufferSize)
	}
	if b.PostConstraintBufferSize < 0 {
		ve.add("post_constraint_buffer_size", "must be non-negative, got %d", b.PostConstraintBufferSize)
	}

	return ve.result()
}

// ValidateDependency checks the shape of a dependency edge. Graph rules
// (self edges, organizations, cycles) are enforced by the depgraph package.
func ValidateDependency(d *WorkItemDependency) error {
	var ve ValidationError

	if strings.TrimSpace(d.DependentID) == "" {
		ve.add("dependent_id", "is required")
	}
	if strings.TrimSpace(d.PrerequisiteID) == "" {
		ve.add("prerequisite_id", "is required")
	}
	if !d.Type.IsValid() {
		ve.add("dependency_type", "invalid value %q", d.Type)
	}

	return ve.result()
}
