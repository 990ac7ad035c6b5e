package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for the three error families. Concrete errors below unwrap to
// one of them so callers can branch with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrCircularDependency = errors.New("circular dependency")
)

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Entity string // "work_item", "board_config", ...
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// SelfDependencyError reports an edge whose two ends are the same item.
type SelfDependencyError struct {
	WorkItemID string
}

func (e *SelfDependencyError) Error() string {
	return fmt.Sprintf("work item %q cannot depend on itself", e.WorkItemID)
}

func (e *SelfDependencyError) Unwrap() error { return ErrValidation }

// CrossOrganizationError reports an edge between items of different organizations.
type CrossOrganizationError struct {
	DependentID     string
	DependentOrg    string
	PrerequisiteID  string
	PrerequisiteOrg string
}

func (e *CrossOrganizationError) Error() string {
	return fmt.Sprintf("work item %q (org %s) cannot depend on %q (org %s)",
		e.DependentID, e.DependentOrg, e.PrerequisiteID, e.PrerequisiteOrg)
}

func (e *CrossOrganizationError) Unwrap() error { return ErrValidation }

// NotReadyError reports a work item that cannot be scheduled or marked
// ready. Blocked is set when the item still has unfinished prerequisites.
type NotReadyError struct {
	WorkItemID string
	Status     WorkItemStatus
	Blocked    bool
}

func (e *NotReadyError) Error() string {
	if e.Blocked {
		return fmt.Sprintf("work item %q has unfinished prerequisites", e.WorkItemID)
	}
	return fmt.Sprintf("work item %q is %s, not ready", e.WorkItemID, e.Status)
}

func (e *NotReadyError) Unwrap() error { return ErrValidation }

// StatusChangeError reports a manual work item status change the lifecycle
// does not allow. ScheduleID names the active schedule holding the item.
type StatusChangeError struct {
	WorkItemID string
	From       WorkItemStatus
	To         WorkItemStatus
	ScheduleID string
}

func (e *StatusChangeError) Error() string {
	switch {
	case e.ScheduleID != "":
		return fmt.Sprintf("work item %q is on active schedule %s and moves with it", e.WorkItemID, e.ScheduleID)
	case e.From == "":
		return fmt.Sprintf("work items cannot be created as %s", e.To)
	}
	return fmt.Sprintf("work item %q cannot be moved from %s to %s by hand", e.WorkItemID, e.From, e.To)
}

func (e *StatusChangeError) Unwrap() error { return ErrValidation }

// CapacityExceededError reports a schedule whose CCR load is above the CCR's
// capacity for one time unit. Committed is the load already placed at the
// same board position by other schedules.
type CapacityExceededError struct {
	CCRID     string
	Required  float64
	Committed float64
	Capacity  float64
}

func (e *CapacityExceededError) Error() string {
	if e.Committed > 0 {
		return fmt.Sprintf("CCR %s capacity exceeded: %.2fh required + %.2fh committed > %.2fh",
			e.CCRID, e.Required, e.Committed, e.Capacity)
	}
	return fmt.Sprintf("CCR %s capacity exceeded: %.2fh required > %.2fh", e.CCRID, e.Required, e.Capacity)
}

func (e *CapacityExceededError) Unwrap() error { return ErrValidation }

// CircularDependencyError reports that adding DependentID -> PrerequisiteID
// would close a cycle. Path walks existing edges from the prerequisite back
// to the dependent.
type CircularDependencyError struct {
	DependentID    string
	PrerequisiteID string
	Path           []string
}

func (e *CircularDependencyError) Error() string {
	msg := fmt.Sprintf("adding %s -> %s would create a cycle", e.DependentID, e.PrerequisiteID)
	if len(e.Path) > 0 {
		msg += " (" + strings.Join(e.Path, " -> ") + ")"
	}
	return msg
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }

// IsNotFound reports whether err is, or wraps, a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether err is, or wraps, a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
