package model

import "time"

// DependencyType records the temporal relationship between two work items.
// It is advisory: readiness is always computed from prerequisite completion.
type DependencyType string

const (
	DepFinishToStart  DependencyType = "finish_to_start"
	DepStartToStart   DependencyType = "start_to_start"
	DepFinishToFinish DependencyType = "finish_to_finish"
	DepStartToFinish  DependencyType = "start_to_finish"
)

// IsValid checks whether the dependency type is a known value.
func (d DependencyType) IsValid() bool {
	switch d {
	case DepFinishToStart, DepStartToStart, DepFinishToFinish, DepStartToFinish:
		return true
	}
	return false
}

// WorkItemDependency is a directed edge: DependentID cannot proceed until
// PrerequisiteID is done.
type WorkItemDependency struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	DependentID    string         `json:"dependent_id"`
	PrerequisiteID string         `json:"prerequisite_id"`
	Type           DependencyType `json:"dependency_type"`
	CreatedAt      time.Time      `json:"created_at"`
}
