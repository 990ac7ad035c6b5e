package model

// WorkItemFilter holds criteria for querying work items.
type WorkItemFilter struct {
	OrganizationID string           `json:"organization_id,omitempty"`
	Status         []WorkItemStatus `json:"status,omitempty"`
	IDs            []string         `json:"ids,omitempty"`
	Limit          int              `json:"limit,omitempty"`
	Offset         int              `json:"offset,omitempty"`
}

// ScheduleFilter holds criteria for querying schedules.
type ScheduleFilter struct {
	OrganizationID string           `json:"organization_id,omitempty"`
	BoardConfigID  string           `json:"board_config_id,omitempty"`
	Status         []ScheduleStatus `json:"status,omitempty"`
	Position       *int             `json:"position,omitempty"`
}

// DependencyFilter holds criteria for querying dependency edges.
// Empty fields match everything.
type DependencyFilter struct {
	OrganizationID string `json:"organization_id,omitempty"`
	DependentID    string `json:"dependent_id,omitempty"`
	PrerequisiteID string `json:"prerequisite_id,omitempty"`
}
