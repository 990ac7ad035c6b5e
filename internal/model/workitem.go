package model

import "time"

// WorkItemStatus represents where a work item sits in its lifecycle.
type WorkItemStatus string

const (
	WorkItemBacklog    WorkItemStatus = "backlog"
	WorkItemReady      WorkItemStatus = "ready"
	WorkItemStandby    WorkItemStatus = "standby"
	WorkItemInProgress WorkItemStatus = "in_progress"
	WorkItemDone       WorkItemStatus = "done"
)

// String returns the string representation of the status.
func (s WorkItemStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s WorkItemStatus) IsValid() bool {
	switch s {
	case WorkItemBacklog, WorkItemReady, WorkItemStandby, WorkItemInProgress, WorkItemDone:
		return true
	}
	return false
}

// ScheduleManaged reports whether only the scheduling engine sets s.
func (s WorkItemStatus) ScheduleManaged() bool {
	return s == WorkItemStandby || s == WorkItemInProgress
}

// WorkItem is a unit of work that consumes hours on one or more CCRs.
type WorkItem struct {
	ID               string             `json:"id"`
	OrganizationID   string             `json:"organization_id"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	Status           WorkItemStatus     `json:"status"`
	CCRHoursRequired map[string]float64 `json:"ccr_hours_required,omitempty"` // keyed by CCRKey
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// HoursFor returns the hours this item needs on the CCR with the given key.
// Items with no entry for the key need zero hours.
func (w *WorkItem) HoursFor(ccrKey string) float64 {
	return w.CCRHoursRequired[ccrKey]
}
