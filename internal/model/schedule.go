package model

import "time"

// ScheduleStatus is the progression state of a schedule on its board.
type ScheduleStatus string

const (
	SchedulePlanning       ScheduleStatus = "planning"
	SchedulePreConstraint  ScheduleStatus = "pre_constraint"
	SchedulePostConstraint ScheduleStatus = "post_constraint"
	ScheduleCompleted      ScheduleStatus = "completed"
)

// String returns the string representation of the status.
func (s ScheduleStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case SchedulePlanning, SchedulePreConstraint, SchedulePostConstraint, ScheduleCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleCompleted
}

// ActiveScheduleStatuses lists every status a tick still advances.
var ActiveScheduleStatuses = []ScheduleStatus{SchedulePlanning, SchedulePreConstraint, SchedulePostConstraint}

// Schedule is a batch of work items travelling across a board one time unit
// per tick. WorkItemIDs is a snapshot taken at creation.
type Schedule struct {
	ID               string         `json:"id"`
	OrganizationID   string         `json:"organization_id"`
	BoardConfigID    string         `json:"board_config_id"`
	CCRID            string         `json:"ccr_id"`
	Status           ScheduleStatus `json:"status"`
	TimeUnitPosition int            `json:"time_unit_position"`
	WorkItemIDs      []string       `json:"work_item_ids"`
	TotalCCRHours    float64        `json:"total_ccr_hours"`
	ReleasedDate     *time.Time     `json:"released_date,omitempty"`
	CompletionDate   *time.Time     `json:"completion_date,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
