// Package api holds the request and response shapes shared by the HTTP and
// gRPC transports and their clients. Field names follow the JSON wire format.
package api

import (
	"github.com/rnwolf/dbr/internal/model"
)

// IDRequest addresses a single entity by id.
type IDRequest struct {
	ID string `json:"id"`
}

// OrganizationRequest addresses an organization.
type OrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
}

// WorkItemRequest addresses a work item.
type WorkItemRequest struct {
	WorkItemID string `json:"work_item_id"`
}

// Empty is the request for calls without parameters.
type Empty struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

// Organizations

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type ListOrganizationsResponse struct {
	Organizations []*model.Organization `json:"organizations"`
}

// CCRs

type CreateCCRRequest struct {
	OrganizationID      string  `json:"organization_id,omitempty"`
	Name                string  `json:"name"`
	CapacityPerTimeUnit float64 `json:"capacity_per_time_unit"`
}

type ListCCRsResponse struct {
	CCRs []*model.CCR `json:"ccrs"`
}

// Boards

type CreateBoardRequest struct {
	OrganizationID           string `json:"organization_id,omitempty"`
	Name                     string `json:"name"`
	CCRID                    string `json:"ccr_id"`
	PreConstraintBufferSize  int    `json:"pre_constraint_buffer_size"`
	PostConstraintBufferSize int    `json:"post_constraint_buffer_size"`
	TimeUnit                 string `json:"time_unit,omitempty"`
}

type ListBoardsResponse struct {
	Boards []*model.BoardConfig `json:"boards"`
}

// BoardRequest selects one board of an organization, or all of them when
// BoardConfigID is empty.
type BoardRequest struct {
	OrganizationID string `json:"organization_id"`
	BoardConfigID  string `json:"board_config_id,omitempty"`
}

// Work items

type CreateWorkItemRequest struct {
	OrganizationID   string             `json:"organization_id,omitempty"`
	Title            string             `json:"title"`
	Description      string             `json:"description,omitempty"`
	Status           string             `json:"status,omitempty"` // default backlog
	CCRHoursRequired map[string]float64 `json:"ccr_hours_required,omitempty"`
}

// UpdateWorkItemRequest holds optional changes to a work item.
// Nil fields mean "don't change".
type UpdateWorkItemRequest struct {
	ID               string             `json:"id,omitempty"`
	Title            *string            `json:"title,omitempty"`
	Description      *string            `json:"description,omitempty"`
	Status           *string            `json:"status,omitempty"`
	CCRHoursRequired map[string]float64 `json:"ccr_hours_required,omitempty"`
}

type ListWorkItemsRequest struct {
	OrganizationID string   `json:"organization_id"`
	Status         []string `json:"status,omitempty"`
	Limit          int      `json:"limit,omitempty"`
	Offset         int      `json:"offset,omitempty"`
}

type ListWorkItemsResponse struct {
	WorkItems []*model.WorkItem `json:"work_items"`
	Total     int               `json:"total"`
}

// WorkItemsResponse is a plain list of work items (ready, blocked).
type WorkItemsResponse struct {
	WorkItems []*model.WorkItem `json:"work_items"`
}

// Dependencies

type AddDependencyRequest struct {
	DependentID    string `json:"dependent_id,omitempty"`
	PrerequisiteID string `json:"prerequisite_id"`
	Type           string `json:"dependency_type,omitempty"` // default finish_to_start
}

type ValidateDependencyRequest struct {
	DependentID    string `json:"dependent_id,omitempty"`
	PrerequisiteID string `json:"prerequisite_id"`
}

type ValidateDependencyResponse struct {
	Valid bool `json:"valid"`
}

type ListDependenciesResponse struct {
	Dependencies []*model.WorkItemDependency `json:"dependencies"`
}

type ReadinessResponse struct {
	WorkItemID string `json:"work_item_id"`
	Ready      bool   `json:"ready"`
}

type ChainResponse struct {
	WorkItemID string   `json:"work_item_id"`
	Chain      []string `json:"chain"`
}

// Schedules

type CreateScheduleRequest struct {
	OrganizationID string   `json:"organization_id,omitempty"`
	BoardConfigID  string   `json:"board_config_id"`
	WorkItemIDs    []string `json:"work_item_ids"`
}

type ListSchedulesRequest struct {
	OrganizationID string   `json:"organization_id"`
	BoardConfigID  string   `json:"board_config_id,omitempty"`
	Status         []string `json:"status,omitempty"`
}

type ListSchedulesResponse struct {
	Schedules []*model.Schedule `json:"schedules"`
}

// Events

type ListEventsRequest struct {
	OrganizationID string `json:"organization_id"`
	Limit          int    `json:"limit,omitempty"`
}

type ListEventsResponse struct {
	Events []*model.Event `json:"events"`
}
