// Package client provides a transport-agnostic interface for the scheduling
// service with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"fmt"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
)

// Client is the interface that all dbr CLI commands use to talk to the
// server. It is implemented by HTTPClient (default) and GRPCClient.
type Client interface {
	// Organizations
	CreateOrganization(ctx context.Context, req *api.CreateOrganizationRequest) (*model.Organization, error)
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	ListOrganizations(ctx context.Context) ([]*model.Organization, error)

	// CCRs
	CreateCCR(ctx context.Context, req *api.CreateCCRRequest) (*model.CCR, error)
	GetCCR(ctx context.Context, id string) (*model.CCR, error)
	ListCCRs(ctx context.Context, orgID string) ([]*model.CCR, error)

	// Boards
	CreateBoard(ctx context.Context, req *api.CreateBoardRequest) (*model.BoardConfig, error)
	GetBoard(ctx context.Context, id string) (*model.BoardConfig, error)
	ListBoards(ctx context.Context, orgID string) ([]*model.BoardConfig, error)
	BoardStatus(ctx context.Context, orgID, boardID string) (*scheduling.BoardStatus, error)
	BoardAnalytics(ctx context.Context, orgID, boardID string) (*scheduling.BoardAnalytics, error)

	// Work items
	CreateWorkItem(ctx context.Context, req *api.CreateWorkItemRequest) (*model.WorkItem, error)
	GetWorkItem(ctx context.Context, id string) (*model.WorkItem, error)
	ListWorkItems(ctx context.Context, req *api.ListWorkItemsRequest) (*api.ListWorkItemsResponse, error)
	UpdateWorkItem(ctx context.Context, req *api.UpdateWorkItemRequest) (*model.WorkItem, error)
	ReadyWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error)
	BlockedWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error)

	// Dependencies
	AddDependency(ctx context.Context, req *api.AddDependencyRequest) (*model.WorkItemDependency, error)
	RemoveDependency(ctx context.Context, id string) (*model.WorkItemDependency, error)
	ListDependencies(ctx context.Context, workItemID string) ([]*model.WorkItemDependency, error)
	// ValidateDependency returns nil when the edge could be added.
	ValidateDependency(ctx context.Context, dependentID, prerequisiteID string) error
	IsReady(ctx context.Context, workItemID string) (bool, error)
	DependencyChain(ctx context.Context, workItemID string) ([]string, error)

	// Schedules
	CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error)
	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	ListSchedules(ctx context.Context, req *api.ListSchedulesRequest) ([]*model.Schedule, error)
	AdvanceTimeUnit(ctx context.Context, orgID string) (*scheduling.AdvanceResult, error)

	// Events
	ListEvents(ctx context.Context, orgID string, limit int) ([]*model.Event, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// APIError is a service error returned by either transport. It unwraps to
// the model sentinel of its code, so errors.Is(err, model.ErrNotFound)
// works on the client side.
type APIError struct {
	StatusCode int // HTTP status, or the HTTP equivalent of the gRPC code
	Code       string
	Message    string
	Fields     []model.FieldError
	Path       []string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return api.Sentinel(e.Code)
}
