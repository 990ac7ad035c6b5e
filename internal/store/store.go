// Package store defines the persistence port used by the scheduling core.
package store

import (
	"context"
	"errors"

	"github.com/rnwolf/dbr/internal/model"
)

// ErrNotFound is returned by Get, Update and Delete methods when the row
// does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the persistence interface for organizations, boards,
// work items, dependencies and schedules.
type Store interface {
	// Organizations
	CreateOrganization(ctx context.Context, org *model.Organization) error
	GetOrganization(ctx context.Context, id string) (*model.Organization, error)
	ListOrganizations(ctx context.Context) ([]*model.Organization, error)

	// CCRs
	CreateCCR(ctx context.Context, ccr *model.CCR) error
	GetCCR(ctx context.Context, id string) (*model.CCR, error)
	ListCCRs(ctx context.Context, orgID string) ([]*model.CCR, error)

	// Board configs
	CreateBoardConfig(ctx context.Context, board *model.BoardConfig) error
	GetBoardConfig(ctx context.Context, id string) (*model.BoardConfig, error)
	ListBoardConfigs(ctx context.Context, orgID string) ([]*model.BoardConfig, error)

	// Work items
	CreateWorkItem(ctx context.Context, item *model.WorkItem) error
	GetWorkItem(ctx context.Context, id string) (*model.WorkItem, error)
	ListWorkItems(ctx context.Context, filter model.WorkItemFilter) ([]*model.WorkItem, int, error) // returns items, total count, error
	UpdateWorkItem(ctx context.Context, item *model.WorkItem) error

	// Dependencies
	CreateDependency(ctx context.Context, dep *model.WorkItemDependency) error
	GetDependency(ctx context.Context, id string) (*model.WorkItemDependency, error)
	ListDependencies(ctx context.Context, filter model.DependencyFilter) ([]*model.WorkItemDependency, error)
	DeleteDependency(ctx context.Context, id string) error

	// Schedules
	CreateSchedule(ctx context.Context, sched *model.Schedule) error
	GetSchedule(ctx context.Context, id string) (*model.Schedule, error)
	ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error)
	UpdateSchedule(ctx context.Context, sched *model.Schedule) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	ListEvents(ctx context.Context, orgID string, limit int) ([]*model.Event, error)

	// LockOrganization serializes writers of one organization until the
	// surrounding transaction ends. Outside a transaction it is a no-op.
	LockOrganization(ctx context.Context, orgID string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
