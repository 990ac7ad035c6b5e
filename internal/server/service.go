package server

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/depgraph"
	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/idgen"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// maxEventsLimit caps ListEvents.
const maxEventsLimit = 1000

func fieldError(field, msg string) error {
	return &model.ValidationError{Errors: []model.FieldError{{Field: field, Message: msg}}}
}

func requireField(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fieldError(field, "is required")
	}
	return nil
}

// get wraps a store getter and turns store.ErrNotFound into a typed
// not-found error.
func get[T any](ctx context.Context, entity, id string, fn func(context.Context, string) (*T, error)) (*T, error) {
	if err := requireField("id", id); err != nil {
		return nil, err
	}
	v, err := fn(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &model.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", entity, id, err)
	}
	return v, nil
}

func (s *Server) organization(ctx context.Context, id string) (*model.Organization, error) {
	if err := requireField("organization_id", id); err != nil {
		return nil, err
	}
	return get(ctx, "organization", id, s.store.GetOrganization)
}

// --- Organizations ---

func (s *Server) CreateOrganization(ctx context.Context, req *api.CreateOrganizationRequest) (*model.Organization, error) {
	id, err := s.newID(idgen.Organization)
	if err != nil {
		return nil, err
	}
	org := &model.Organization{ID: id, Name: strings.TrimSpace(req.Name), CreatedAt: s.now()}
	if err := model.ValidateOrganization(org); err != nil {
		return nil, err
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	s.recordAndPublish(ctx, events.TopicOrganizationCreated, org.ID, org.ID, events.OrganizationCreated{Organization: org})
	return org, nil
}

func (s *Server) GetOrganization(ctx context.Context, req *api.IDRequest) (*model.Organization, error) {
	return get(ctx, "organization", req.ID, s.store.GetOrganization)
}

func (s *Server) ListOrganizations(ctx context.Context, _ *api.Empty) (*api.ListOrganizationsResponse, error) {
	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	if orgs == nil {
		orgs = []*model.Organization{}
	}
	return &api.ListOrganizationsResponse{Organizations: orgs}, nil
}

// --- CCRs ---

func (s *Server) CreateCCR(ctx context.Context, req *api.CreateCCRRequest) (*model.CCR, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	id, err := s.newID(idgen.CCR)
	if err != nil {
		return nil, err
	}
	ccr := &model.CCR{
		ID:                  id,
		OrganizationID:      req.OrganizationID,
		Name:                strings.TrimSpace(req.Name),
		CapacityPerTimeUnit: req.CapacityPerTimeUnit,
		CreatedAt:           s.now(),
	}
	if err := model.ValidateCCR(ccr); err != nil {
		return nil, err
	}
	existing, err := s.store.ListCCRs(ctx, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list ccrs: %w", err)
	}
	for _, c := range existing {
		if c.Key() == ccr.Key() {
			return nil, fieldError("name", fmt.Sprintf("CCR key %q already used by %s", ccr.Key(), c.ID))
		}
	}
	if err := s.store.CreateCCR(ctx, ccr); err != nil {
		return nil, fmt.Errorf("create ccr: %w", err)
	}
	s.recordAndPublish(ctx, events.TopicCCRCreated, ccr.OrganizationID, ccr.ID, events.CCRCreated{CCR: ccr})
	return ccr, nil
}

func (s *Server) GetCCR(ctx context.Context, req *api.IDRequest) (*model.CCR, error) {
	return get(ctx, "ccr", req.ID, s.store.GetCCR)
}

func (s *Server) ListCCRs(ctx context.Context, req *api.OrganizationRequest) (*api.ListCCRsResponse, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	ccrs, err := s.store.ListCCRs(ctx, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list ccrs: %w", err)
	}
	if ccrs == nil {
		ccrs = []*model.CCR{}
	}
	return &api.ListCCRsResponse{CCRs: ccrs}, nil
}

// --- Boards ---

func (s *Server) CreateBoard(ctx context.Context, req *api.CreateBoardRequest) (*model.BoardConfig, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	id, err := s.newID(idgen.Board)
	if err != nil {
		return nil, err
	}
	board := &model.BoardConfig{
		ID:                       id,
		OrganizationID:           req.OrganizationID,
		Name:                     strings.TrimSpace(req.Name),
		CCRID:                    req.CCRID,
		PreConstraintBufferSize:  req.PreConstraintBufferSize,
		PostConstraintBufferSize: req.PostConstraintBufferSize,
		TimeUnit:                 req.TimeUnit,
		CreatedAt:                s.now(),
	}
	if board.TimeUnit == "" {
		board.TimeUnit = model.DefaultTimeUnit
	}
	if err := model.ValidateBoardConfig(board); err != nil {
		return nil, err
	}
	ccr, err := get(ctx, "ccr", board.CCRID, s.store.GetCCR)
	if err != nil {
		return nil, err
	}
	if ccr.OrganizationID != board.OrganizationID {
		return nil, &model.NotFoundError{Entity: "ccr", ID: board.CCRID}
	}
	if err := s.store.CreateBoardConfig(ctx, board); err != nil {
		return nil, fmt.Errorf("create board config: %w", err)
	}
	s.recordAndPublish(ctx, events.TopicBoardCreated, board.OrganizationID, board.ID, events.BoardCreated{Board: board})
	return board, nil
}

func (s *Server) GetBoard(ctx context.Context, req *api.IDRequest) (*model.BoardConfig, error) {
	return get(ctx, "board_config", req.ID, s.store.GetBoardConfig)
}

func (s *Server) ListBoards(ctx context.Context, req *api.OrganizationRequest) (*api.ListBoardsResponse, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	boards, err := s.store.ListBoardConfigs(ctx, req.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("list board configs: %w", err)
	}
	if boards == nil {
		boards = []*model.BoardConfig{}
	}
	return &api.ListBoardsResponse{Boards: boards}, nil
}

// --- Work items ---

func (s *Server) CreateWorkItem(ctx context.Context, req *api.CreateWorkItemRequest) (*model.WorkItem, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	hours, err := model.NormalizeCCRHours(req.CCRHoursRequired)
	if err != nil {
		return nil, err
	}
	id, err := s.newID(idgen.WorkItem)
	if err != nil {
		return nil, err
	}
	now := s.now()
	item := &model.WorkItem{
		ID:               id,
		OrganizationID:   req.OrganizationID,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Status:           model.WorkItemStatus(req.Status),
		CCRHoursRequired: hours,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if item.Status == "" {
		item.Status = model.WorkItemBacklog
	}
	if err := model.ValidateWorkItem(item); err != nil {
		return nil, err
	}
	// A new item has no prerequisites yet, so ready is always reachable.
	if item.Status.ScheduleManaged() {
		return nil, &model.StatusChangeError{To: item.Status}
	}
	if err := s.store.CreateWorkItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create work item: %w", err)
	}
	s.recordAndPublish(ctx, events.TopicWorkItemCreated, item.OrganizationID, item.ID, events.WorkItemCreated{WorkItem: item})
	return item, nil
}

func (s *Server) GetWorkItem(ctx context.Context, req *api.IDRequest) (*model.WorkItem, error) {
	return get(ctx, "work_item", req.ID, s.store.GetWorkItem)
}

func (s *Server) ListWorkItems(ctx context.Context, req *api.ListWorkItemsRequest) (*api.ListWorkItemsResponse, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	filter := model.WorkItemFilter{OrganizationID: req.OrganizationID, Limit: req.Limit, Offset: req.Offset}
	for _, st := range req.Status {
		status := model.WorkItemStatus(st)
		if !status.IsValid() {
			return nil, fieldError("status", fmt.Sprintf("invalid value %q", st))
		}
		filter.Status = append(filter.Status, status)
	}
	items, total, err := s.store.ListWorkItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	if items == nil {
		items = []*model.WorkItem{}
	}
	return &api.ListWorkItemsResponse{WorkItems: items, Total: total}, nil
}

// UpdateWorkItem applies the requested changes. Marking an item done
// promotes backlog dependents whose prerequisites are now all done, in the
// same transaction.
func (s *Server) UpdateWorkItem(ctx context.Context, req *api.UpdateWorkItemRequest) (*model.WorkItem, error) {
	if err := requireField("id", req.ID); err != nil {
		return nil, err
	}

	var (
		updated  *model.WorkItem
		changes  = map[string]any{}
		promoted []*model.WorkItem
	)
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		item, err := get(ctx, "work_item", req.ID, tx.GetWorkItem)
		if err != nil {
			return err
		}
		if err := tx.LockOrganization(ctx, item.OrganizationID); err != nil {
			return err
		}

		if req.Title != nil {
			item.Title = strings.TrimSpace(*req.Title)
			changes["title"] = item.Title
		}
		if req.Description != nil {
			item.Description = *req.Description
			changes["description"] = item.Description
		}
		if req.Status != nil {
			to := model.WorkItemStatus(*req.Status)
			if to.IsValid() {
				if err := checkStatusChange(ctx, tx, item, to); err != nil {
					return err
				}
			}
			item.Status = to
			changes["status"] = item.Status
		}
		if req.CCRHoursRequired != nil {
			hours, err := model.NormalizeCCRHours(req.CCRHoursRequired)
			if err != nil {
				return err
			}
			item.CCRHoursRequired = hours
			changes["ccr_hours_required"] = hours
		}
		if err := model.ValidateWorkItem(item); err != nil {
			return err
		}

		now := s.now()
		item.UpdatedAt = now
		if err := tx.UpdateWorkItem(ctx, item); err != nil {
			return fmt.Errorf("update work item: %w", err)
		}
		updated = item

		if req.Status == nil || item.Status != model.WorkItemDone {
			return nil
		}
		g := depgraph.New(tx)
		dependents, err := g.Dependents(ctx, item.ID)
		if err != nil {
			return err
		}
		promoted, err = g.PromoteReady(ctx, dependents, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.recordAndPublish(ctx, events.TopicWorkItemUpdated, updated.OrganizationID, updated.ID,
		events.WorkItemUpdated{WorkItem: updated, Changes: changes})
	for _, p := range promoted {
		s.recordAndPublish(ctx, events.TopicWorkItemUpdated, p.OrganizationID, p.ID,
			events.WorkItemUpdated{WorkItem: p, Changes: map[string]any{"status": p.Status}})
	}
	return updated, nil
}

// checkStatusChange gates a manual status change. Items on an active
// schedule move only with it, standby and in_progress are set only by the
// engine, and ready needs every prerequisite done.
func checkStatusChange(ctx context.Context, tx store.Store, item *model.WorkItem, to model.WorkItemStatus) error {
	if item.Status == to {
		return nil
	}
	if to.ScheduleManaged() {
		return &model.StatusChangeError{WorkItemID: item.ID, From: item.Status, To: to}
	}
	active, err := tx.ListSchedules(ctx, model.ScheduleFilter{
		OrganizationID: item.OrganizationID,
		Status:         model.ActiveScheduleStatuses,
	})
	if err != nil {
		return fmt.Errorf("list active schedules: %w", err)
	}
	for _, sch := range active {
		if slices.Contains(sch.WorkItemIDs, item.ID) {
			return &model.StatusChangeError{WorkItemID: item.ID, From: item.Status, To: to, ScheduleID: sch.ID}
		}
	}
	if to != model.WorkItemReady {
		return nil
	}
	ready, err := depgraph.New(tx).IsReady(ctx, item.ID)
	if err != nil {
		return err
	}
	if !ready {
		return &model.NotReadyError{WorkItemID: item.ID, Status: item.Status, Blocked: true}
	}
	return nil
}

// --- Dependencies ---

func (s *Server) AddDependency(ctx context.Context, req *api.AddDependencyRequest) (*model.WorkItemDependency, error) {
	id, err := s.newID(idgen.Dependency)
	if err != nil {
		return nil, err
	}
	dep := &model.WorkItemDependency{
		ID:             id,
		DependentID:    req.DependentID,
		PrerequisiteID: req.PrerequisiteID,
		Type:           model.DependencyType(req.Type),
		CreatedAt:      s.now(),
	}
	if err := s.graph.AddDependency(ctx, dep); err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicDependencyAdded, dep.OrganizationID, dep.ID, events.DependencyAdded{Dependency: dep})
	return dep, nil
}

func (s *Server) RemoveDependency(ctx context.Context, req *api.IDRequest) (*model.WorkItemDependency, error) {
	if err := requireField("id", req.ID); err != nil {
		return nil, err
	}
	dep, err := s.graph.RemoveDependency(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicDependencyRemoved, dep.OrganizationID, dep.ID, events.DependencyRemoved{Dependency: dep})
	return dep, nil
}

func (s *Server) ListDependencies(ctx context.Context, req *api.WorkItemRequest) (*api.ListDependenciesResponse, error) {
	if err := requireField("work_item_id", req.WorkItemID); err != nil {
		return nil, err
	}
	deps, err := s.graph.Dependencies(ctx, req.WorkItemID)
	if err != nil {
		return nil, err
	}
	if deps == nil {
		deps = []*model.WorkItemDependency{}
	}
	return &api.ListDependenciesResponse{Dependencies: deps}, nil
}

// ValidateDependency checks a prospective edge without inserting it.
func (s *Server) ValidateDependency(ctx context.Context, req *api.ValidateDependencyRequest) (*api.ValidateDependencyResponse, error) {
	if err := requireField("dependent_id", req.DependentID); err != nil {
		return nil, err
	}
	if err := requireField("prerequisite_id", req.PrerequisiteID); err != nil {
		return nil, err
	}
	if err := s.graph.ValidateNewDependency(ctx, req.DependentID, req.PrerequisiteID); err != nil {
		return nil, err
	}
	return &api.ValidateDependencyResponse{Valid: true}, nil
}

func (s *Server) IsReady(ctx context.Context, req *api.WorkItemRequest) (*api.ReadinessResponse, error) {
	if err := requireField("work_item_id", req.WorkItemID); err != nil {
		return nil, err
	}
	ready, err := s.graph.IsReady(ctx, req.WorkItemID)
	if err != nil {
		return nil, err
	}
	return &api.ReadinessResponse{WorkItemID: req.WorkItemID, Ready: ready}, nil
}

func (s *Server) DependencyChain(ctx context.Context, req *api.WorkItemRequest) (*api.ChainResponse, error) {
	if err := requireField("work_item_id", req.WorkItemID); err != nil {
		return nil, err
	}
	chain, err := s.graph.DependencyChain(ctx, req.WorkItemID)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		chain = []string{}
	}
	return &api.ChainResponse{WorkItemID: req.WorkItemID, Chain: chain}, nil
}

func (s *Server) BlockedWorkItems(ctx context.Context, req *api.OrganizationRequest) (*api.WorkItemsResponse, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	items, err := s.graph.BlockedWorkItems(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.WorkItem{}
	}
	return &api.WorkItemsResponse{WorkItems: items}, nil
}

func (s *Server) ReadyWorkItems(ctx context.Context, req *api.OrganizationRequest) (*api.WorkItemsResponse, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	items, err := s.graph.ReadyWorkItems(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*model.WorkItem{}
	}
	return &api.WorkItemsResponse{WorkItems: items}, nil
}

// --- Events ---

func (s *Server) ListEvents(ctx context.Context, req *api.ListEventsRequest) (*api.ListEventsResponse, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 || limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	evts, err := s.store.ListEvents(ctx, req.OrganizationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if evts == nil {
		evts = []*model.Event{}
	}
	return &api.ListEventsResponse{Events: evts}, nil
}

func (s *Server) Health(context.Context, *api.Empty) (*api.HealthResponse, error) {
	return &api.HealthResponse{Status: "ok"}, nil
}
