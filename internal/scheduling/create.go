package scheduling

import (
	"context"
	"fmt"

	"github.com/rnwolf/dbr/internal/depgraph"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// CreateScheduleInput names the board and the ready work items to batch.
type CreateScheduleInput struct {
	OrganizationID string   `json:"organization_id"`
	BoardConfigID  string   `json:"board_config_id"`
	WorkItemIDs    []string `json:"work_item_ids"`
}

func (in CreateScheduleInput) validate() error {
	var ve model.ValidationError
	if in.OrganizationID == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "organization_id", Message: "is required"})
	}
	if in.BoardConfigID == "" {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "board_config_id", Message: "is required"})
	}
	if len(in.WorkItemIDs) == 0 {
		ve.Errors = append(ve.Errors, model.FieldError{Field: "work_item_ids", Message: "at least one work item is required"})
	}
	seen := make(map[string]bool, len(in.WorkItemIDs))
	for _, id := range in.WorkItemIDs {
		if seen[id] {
			ve.Errors = append(ve.Errors, model.FieldError{Field: "work_item_ids", Message: "duplicate id " + id})
		}
		seen[id] = true
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// CreateSchedule batches ready work items into a new schedule placed at the
// entry of the board's pre-constraint buffer.
//
// The whole operation runs in one transaction under the organization lock:
// readiness and capacity are checked against the same state the insert
// commits to, and the work items move to standby so they cannot be
// scheduled twice. Capacity is checked for the schedule alone and combined
// with the active schedules of the same CCR already sitting at the entry
// position.
func (e *Engine) CreateSchedule(ctx context.Context, in CreateScheduleInput) (*model.Schedule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	id, err := e.newID()
	if err != nil {
		return nil, err
	}

	e.timeMu.RLock()
	defer e.timeMu.RUnlock()

	var created *model.Schedule
	err = e.store.RunInTransaction(ctx, func(tx store.Store) error {
		if _, err := lookup(ctx, "organization", in.OrganizationID, tx.GetOrganization); err != nil {
			return err
		}
		if err := tx.LockOrganization(ctx, in.OrganizationID); err != nil {
			return err
		}

		board, err := lookup(ctx, "board_config", in.BoardConfigID, tx.GetBoardConfig)
		if err != nil {
			return err
		}
		if board.OrganizationID != in.OrganizationID {
			return &model.NotFoundError{Entity: "board_config", ID: in.BoardConfigID}
		}
		ccr, err := lookup(ctx, "ccr", board.CCRID, tx.GetCCR)
		if err != nil {
			return err
		}

		graph := depgraph.New(tx)
		items := make([]*model.WorkItem, 0, len(in.WorkItemIDs))
		for _, wid := range in.WorkItemIDs {
			item, err := lookup(ctx, "work_item", wid, tx.GetWorkItem)
			if err != nil {
				return err
			}
			if item.OrganizationID != in.OrganizationID {
				return &model.NotFoundError{Entity: "work_item", ID: wid}
			}
			if item.Status != model.WorkItemReady {
				return &model.NotReadyError{WorkItemID: wid, Status: item.Status}
			}
			// A prerequisite added after the item became ready blocks it again.
			ready, err := graph.IsReady(ctx, wid)
			if err != nil {
				return err
			}
			if !ready {
				return &model.NotReadyError{WorkItemID: wid, Status: item.Status, Blocked: true}
			}
			items = append(items, item)
		}

		key := ccr.Key()
		var total float64
		for _, item := range items {
			total += item.HoursFor(key)
		}
		if total > ccr.CapacityPerTimeUnit {
			return &model.CapacityExceededError{CCRID: ccr.ID, Required: total, Capacity: ccr.CapacityPerTimeUnit}
		}

		committed, err := e.committedLoad(ctx, tx, board, ccr.ID)
		if err != nil {
			return err
		}
		if committed+total > ccr.CapacityPerTimeUnit {
			return &model.CapacityExceededError{
				CCRID:     ccr.ID,
				Required:  total,
				Committed: committed,
				Capacity:  ccr.CapacityPerTimeUnit,
			}
		}

		now := e.clock.Now()
		sched := &model.Schedule{
			ID:               id,
			OrganizationID:   in.OrganizationID,
			BoardConfigID:    board.ID,
			CCRID:            ccr.ID,
			Status:           model.SchedulePlanning,
			TimeUnitPosition: board.EntryPosition(),
			WorkItemIDs:      append([]string(nil), in.WorkItemIDs...),
			TotalCCRHours:    total,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := tx.CreateSchedule(ctx, sched); err != nil {
			return fmt.Errorf("create schedule: %w", err)
		}

		for _, item := range items {
			item.Status = model.WorkItemStandby
			item.UpdatedAt = now
			if err := tx.UpdateWorkItem(ctx, item); err != nil {
				return fmt.Errorf("update work item %s: %w", item.ID, err)
			}
		}

		created = sched
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("schedule created",
		"org_id", created.OrganizationID, "schedule_id", created.ID,
		"board_id", created.BoardConfigID, "position", created.TimeUnitPosition,
		"ccr_hours", created.TotalCCRHours)
	return created, nil
}

// committedLoad sums the CCR hours of active schedules for ccrID already
// sitting at the board's entry position.
func (e *Engine) committedLoad(ctx context.Context, tx store.Store, board *model.BoardConfig, ccrID string) (float64, error) {
	entry := board.EntryPosition()
	existing, err := tx.ListSchedules(ctx, model.ScheduleFilter{
		BoardConfigID: board.ID,
		Status:        model.ActiveScheduleStatuses,
		Position:      &entry,
	})
	if err != nil {
		return 0, fmt.Errorf("list schedules at entry: %w", err)
	}
	var load float64
	for _, s := range existing {
		if s.CCRID == ccrID {
			load += s.TotalCCRHours
		}
	}
	return load, nil
}
