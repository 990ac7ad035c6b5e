package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rnwolf/dbr/internal/depgraph"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// Transition records one schedule whose status changed during a tick.
type Transition struct {
	ScheduleID string               `json:"schedule_id"`
	BoardID    string               `json:"board_config_id"`
	From       model.ScheduleStatus `json:"from"`
	To         model.ScheduleStatus `json:"to"`
	Position   int                  `json:"position"`
	Released   bool                 `json:"released,omitempty"`
	Completed  bool                 `json:"completed,omitempty"`
}

// AdvanceResult summarizes one tick of an organization's boards.
type AdvanceResult struct {
	OrganizationID string       `json:"organization_id"`
	AdvancedCount  int          `json:"advanced_count"`
	CompletedCount int          `json:"completed_count"`
	RemainingCount int          `json:"remaining_count"`
	Transitions    []Transition `json:"transitions,omitempty"`
	// PromotedWorkItems are backlog items that became ready because a
	// completed schedule finished their last open prerequisite.
	PromotedWorkItems []string `json:"promoted_work_items,omitempty"`
	// TickedAt is the instant stamped on this tick's changes; Now is the
	// clock after it advanced.
	TickedAt time.Time `json:"ticked_at"`
	Now      time.Time `json:"now"`
}

// AdvanceTimeUnit moves every active schedule of the organization one
// position forward, applies the transition table, and advances the clock
// by one time unit once the changes are committed. Ticks are serialized
// from the clock read through the clock advance, so every tick stamps a
// distinct instant.
//
// A schedule whose board no longer exists still moves; its status is left
// alone and the condition is logged.
func (e *Engine) AdvanceTimeUnit(ctx context.Context, orgID string) (*AdvanceResult, error) {
	e.timeMu.Lock()
	defer e.timeMu.Unlock()

	res := &AdvanceResult{OrganizationID: orgID}

	err := e.store.RunInTransaction(ctx, func(tx store.Store) error {
		*res = AdvanceResult{OrganizationID: orgID}

		if _, err := lookup(ctx, "organization", orgID, tx.GetOrganization); err != nil {
			return err
		}
		if err := tx.LockOrganization(ctx, orgID); err != nil {
			return err
		}

		now := e.clock.Now()
		res.TickedAt = now

		schedules, err := tx.ListSchedules(ctx, model.ScheduleFilter{
			OrganizationID: orgID,
			Status:         model.ActiveScheduleStatuses,
		})
		if err != nil {
			return fmt.Errorf("list active schedules: %w", err)
		}

		boards := make(map[string]*model.BoardConfig)
		var finished []string
		for _, s := range schedules {
			board, err := e.boardFor(ctx, tx, boards, s.BoardConfigID)
			if err != nil {
				return err
			}

			from := s.Status
			s.TimeUnitPosition++
			s.UpdatedAt = now
			res.AdvancedCount++

			if board == nil {
				e.logger.Warn("board config missing, position advanced without status update",
					"org_id", orgID, "schedule_id", s.ID, "board_id", s.BoardConfigID, "position", s.TimeUnitPosition)
				if err := tx.UpdateSchedule(ctx, s); err != nil {
					return fmt.Errorf("update schedule %s: %w", s.ID, err)
				}
				continue
			}

			to, effects, _ := Next(from, ClassifyZone(board, s.TimeUnitPosition))
			s.Status = to
			t := Transition{ScheduleID: s.ID, BoardID: board.ID, From: from, To: to, Position: s.TimeUnitPosition}
			if effects.Has(EffectRelease) && s.ReleasedDate == nil {
				stamp := now
				s.ReleasedDate = &stamp
				t.Released = true
			}
			if effects.Has(EffectComplete) && s.CompletionDate == nil {
				stamp := now
				s.CompletionDate = &stamp
				t.Completed = true
			}

			if err := tx.UpdateSchedule(ctx, s); err != nil {
				return fmt.Errorf("update schedule %s: %w", s.ID, err)
			}
			if err := ValidatePosition(board, s); err != nil {
				e.logger.Warn("schedule position inconsistent after tick", "org_id", orgID, "err", err)
			}
			if from == to {
				continue
			}

			res.Transitions = append(res.Transitions, t)
			switch to {
			case model.SchedulePreConstraint, model.SchedulePostConstraint:
				err = e.setWorkItemStatus(ctx, tx, s.WorkItemIDs, model.WorkItemStandby, model.WorkItemInProgress, now)
			case model.ScheduleCompleted:
				res.CompletedCount++
				finished = append(finished, s.WorkItemIDs...)
				err = e.setWorkItemStatus(ctx, tx, s.WorkItemIDs, "", model.WorkItemDone, now)
			}
			if err != nil {
				return err
			}
		}
		res.RemainingCount = res.AdvancedCount - res.CompletedCount

		promoted, err := e.promoteDependents(ctx, tx, finished, now)
		if err != nil {
			return err
		}
		res.PromotedWorkItems = promoted
		return nil
	})
	if err != nil {
		return nil, err
	}

	res.Now = e.clock.Advance()
	e.logger.Info("time unit advanced",
		"org_id", orgID, "advanced", res.AdvancedCount,
		"completed", res.CompletedCount, "remaining", res.RemainingCount, "now", res.Now)
	return res, nil
}

// boardFor returns the cached board, or nil when it does not exist.
func (e *Engine) boardFor(ctx context.Context, tx store.Store, cache map[string]*model.BoardConfig, id string) (*model.BoardConfig, error) {
	if b, ok := cache[id]; ok {
		return b, nil
	}
	b, err := tx.GetBoardConfig(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		cache[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get board config %s: %w", id, err)
	}
	cache[id] = b
	return b, nil
}

// setWorkItemStatus moves the listed work items to status to. When from is
// set, only items currently in from are changed. Items already at to and
// missing items are skipped.
func (e *Engine) setWorkItemStatus(ctx context.Context, tx store.Store, ids []string, from, to model.WorkItemStatus, now time.Time) error {
	for _, id := range ids {
		item, err := tx.GetWorkItem(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("scheduled work item missing", "work_item_id", id)
			continue
		}
		if err != nil {
			return fmt.Errorf("get work item %s: %w", id, err)
		}
		if item.Status == to || (from != "" && item.Status != from) {
			continue
		}
		item.Status = to
		item.UpdatedAt = now
		if err := tx.UpdateWorkItem(ctx, item); err != nil {
			return fmt.Errorf("update work item %s: %w", id, err)
		}
	}
	return nil
}

// promoteDependents readies backlog items whose last open prerequisite was
// among the finished work items.
func (e *Engine) promoteDependents(ctx context.Context, tx store.Store, finished []string, now time.Time) ([]string, error) {
	if len(finished) == 0 {
		return nil, nil
	}
	v := depgraph.New(tx)

	seen := make(map[string]bool)
	var candidates []string
	for _, id := range finished {
		dependents, err := v.Dependents(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, d := range dependents {
			if !seen[d] {
				seen[d] = true
				candidates = append(candidates, d)
			}
		}
	}

	promoted, err := v.PromoteReady(ctx, candidates, now)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(promoted))
	for i, w := range promoted {
		ids[i] = w.ID
	}
	return ids, nil
}
