package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// BoardStatus is a snapshot of where an organization's schedules sit.
type BoardStatus struct {
	OrganizationID string                       `json:"organization_id"`
	BoardConfigID  string                       `json:"board_config_id,omitempty"`
	Now            time.Time                    `json:"now"`
	Total          int                          `json:"total"`
	ByStatus       map[model.ScheduleStatus]int `json:"by_status"`
	ByZone         map[Zone]int                 `json:"by_zone"`
	ByPosition     map[int][]string             `json:"by_position"` // active schedules only
	Unplaced       int                          `json:"unplaced,omitempty"`
	Schedules      []*model.Schedule            `json:"schedules"`
}

// PositionLoad is the CCR demand parked at one board position.
type PositionLoad struct {
	Position    int     `json:"position"`
	Zone        Zone    `json:"zone"`
	Schedules   int     `json:"schedules"`
	CCRHours    float64 `json:"ccr_hours"`
	Utilization float64 `json:"utilization"` // CCRHours / capacity, 0 without capacity
}

// BoardSummary aggregates one board's schedules.
type BoardSummary struct {
	Board                 *model.BoardConfig `json:"board"`
	CCR                   *model.CCR         `json:"ccr,omitempty"`
	Active                int                `json:"active"`
	Completed             int                `json:"completed"`
	Positions             []PositionLoad     `json:"positions"`
	ConstraintUtilization float64            `json:"constraint_utilization"`
	AverageCCRHours       float64            `json:"average_ccr_hours"`
	AverageLeadTimeHours  float64            `json:"average_lead_time_hours"` // created to completed, completed schedules only
}

// BoardAnalytics summarizes every board of an organization, or just one.
type BoardAnalytics struct {
	OrganizationID string          `json:"organization_id"`
	Now            time.Time       `json:"now"`
	Boards         []*BoardSummary `json:"boards"`
	Throughput     int             `json:"throughput"` // completed schedules
}

// BoardStatus groups the organization's schedules by status, zone and
// position. An empty boardID covers every board.
func (e *Engine) BoardStatus(ctx context.Context, orgID, boardID string) (*BoardStatus, error) {
	if _, err := lookup(ctx, "organization", orgID, e.store.GetOrganization); err != nil {
		return nil, err
	}
	if boardID != "" {
		if _, err := e.orgBoard(ctx, orgID, boardID); err != nil {
			return nil, err
		}
	}

	schedules, err := e.store.ListSchedules(ctx, model.ScheduleFilter{OrganizationID: orgID, BoardConfigID: boardID})
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	st := &BoardStatus{
		OrganizationID: orgID,
		BoardConfigID:  boardID,
		Now:            e.clock.Now(),
		Total:          len(schedules),
		ByStatus:       make(map[model.ScheduleStatus]int),
		ByZone:         make(map[Zone]int),
		ByPosition:     make(map[int][]string),
		Schedules:      schedules,
	}
	boards := make(map[string]*model.BoardConfig)
	for _, s := range schedules {
		st.ByStatus[s.Status]++
		board, err := e.boardFor(ctx, e.store, boards, s.BoardConfigID)
		if err != nil {
			return nil, err
		}
		if board == nil {
			st.Unplaced++
			continue
		}
		st.ByZone[ClassifyZone(board, s.TimeUnitPosition)]++
		if !s.Status.IsTerminal() {
			st.ByPosition[s.TimeUnitPosition] = append(st.ByPosition[s.TimeUnitPosition], s.ID)
		}
	}
	return st, nil
}

// BoardAnalytics computes per-position CCR load, constraint utilization,
// throughput and averages. An empty boardID covers every board.
func (e *Engine) BoardAnalytics(ctx context.Context, orgID, boardID string) (*BoardAnalytics, error) {
	if _, err := lookup(ctx, "organization", orgID, e.store.GetOrganization); err != nil {
		return nil, err
	}

	var boards []*model.BoardConfig
	if boardID != "" {
		b, err := e.orgBoard(ctx, orgID, boardID)
		if err != nil {
			return nil, err
		}
		boards = []*model.BoardConfig{b}
	} else {
		var err error
		boards, err = e.store.ListBoardConfigs(ctx, orgID)
		if err != nil {
			return nil, fmt.Errorf("list board configs: %w", err)
		}
	}

	out := &BoardAnalytics{OrganizationID: orgID, Now: e.clock.Now()}
	for _, b := range boards {
		summary, err := e.summarize(ctx, b)
		if err != nil {
			return nil, err
		}
		out.Throughput += summary.Completed
		out.Boards = append(out.Boards, summary)
	}
	return out, nil
}

func (e *Engine) summarize(ctx context.Context, board *model.BoardConfig) (*BoardSummary, error) {
	schedules, err := e.store.ListSchedules(ctx, model.ScheduleFilter{BoardConfigID: board.ID})
	if err != nil {
		return nil, fmt.Errorf("list schedules for board %s: %w", board.ID, err)
	}

	ccr, err := e.store.GetCCR(ctx, board.CCRID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get ccr %s: %w", board.CCRID, err)
	}
	var capacity float64
	if ccr != nil {
		capacity = ccr.CapacityPerTimeUnit
	}

	sum := &BoardSummary{Board: board, CCR: ccr}
	for pos := board.EntryPosition(); pos <= board.PostConstraintBufferSize; pos++ {
		sum.Positions = append(sum.Positions, PositionLoad{Position: pos, Zone: ClassifyZone(board, pos)})
	}

	var totalHours, leadHours float64
	for _, s := range schedules {
		totalHours += s.TotalCCRHours
		if s.Status.IsTerminal() {
			sum.Completed++
			if s.CompletionDate != nil {
				leadHours += s.CompletionDate.Sub(s.CreatedAt).Hours()
			}
			continue
		}
		sum.Active++
		idx := s.TimeUnitPosition - board.EntryPosition()
		if idx < 0 || idx >= len(sum.Positions) {
			continue
		}
		sum.Positions[idx].Schedules++
		sum.Positions[idx].CCRHours += s.TotalCCRHours
	}

	for i := range sum.Positions {
		if capacity > 0 {
			sum.Positions[i].Utilization = sum.Positions[i].CCRHours / capacity
		}
		if sum.Positions[i].Zone == ZoneConstraint {
			sum.ConstraintUtilization = sum.Positions[i].Utilization
		}
	}
	if len(schedules) > 0 {
		sum.AverageCCRHours = totalHours / float64(len(schedules))
	}
	if sum.Completed > 0 {
		sum.AverageLeadTimeHours = leadHours / float64(sum.Completed)
	}
	return sum, nil
}

// orgBoard fetches a board and hides boards of other organizations.
func (e *Engine) orgBoard(ctx context.Context, orgID, boardID string) (*model.BoardConfig, error) {
	b, err := lookup(ctx, "board_config", boardID, e.store.GetBoardConfig)
	if err != nil {
		return nil, err
	}
	if b.OrganizationID != orgID {
		return nil, &model.NotFoundError{Entity: "board_config", ID: boardID}
	}
	return b, nil
}
