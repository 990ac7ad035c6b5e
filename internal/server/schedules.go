package server

import (
	"context"
	"fmt"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
)

func (s *Server) CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error) {
	sched, err := s.engine.CreateSchedule(ctx, scheduling.CreateScheduleInput{
		OrganizationID: req.OrganizationID,
		BoardConfigID:  req.BoardConfigID,
		WorkItemIDs:    req.WorkItemIDs,
	})
	if err != nil {
		return nil, err
	}
	s.recordAndPublish(ctx, events.TopicScheduleCreated, sched.OrganizationID, sched.ID, events.ScheduleCreated{Schedule: sched})
	return sched, nil
}

func (s *Server) GetSchedule(ctx context.Context, req *api.IDRequest) (*model.Schedule, error) {
	return get(ctx, "schedule", req.ID, s.store.GetSchedule)
}

func (s *Server) ListSchedules(ctx context.Context, req *api.ListSchedulesRequest) (*api.ListSchedulesResponse, error) {
	if _, err := s.organization(ctx, req.OrganizationID); err != nil {
		return nil, err
	}
	filter := model.ScheduleFilter{OrganizationID: req.OrganizationID, BoardConfigID: req.BoardConfigID}
	for _, st := range req.Status {
		status := model.ScheduleStatus(st)
		if !status.IsValid() {
			return nil, fieldError("status", fmt.Sprintf("invalid value %q", st))
		}
		filter.Status = append(filter.Status, status)
	}
	schedules, err := s.store.ListSchedules(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	if schedules == nil {
		schedules = []*model.Schedule{}
	}
	return &api.ListSchedulesResponse{Schedules: schedules}, nil
}

// AdvanceTimeUnit ticks the organization's boards and emits one event per
// status transition followed by a summary event.
func (s *Server) AdvanceTimeUnit(ctx context.Context, req *api.OrganizationRequest) (*scheduling.AdvanceResult, error) {
	if err := requireField("organization_id", req.OrganizationID); err != nil {
		return nil, err
	}
	res, err := s.engine.AdvanceTimeUnit(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	for _, t := range res.Transitions {
		s.recordAndPublish(ctx, events.TopicScheduleTransitioned, res.OrganizationID, t.ScheduleID, events.ScheduleTransitioned{
			ScheduleID: t.ScheduleID,
			From:       t.From,
			To:         t.To,
			Position:   t.Position,
		})
	}
	s.recordAndPublish(ctx, events.TopicTimeAdvanced, res.OrganizationID, res.OrganizationID, events.TimeAdvanced{
		AdvancedCount:     res.AdvancedCount,
		CompletedCount:    res.CompletedCount,
		RemainingCount:    res.RemainingCount,
		PromotedWorkItems: res.PromotedWorkItems,
		Now:               res.Now,
	})
	return res, nil
}

func (s *Server) BoardStatus(ctx context.Context, req *api.BoardRequest) (*scheduling.BoardStatus, error) {
	if err := requireField("organization_id", req.OrganizationID); err != nil {
		return nil, err
	}
	return s.engine.BoardStatus(ctx, req.OrganizationID, req.BoardConfigID)
}

func (s *Server) BoardAnalytics(ctx context.Context, req *api.BoardRequest) (*scheduling.BoardAnalytics, error) {
	if err := requireField("organization_id", req.OrganizationID); err != nil {
		return nil, err
	}
	return s.engine.BoardAnalytics(ctx, req.OrganizationID, req.BoardConfigID)
}
