package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/model"
)

// Handler runs the hook configured for the status a schedule moved to.
type Handler struct {
	hooks   map[model.ScheduleStatus]string
	timeout time.Duration
	logger  *slog.Logger
}

// NewHandler creates a handler for the given status -> command hooks.
func NewHandler(hooks map[model.ScheduleStatus]string, timeout time.Duration, logger *slog.Logger) *Handler {
	return &Handler{hooks: hooks, timeout: timeout, logger: logger}
}

// HandleEvent runs the hook for a schedule transition event. It reports
// false when the event is not a transition or its target status has no
// hook.
//
// The command sees DBR_EVENT_ID, DBR_ORG_ID, DBR_SCHEDULE_ID,
// DBR_FROM_STATUS, DBR_TO_STATUS and DBR_POSITION.
func (h *Handler) HandleEvent(ctx context.Context, ev *model.Event) (Result, bool) {
	if ev.Topic != events.TopicScheduleTransitioned {
		return Result{}, false
	}
	var t events.ScheduleTransitioned
	if err := json.Unmarshal(ev.Payload, &t); err != nil {
		h.logger.Warn("hooks: bad transition payload", "event_id", ev.ID, "err", err)
		return Result{}, false
	}
	command, ok := h.hooks[t.To]
	if !ok {
		return Result{}, false
	}

	env := map[string]string{
		"DBR_EVENT_ID":    ev.ID,
		"DBR_ORG_ID":      ev.OrganizationID,
		"DBR_SCHEDULE_ID": t.ScheduleID,
		"DBR_FROM_STATUS": string(t.From),
		"DBR_TO_STATUS":   string(t.To),
		"DBR_POSITION":    strconv.Itoa(t.Position),
	}
	res := Execute(ctx, command, h.timeout, env)
	if res.Err != nil {
		h.logger.Warn("hooks: command failed",
			"schedule_id", t.ScheduleID, "status", t.To, "exit_code", res.ExitCode,
			"duration", res.Duration, "err", res.Err, "output", res.Output)
	} else {
		h.logger.Info("hooks: command ran",
			"schedule_id", t.ScheduleID, "status", t.To, "duration", res.Duration)
	}
	return res, true
}

// StartSubscriber listens for transition events on the bus and runs the
// matching hooks one at a time. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.Subject("*", events.TopicScheduleTransitioned))
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("hooks: subscriber started", "hooks", len(h.hooks))

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: subscriber stopping")
			return nil
		case ev, ok := <-ch:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return nil
			}
			h.HandleEvent(ctx, ev)
		}
	}
}
