package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/model"
)

// fakeSubscriber hands out a single channel and records the pattern used.
type fakeSubscriber struct {
	ch      chan *model.Event
	pattern string
	err     error
}

func (f *fakeSubscriber) Subscribe(pattern string) (<-chan *model.Event, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.pattern = pattern
	return f.ch, func() {}, nil
}

func (f *fakeSubscriber) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transition(t *testing.T, scheduleID string, from, to model.ScheduleStatus, pos int) *model.Event {
	t.Helper()
	payload, err := json.Marshal(events.ScheduleTransitioned{
		ScheduleID: scheduleID,
		From:       from,
		To:         to,
		Position:   pos,
	})
	if err != nil {
		t.Fatal(err)
	}
	return &model.Event{
		ID:             "42",
		Topic:          events.TopicScheduleTransitioned,
		OrganizationID: "org-1",
		EntityID:       scheduleID,
		Payload:        payload,
	}
}

func TestHandleEvent_RunsHookWithEnv(t *testing.T) {
	h := NewHandler(map[model.ScheduleStatus]string{
		model.ScheduleCompleted: `echo "$DBR_ORG_ID $DBR_SCHEDULE_ID $DBR_FROM_STATUS->$DBR_TO_STATUS@$DBR_POSITION #$DBR_EVENT_ID"`,
	}, time.Second, testLogger())

	res, ran := h.HandleEvent(context.Background(), transition(t, "sch-1", model.SchedulePostConstraint, model.ScheduleCompleted, 3))
	if !ran {
		t.Fatal("expected hook to run")
	}
	if res.Err != nil {
		t.Fatalf("hook error: %v", res.Err)
	}
	if want := "org-1 sch-1 post_constraint->completed@3 #42"; res.Output != want {
		t.Errorf("output = %q, want %q", res.Output, want)
	}
}

func TestHandleEvent_NoHookForStatus(t *testing.T) {
	h := NewHandler(map[model.ScheduleStatus]string{
		model.ScheduleCompleted: "echo done",
	}, time.Second, testLogger())

	if _, ran := h.HandleEvent(context.Background(), transition(t, "sch-1", model.SchedulePreConstraint, model.SchedulePostConstraint, 0)); ran {
		t.Error("no hook is configured for post_constraint")
	}
}

func TestHandleEvent_OtherTopicIgnored(t *testing.T) {
	h := NewHandler(map[model.ScheduleStatus]string{
		model.ScheduleCompleted: "echo done",
	}, time.Second, testLogger())

	ev := transition(t, "sch-1", model.SchedulePostConstraint, model.ScheduleCompleted, 2)
	ev.Topic = events.TopicScheduleCreated
	if _, ran := h.HandleEvent(context.Background(), ev); ran {
		t.Error("only transition events trigger hooks")
	}

	ev = transition(t, "sch-1", model.SchedulePostConstraint, model.ScheduleCompleted, 2)
	ev.Payload = json.RawMessage(`"not an object"`)
	if _, ran := h.HandleEvent(context.Background(), ev); ran {
		t.Error("undecodable payload should be skipped")
	}
}

func TestHandleEvent_FailingCommand(t *testing.T) {
	h := NewHandler(map[model.ScheduleStatus]string{
		model.SchedulePreConstraint: "echo nope >&2; exit 3",
	}, time.Second, testLogger())

	res, ran := h.HandleEvent(context.Background(), transition(t, "sch-1", model.SchedulePlanning, model.SchedulePreConstraint, -2))
	if !ran {
		t.Fatal("expected hook to run")
	}
	if res.Err == nil || res.ExitCode != 3 {
		t.Fatalf("err = %v, exit code = %d, want exit 3", res.Err, res.ExitCode)
	}
	if res.Output != "nope" {
		t.Errorf("output = %q, want stderr fallback %q", res.Output, "nope")
	}
}

func TestExecute_Timeout(t *testing.T) {
	start := time.Now()
	res := Execute(context.Background(), "sleep 5", 50*time.Millisecond, nil)
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Execute took %v, timeout was not enforced", elapsed)
	}
}

func TestStartSubscriber(t *testing.T) {
	out := filepath.Join(t.TempDir(), "hooks.log")
	h := NewHandler(map[model.ScheduleStatus]string{
		model.ScheduleCompleted: `echo "$DBR_SCHEDULE_ID" >> "` + out + `"`,
	}, time.Second, testLogger())

	sub := &fakeSubscriber{ch: make(chan *model.Event, 2)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.StartSubscriber(ctx, sub) }()

	sub.ch <- transition(t, "sch-1", model.SchedulePostConstraint, model.ScheduleCompleted, 2)
	sub.ch <- transition(t, "sch-2", model.SchedulePostConstraint, model.ScheduleCompleted, 2)

	deadline := time.Now().Add(5 * time.Second)
	var got string
	for time.Now().Before(deadline) {
		data, _ := os.ReadFile(out)
		got = string(data)
		if strings.Count(got, "\n") >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("StartSubscriber: %v", err)
	}

	if got != "sch-1\nsch-2\n" {
		t.Errorf("hook log = %q", got)
	}
	if want := "dbr.*.schedule.transitioned"; sub.pattern != want {
		t.Errorf("pattern = %q, want %q", sub.pattern, want)
	}
}

func TestStartSubscriber_ClosedChannel(t *testing.T) {
	sub := &fakeSubscriber{ch: make(chan *model.Event)}
	close(sub.ch)
	h := NewHandler(nil, time.Second, testLogger())
	if err := h.StartSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("StartSubscriber: %v", err)
	}
}

func TestStartSubscriber_SubscribeError(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("no connection")}
	h := NewHandler(nil, time.Second, testLogger())
	err := h.StartSubscriber(context.Background(), sub)
	if err == nil || !strings.Contains(err.Error(), "no connection") {
		t.Fatalf("err = %v", err)
	}
}
