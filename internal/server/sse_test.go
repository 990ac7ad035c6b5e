package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/model"
)

func hubEvent(org, topic, entity string) *model.Event {
	return &model.Event{
		ID:             "ev-" + entity,
		Topic:          topic,
		OrganizationID: org,
		EntityID:       entity,
		Payload:        json.RawMessage(`{}`),
	}
}

func testHub() *eventHub {
	return newEventHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func receive(t *testing.T, sub *streamSub) streamEvent {
	t.Helper()
	select {
	case se := <-sub.ch:
		return se
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return streamEvent{}
	}
}

func expectNothing(t *testing.T, sub *streamSub) {
	t.Helper()
	select {
	case se := <-sub.ch:
		t.Fatalf("unexpected event %d %s/%s", se.seq, se.orgID, se.topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventHub_PublishAndReceive(t *testing.T) {
	hub := testHub()
	sub, missed := hub.attach(streamFilter{}, 0, false)
	defer hub.detach(sub)
	if missed != nil {
		t.Fatalf("fresh stream got backlog %v", missed)
	}

	hub.publish(hubEvent("org-1", events.TopicScheduleCreated, "sch-1"))

	se := receive(t, sub)
	if se.seq != 1 || se.topic != events.TopicScheduleCreated {
		t.Fatalf("got %d %s", se.seq, se.topic)
	}
	var got model.Event
	if err := json.Unmarshal(se.data, &got); err != nil {
		t.Fatalf("data is not an event: %v", err)
	}
	if got.EntityID != "sch-1" {
		t.Fatalf("entity = %q", got.EntityID)
	}
}

func TestEventHub_Filtering(t *testing.T) {
	hub := testHub()
	sub, _ := hub.attach(streamFilter{orgID: "org-1", topics: []string{"dbr.schedule.*"}}, 0, false)
	defer hub.detach(sub)

	hub.publish(hubEvent("org-1", events.TopicWorkItemCreated, "wi-1"))
	hub.publish(hubEvent("org-2", events.TopicScheduleCreated, "sch-2"))
	hub.publish(hubEvent("org-1", events.TopicScheduleCreated, "sch-1"))

	if se := receive(t, sub); se.orgID != "org-1" || se.seq != 3 {
		t.Fatalf("got %d %s/%s", se.seq, se.orgID, se.topic)
	}
	expectNothing(t, sub)
}

func TestEventHub_Detach(t *testing.T) {
	hub := testHub()
	sub, _ := hub.attach(streamFilter{}, 0, false)
	hub.detach(sub)

	hub.publish(hubEvent("org-1", events.TopicScheduleCreated, "sch-1"))
	expectNothing(t, sub)
}

func TestEventHub_Resume(t *testing.T) {
	hub := testHub()
	for i := range 5 {
		hub.publish(hubEvent("org-1", events.TopicTimeAdvanced, fmt.Sprint(i)))
	}
	hub.publish(hubEvent("org-2", events.TopicTimeAdvanced, "other"))

	sub, missed := hub.attach(streamFilter{orgID: "org-1"}, 2, true)
	defer hub.detach(sub)
	if len(missed) != 3 || missed[0].seq != 3 || missed[2].seq != 5 {
		t.Fatalf("missed = %v, want seq 3..5", missed)
	}

	// Live delivery continues after the backlog without overlap.
	hub.publish(hubEvent("org-1", events.TopicTimeAdvanced, "live"))
	if se := receive(t, sub); se.seq != 7 {
		t.Fatalf("live seq = %d, want 7", se.seq)
	}
}

func TestEventHub_BacklogLimit(t *testing.T) {
	hub := testHub()
	for range replayLimit + 100 {
		hub.publish(hubEvent("org-1", events.TopicTimeAdvanced, "x"))
	}

	sub, missed := hub.attach(streamFilter{}, 0, true)
	hub.detach(sub)
	if len(missed) != replayLimit {
		t.Fatalf("backlog = %d, want %d", len(missed), replayLimit)
	}
	if missed[0].seq != 101 {
		t.Fatalf("oldest seq = %d, want 101", missed[0].seq)
	}
}

func TestEventHub_SlowSubscriberDrops(t *testing.T) {
	hub := testHub()
	sub, _ := hub.attach(streamFilter{}, 0, false)
	for range subscriberBuffer + 5 {
		hub.publish(hubEvent("org-1", events.TopicTimeAdvanced, "x"))
	}
	if n := hub.detach(sub); n != 5 {
		t.Fatalf("dropped = %d, want 5", n)
	}
}

// runStream serves one SSE request until fn has run, then cancels it and
// returns what was written.
func runStream(t *testing.T, ts *testServer, target, lastID string, fn func()) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", target, nil).WithContext(ctx)
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ts.handler.ServeHTTP(rec, req)
	}()

	time.Sleep(50 * time.Millisecond)
	if fn != nil {
		fn()
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	return rec.Body.String()
}

func TestHandleEventStream_RecordAndPublish(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	body := runStream(t, ts, "/v1/events/stream?org=org-1", "", func() {
		ts.srv.recordAndPublish(ctx, events.TopicScheduleCreated, "org-1", "sch-rp", events.ScheduleCreated{})
		ts.srv.recordAndPublish(ctx, events.TopicScheduleCreated, "org-2", "sch-other", events.ScheduleCreated{})
	})

	if !strings.HasPrefix(body, "retry:2000\n\n") {
		t.Fatalf("stream should open with a retry hint, got:\n%s", body)
	}
	if !strings.Contains(body, "event:dbr.schedule.created") || !strings.Contains(body, `"entity_id":"sch-rp"`) {
		t.Fatalf("expected sch-rp event, got:\n%s", body)
	}
	if strings.Contains(body, "sch-other") {
		t.Fatalf("expected org-2 event to be filtered, got:\n%s", body)
	}

	evts, err := ts.store.ListEvents(ctx, "org-1", 10)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evts) != 1 || evts[0].EntityID != "sch-rp" {
		t.Fatalf("expected recorded event for sch-rp, got %+v", evts)
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	ts := newTestServer(t)

	body := runStream(t, ts, "/v1/events/stream?topics=dbr.time.*", "", func() {
		ts.srv.hub.publish(hubEvent("org-1", events.TopicScheduleCreated, "sch-1"))
		ts.srv.hub.publish(hubEvent("org-1", events.TopicTimeAdvanced, "org-1"))
	})

	if strings.Contains(body, "event:"+events.TopicScheduleCreated) {
		t.Fatalf("expected schedule events to be filtered, got:\n%s", body)
	}
	if !strings.Contains(body, "event:"+events.TopicTimeAdvanced) {
		t.Fatalf("expected time event, got:\n%s", body)
	}
}

func TestHandleEventStream_Replay(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.hub.publish(hubEvent("org-1", events.TopicScheduleCreated, "sch-1"))
	ts.srv.hub.publish(hubEvent("org-1", events.TopicTimeAdvanced, "org-1"))

	body := runStream(t, ts, "/v1/events/stream", "1", nil)

	scanner := bufio.NewScanner(strings.NewReader(body))
	var ids []string
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			ids = append(ids, strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}

	if len(ids) != 1 || ids[0] != "2" {
		t.Fatalf("expected only event 2 to be replayed, got ids %v", ids)
	}
	if event != events.TopicTimeAdvanced {
		t.Fatalf("expected event=%s, got %q", events.TopicTimeAdvanced, event)
	}
	if !json.Valid([]byte(data)) {
		t.Fatalf("expected valid JSON data, got %q", data)
	}
}

func TestHandleEventStream_NoResumeWithoutHeader(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.hub.publish(hubEvent("org-1", events.TopicScheduleCreated, "sch-1"))

	body := runStream(t, ts, "/v1/events/stream", "", nil)
	if strings.Contains(body, "id:") {
		t.Fatalf("fresh stream should not replay, got:\n%s", body)
	}
}
