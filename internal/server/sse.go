package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/model"
)

const (
	// replayLimit caps the events kept for Last-Event-ID resumption.
	replayLimit = 1000

	// subscriberBuffer is how far a stream may fall behind before events
	// are dropped for it.
	subscriberBuffer = 64

	keepaliveInterval = 15 * time.Second

	// retryMillis is the reconnection delay advertised to browsers.
	retryMillis = 2000
)

// streamEvent is one sequenced event as sent on the SSE stream.
type streamEvent struct {
	seq   uint64
	topic string
	orgID string
	data  []byte // JSON-encoded model.Event
}

// streamFilter selects the events one stream receives. Empty fields
// match everything; topics are NATS-style patterns.
type streamFilter struct {
	orgID  string
	topics []string
}

func (f streamFilter) match(ev streamEvent) bool {
	if f.orgID != "" && f.orgID != ev.orgID {
		return false
	}
	if len(f.topics) == 0 {
		return true
	}
	for _, p := range f.topics {
		if events.MatchTopic(p, ev.topic) {
			return true
		}
	}
	return false
}

type streamSub struct {
	filter  streamFilter
	ch      chan streamEvent
	dropped int
}

// eventHub sequences recorded events and fans them out to SSE streams.
// The most recent replayLimit events are kept for reconnecting clients.
type eventHub struct {
	mu      sync.Mutex
	seq     uint64
	backlog []streamEvent // oldest first
	subs    map[*streamSub]struct{}
	logger  *slog.Logger
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		subs:   make(map[*streamSub]struct{}),
		logger: logger,
	}
}

// publish assigns the next sequence number to ev and delivers it to every
// matching stream. A stream whose buffer is full misses the event.
func (h *eventHub) publish(ev *model.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Warn("failed to encode event for stream", "topic", ev.Topic, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	se := streamEvent{seq: h.seq, topic: ev.Topic, orgID: ev.OrganizationID, data: data}
	if len(h.backlog) == replayLimit {
		copy(h.backlog, h.backlog[1:])
		h.backlog = h.backlog[:replayLimit-1]
	}
	h.backlog = append(h.backlog, se)

	for sub := range h.subs {
		if !sub.filter.match(se) {
			continue
		}
		select {
		case sub.ch <- se:
		default:
			sub.dropped++
		}
	}
}

// attach registers a stream and returns the backlog it missed after
// lastSeq (all of it when resume is false, none). Registration and the
// backlog snapshot happen atomically, so no event is both replayed and
// delivered live.
func (h *eventHub) attach(f streamFilter, lastSeq uint64, resume bool) (*streamSub, []streamEvent) {
	sub := &streamSub{filter: f, ch: make(chan streamEvent, subscriberBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}

	if !resume {
		return sub, nil
	}
	var missed []streamEvent
	for _, se := range h.backlog {
		if se.seq > lastSeq && f.match(se) {
			missed = append(missed, se)
		}
	}
	return sub, missed
}

// detach unregisters a stream and reports how many events it dropped.
func (h *eventHub) detach(sub *streamSub) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, sub)
	return sub.dropped
}

// handleEventStream serves GET /v1/events/stream?org=&topics= as
// server-sent events. A Last-Event-ID header resumes after that sequence
// number.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	q := r.URL.Query()
	filter := streamFilter{orgID: q.Get("org"), topics: splitList(q.Get("topics"))}
	lastSeq, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	sub, missed := s.hub.attach(filter, lastSeq, err == nil)
	defer func() {
		if n := s.hub.detach(sub); n > 0 {
			s.logger.Warn("event stream fell behind", "org_id", filter.orgID, "dropped", n)
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "retry:%d\n\n", retryMillis)
	for _, se := range missed {
		writeStreamEvent(w, se)
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case se := <-sub.ch:
			writeStreamEvent(w, se)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w http.ResponseWriter, se streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", se.seq, se.topic, se.data)
}
