// Package server exposes the scheduling service over HTTP/JSON and gRPC.
// Both transports call the same Server methods; errors are classified once
// by the api package and rendered per transport.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rnwolf/dbr/internal/depgraph"
	"github.com/rnwolf/dbr/internal/events"
	"github.com/rnwolf/dbr/internal/idgen"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
	"github.com/rnwolf/dbr/internal/store"
)

// Server implements the service operations shared by both transports.
type Server struct {
	store     store.Store
	engine    *scheduling.Engine
	graph     *depgraph.Validator
	publisher events.Publisher
	hub       *eventHub
	logger    *slog.Logger
	newID     func(idgen.Prefix) (string, error)
	newEvent  func() (string, error)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithIDGenerator replaces the entity id generator.
func WithIDGenerator(fn func(idgen.Prefix) (string, error)) Option {
	return func(s *Server) { s.newID = fn }
}

// New returns a Server over the store and engine. p may be nil, in which
// case events are only recorded and streamed.
func New(st store.Store, engine *scheduling.Engine, p events.Publisher, opts ...Option) *Server {
	if p == nil {
		p = events.NoopPublisher{}
	}
	s := &Server{
		store:     st,
		engine:    engine,
		graph:     depgraph.New(st),
		publisher: p,
		logger:    slog.Default(),
		newID:     idgen.New,
		newEvent:  idgen.EventID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newEventHub(s.logger)
	return s
}

// now is the scheduling clock's current instant, used for entity timestamps.
func (s *Server) now() time.Time {
	return s.engine.Clock().Now()
}

// recordAndPublish persists an event, publishes it to the bus and fans it
// out to event streams. All three are best-effort; failures are logged and
// never fail the caller, whose change is already committed.
func (s *Server) recordAndPublish(ctx context.Context, topic, orgID, entityID string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "entity_id", entityID, "err", err)
		return
	}
	id, err := s.newEvent()
	if err != nil {
		s.logger.Warn("failed to allocate event id", "topic", topic, "err", err)
		return
	}
	ev := &model.Event{
		ID:             id,
		Topic:          topic,
		OrganizationID: orgID,
		EntityID:       entityID,
		Payload:        data,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.RecordEvent(ctx, ev); err != nil {
		s.logger.Warn("failed to record event", "topic", topic, "entity_id", entityID, "err", err)
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "entity_id", entityID, "err", err)
	}
	s.hub.publish(ev)
}
