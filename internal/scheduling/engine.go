// Package scheduling moves schedules across Drum-Buffer-Rope boards.
//
// A schedule enters its board at -PreConstraintBufferSize, moves one
// position per tick, reaches the constraint (the drum) at 0 and completes
// once it has passed PostConstraintBufferSize. Status changes are driven by
// the transition table in transition.go and zones from ClassifyZone.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rnwolf/dbr/internal/clock"
	"github.com/rnwolf/dbr/internal/idgen"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// Engine creates and advances schedules. It is safe for concurrent use;
// per-organization atomicity comes from store transactions holding the
// organization lock.
//
// A tick reads the clock, commits and then advances the clock while
// holding timeMu, so no other tick or schedule creation observes the
// committed state paired with the old instant.
type Engine struct {
	store  store.Store
	clock  clock.Source
	logger *slog.Logger
	newID  func() (string, error)

	timeMu sync.RWMutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator replaces the schedule id generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(e *Engine) { e.newID = fn }
}

// New returns an Engine over s whose time comes from c.
func New(s store.Store, c clock.Source, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		clock:  c,
		logger: slog.Default(),
		newID:  func() (string, error) { return idgen.New(idgen.Schedule) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's time source.
func (e *Engine) Clock() clock.Source {
	return e.clock
}

// lookup wraps a store getter so store.ErrNotFound becomes a typed
// *model.NotFoundError naming the entity.
func lookup[T any](ctx context.Context, entity, id string, get func(context.Context, string) (*T, error)) (*T, error) {
	v, err := get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &model.NotFoundError{Entity: entity, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", entity, id, err)
	}
	return v, nil
}
