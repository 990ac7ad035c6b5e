// Package clock provides the logical time source that schedules advance on.
//
// Simulated time only moves when a board is ticked, so dates stamped on
// schedules are deterministic and replayable.
package clock

import (
	"sync"
	"time"
)

// DefaultStep is the length of one time unit: a week.
const DefaultStep = 7 * 24 * time.Hour

// Source is the injectable time provider used by the scheduling engine.
type Source interface {
	// Now returns the current logical instant.
	Now() time.Time
	// Advance moves the clock forward by one time unit and returns the new instant.
	Advance() time.Time
}

// Logical is a Source that starts at a fixed instant and moves by Step on
// each Advance. It is safe for concurrent use.
type Logical struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// Compile-time check that Logical implements Source.
var _ Source = (*Logical)(nil)

// NewLogical creates a clock starting at start that advances by step.
// A non-positive step falls back to DefaultStep.
func NewLogical(start time.Time, step time.Duration) *Logical {
	if step <= 0 {
		step = DefaultStep
	}
	return &Logical{now: start.UTC(), step: step}
}

// Now returns the current logical instant.
func (c *Logical) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by one step.
func (c *Logical) Advance() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}
