package scheduling

import "github.com/rnwolf/dbr/internal/model"

// Effect is a side effect applied when a transition fires.
type Effect uint8

const (
	// EffectRelease stamps ReleasedDate if it is unset.
	EffectRelease Effect = 1 << iota
	// EffectComplete stamps CompletionDate if it is unset.
	EffectComplete
)

// Has reports whether e includes f.
func (e Effect) Has(f Effect) bool {
	return e&f != 0
}

type transitionKey struct {
	from model.ScheduleStatus
	zone Zone
}

type transitionResult struct {
	to      model.ScheduleStatus
	effects Effect
}

// transitions is the schedule state machine keyed by the current status and
// the zone of the new position. Pairs missing from the table leave the
// status unchanged. Completed never appears as a source: it is terminal.
var transitions = map[transitionKey]transitionResult{
	{model.SchedulePlanning, ZonePreConstraint}: {model.SchedulePlanning, 0},
	{model.SchedulePlanning, ZoneConstraint}:    {model.SchedulePreConstraint, 0},
	// A board without a pre buffer starts schedules on the drum, so they can
	// leave planning straight into the post buffer.
	{model.SchedulePlanning, ZonePostConstraint}: {model.SchedulePostConstraint, EffectRelease},
	{model.SchedulePlanning, ZoneExit}:           {model.ScheduleCompleted, EffectRelease | EffectComplete},

	{model.SchedulePreConstraint, ZoneConstraint}:     {model.SchedulePreConstraint, 0},
	{model.SchedulePreConstraint, ZonePostConstraint}: {model.SchedulePostConstraint, EffectRelease},
	{model.SchedulePreConstraint, ZoneExit}:           {model.ScheduleCompleted, EffectRelease | EffectComplete},

	{model.SchedulePostConstraint, ZonePostConstraint}: {model.SchedulePostConstraint, 0},
	{model.SchedulePostConstraint, ZoneExit}:           {model.ScheduleCompleted, EffectComplete},
}

// Next looks up the transition for a schedule in status from that has moved
// into zone. ok is false when the pair is not in the table.
func Next(from model.ScheduleStatus, zone Zone) (to model.ScheduleStatus, effects Effect, ok bool) {
	r, ok := transitions[transitionKey{from, zone}]
	if !ok {
		return from, 0, false
	}
	return r.to, r.effects, true
}
