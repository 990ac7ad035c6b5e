package scheduling

import (
	"fmt"

	"github.com/rnwolf/dbr/internal/model"
)

// Zone is a region of a buffer board.
type Zone string

const (
	ZonePreConstraint  Zone = "pre_constraint"  // position < 0
	ZoneConstraint     Zone = "constraint"      // position == 0, the drum
	ZonePostConstraint Zone = "post_constraint" // 0 < position <= post buffer size
	ZoneExit           Zone = "exit"            // past the post buffer: done
)

// ClassifyZone maps a board position to its zone. It is the only place
// that interprets positions; creation, advancement and analytics all go
// through it.
func ClassifyZone(board *model.BoardConfig, position int) Zone {
	switch {
	case position < 0:
		return ZonePreConstraint
	case position == 0:
		return ZoneConstraint
	case position <= board.PostConstraintBufferSize:
		return ZonePostConstraint
	default:
		return ZoneExit
	}
}

// ValidatePosition checks that a schedule's position and status agree with
// its board: active schedules sit on the board, completed ones have left it.
func ValidatePosition(board *model.BoardConfig, s *model.Schedule) error {
	zone := ClassifyZone(board, s.TimeUnitPosition)
	if s.Status == model.ScheduleCompleted {
		if zone != ZoneExit {
			return fmt.Errorf("schedule %s is completed at position %d, still on board %s",
				s.ID, s.TimeUnitPosition, board.ID)
		}
		return nil
	}
	if zone == ZoneExit {
		return fmt.Errorf("schedule %s is %s at position %d, past board %s (post buffer %d)",
			s.ID, s.Status, s.TimeUnitPosition, board.ID, board.PostConstraintBufferSize)
	}
	if s.TimeUnitPosition < board.EntryPosition() {
		return fmt.Errorf("schedule %s at position %d is before board %s entry %d",
			s.ID, s.TimeUnitPosition, board.ID, board.EntryPosition())
	}
	return nil
}
