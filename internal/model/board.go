package model

import "time"

// DefaultTimeUnit is the label used when a board does not name its time unit.
const DefaultTimeUnit = "week"

// BoardConfig describes the buffer board around one CCR. Positions run from
// -PreConstraintBufferSize up to PostConstraintBufferSize with the CCR at 0.
type BoardConfig struct {
	ID                       string    `json:"id"`
	OrganizationID           string    `json:"organization_id"`
	Name                     string    `json:"name"`
	CCRID                    string    `json:"ccr_id"`
	PreConstraintBufferSize  int       `json:"pre_constraint_buffer_size"`
	PostConstraintBufferSize int       `json:"post_constraint_buffer_size"`
	TimeUnit                 string    `json:"time_unit"`
	CreatedAt                time.Time `json:"created_at"`
}

// EntryPosition is where new schedules are placed.
func (b *BoardConfig) EntryPosition() int {
	return -b.PreConstraintBufferSize
}
