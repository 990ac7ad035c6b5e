package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rnwolf/dbr/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanAll drains rows through scan.
func scanAll[T any](rows *sql.Rows, scan func(scannable) (*T, error)) ([]*T, error) {
	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanOrganization(row scannable) (*model.Organization, error) {
	var o model.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanCCR(row scannable) (*model.CCR, error) {
	var c model.CCR
	if err := row.Scan(&c.ID, &c.OrganizationID, &c.Name, &c.CapacityPerTimeUnit, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanBoardConfig(row scannable) (*model.BoardConfig, error) {
	var b model.BoardConfig
	err := row.Scan(
		&b.ID,
		&b.OrganizationID,
		&b.Name,
		&b.CCRID,
		&b.PreConstraintBufferSize,
		&b.PostConstraintBufferSize,
		&b.TimeUnit,
		&b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// scanWorkItem scans a single row into a model.WorkItem.
// The row must contain columns in the order defined by workItemColumns.
func scanWorkItem(row scannable) (*model.WorkItem, error) {
	return scanWorkItemInto(row)
}

// scanWorkItemWithTotal scans a row that has a leading total_count column
// followed by the work item columns. Used with COUNT(*) OVER().
func scanWorkItemWithTotal(row scannable) (*model.WorkItem, int, error) {
	var total int
	w, err := scanWorkItemInto(row, &total)
	if err != nil {
		return nil, 0, err
	}
	return w, total, nil
}

func scanWorkItemInto(row scannable, lead ...any) (*model.WorkItem, error) {
	var (
		w           model.WorkItem
		description sql.NullString
		hours       []byte
	)
	dest := append(lead,
		&w.ID,
		&w.OrganizationID,
		&w.Title,
		&description,
		&w.Status,
		&hours,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	w.Description = description.String
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &w.CCRHoursRequired); err != nil {
			return nil, fmt.Errorf("decode ccr_hours_required for %s: %w", w.ID, err)
		}
	}
	return &w, nil
}

func scanDependency(row scannable) (*model.WorkItemDependency, error) {
	var d model.WorkItemDependency
	err := row.Scan(&d.ID, &d.OrganizationID, &d.DependentID, &d.PrerequisiteID, &d.Type, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanSchedule(row scannable) (*model.Schedule, error) {
	var (
		s          model.Schedule
		ids        []byte
		released   sql.NullTime
		completion sql.NullTime
	)
	err := row.Scan(
		&s.ID,
		&s.OrganizationID,
		&s.BoardConfigID,
		&s.CCRID,
		&s.Status,
		&s.TimeUnitPosition,
		&ids,
		&s.TotalCCRHours,
		&released,
		&completion,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if err := json.Unmarshal(ids, &s.WorkItemIDs); err != nil {
			return nil, fmt.Errorf("decode work_item_ids for %s: %w", s.ID, err)
		}
	}
	s.ReleasedDate = timePtr(released)
	s.CompletionDate = timePtr(completion)
	return &s, nil
}

func scanEvent(row scannable) (*model.Event, error) {
	var (
		e       model.Event
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.OrganizationID, &e.EntityID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// nullTimePtr converts a *time.Time to a sql.NullTime.
func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonText encodes v for a JSONB (Postgres) or TEXT (SQLite) column.
func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(b), nil
}

// rawText converts json.RawMessage to a column value; empty is null.
func rawText(m json.RawMessage) any {
	if len(m) == 0 {
		return nil
	}
	return string(m)
}
