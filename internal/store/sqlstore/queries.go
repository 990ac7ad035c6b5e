package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

const (
	organizationColumns = `id, name, created_at`
	ccrColumns          = `id, organization_id, name, capacity_per_time_unit, created_at`
	boardColumns        = `id, organization_id, name, ccr_id, pre_constraint_buffer_size,
	post_constraint_buffer_size, time_unit, created_at`
	workItemColumns = `id, organization_id, title, description, status,
	ccr_hours_required, created_at, updated_at`
	dependencyColumns = `id, organization_id, dependent_id, prerequisite_id, dependency_type, created_at`
	scheduleColumns   = `id, organization_id, board_config_id, ccr_id, status,
	time_unit_position, work_item_ids, total_ccr_hours, released_date, completion_date,
	created_at, updated_at`
	eventColumns = `id, topic, organization_id, entity_id, actor, payload, created_at`
)

// noLimit stands in for "all rows" when only an offset is given.
const noLimit = 1<<31 - 1

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// argList builds placeholders in the order arguments are appended, so the
// generated SQL always numbers them ascending.
type argList struct {
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return fmt.Sprintf("$%d", len(a.args))
}

func (a *argList) in(vals []string) string {
	placeholders := make([]string, len(vals))
	for i, v := range vals {
		placeholders[i] = a.add(v)
	}
	return "(" + strings.Join(placeholders, ", ") + ")"
}

func whereSQL(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

// notFound maps sql.ErrNoRows to store.ErrNotFound with context.
func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

// requireRow reports store.ErrNotFound when an UPDATE or DELETE matched nothing.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

// --- organizations ---

func queryCreateOrganization(ctx context.Context, db executor, o *model.Organization) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO organizations (`+organizationColumns+`) VALUES ($1, $2, $3)`,
		o.ID, o.Name, o.CreatedAt)
	return err
}

func queryGetOrganization(ctx context.Context, db executor, id string) (*model.Organization, error) {
	row := db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = $1`, id)
	o, err := scanOrganization(row)
	if err != nil {
		return nil, notFound(err, "organization", id)
	}
	return o, nil
}

func queryListOrganizations(ctx context.Context, db executor) ([]*model.Organization, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanOrganization)
}

// --- CCRs ---

func queryCreateCCR(ctx context.Context, db executor, c *model.CCR) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO ccrs (`+ccrColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.OrganizationID, c.Name, c.CapacityPerTimeUnit, c.CreatedAt)
	return err
}

func queryGetCCR(ctx context.Context, db executor, id string) (*model.CCR, error) {
	row := db.QueryRowContext(ctx, `SELECT `+ccrColumns+` FROM ccrs WHERE id = $1`, id)
	c, err := scanCCR(row)
	if err != nil {
		return nil, notFound(err, "ccr", id)
	}
	return c, nil
}

func queryListCCRs(ctx context.Context, db executor, orgID string) ([]*model.CCR, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+ccrColumns+` FROM ccrs WHERE organization_id = $1 ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list ccrs: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanCCR)
}

// --- board configs ---

func queryCreateBoardConfig(ctx context.Context, db executor, b *model.BoardConfig) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO board_configs (`+boardColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.OrganizationID, b.Name, b.CCRID,
		b.PreConstraintBufferSize, b.PostConstraintBufferSize, b.TimeUnit, b.CreatedAt)
	return err
}

func queryGetBoardConfig(ctx context.Context, db executor, id string) (*model.BoardConfig, error) {
	row := db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM board_configs WHERE id = $1`, id)
	b, err := scanBoardConfig(row)
	if err != nil {
		return nil, notFound(err, "board config", id)
	}
	return b, nil
}

func queryListBoardConfigs(ctx context.Context, db executor, orgID string) ([]*model.BoardConfig, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+boardColumns+` FROM board_configs WHERE organization_id = $1 ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list board configs: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanBoardConfig)
}

// --- work items ---

func queryCreateWorkItem(ctx context.Context, db executor, w *model.WorkItem) error {
	hours, err := jsonText(w.CCRHoursRequired)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO work_items (`+workItemColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.OrganizationID, w.Title, nullString(w.Description), string(w.Status),
		hours, w.CreatedAt, w.UpdatedAt)
	return err
}

func queryGetWorkItem(ctx context.Context, db executor, id string) (*model.WorkItem, error) {
	row := db.QueryRowContext(ctx, `SELECT `+workItemColumns+` FROM work_items WHERE id = $1`, id)
	w, err := scanWorkItem(row)
	if err != nil {
		return nil, notFound(err, "work item", id)
	}
	return w, nil
}

func queryListWorkItems(ctx context.Context, db executor, filter model.WorkItemFilter) ([]*model.WorkItem, int, error) {
	var (
		clauses []string
		args    argList
	)

	if filter.OrganizationID != "" {
		clauses = append(clauses, "organization_id = "+args.add(filter.OrganizationID))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		clauses = append(clauses, "status IN "+args.in(statuses))
	}
	if len(filter.IDs) > 0 {
		clauses = append(clauses, "id IN "+args.in(filter.IDs))
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	q := "SELECT COUNT(*) OVER() AS total_count, " + workItemColumns + " FROM work_items" +
		whereSQL(clauses) + " ORDER BY created_at, id"
	if filter.Limit > 0 {
		q += " LIMIT " + args.add(filter.Limit)
	}
	if filter.Offset > 0 {
		if filter.Limit <= 0 {
			// SQLite only accepts OFFSET after a LIMIT.
			q += " LIMIT " + args.add(noLimit)
		}
		q += " OFFSET " + args.add(filter.Offset)
	}

	rows, err := db.QueryContext(ctx, q, args.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list work items: %w", err)
	}
	defer rows.Close()

	var (
		items []*model.WorkItem
		total int
	)
	for rows.Next() {
		w, t, err := scanWorkItemWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan work items: %w", err)
		}
		total = t
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate work items: %w", err)
	}
	return items, total, nil
}

func queryUpdateWorkItem(ctx context.Context, db executor, w *model.WorkItem) error {
	hours, err := jsonText(w.CCRHoursRequired)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `
		UPDATE work_items SET
			title = $1, description = $2, status = $3, ccr_hours_required = $4, updated_at = $5
		WHERE id = $6`,
		w.Title, nullString(w.Description), string(w.Status), hours, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("update work item %s: %w", w.ID, err)
	}
	return requireRow(res, "work item", w.ID)
}

// --- dependencies ---

func queryCreateDependency(ctx context.Context, db executor, d *model.WorkItemDependency) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO work_item_dependencies (`+dependencyColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.OrganizationID, d.DependentID, d.PrerequisiteID, string(d.Type), d.CreatedAt)
	return err
}

func queryGetDependency(ctx context.Context, db executor, id string) (*model.WorkItemDependency, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dependencyColumns+` FROM work_item_dependencies WHERE id = $1`, id)
	d, err := scanDependency(row)
	if err != nil {
		return nil, notFound(err, "dependency", id)
	}
	return d, nil
}

func queryListDependencies(ctx context.Context, db executor, filter model.DependencyFilter) ([]*model.WorkItemDependency, error) {
	var (
		clauses []string
		args    argList
	)
	if filter.OrganizationID != "" {
		clauses = append(clauses, "organization_id = "+args.add(filter.OrganizationID))
	}
	if filter.DependentID != "" {
		clauses = append(clauses, "dependent_id = "+args.add(filter.DependentID))
	}
	if filter.PrerequisiteID != "" {
		clauses = append(clauses, "prerequisite_id = "+args.add(filter.PrerequisiteID))
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+dependencyColumns+` FROM work_item_dependencies`+whereSQL(clauses)+` ORDER BY created_at, id`,
		args.args...)
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanDependency)
}

func queryDeleteDependency(ctx context.Context, db executor, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM work_item_dependencies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dependency %s: %w", id, err)
	}
	return requireRow(res, "dependency", id)
}

// --- schedules ---

func queryCreateSchedule(ctx context.Context, db executor, s *model.Schedule) error {
	ids, err := jsonText(s.WorkItemIDs)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO schedules (`+scheduleColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.OrganizationID, s.BoardConfigID, s.CCRID, string(s.Status),
		s.TimeUnitPosition, ids, s.TotalCCRHours,
		nullTimePtr(s.ReleasedDate), nullTimePtr(s.CompletionDate),
		s.CreatedAt, s.UpdatedAt)
	return err
}

func queryGetSchedule(ctx context.Context, db executor, id string) (*model.Schedule, error) {
	row := db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	s, err := scanSchedule(row)
	if err != nil {
		return nil, notFound(err, "schedule", id)
	}
	return s, nil
}

func queryListSchedules(ctx context.Context, db executor, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	var (
		clauses []string
		args    argList
	)
	if filter.OrganizationID != "" {
		clauses = append(clauses, "organization_id = "+args.add(filter.OrganizationID))
	}
	if filter.BoardConfigID != "" {
		clauses = append(clauses, "board_config_id = "+args.add(filter.BoardConfigID))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		clauses = append(clauses, "status IN "+args.in(statuses))
	}
	if filter.Position != nil {
		clauses = append(clauses, "time_unit_position = "+args.add(*filter.Position))
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM schedules`+whereSQL(clauses)+` ORDER BY created_at, id`,
		args.args...)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanSchedule)
}

func queryUpdateSchedule(ctx context.Context, db executor, s *model.Schedule) error {
	res, err := db.ExecContext(ctx, `
		UPDATE schedules SET
			status = $1, time_unit_position = $2, released_date = $3,
			completion_date = $4, updated_at = $5
		WHERE id = $6`,
		string(s.Status), s.TimeUnitPosition,
		nullTimePtr(s.ReleasedDate), nullTimePtr(s.CompletionDate),
		s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", s.ID, err)
	}
	return requireRow(res, "schedule", s.ID)
}

// --- events ---

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Topic, e.OrganizationID, e.EntityID, nullString(e.Actor), rawText(e.Payload), e.CreatedAt)
	return err
}

func queryListEvents(ctx context.Context, db executor, orgID string, limit int) ([]*model.Event, error) {
	var args argList
	q := `SELECT ` + eventColumns + ` FROM events WHERE organization_id = ` + args.add(orgID) +
		` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		q += " LIMIT " + args.add(limit)
	}
	rows, err := db.QueryContext(ctx, q, args.args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanAll(rows, scanEvent)
}
