// Package sqlstore implements the store.Store interface on database/sql.
// PostgreSQL is the production backend; SQLite serves single-node setups.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// dialect captures the few statements that differ between backends.
// Every query uses $N placeholders in ascending order, which both
// lib/pq and go-sqlite3 bind positionally.
type dialect struct {
	name string
	// lockOrgSQL takes a transaction-scoped lock keyed by organization id.
	// Empty means the backend already serializes writers.
	lockOrgSQL string
}

var (
	postgresDialect = dialect{
		name:       "postgres",
		lockOrgSQL: `SELECT pg_advisory_xact_lock(hashtext($1))`,
	}
	sqliteDialect = dialect{name: "sqlite3"}
)

// SQLStore implements store.Store backed by a SQL database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Compile-time check that SQLStore implements store.Store.
var _ store.Store = (*SQLStore)(nil)

// Dialect returns the backend name ("postgres" or "sqlite3").
func (s *SQLStore) Dialect() string {
	return s.dialect.name
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	return queryCreateOrganization(ctx, s.db, org)
}

func (s *SQLStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return queryGetOrganization(ctx, s.db, id)
}

func (s *SQLStore) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	return queryListOrganizations(ctx, s.db)
}

func (s *SQLStore) CreateCCR(ctx context.Context, ccr *model.CCR) error {
	return queryCreateCCR(ctx, s.db, ccr)
}

func (s *SQLStore) GetCCR(ctx context.Context, id string) (*model.CCR, error) {
	return queryGetCCR(ctx, s.db, id)
}

func (s *SQLStore) ListCCRs(ctx context.Context, orgID string) ([]*model.CCR, error) {
	return queryListCCRs(ctx, s.db, orgID)
}

func (s *SQLStore) CreateBoardConfig(ctx context.Context, board *model.BoardConfig) error {
	return queryCreateBoardConfig(ctx, s.db, board)
}

func (s *SQLStore) GetBoardConfig(ctx context.Context, id string) (*model.BoardConfig, error) {
	return queryGetBoardConfig(ctx, s.db, id)
}

func (s *SQLStore) ListBoardConfigs(ctx context.Context, orgID string) ([]*model.BoardConfig, error) {
	return queryListBoardConfigs(ctx, s.db, orgID)
}

func (s *SQLStore) CreateWorkItem(ctx context.Context, item *model.WorkItem) error {
	return queryCreateWorkItem(ctx, s.db, item)
}

func (s *SQLStore) GetWorkItem(ctx context.Context, id string) (*model.WorkItem, error) {
	return queryGetWorkItem(ctx, s.db, id)
}

func (s *SQLStore) ListWorkItems(ctx context.Context, filter model.WorkItemFilter) ([]*model.WorkItem, int, error) {
	return queryListWorkItems(ctx, s.db, filter)
}

func (s *SQLStore) UpdateWorkItem(ctx context.Context, item *model.WorkItem) error {
	return queryUpdateWorkItem(ctx, s.db, item)
}

func (s *SQLStore) CreateDependency(ctx context.Context, dep *model.WorkItemDependency) error {
	return queryCreateDependency(ctx, s.db, dep)
}

func (s *SQLStore) GetDependency(ctx context.Context, id string) (*model.WorkItemDependency, error) {
	return queryGetDependency(ctx, s.db, id)
}

func (s *SQLStore) ListDependencies(ctx context.Context, filter model.DependencyFilter) ([]*model.WorkItemDependency, error) {
	return queryListDependencies(ctx, s.db, filter)
}

func (s *SQLStore) DeleteDependency(ctx context.Context, id string) error {
	return queryDeleteDependency(ctx, s.db, id)
}

func (s *SQLStore) CreateSchedule(ctx context.Context, sched *model.Schedule) error {
	return queryCreateSchedule(ctx, s.db, sched)
}

func (s *SQLStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	return queryGetSchedule(ctx, s.db, id)
}

func (s *SQLStore) ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	return queryListSchedules(ctx, s.db, filter)
}

func (s *SQLStore) UpdateSchedule(ctx context.Context, sched *model.Schedule) error {
	return queryUpdateSchedule(ctx, s.db, sched)
}

func (s *SQLStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *SQLStore) ListEvents(ctx context.Context, orgID string, limit int) ([]*model.Event, error) {
	return queryListEvents(ctx, s.db, orgID, limit)
}

// LockOrganization outside a transaction has nothing to hold the lock for.
func (s *SQLStore) LockOrganization(_ context.Context, _ string) error {
	return nil
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *SQLStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx, dialect: s.dialect}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx      *sql.Tx
	dialect dialect
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	return queryCreateOrganization(ctx, s.tx, org)
}

func (s *txStore) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return queryGetOrganization(ctx, s.tx, id)
}

func (s *txStore) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	return queryListOrganizations(ctx, s.tx)
}

func (s *txStore) CreateCCR(ctx context.Context, ccr *model.CCR) error {
	return queryCreateCCR(ctx, s.tx, ccr)
}

func (s *txStore) GetCCR(ctx context.Context, id string) (*model.CCR, error) {
	return queryGetCCR(ctx, s.tx, id)
}

func (s *txStore) ListCCRs(ctx context.Context, orgID string) ([]*model.CCR, error) {
	return queryListCCRs(ctx, s.tx, orgID)
}

func (s *txStore) CreateBoardConfig(ctx context.Context, board *model.BoardConfig) error {
	return queryCreateBoardConfig(ctx, s.tx, board)
}

func (s *txStore) GetBoardConfig(ctx context.Context, id string) (*model.BoardConfig, error) {
	return queryGetBoardConfig(ctx, s.tx, id)
}

func (s *txStore) ListBoardConfigs(ctx context.Context, orgID string) ([]*model.BoardConfig, error) {
	return queryListBoardConfigs(ctx, s.tx, orgID)
}

func (s *txStore) CreateWorkItem(ctx context.Context, item *model.WorkItem) error {
	return queryCreateWorkItem(ctx, s.tx, item)
}

func (s *txStore) GetWorkItem(ctx context.Context, id string) (*model.WorkItem, error) {
	return queryGetWorkItem(ctx, s.tx, id)
}

func (s *txStore) ListWorkItems(ctx context.Context, filter model.WorkItemFilter) ([]*model.WorkItem, int, error) {
	return queryListWorkItems(ctx, s.tx, filter)
}

func (s *txStore) UpdateWorkItem(ctx context.Context, item *model.WorkItem) error {
	return queryUpdateWorkItem(ctx, s.tx, item)
}

func (s *txStore) CreateDependency(ctx context.Context, dep *model.WorkItemDependency) error {
	return queryCreateDependency(ctx, s.tx, dep)
}

func (s *txStore) GetDependency(ctx context.Context, id string) (*model.WorkItemDependency, error) {
	return queryGetDependency(ctx, s.tx, id)
}

func (s *txStore) ListDependencies(ctx context.Context, filter model.DependencyFilter) ([]*model.WorkItemDependency, error) {
	return queryListDependencies(ctx, s.tx, filter)
}

func (s *txStore) DeleteDependency(ctx context.Context, id string) error {
	return queryDeleteDependency(ctx, s.tx, id)
}

func (s *txStore) CreateSchedule(ctx context.Context, sched *model.Schedule) error {
	return queryCreateSchedule(ctx, s.tx, sched)
}

func (s *txStore) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	return queryGetSchedule(ctx, s.tx, id)
}

func (s *txStore) ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	return queryListSchedules(ctx, s.tx, filter)
}

func (s *txStore) UpdateSchedule(ctx context.Context, sched *model.Schedule) error {
	return queryUpdateSchedule(ctx, s.tx, sched)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) ListEvents(ctx context.Context, orgID string, limit int) ([]*model.Event, error) {
	return queryListEvents(ctx, s.tx, orgID, limit)
}

// LockOrganization takes the dialect's transaction-scoped organization lock.
func (s *txStore) LockOrganization(ctx context.Context, orgID string) error {
	if s.dialect.lockOrgSQL == "" {
		return nil
	}
	if _, err := s.tx.ExecContext(ctx, s.dialect.lockOrgSQL, orgID); err != nil {
		return fmt.Errorf("lock organization %s: %w", orgID, err)
	}
	return nil
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
