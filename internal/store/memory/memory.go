// Package memory implements store.Store in process memory. A transaction
// works on a cloned state that replaces the live state on commit, so a
// failed transaction leaves nothing behind.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// Store implements store.Store backed by maps guarded by mutexes.
type Store struct {
	writeMu sync.Mutex   // held by every writer, including whole transactions
	mu      sync.RWMutex // guards st
	st      *state
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{st: newState()}
}

type state struct {
	orgs      map[string]model.Organization
	ccrs      map[string]model.CCR
	boards    map[string]model.BoardConfig
	items     map[string]model.WorkItem
	deps      map[string]model.WorkItemDependency
	schedules map[string]model.Schedule
	events    []model.Event
}

func newState() *state {
	return &state{
		orgs:      map[string]model.Organization{},
		ccrs:      map[string]model.CCR{},
		boards:    map[string]model.BoardConfig{},
		items:     map[string]model.WorkItem{},
		deps:      map[string]model.WorkItemDependency{},
		schedules: map[string]model.Schedule{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for k, v := range s.ccrs {
		c.ccrs[k] = v
	}
	for k, v := range s.boards {
		c.boards[k] = v
	}
	for k, v := range s.items {
		c.items[k] = cloneWorkItem(v)
	}
	for k, v := range s.deps {
		c.deps[k] = v
	}
	for k, v := range s.schedules {
		c.schedules[k] = cloneSchedule(v)
	}
	c.events = append([]model.Event(nil), s.events...)
	return c
}

func cloneWorkItem(w model.WorkItem) model.WorkItem {
	if w.CCRHoursRequired != nil {
		hours := make(map[string]float64, len(w.CCRHoursRequired))
		for k, v := range w.CCRHoursRequired {
			hours[k] = v
		}
		w.CCRHoursRequired = hours
	}
	return w
}

func cloneSchedule(s model.Schedule) model.Schedule {
	s.WorkItemIDs = append([]string(nil), s.WorkItemIDs...)
	if s.ReleasedDate != nil {
		t := *s.ReleasedDate
		s.ReleasedDate = &t
	}
	if s.CompletionDate != nil {
		t := *s.CompletionDate
		s.CompletionDate = &t
	}
	return s
}

// read runs fn against the live state under the read lock.
func (s *Store) read(fn func(st *state) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.st)
}

// write runs fn against the live state with both locks held.
func (s *Store) write(fn func(st *state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

// RunInTransaction executes fn against a private copy of the state and
// publishes the copy only if fn returns nil. Transactions are serialized.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(&txStore{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// LockOrganization is a no-op: writers are already serialized.
func (s *Store) LockOrganization(_ context.Context, _ string) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) CreateOrganization(_ context.Context, org *model.Organization) error {
	return s.write(func(st *state) error { return st.createOrganization(org) })
}

func (s *Store) GetOrganization(_ context.Context, id string) (out *model.Organization, err error) {
	err = s.read(func(st *state) error { out, err = st.getOrganization(id); return err })
	return out, err
}

func (s *Store) ListOrganizations(_ context.Context) (out []*model.Organization, err error) {
	err = s.read(func(st *state) error { out = st.listOrganizations(); return nil })
	return out, err
}

func (s *Store) CreateCCR(_ context.Context, ccr *model.CCR) error {
	return s.write(func(st *state) error { return st.createCCR(ccr) })
}

func (s *Store) GetCCR(_ context.Context, id string) (out *model.CCR, err error) {
	err = s.read(func(st *state) error { out, err = st.getCCR(id); return err })
	return out, err
}

func (s *Store) ListCCRs(_ context.Context, orgID string) (out []*model.CCR, err error) {
	err = s.read(func(st *state) error { out = st.listCCRs(orgID); return nil })
	return out, err
}

func (s *Store) CreateBoardConfig(_ context.Context, board *model.BoardConfig) error {
	return s.write(func(st *state) error { return st.createBoardConfig(board) })
}

func (s *Store) GetBoardConfig(_ context.Context, id string) (out *model.BoardConfig, err error) {
	err = s.read(func(st *state) error { out, err = st.getBoardConfig(id); return err })
	return out, err
}

func (s *Store) ListBoardConfigs(_ context.Context, orgID string) (out []*model.BoardConfig, err error) {
	err = s.read(func(st *state) error { out = st.listBoardConfigs(orgID); return nil })
	return out, err
}

func (s *Store) CreateWorkItem(_ context.Context, item *model.WorkItem) error {
	return s.write(func(st *state) error { return st.createWorkItem(item) })
}

func (s *Store) GetWorkItem(_ context.Context, id string) (out *model.WorkItem, err error) {
	err = s.read(func(st *state) error { out, err = st.getWorkItem(id); return err })
	return out, err
}

func (s *Store) ListWorkItems(_ context.Context, filter model.WorkItemFilter) (out []*model.WorkItem, total int, err error) {
	err = s.read(func(st *state) error { out, total = st.listWorkItems(filter); return nil })
	return out, total, err
}

func (s *Store) UpdateWorkItem(_ context.Context, item *model.WorkItem) error {
	return s.write(func(st *state) error { return st.updateWorkItem(item) })
}

func (s *Store) CreateDependency(_ context.Context, dep *model.WorkItemDependency) error {
	return s.write(func(st *state) error { return st.createDependency(dep) })
}

func (s *Store) GetDependency(_ context.Context, id string) (out *model.WorkItemDependency, err error) {
	err = s.read(func(st *state) error { out, err = st.getDependency(id); return err })
	return out, err
}

func (s *Store) ListDependencies(_ context.Context, filter model.DependencyFilter) (out []*model.WorkItemDependency, err error) {
	err = s.read(func(st *state) error { out = st.listDependencies(filter); return nil })
	return out, err
}

func (s *Store) DeleteDependency(_ context.Context, id string) error {
	return s.write(func(st *state) error { return st.deleteDependency(id) })
}

func (s *Store) CreateSchedule(_ context.Context, sched *model.Schedule) error {
	return s.write(func(st *state) error { return st.createSchedule(sched) })
}

func (s *Store) GetSchedule(_ context.Context, id string) (out *model.Schedule, err error) {
	err = s.read(func(st *state) error { out, err = st.getSchedule(id); return err })
	return out, err
}

func (s *Store) ListSchedules(_ context.Context, filter model.ScheduleFilter) (out []*model.Schedule, err error) {
	err = s.read(func(st *state) error { out = st.listSchedules(filter); return nil })
	return out, err
}

func (s *Store) UpdateSchedule(_ context.Context, sched *model.Schedule) error {
	return s.write(func(st *state) error { return st.updateSchedule(sched) })
}

func (s *Store) RecordEvent(_ context.Context, event *model.Event) error {
	return s.write(func(st *state) error { st.recordEvent(event); return nil })
}

func (s *Store) ListEvents(_ context.Context, orgID string, limit int) (out []*model.Event, err error) {
	err = s.read(func(st *state) error { out = st.listEvents(orgID, limit); return nil })
	return out, err
}

// txStore is the view handed to RunInTransaction callbacks. It mutates the
// transaction's private state without locking.
type txStore struct {
	st *state
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) LockOrganization(_ context.Context, _ string) error { return nil }
func (t *txStore) Close() error                                          { return nil }

func (t *txStore) CreateOrganization(_ context.Context, org *model.Organization) error {
	return t.st.createOrganization(org)
}

func (t *txStore) GetOrganization(_ context.Context, id string) (*model.Organization, error) {
	return t.st.getOrganization(id)
}

func (t *txStore) ListOrganizations(_ context.Context) ([]*model.Organization, error) {
	return t.st.listOrganizations(), nil
}

func (t *txStore) CreateCCR(_ context.Context, ccr *model.CCR) error {
	return t.st.createCCR(ccr)
}

func (t *txStore) GetCCR(_ context.Context, id string) (*model.CCR, error) {
	return t.st.getCCR(id)
}

func (t *txStore) ListCCRs(_ context.Context, orgID string) ([]*model.CCR, error) {
	return t.st.listCCRs(orgID), nil
}

func (t *txStore) CreateBoardConfig(_ context.Context, board *model.BoardConfig) error {
	return t.st.createBoardConfig(board)
}

func (t *txStore) GetBoardConfig(_ context.Context, id string) (*model.BoardConfig, error) {
	return t.st.getBoardConfig(id)
}

func (t *txStore) ListBoardConfigs(_ context.Context, orgID string) ([]*model.BoardConfig, error) {
	return t.st.listBoardConfigs(orgID), nil
}

func (t *txStore) CreateWorkItem(_ context.Context, item *model.WorkItem) error {
	return t.st.createWorkItem(item)
}

func (t *txStore) GetWorkItem(_ context.Context, id string) (*model.WorkItem, error) {
	return t.st.getWorkItem(id)
}

func (t *txStore) ListWorkItems(_ context.Context, filter model.WorkItemFilter) ([]*model.WorkItem, int, error) {
	items, total := t.st.listWorkItems(filter)
	return items, total, nil
}

func (t *txStore) UpdateWorkItem(_ context.Context, item *model.WorkItem) error {
	return t.st.updateWorkItem(item)
}

func (t *txStore) CreateDependency(_ context.Context, dep *model.WorkItemDependency) error {
	return t.st.createDependency(dep)
}

func (t *txStore) GetDependency(_ context.Context, id string) (*model.WorkItemDependency, error) {
	return t.st.getDependency(id)
}

func (t *txStore) ListDependencies(_ context.Context, filter model.DependencyFilter) ([]*model.WorkItemDependency, error) {
	return t.st.listDependencies(filter), nil
}

func (t *txStore) DeleteDependency(_ context.Context, id string) error {
	return t.st.deleteDependency(id)
}

func (t *txStore) CreateSchedule(_ context.Context, sched *model.Schedule) error {
	return t.st.createSchedule(sched)
}

func (t *txStore) GetSchedule(_ context.Context, id string) (*model.Schedule, error) {
	return t.st.getSchedule(id)
}

func (t *txStore) ListSchedules(_ context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	return t.st.listSchedules(filter), nil
}

func (t *txStore) UpdateSchedule(_ context.Context, sched *model.Schedule) error {
	return t.st.updateSchedule(sched)
}

func (t *txStore) RecordEvent(_ context.Context, event *model.Event) error {
	t.st.recordEvent(event)
	return nil
}

func (t *txStore) ListEvents(_ context.Context, orgID string, limit int) ([]*model.Event, error) {
	return t.st.listEvents(orgID, limit), nil
}

// sortByCreated orders a slice by creation time, then id.
func sortByCreated[T any](out []*T, key func(*T) (int64, string)) {
	sort.SliceStable(out, func(i, j int) bool {
		ti, ii := key(out[i])
		tj, ij := key(out[j])
		if ti != tj {
			return ti < tj
		}
		return ii < ij
	})
}
