package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

var t0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func TestStore_WorkItemRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	item := &model.WorkItem{
		ID:               "wi-1",
		OrganizationID:   "org-1",
		Title:            "Checkout",
		Status:           model.WorkItemReady,
		CCRHoursRequired: map[string]float64{"dev_team": 8},
		CreatedAt:        t0,
	}
	require.NoError(t, s.CreateWorkItem(ctx, item))

	// Mutating the caller's copy must not leak into the store.
	item.CCRHoursRequired["dev_team"] = 99

	got, err := s.GetWorkItem(ctx, "wi-1")
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.CCRHoursRequired["dev_team"])

	_, err = s.GetWorkItem(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ListWorkItemsFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i, st := range []model.WorkItemStatus{model.WorkItemReady, model.WorkItemBacklog, model.WorkItemReady, model.WorkItemDone} {
		require.NoError(t, s.CreateWorkItem(ctx, &model.WorkItem{
			ID:             string(rune('a' + i)),
			OrganizationID: "org-1",
			Title:          "item",
			Status:         st,
			CreatedAt:      t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.CreateWorkItem(ctx, &model.WorkItem{ID: "z", OrganizationID: "org-2", Status: model.WorkItemReady}))

	items, total, err := s.ListWorkItems(ctx, model.WorkItemFilter{OrganizationID: "org-1", Status: []model.WorkItemStatus{model.WorkItemReady}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "c", items[1].ID)

	items, total, err = s.ListWorkItems(ctx, model.WorkItemFilter{OrganizationID: "org-1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)
}

func TestStore_TransactionRollback(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateOrganization(ctx, &model.Organization{ID: "org-1", Name: "Acme"}))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		require.NoError(t, tx.CreateSchedule(ctx, &model.Schedule{ID: "sch-1", OrganizationID: "org-1"}))
		got, err := tx.GetSchedule(ctx, "sch-1")
		require.NoError(t, err)
		assert.Equal(t, "org-1", got.OrganizationID)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetSchedule(ctx, "sch-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_TransactionCommit(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		require.NoError(t, tx.LockOrganization(ctx, "org-1"))
		return tx.CreateSchedule(ctx, &model.Schedule{ID: "sch-1", OrganizationID: "org-1", Status: model.SchedulePlanning})
	})
	require.NoError(t, err)

	got, err := s.GetSchedule(ctx, "sch-1")
	require.NoError(t, err)
	assert.Equal(t, model.SchedulePlanning, got.Status)
}

func TestStore_ListSchedulesFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	pos := -5
	for _, sc := range []*model.Schedule{
		{ID: "s1", OrganizationID: "org-1", BoardConfigID: "b1", Status: model.SchedulePlanning, TimeUnitPosition: -5, CreatedAt: t0},
		{ID: "s2", OrganizationID: "org-1", BoardConfigID: "b1", Status: model.ScheduleCompleted, TimeUnitPosition: 4, CreatedAt: t0.Add(time.Second)},
		{ID: "s3", OrganizationID: "org-1", BoardConfigID: "b2", Status: model.SchedulePlanning, TimeUnitPosition: -5, CreatedAt: t0.Add(2 * time.Second)},
	} {
		require.NoError(t, s.CreateSchedule(ctx, sc))
	}

	got, err := s.ListSchedules(ctx, model.ScheduleFilter{OrganizationID: "org-1", Status: model.ActiveScheduleStatuses})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListSchedules(ctx, model.ScheduleFilter{BoardConfigID: "b1", Position: &pos})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
}

func TestStore_Dependencies(t *testing.T) {
	ctx := context.Background()
	s := New()
	dep := &model.WorkItemDependency{ID: "dep-1", OrganizationID: "org-1", DependentID: "a", PrerequisiteID: "b", Type: model.DepFinishToStart}
	require.NoError(t, s.CreateDependency(ctx, dep))
	assert.Error(t, s.CreateDependency(ctx, &model.WorkItemDependency{ID: "dep-2", DependentID: "a", PrerequisiteID: "b"}))

	deps, err := s.ListDependencies(ctx, model.DependencyFilter{PrerequisiteID: "b"})
	require.NoError(t, err)
	require.Len(t, deps, 1)

	require.NoError(t, s.DeleteDependency(ctx, "dep-1"))
	assert.ErrorIs(t, s.DeleteDependency(ctx, "dep-1"), store.ErrNotFound)
}

func TestStore_EventsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, s.RecordEvent(ctx, &model.Event{ID: id, OrganizationID: "org-1", Topic: "dbr.test"}))
	}
	events, err := s.ListEvents(ctx, "org-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e3", events[0].ID)
	assert.Equal(t, "e2", events[1].ID)
}
