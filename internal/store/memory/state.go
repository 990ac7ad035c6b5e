package memory

import (
	"fmt"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
}

func duplicate(kind, id string) error {
	return fmt.Errorf("%s %s already exists", kind, id)
}

func (s *state) createOrganization(o *model.Organization) error {
	if _, ok := s.orgs[o.ID]; ok {
		return duplicate("organization", o.ID)
	}
	s.orgs[o.ID] = *o
	return nil
}

func (s *state) getOrganization(id string) (*model.Organization, error) {
	o, ok := s.orgs[id]
	if !ok {
		return nil, notFound("organization", id)
	}
	return &o, nil
}

func (s *state) listOrganizations() []*model.Organization {
	out := make([]*model.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		o := o
		out = append(out, &o)
	}
	sortByCreated(out, func(o *model.Organization) (int64, string) { return o.CreatedAt.UnixNano(), o.ID })
	return out
}

func (s *state) createCCR(c *model.CCR) error {
	if _, ok := s.ccrs[c.ID]; ok {
		return duplicate("ccr", c.ID)
	}
	s.ccrs[c.ID] = *c
	return nil
}

func (s *state) getCCR(id string) (*model.CCR, error) {
	c, ok := s.ccrs[id]
	if !ok {
		return nil, notFound("ccr", id)
	}
	return &c, nil
}

func (s *state) listCCRs(orgID string) []*model.CCR {
	var out []*model.CCR
	for _, c := range s.ccrs {
		if orgID != "" && c.OrganizationID != orgID {
			continue
		}
		c := c
		out = append(out, &c)
	}
	sortByCreated(out, func(c *model.CCR) (int64, string) { return c.CreatedAt.UnixNano(), c.ID })
	return out
}

func (s *state) createBoardConfig(b *model.BoardConfig) error {
	if _, ok := s.boards[b.ID]; ok {
		return duplicate("board config", b.ID)
	}
	s.boards[b.ID] = *b
	return nil
}

func (s *state) getBoardConfig(id string) (*model.BoardConfig, error) {
	b, ok := s.boards[id]
	if !ok {
		return nil, notFound("board config", id)
	}
	return &b, nil
}

func (s *state) listBoardConfigs(orgID string) []*model.BoardConfig {
	var out []*model.BoardConfig
	for _, b := range s.boards {
		if orgID != "" && b.OrganizationID != orgID {
			continue
		}
		b := b
		out = append(out, &b)
	}
	sortByCreated(out, func(b *model.BoardConfig) (int64, string) { return b.CreatedAt.UnixNano(), b.ID })
	return out
}

func (s *state) createWorkItem(w *model.WorkItem) error {
	if _, ok := s.items[w.ID]; ok {
		return duplicate("work item", w.ID)
	}
	s.items[w.ID] = cloneWorkItem(*w)
	return nil
}

func (s *state) getWorkItem(id string) (*model.WorkItem, error) {
	w, ok := s.items[id]
	if !ok {
		return nil, notFound("work item", id)
	}
	w = cloneWorkItem(w)
	return &w, nil
}

func (s *state) listWorkItems(f model.WorkItemFilter) ([]*model.WorkItem, int) {
	statuses := make(map[model.WorkItemStatus]bool, len(f.Status))
	for _, st := range f.Status {
		statuses[st] = true
	}
	ids := make(map[string]bool, len(f.IDs))
	for _, id := range f.IDs {
		ids[id] = true
	}

	var out []*model.WorkItem
	for _, w := range s.items {
		if f.OrganizationID != "" && w.OrganizationID != f.OrganizationID {
			continue
		}
		if len(statuses) > 0 && !statuses[w.Status] {
			continue
		}
		if len(ids) > 0 && !ids[w.ID] {
			continue
		}
		w := cloneWorkItem(w)
		out = append(out, &w)
	}
	sortByCreated(out, func(w *model.WorkItem) (int64, string) { return w.CreatedAt.UnixNano(), w.ID })

	total := len(out)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, total
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, total
}

func (s *state) updateWorkItem(w *model.WorkItem) error {
	if _, ok := s.items[w.ID]; !ok {
		return notFound("work item", w.ID)
	}
	s.items[w.ID] = cloneWorkItem(*w)
	return nil
}

func (s *state) createDependency(d *model.WorkItemDependency) error {
	if _, ok := s.deps[d.ID]; ok {
		return duplicate("dependency", d.ID)
	}
	for _, existing := range s.deps {
		if existing.DependentID == d.DependentID && existing.PrerequisiteID == d.PrerequisiteID {
			return fmt.Errorf("dependency %s -> %s already exists", d.DependentID, d.PrerequisiteID)
		}
	}
	s.deps[d.ID] = *d
	return nil
}

func (s *state) getDependency(id string) (*model.WorkItemDependency, error) {
	d, ok := s.deps[id]
	if !ok {
		return nil, notFound("dependency", id)
	}
	return &d, nil
}

func (s *state) listDependencies(f model.DependencyFilter) []*model.WorkItemDependency {
	var out []*model.WorkItemDependency
	for _, d := range s.deps {
		if f.OrganizationID != "" && d.OrganizationID != f.OrganizationID {
			continue
		}
		if f.DependentID != "" && d.DependentID != f.DependentID {
			continue
		}
		if f.PrerequisiteID != "" && d.PrerequisiteID != f.PrerequisiteID {
			continue
		}
		d := d
		out = append(out, &d)
	}
	sortByCreated(out, func(d *model.WorkItemDependency) (int64, string) { return d.CreatedAt.UnixNano(), d.ID })
	return out
}

func (s *state) deleteDependency(id string) error {
	if _, ok := s.deps[id]; !ok {
		return notFound("dependency", id)
	}
	delete(s.deps, id)
	return nil
}

func (s *state) createSchedule(sc *model.Schedule) error {
	if _, ok := s.schedules[sc.ID]; ok {
		return duplicate("schedule", sc.ID)
	}
	s.schedules[sc.ID] = cloneSchedule(*sc)
	return nil
}

func (s *state) getSchedule(id string) (*model.Schedule, error) {
	sc, ok := s.schedules[id]
	if !ok {
		return nil, notFound("schedule", id)
	}
	sc = cloneSchedule(sc)
	return &sc, nil
}

func (s *state) listSchedules(f model.ScheduleFilter) []*model.Schedule {
	statuses := make(map[model.ScheduleStatus]bool, len(f.Status))
	for _, st := range f.Status {
		statuses[st] = true
	}

	var out []*model.Schedule
	for _, sc := range s.schedules {
		if f.OrganizationID != "" && sc.OrganizationID != f.OrganizationID {
			continue
		}
		if f.BoardConfigID != "" && sc.BoardConfigID != f.BoardConfigID {
			continue
		}
		if len(statuses) > 0 && !statuses[sc.Status] {
			continue
		}
		if f.Position != nil && sc.TimeUnitPosition != *f.Position {
			continue
		}
		sc := cloneSchedule(sc)
		out = append(out, &sc)
	}
	sortByCreated(out, func(sc *model.Schedule) (int64, string) { return sc.CreatedAt.UnixNano(), sc.ID })
	return out
}

func (s *state) updateSchedule(sc *model.Schedule) error {
	if _, ok := s.schedules[sc.ID]; !ok {
		return notFound("schedule", sc.ID)
	}
	s.schedules[sc.ID] = cloneSchedule(*sc)
	return nil
}

func (s *state) recordEvent(e *model.Event) {
	ev := *e
	ev.Payload = append([]byte(nil), e.Payload...)
	s.events = append(s.events, ev)
}

// listEvents returns the newest events of an organization first.
func (s *state) listEvents(orgID string, limit int) []*model.Event {
	var out []*model.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if orgID != "" && e.OrganizationID != orgID {
			continue
		}
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
