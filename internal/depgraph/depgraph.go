// Package depgraph validates and queries prerequisite edges between work
// items. Edges of one organization always form a DAG: a new edge is
// rejected when its dependent is already reachable from its prerequisite.
package depgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// Validator answers dependency questions against a store. Construct one
// over a transaction store to read and write inside that transaction.
type Validator struct {
	store store.Store
}

// New returns a Validator reading from s.
func New(s store.Store) *Validator {
	return &Validator{store: s}
}

// getWorkItem converts store.ErrNotFound into a *model.NotFoundError.
func getWorkItem(ctx context.Context, s store.Store, id string) (*model.WorkItem, error) {
	w, err := s.GetWorkItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &model.NotFoundError{Entity: "work_item", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get work item %s: %w", id, err)
	}
	return w, nil
}

// prerequisites returns the outgoing prerequisite edges of a work item.
func (v *Validator) prerequisites(ctx context.Context, workItemID string) ([]*model.WorkItemDependency, error) {
	deps, err := v.store.ListDependencies(ctx, model.DependencyFilter{DependentID: workItemID})
	if err != nil {
		return nil, fmt.Errorf("list prerequisites of %s: %w", workItemID, err)
	}
	return deps, nil
}

// ValidateNewDependency checks whether dependentID may depend on
// prerequisiteID. Failures are reported in a fixed order: self edge,
// missing item, organization mismatch, cycle.
func (v *Validator) ValidateNewDependency(ctx context.Context, dependentID, prerequisiteID string) error {
	if dependentID == prerequisiteID {
		return &model.SelfDependencyError{WorkItemID: dependentID}
	}

	dependent, err := getWorkItem(ctx, v.store, dependentID)
	if err != nil {
		return err
	}
	prerequisite, err := getWorkItem(ctx, v.store, prerequisiteID)
	if err != nil {
		return err
	}

	if dependent.OrganizationID != prerequisite.OrganizationID {
		return &model.CrossOrganizationError{
			DependentID:     dependentID,
			DependentOrg:    dependent.OrganizationID,
			PrerequisiteID:  prerequisiteID,
			PrerequisiteOrg: prerequisite.OrganizationID,
		}
	}

	path, err := v.pathTo(ctx, prerequisiteID, dependentID)
	if err != nil {
		return err
	}
	if path != nil {
		return &model.CircularDependencyError{
			DependentID:    dependentID,
			PrerequisiteID: prerequisiteID,
			Path:           path,
		}
	}
	return nil
}

// pathTo searches prerequisite edges depth-first from start for target and
// returns the path start..target, or nil when target is unreachable. Each
// node is expanded at most once; meeting a visited node is not a cycle
// report, just a dead end.
func (v *Validator) pathTo(ctx context.Context, start, target string) ([]string, error) {
	visited := make(map[string]bool)
	var path []string

	var visit func(node string) (bool, error)
	visit = func(node string) (bool, error) {
		if node == target {
			path = append(path, node)
			return true, nil
		}
		if visited[node] {
			return false, nil
		}
		visited[node] = true
		path = append(path, node)

		edges, err := v.prerequisites(ctx, node)
		if err != nil {
			return false, err
		}
		for _, e := range edges {
			found, err := visit(e.PrerequisiteID)
			if err != nil || found {
				return found, err
			}
		}
		path = path[:len(path)-1]
		return false, nil
	}

	found, err := visit(start)
	if err != nil || !found {
		return nil, err
	}
	return path, nil
}

// AddDependency validates dep and inserts it in one transaction holding the
// organization lock, so two concurrent inserts cannot close a cycle between
// them. The organization is taken from the dependent work item.
func (v *Validator) AddDependency(ctx context.Context, dep *model.WorkItemDependency) error {
	if dep.Type == "" {
		dep.Type = model.DepFinishToStart
	}
	if err := model.ValidateDependency(dep); err != nil {
		return err
	}
	if dep.DependentID == dep.PrerequisiteID {
		return &model.SelfDependencyError{WorkItemID: dep.DependentID}
	}

	return v.store.RunInTransaction(ctx, func(tx store.Store) error {
		dependent, err := getWorkItem(ctx, tx, dep.DependentID)
		if err != nil {
			return err
		}
		if err := tx.LockOrganization(ctx, dependent.OrganizationID); err != nil {
			return err
		}

		if err := New(tx).ValidateNewDependency(ctx, dep.DependentID, dep.PrerequisiteID); err != nil {
			return err
		}

		dep.OrganizationID = dependent.OrganizationID
		if err := tx.CreateDependency(ctx, dep); err != nil {
			return fmt.Errorf("create dependency: %w", err)
		}
		return nil
	})
}

// RemoveDependency deletes the edge with the given id and returns it.
// Removing an edge can never introduce a cycle, so nothing is revalidated.
func (v *Validator) RemoveDependency(ctx context.Context, dependencyID string) (*model.WorkItemDependency, error) {
	var removed *model.WorkItemDependency
	err := v.store.RunInTransaction(ctx, func(tx store.Store) error {
		dep, err := tx.GetDependency(ctx, dependencyID)
		if errors.Is(err, store.ErrNotFound) {
			return &model.NotFoundError{Entity: "dependency", ID: dependencyID}
		}
		if err != nil {
			return fmt.Errorf("get dependency: %w", err)
		}
		if err := tx.DeleteDependency(ctx, dependencyID); err != nil {
			return fmt.Errorf("delete dependency: %w", err)
		}
		removed = dep
		return nil
	})
	return removed, err
}

// Dependencies returns the direct prerequisite edges of a work item.
func (v *Validator) Dependencies(ctx context.Context, workItemID string) ([]*model.WorkItemDependency, error) {
	if _, err := getWorkItem(ctx, v.store, workItemID); err != nil {
		return nil, err
	}
	return v.prerequisites(ctx, workItemID)
}

// IsReady reports whether every direct prerequisite of the work item is
// done. A prerequisite whose record is missing counts as unresolved.
func (v *Validator) IsReady(ctx context.Context, workItemID string) (bool, error) {
	if _, err := getWorkItem(ctx, v.store, workItemID); err != nil {
		return false, err
	}
	edges, err := v.prerequisites(ctx, workItemID)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		pre, err := v.store.GetWorkItem(ctx, e.PrerequisiteID)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("get prerequisite %s: %w", e.PrerequisiteID, err)
		}
		if pre.Status != model.WorkItemDone {
			return false, nil
		}
	}
	return true, nil
}

// DependencyChain lists every transitive prerequisite of the work item in
// depth-first pre-order. An id appears once, at its first visit, and
// cycles in stored data terminate the walk instead of failing it.
func (v *Validator) DependencyChain(ctx context.Context, workItemID string) ([]string, error) {
	if _, err := getWorkItem(ctx, v.store, workItemID); err != nil {
		return nil, err
	}

	seen := map[string]bool{workItemID: true}
	var chain []string

	var walk func(node string) error
	walk = func(node string) error {
		edges, err := v.prerequisites(ctx, node)
		if err != nil {
			return err
		}
		for _, e := range edges {
			if seen[e.PrerequisiteID] {
				continue
			}
			seen[e.PrerequisiteID] = true
			chain = append(chain, e.PrerequisiteID)
			if err := walk(e.PrerequisiteID); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(workItemID); err != nil {
		return nil, err
	}
	return chain, nil
}

// BlockedWorkItems returns the organization's work items that have at least
// one prerequisite edge and are not ready.
func (v *Validator) BlockedWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error) {
	g, err := v.loadGraph(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var out []*model.WorkItem
	for _, item := range g.items {
		if len(g.prereqs[item.ID]) > 0 && !g.ready(item.ID) {
			out = append(out, item)
		}
	}
	return out, nil
}

// ReadyWorkItems returns the organization's backlog and ready work items
// whose prerequisites are all done.
func (v *Validator) ReadyWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error) {
	g, err := v.loadGraph(ctx, orgID)
	if err != nil {
		return nil, err
	}
	var out []*model.WorkItem
	for _, item := range g.items {
		if item.Status != model.WorkItemBacklog && item.Status != model.WorkItemReady {
			continue
		}
		if g.ready(item.ID) {
			out = append(out, item)
		}
	}
	return out, nil
}

// PromoteReady moves backlog items whose prerequisites are now all done
// into the ready state and returns the items it changed. Ids that are
// missing or not in backlog are skipped.
func (v *Validator) PromoteReady(ctx context.Context, workItemIDs []string, now time.Time) ([]*model.WorkItem, error) {
	var promoted []*model.WorkItem
	for _, id := range workItemIDs {
		item, err := v.store.GetWorkItem(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get work item %s: %w", id, err)
		}
		if item.Status != model.WorkItemBacklog {
			continue
		}
		ready, err := v.IsReady(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ready {
			continue
		}
		item.Status = model.WorkItemReady
		item.UpdatedAt = now
		if err := v.store.UpdateWorkItem(ctx, item); err != nil {
			return nil, fmt.Errorf("promote work item %s: %w", id, err)
		}
		promoted = append(promoted, item)
	}
	return promoted, nil
}

// Dependents returns the ids of work items that list workItemID as a
// prerequisite.
func (v *Validator) Dependents(ctx context.Context, workItemID string) ([]string, error) {
	deps, err := v.store.ListDependencies(ctx, model.DependencyFilter{PrerequisiteID: workItemID})
	if err != nil {
		return nil, fmt.Errorf("list dependents of %s: %w", workItemID, err)
	}
	ids := make([]string, len(deps))
	for i, d := range deps {
		ids[i] = d.DependentID
	}
	return ids, nil
}
