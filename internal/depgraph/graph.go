package depgraph

import (
	"context"
	"fmt"

	"github.com/rnwolf/dbr/internal/model"
)

// graph is an in-memory snapshot of one organization's items and edges,
// used by the organization-wide queries to avoid a lookup per edge.
type graph struct {
	items   []*model.WorkItem
	status  map[string]model.WorkItemStatus
	prereqs map[string][]string
}

func (v *Validator) loadGraph(ctx context.Context, orgID string) (*graph, error) {
	items, _, err := v.store.ListWorkItems(ctx, model.WorkItemFilter{OrganizationID: orgID})
	if err != nil {
		return nil, fmt.Errorf("list work items: %w", err)
	}
	deps, err := v.store.ListDependencies(ctx, model.DependencyFilter{OrganizationID: orgID})
	if err != nil {
		return nil, fmt.Errorf("list dependencies: %w", err)
	}

	g := &graph{
		items:   items,
		status:  make(map[string]model.WorkItemStatus, len(items)),
		prereqs: make(map[string][]string),
	}
	for _, item := range items {
		g.status[item.ID] = item.Status
	}
	for _, d := range deps {
		g.prereqs[d.DependentID] = append(g.prereqs[d.DependentID], d.PrerequisiteID)
	}
	return g, nil
}

// ready mirrors Validator.IsReady on the snapshot.
func (g *graph) ready(id string) bool {
	for _, pre := range g.prereqs[id] {
		st, ok := g.status[pre]
		if !ok || st != model.WorkItemDone {
			return false
		}
	}
	return true
}
