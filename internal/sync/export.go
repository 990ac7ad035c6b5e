package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store"
)

// Record types written after the header, in this order per organization.
const (
	TypeOrganization = "organization"
	TypeCCR          = "ccr"
	TypeBoardConfig  = "board_config"
	TypeWorkItem     = "work_item"
	TypeDependency   = "dependency"
	TypeSchedule     = "schedule"
)

// header is the first JSONL record written by ExportJSONL. AsOf is the
// latest entity timestamp in the export, so an unchanged store exports
// byte-identical snapshots.
type header struct {
	Version string         `json:"version"`
	Type    string         `json:"type"`
	AsOf    time.Time      `json:"as_of"`
	Counts  map[string]int `json:"counts"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes a snapshot of the given organizations, or of every
// organization when orgIDs is empty, as JSONL to w. Each organization is
// followed by its CCRs, boards, work items, dependencies and schedules.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer, orgIDs ...string) error {
	var orgs []*model.Organization
	if len(orgIDs) == 0 {
		all, err := s.ListOrganizations(ctx)
		if err != nil {
			return fmt.Errorf("list organizations: %w", err)
		}
		orgs = all
	} else {
		for _, id := range orgIDs {
			org, err := s.GetOrganization(ctx, id)
			if err != nil {
				return fmt.Errorf("get organization %s: %w", id, err)
			}
			orgs = append(orgs, org)
		}
	}

	var (
		records []record
		asOf    time.Time
	)
	counts := make(map[string]int)
	add := func(typ string, data any, stamps ...time.Time) {
		records = append(records, record{Type: typ, Data: data})
		counts[typ]++
		for _, at := range stamps {
			if at.After(asOf) {
				asOf = at
			}
		}
	}

	for _, org := range orgs {
		add(TypeOrganization, org, org.CreatedAt)

		ccrs, err := s.ListCCRs(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("list ccrs for %s: %w", org.ID, err)
		}
		for _, c := range ccrs {
			add(TypeCCR, c, c.CreatedAt)
		}

		boards, err := s.ListBoardConfigs(ctx, org.ID)
		if err != nil {
			return fmt.Errorf("list boards for %s: %w", org.ID, err)
		}
		for _, b := range boards {
			add(TypeBoardConfig, b, b.CreatedAt)
		}

		items, _, err := s.ListWorkItems(ctx, model.WorkItemFilter{OrganizationID: org.ID})
		if err != nil {
			return fmt.Errorf("list work items for %s: %w", org.ID, err)
		}
		for _, item := range items {
			add(TypeWorkItem, item, item.CreatedAt, item.UpdatedAt)
		}

		deps, err := s.ListDependencies(ctx, model.DependencyFilter{OrganizationID: org.ID})
		if err != nil {
			return fmt.Errorf("list dependencies for %s: %w", org.ID, err)
		}
		for _, d := range deps {
			add(TypeDependency, d, d.CreatedAt)
		}

		schedules, err := s.ListSchedules(ctx, model.ScheduleFilter{OrganizationID: org.ID})
		if err != nil {
			return fmt.Errorf("list schedules for %s: %w", org.ID, err)
		}
		for _, sc := range schedules {
			add(TypeSchedule, sc, sc.CreatedAt, sc.UpdatedAt)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version: "1",
		Type:    "header",
		AsOf:    asOf,
		Counts:  counts,
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode %s: %w", r.Type, err)
		}
	}

	return nil
}
