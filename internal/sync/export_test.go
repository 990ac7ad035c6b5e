package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/store/memory"
)

var t0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

// seedStore creates two organizations; org-1 has one of everything.
func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(s.CreateOrganization(ctx, &model.Organization{ID: "org-1", Name: "Acme", CreatedAt: t0}))
	must(s.CreateOrganization(ctx, &model.Organization{ID: "org-2", Name: "Globex", CreatedAt: t0.Add(time.Second)}))
	must(s.CreateCCR(ctx, &model.CCR{ID: "ccr-1", OrganizationID: "org-1", Name: "Dev Team", CapacityPerTimeUnit: 40, CreatedAt: t0}))
	must(s.CreateBoardConfig(ctx, &model.BoardConfig{
		ID: "brd-1", OrganizationID: "org-1", Name: "Main", CCRID: "ccr-1",
		PreConstraintBufferSize: 2, PostConstraintBufferSize: 1, TimeUnit: "week", CreatedAt: t0,
	}))
	for _, id := range []string{"wi-1", "wi-2"} {
		must(s.CreateWorkItem(ctx, &model.WorkItem{
			ID: id, OrganizationID: "org-1", Title: id, Status: model.WorkItemReady,
			CCRHoursRequired: map[string]float64{"dev_team": 4}, CreatedAt: t0, UpdatedAt: t0,
		}))
	}
	must(s.CreateDependency(ctx, &model.WorkItemDependency{
		ID: "dep-1", OrganizationID: "org-1", DependentID: "wi-2", PrerequisiteID: "wi-1",
		Type: model.DepFinishToStart, CreatedAt: t0,
	}))
	must(s.CreateSchedule(ctx, &model.Schedule{
		ID: "sch-1", OrganizationID: "org-1", BoardConfigID: "brd-1", CCRID: "ccr-1",
		Status: model.SchedulePlanning, TimeUnitPosition: -2, WorkItemIDs: []string{"wi-1"},
		TotalCCRHours: 4, CreatedAt: t0, UpdatedAt: t0,
	}))
	return s
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), memory.New(), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || len(h.Counts) != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_AllOrganizations(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), seedStore(t), &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	// header + org-1 + ccr + board + 2 items + dep + schedule + org-2
	if len(lines) != 9 {
		t.Fatalf("expected 9 lines, got %d:\n%s", len(lines), buf.String())
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	want := map[string]int{
		TypeOrganization: 2, TypeCCR: 1, TypeBoardConfig: 1,
		TypeWorkItem: 2, TypeDependency: 1, TypeSchedule: 1,
	}
	for typ, n := range want {
		if h.Counts[typ] != n {
			t.Errorf("counts[%s] = %d, want %d", typ, h.Counts[typ], n)
		}
	}

	var types []string
	for _, line := range lines[1:] {
		var r struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("unmarshal record: %v", err)
		}
		types = append(types, r.Type)
	}
	got := strings.Join(types, ",")
	if got != "organization,ccr,board_config,work_item,work_item,dependency,schedule,organization" {
		t.Fatalf("unexpected record order: %s", got)
	}
}

func TestExportJSONL_Deterministic(t *testing.T) {
	s := seedStore(t)
	var a, b bytes.Buffer
	if err := ExportJSONL(context.Background(), s, &a); err != nil {
		t.Fatal(err)
	}
	if err := ExportJSONL(context.Background(), s, &b); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Fatal("exports of an unchanged store differ")
	}

	var h header
	if err := json.Unmarshal([]byte(nonEmptyLines(a.String())[0]), &h); err != nil {
		t.Fatal(err)
	}
	// org-2 is the newest entity.
	if !h.AsOf.Equal(t0.Add(time.Second)) {
		t.Errorf("as_of = %v, want %v", h.AsOf, t0.Add(time.Second))
	}
}

func TestExportJSONL_SelectedOrganization(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), seedStore(t), &buf, "org-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := nonEmptyLines(buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected header + one organization, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], `"name":"Globex"`) {
		t.Fatalf("unexpected record: %s", lines[1])
	}
}

func TestExportJSONL_UnknownOrganization(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), seedStore(t), &buf, "org-404"); err == nil {
		t.Fatal("expected error for unknown organization")
	}
}

func TestExportJSONL_NoHTMLEscaping(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	if err := s.CreateOrganization(ctx, &model.Organization{ID: "org-1", Name: "R&D <core>", CreatedAt: t0}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "R&D <core>") {
		t.Fatalf("expected raw name in export:\n%s", buf.String())
	}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
