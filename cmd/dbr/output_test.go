package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rnwolf/dbr/internal/client"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
)

func TestFormatHours(t *testing.T) {
	tests := []struct {
		in   map[string]float64
		want string
	}{
		{nil, "-"},
		{map[string]float64{"dev_team": 10}, "dev_team=10"},
		{map[string]float64{"qa": 2.5, "dev_team": 10}, "dev_team=10 qa=2.5"},
	}
	for _, tc := range tests {
		if got := formatHours(tc.in); got != tc.want {
			t.Errorf("formatHours(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseHours(t *testing.T) {
	got, err := parseHours(map[string]string{"dev_team": "10", "qa": "2.5"})
	if err != nil {
		t.Fatal(err)
	}
	if got["dev_team"] != 10 || got["qa"] != 2.5 {
		t.Errorf("parseHours = %v", got)
	}
	if _, err := parseHours(map[string]string{"qa": "lots"}); err == nil {
		t.Error("expected error for non-numeric hours")
	}
	if got, _ := parseHours(nil); got != nil {
		t.Errorf("parseHours(nil) = %v, want nil", got)
	}
}

func TestEmit(t *testing.T) {
	item := &model.WorkItem{ID: "wi-1", Title: "Login", Status: model.WorkItemReady}
	table := func(w io.Writer) error { return printWorkItems(w, []*model.WorkItem{item}, 3) }

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := emit(&buf, item, table); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "wi-1") || !strings.Contains(out, "ready") {
			t.Errorf("table output missing row:\n%s", out)
		}
		if !strings.Contains(out, "1 of 3 work items") {
			t.Errorf("table output missing total:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		jsonOutput = true
		t.Cleanup(func() { jsonOutput = false })

		var buf bytes.Buffer
		if err := emit(&buf, item, table); err != nil {
			t.Fatal(err)
		}
		var got model.WorkItem
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
		}
		if got.ID != "wi-1" {
			t.Errorf("ID = %q", got.ID)
		}
	})
}

func TestPrintAdvanceResult(t *testing.T) {
	at := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	res := &scheduling.AdvanceResult{
		AdvancedCount:  2,
		CompletedCount: 1,
		RemainingCount: 1,
		Transitions: []scheduling.Transition{
			{ScheduleID: "sch-1", From: model.SchedulePostConstraint, To: model.ScheduleCompleted, Position: 2},
		},
		PromotedWorkItems: []string{"wi-3"},
		TickedAt:          at,
		Now:               at.Add(7 * 24 * time.Hour),
	}
	var buf bytes.Buffer
	if err := printAdvanceResult(&buf, res); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"ticked 2026-01-05 00:00, now 2026-01-12 00:00",
		"advanced 2  completed 1  remaining 1",
		"sch-1  post_constraint -> completed at 2",
		"promoted to ready: wi-3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDescribeCycle(t *testing.T) {
	cycle := fmt.Errorf("adding dependency: %w", &client.APIError{
		StatusCode: 409,
		Code:       "circular_dependency",
		Message:    "adding wi-1 -> wi-2 would create a cycle",
		Path:       []string{"wi-2", "wi-3", "wi-1"},
	})
	got := describeCycle(cycle)
	if !strings.Contains(got.Error(), "cycle: wi-2 -> wi-3 -> wi-1") {
		t.Errorf("describeCycle = %q", got)
	}
	if !errors.Is(got, model.ErrCircularDependency) {
		t.Error("wrapped error should still match ErrCircularDependency")
	}

	other := errors.New("boom")
	if describeCycle(other) != other {
		t.Error("non-cycle errors should pass through unchanged")
	}
}
