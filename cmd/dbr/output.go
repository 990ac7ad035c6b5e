package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
)

const timeLayout = "2006-01-02 15:04"

// emit writes v as indented JSON when --json is set, otherwise calls table.
func emit(w io.Writer, v any, table func(io.Writer) error) error {
	if jsonOutput {
		return printJSON(w, v)
	}
	return table(w)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printOrganizations(w io.Writer, orgs []*model.Organization) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED")
	for _, o := range orgs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.ID, o.Name, o.CreatedAt.Format(timeLayout))
	}
	return tw.Flush()
}

func printCCRs(w io.Writer, ccrs []*model.CCR) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tKEY\tCAPACITY")
	for _, c := range ccrs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1fh\n", c.ID, c.Name, c.Key(), c.CapacityPerTimeUnit)
	}
	return tw.Flush()
}

func printBoards(w io.Writer, boards []*model.BoardConfig) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tCCR\tPRE\tPOST\tUNIT")
	for _, b := range boards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			b.ID, b.Name, b.CCRID, b.PreConstraintBufferSize, b.PostConstraintBufferSize, b.TimeUnit)
	}
	return tw.Flush()
}

// formatHours renders a CCR hours map in key order: "dev_team=10 qa=2.5".
func formatHours(m map[string]float64) string {
	if len(m) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, m[k]))
	}
	return strings.Join(parts, " ")
}

func printWorkItems(w io.Writer, items []*model.WorkItem, total int) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tSTATUS\tTITLE\tHOURS")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Status, it.Title, formatHours(it.CCRHoursRequired))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if total > len(items) {
		fmt.Fprintf(w, "\n%d of %d work items\n", len(items), total)
	}
	return nil
}

func printWorkItem(w io.Writer, it *model.WorkItem) error {
	fmt.Fprintf(w, "ID:          %s\n", it.ID)
	fmt.Fprintf(w, "Title:       %s\n", it.Title)
	fmt.Fprintf(w, "Status:      %s\n", it.Status)
	fmt.Fprintf(w, "Hours:       %s\n", formatHours(it.CCRHoursRequired))
	if it.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", it.Description)
	}
	fmt.Fprintf(w, "Created At:  %s\n", it.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Updated At:  %s\n", it.UpdatedAt.Format(timeLayout))
	return nil
}

func printDependencies(w io.Writer, deps []*model.WorkItemDependency) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDEPENDENT\tPREREQUISITE\tTYPE")
	for _, d := range deps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.ID, d.DependentID, d.PrerequisiteID, d.Type)
	}
	return tw.Flush()
}

func printSchedules(w io.Writer, schedules []*model.Schedule) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tBOARD\tSTATUS\tPOS\tHOURS\tITEMS")
	for _, s := range schedules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f\t%s\n",
			s.ID, s.BoardConfigID, s.Status, s.TimeUnitPosition, s.TotalCCRHours, strings.Join(s.WorkItemIDs, ","))
	}
	return tw.Flush()
}

func printSchedule(w io.Writer, s *model.Schedule) error {
	fmt.Fprintf(w, "ID:         %s\n", s.ID)
	fmt.Fprintf(w, "Board:      %s\n", s.BoardConfigID)
	fmt.Fprintf(w, "CCR:        %s\n", s.CCRID)
	fmt.Fprintf(w, "Status:     %s\n", s.Status)
	fmt.Fprintf(w, "Position:   %d\n", s.TimeUnitPosition)
	fmt.Fprintf(w, "CCR Hours:  %.1f\n", s.TotalCCRHours)
	fmt.Fprintf(w, "Work Items: %s\n", strings.Join(s.WorkItemIDs, ", "))
	fmt.Fprintf(w, "Created At: %s\n", s.CreatedAt.Format(timeLayout))
	if s.ReleasedDate != nil {
		fmt.Fprintf(w, "Released:   %s\n", s.ReleasedDate.Format(timeLayout))
	}
	if s.CompletionDate != nil {
		fmt.Fprintf(w, "Completed:  %s\n", s.CompletionDate.Format(timeLayout))
	}
	return nil
}

func printAdvanceResult(w io.Writer, res *scheduling.AdvanceResult) error {
	fmt.Fprintf(w, "ticked %s, now %s\n", res.TickedAt.Format(timeLayout), res.Now.Format(timeLayout))
	fmt.Fprintf(w, "advanced %d  completed %d  remaining %d\n", res.AdvancedCount, res.CompletedCount, res.RemainingCount)
	for _, t := range res.Transitions {
		fmt.Fprintf(w, "  %s  %s -> %s at %d\n", t.ScheduleID, t.From, t.To, t.Position)
	}
	if len(res.PromotedWorkItems) > 0 {
		fmt.Fprintf(w, "promoted to ready: %s\n", strings.Join(res.PromotedWorkItems, ", "))
	}
	return nil
}

func printEvents(w io.Writer, evs []*model.Event) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tTOPIC\tENTITY")
	for _, ev := range evs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ev.CreatedAt.Local().Format(time.TimeOnly), ev.Topic, ev.EntityID)
	}
	return tw.Flush()
}
