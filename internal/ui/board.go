package ui

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rnwolf/dbr/internal/scheduling"
)

const barWidth = 10

// RenderBoard draws one board as a table with a row per position, from
// the entry position down to the end of the post buffer. byPosition maps
// positions to the ids of the schedules parked there.
func RenderBoard(w io.Writer, sum *scheduling.BoardSummary, byPosition map[int][]string) {
	b := sum.Board
	title := RenderAccent(b.Name) + " " + RenderMuted("("+b.ID+")")
	if sum.CCR != nil {
		title += fmt.Sprintf("  drum %s %.1fh/%s", sum.CCR.Name, sum.CCR.CapacityPerTimeUnit, b.TimeUnit)
	}
	fmt.Fprintln(w, title)
	fmt.Fprintf(w, "%5s  %-16s  %8s  %-*s  %s\n", "POS", "ZONE", "LOAD", barWidth+5, "UTIL", "SCHEDULES")

	for _, p := range sum.Positions {
		ids := byPosition[p.Position]
		cell := RenderMuted("-")
		if len(ids) > 0 {
			cell = strings.Join(ids, ", ")
		}
		fmt.Fprintf(w, "%5d  %s  %7.1fh  %s %3.0f%%  %s\n",
			p.Position,
			RenderZone(p.Zone, fmt.Sprintf("%-16s", p.Zone)),
			p.CCRHours,
			bar(p.Utilization),
			p.Utilization*100,
			cell,
		)
	}

	fmt.Fprintf(w, "active %d  completed %d  avg %.1fh  lead time %.1fh\n",
		sum.Active, sum.Completed, sum.AverageCCRHours, sum.AverageLeadTimeHours)
}

// bar renders utilization as a fixed-width gauge. Overloaded positions
// fill the gauge and end in '!'.
func bar(util float64) string {
	filled := int(math.Round(util * barWidth))
	over := filled > barWidth
	filled = max(0, min(filled, barWidth))
	s := strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled)
	if over {
		s = s[:barWidth-1] + "!"
	}
	return s
}
