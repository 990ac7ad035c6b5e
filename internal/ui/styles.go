package ui

import (
	"fmt"

	"github.com/rnwolf/dbr/internal/scheduling"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorBuffer = 179 // amber
	colorDrum   = 203 // red
	colorDone   = 114 // green
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return paint(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return paint(colorCmd, s) }

// RenderZone colors s by board zone: buffers amber, the drum red and the
// exit green.
func RenderZone(z scheduling.Zone, s string) string {
	switch z {
	case scheduling.ZonePreConstraint, scheduling.ZonePostConstraint:
		return paint(colorBuffer, s)
	case scheduling.ZoneConstraint:
		return paint(colorDrum, s)
	case scheduling.ZoneExit:
		return paint(colorDone, s)
	}
	return s
}

// SetColor turns ANSI escapes on or off for every Render function.
func SetColor(on bool) {
	noColor = !on
}
