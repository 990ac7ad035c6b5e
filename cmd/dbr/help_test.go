package main

import (
	"strings"
	"testing"

	"github.com/rnwolf/dbr/internal/ui"
)

func TestColorizeHelpOutput(t *testing.T) {
	in := "Scheduling:\n  tick        Advance the organization's boards\n\nFlags:\n      --board string   limit to one board (default \"main\")\n      --count int      time units to advance (default 1)\n"
	out := colorizeHelpOutput(in)

	for _, want := range []string{
		ui.RenderAccent("Scheduling:"),
		ui.RenderAccent("Flags:"),
		"  " + ui.RenderCommand("tick") + "  ",
		"--board " + ui.RenderMuted("string"),
		ui.RenderMuted(`(default "main")`),
		"--count " + ui.RenderMuted("int"),
		ui.RenderMuted("(default 1)"),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("colorized help missing %q:\n%q", want, out)
		}
	}
}

func TestColorizeHelpOutput_UsageLineUntouched(t *testing.T) {
	in := "Usage:\n  dbr [command]\n"
	out := colorizeHelpOutput(in)
	if !strings.Contains(out, "  dbr [command]") {
		t.Errorf("usage line should stay plain:\n%q", out)
	}
}

func TestRootCommandGroups(t *testing.T) {
	groups := map[string]bool{}
	for _, g := range rootCmd.Groups() {
		groups[g.ID] = true
	}
	for _, c := range rootCmd.Commands() {
		if c.GroupID == "" || c.Hidden {
			continue
		}
		if !groups[c.GroupID] {
			t.Errorf("command %s uses unknown group %q", c.Name(), c.GroupID)
		}
	}
	for _, name := range []string{"org", "ccr", "board", "item", "dep", "schedule", "tick", "status", "events", "serve", "seed", "export", "remote"} {
		if c, _, err := rootCmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("command %s not registered", name)
		}
	}
}

func TestColorFlag(t *testing.T) {
	t.Cleanup(func() { colorFlag = "auto" })

	colorFlag = "always"
	if on, err := colorEnabled(); err != nil || !on {
		t.Errorf("--color=always: got %v, %v", on, err)
	}
	colorFlag = "never"
	if on, err := colorEnabled(); err != nil || on {
		t.Errorf("--color=never: got %v, %v", on, err)
	}
	colorFlag = "rainbow"
	if _, err := colorEnabled(); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}
