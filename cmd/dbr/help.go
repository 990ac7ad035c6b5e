package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/ui"
)

// helpRule restyles every match of re in cobra's help text.
type helpRule struct {
	re     *regexp.Regexp
	render func(m []string) string
}

var helpRules = []helpRule{
	// Section headers: "Scheduling:", "Flags:", "Global Flags:".
	{regexp.MustCompile(`(?m)^([A-Z][A-Za-z ]*:)[ \t]*$`), func(m []string) string {
		return ui.RenderAccent(m[1])
	}},
	// Command rows: two-space indent, the name, then column padding.
	{regexp.MustCompile(`(?m)^  ([a-z][\w-]*)(  +)`), func(m []string) string {
		return "  " + ui.RenderCommand(m[1]) + m[2]
	}},
	// Flag value types: "--board string", "--count int".
	{regexp.MustCompile(`(--[\w-]+ )(string|strings|int|float64|duration|stringToString)\b`), func(m []string) string {
		return m[1] + ui.RenderMuted(m[2])
	}},
	// Defaults, quoted or not: (default "week"), (default 1).
	{regexp.MustCompile(`\(default [^)]*\)`), func(m []string) string {
		return ui.RenderMuted(m[0])
	}},
}

// colorizeHelpOutput applies helpRules to plain help text.
func colorizeHelpOutput(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			return rule.render(rule.re.FindStringSubmatch(match))
		})
	}
	return s
}

// colorizedHelpFunc renders cobra's usage text and colors it when --color
// resolves to color for stdout.
func colorizedHelpFunc(cmd *cobra.Command, _ []string) {
	if color, err := colorEnabled(); err != nil || !color {
		_ = cmd.Usage()
		return
	}
	ui.SetColor(true)
	out := cmd.OutOrStdout()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	_ = cmd.Usage()
	cmd.SetOut(out)
	fmt.Fprint(out, colorizeHelpOutput(buf.String()))
}
