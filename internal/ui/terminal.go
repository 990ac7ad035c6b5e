package ui

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ColorMode is the CLI's --color setting.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// ParseColorMode reads a --color value. Empty means auto.
func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ColorAuto, nil
	case ColorAuto, ColorAlways, ColorNever:
		return m, nil
	}
	return "", fmt.Errorf("invalid color mode %q (must be auto, always or never)", s)
}

// ColorEnabled resolves mode for output written to out. In auto mode
// NO_COLOR turns color off, CLICOLOR_FORCE=1 forces it on, CLICOLOR=0
// turns it off, and otherwise only terminals get color.
func ColorEnabled(mode ColorMode, out *os.File) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if envIs("CLICOLOR_FORCE", "1") {
		return true
	}
	if envIs("CLICOLOR", "0") {
		return false
	}
	return out != nil && term.IsTerminal(int(out.Fd()))
}

func envIs(key, want string) bool {
	return strings.TrimSpace(os.Getenv(key)) == want
}
