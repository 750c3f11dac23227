// Package theme provides the colour palettes used by the TUI and the
// detection of the terminal background.
package theme

import (
	"errors"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Theme defines all colors used in the application UI.
type Theme struct {
	Name       string
	Light      bool
	Background lipgloss.Color
	Accent     lipgloss.Color
	AccentFg   lipgloss.Color // text drawn on Accent
	Selected   lipgloss.Color // rows marked for deletion
	Border     lipgloss.Color
	MutedFg    lipgloss.Color
	TextFg     lipgloss.Color
	SuccessFg  lipgloss.Color
	WarnFg     lipgloss.Color
	ErrorFg    lipgloss.Color

	// Status label colours.
	Current   lipgloss.Color
	Worktree  lipgloss.Color
	Merged    lipgloss.Color
	Protected lipgloss.Color
}

// Theme names.
const (
	DraculaName       = "dracula"
	DraculaLightName  = "dracula-light"
	NordName          = "nord"
	SolarizedDarkName = "solarized-dark"
	GruvboxLightName  = "gruvbox-light"
)

// ErrNoTerminal is returned by DetectBackground when stdout is not a TTY.
var ErrNoTerminal = errors.New("stdout is not a terminal")

var registry = map[string]Theme{
	DraculaName: {
		Name:       DraculaName,
		Background: "#282A36",
		Accent:     "#BD93F9",
		AccentFg:   "#282A36",
		Selected:   "#44475A",
		Border:     "#6272A4",
		MutedFg:    "#6272A4",
		TextFg:     "#F8F8F2",
		SuccessFg:  "#50FA7B",
		WarnFg:     "#FFB86C",
		ErrorFg:    "#FF5555",
		Current:    "#8BE9FD",
		Worktree:   "#FF79C6",
		Merged:     "#50FA7B",
		Protected:  "#F1FA8C",
	},
	DraculaLightName: {
		Name:       DraculaLightName,
		Light:      true,
		Background: "#FFFFFF",
		Accent:     "#C6DBE5",
		AccentFg:   "#24292F",
		Selected:   "#F3E8FF",
		Border:     "#D0D7DE",
		MutedFg:    "#6E7781",
		TextFg:     "#24292F",
		SuccessFg:  "#059669",
		WarnFg:     "#D97706",
		ErrorFg:    "#DC2626",
		Current:    "#0891B2",
		Worktree:   "#DB2777",
		Merged:     "#059669",
		Protected:  "#CA8A04",
	},
	NordName: {
		Name:       NordName,
		Background: "#2E3440",
		Accent:     "#88C0D0",
		AccentFg:   "#2E3440",
		Selected:   "#3B4252",
		Border:     "#4C566A",
		MutedFg:    "#81A1C1",
		TextFg:     "#E5E9F0",
		SuccessFg:  "#A3BE8C",
		WarnFg:     "#EBCB8B",
		ErrorFg:    "#BF616A",
		Current:    "#88C0D0",
		Worktree:   "#B48EAD",
		Merged:     "#A3BE8C",
		Protected:  "#EBCB8B",
	},
	SolarizedDarkName: {
		Name:       SolarizedDarkName,
		Background: "#002B36",
		Accent:     "#268BD2",
		AccentFg:   "#FDF6E3",
		Selected:   "#073642",
		Border:     "#586E75",
		MutedFg:    "#586E75",
		TextFg:     "#EEE8D5",
		SuccessFg:  "#859900",
		WarnFg:     "#B58900",
		ErrorFg:    "#DC322F",
		Current:    "#2AA198",
		Worktree:   "#D33682",
		Merged:     "#859900",
		Protected:  "#B58900",
	},
	GruvboxLightName: {
		Name:       GruvboxLightName,
		Light:      true,
		Background: "#FBF1C7",
		Accent:     "#D79921",
		AccentFg:   "#FBF1C7",
		Selected:   "#E0CFA9",
		Border:     "#D5C4A1",
		MutedFg:    "#7C6F64",
		TextFg:     "#3C3836",
		SuccessFg:  "#79740E",
		WarnFg:     "#D79921",
		ErrorFg:    "#9D0006",
		Current:    "#427B58",
		Worktree:   "#B16286",
		Merged:     "#79740E",
		Protected:  "#AF3A03",
	},
}

// GetTheme returns a theme by name, or Dracula if not found.
func GetTheme(name string) *Theme {
	t, ok := registry[name]
	if !ok {
		t = registry[DraculaName]
	}
	return &t
}

// IsLight returns true if the theme is a light theme.
func IsLight(name string) bool {
	return registry[name].Light
}

// DefaultDark returns the default dark theme name.
func DefaultDark() string {
	return DraculaName
}

// DefaultLight returns the default light theme name.
func DefaultLight() string {
	return DraculaLightName
}

// AvailableThemes returns a list of available theme names.
func AvailableThemes() []string {
	return []string{
		DraculaName,
		DraculaLightName,
		NordName,
		SolarizedDarkName,
		GruvboxLightName,
	}
}

// backgroundQuery is swapped in tests.
var backgroundQuery = func() bool {
	return termenv.NewOutput(os.Stdout).HasDarkBackground()
}

// DetectBackground picks the default dark or light theme by asking the
// terminal for its background colour. Terminals that never answer are
// abandoned after timeout.
func DetectBackground(timeout time.Duration) (string, error) {
	if !isTerminal() {
		return "", ErrNoTerminal
	}

	query := backgroundQuery
	result := make(chan bool, 1)
	go func() {
		result <- query()
	}()

	select {
	case dark := <-result:
		if dark {
			return DefaultDark(), nil
		}
		return DefaultLight(), nil
	case <-time.After(timeout):
		return "", errors.New("terminal background query timed out")
	}
}

var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
}
