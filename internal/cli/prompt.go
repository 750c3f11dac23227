package cli

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const confirmFieldKey = "confirm_result"

// HuhPrompter asks on the terminal with a huh confirm form.
type HuhPrompter struct{}

// Confirm shows a Yes/No form. Ctrl+C returns ErrAborted.
func (HuhPrompter) Confirm(title, description string) (bool, error) {
	var ok bool
	if err := newConfirmForm(title, description, &ok).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, ErrAborted
		}
		return false, err
	}
	return ok, nil
}

func huhTheme() *huh.Theme {
	t := *huh.ThemeCharm()
	t.Focused.FocusedButton = t.Focused.FocusedButton.Background(lipgloss.Color("#D70000"))
	t.Focused.Next = t.Focused.FocusedButton
	return &t
}

func newConfirmForm(title, description string, result *bool) *huh.Form {
	confirm := huh.NewConfirm().
		Key(confirmFieldKey).
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(result)

	return huh.NewForm(huh.NewGroup(confirm)).
		WithTheme(huhTheme()).
		WithShowHelp(false).
		WithOutput(os.Stderr)
}

// Interactive reports whether both stdin and stderr are terminals, which is
// what the confirmation forms need.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd())) //nolint:gosec
}
