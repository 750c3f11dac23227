package screen

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/chmouel/lazybranch/internal/theme"
)

const modalWidth = 64

// ConfirmScreen displays a modal confirmation prompt with Confirm/Cancel buttons.
type ConfirmScreen struct {
	Title          string
	Message        string
	SelectedButton int // 0 = Confirm, 1 = Cancel
	// Tag identifies the request the prompt belongs to, so it can be closed
	// when the request expires.
	Tag string
	Thm *theme.Theme

	OnConfirm func() tea.Cmd
	OnCancel  func() tea.Cmd
}

// NewConfirmScreen creates a confirm screen with the Confirm button focused.
func NewConfirmScreen(title, message string, thm *theme.Theme) *ConfirmScreen {
	return &ConfirmScreen{
		Title:   title,
		Message: message,
		Thm:     thm,
	}
}

// NewConfirmScreenWithDefault creates a confirmation modal with a specified default button.
func NewConfirmScreenWithDefault(title, message string, defaultButton int, thm *theme.Theme) *ConfirmScreen {
	s := NewConfirmScreen(title, message, thm)
	s.SelectedButton = defaultButton
	return s
}

// Type returns the screen type.
func (s *ConfirmScreen) Type() Type {
	return TypeConfirm
}

func (s *ConfirmScreen) confirm() (Screen, tea.Cmd) {
	if s.OnConfirm != nil {
		return nil, s.OnConfirm()
	}
	return nil, nil
}

func (s *ConfirmScreen) cancel() (Screen, tea.Cmd) {
	if s.OnCancel != nil {
		return nil, s.OnCancel()
	}
	return nil, nil
}

// Update processes keyboard events for the confirmation dialog.
func (s *ConfirmScreen) Update(msg tea.KeyMsg) (Screen, tea.Cmd) {
	switch msg.String() {
	case keyTab, "right", "l", keyShiftTab, "left", "h":
		s.SelectedButton = 1 - s.SelectedButton
	case "y", "Y":
		return s.confirm()
	case "n", "N", keyEsc, keyEscRaw, keyQ, keyCtrlC:
		return s.cancel()
	case keyEnter:
		if s.SelectedButton == 0 {
			return s.confirm()
		}
		return s.cancel()
	}
	return s, nil
}

// View renders the dialog with the focused button highlighted.
func (s *ConfirmScreen) View() string {
	inner := modalWidth - 6

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.Thm.WarnFg).
		Padding(1, 2).
		Width(modalWidth)

	titleStyle := lipgloss.NewStyle().
		Width(inner).
		Align(lipgloss.Center).
		Foreground(s.Thm.Accent).
		Bold(true)

	messageStyle := lipgloss.NewStyle().
		Width(inner).
		Foreground(s.Thm.TextFg)

	button := lipgloss.NewStyle().
		Width(inner/2 - 1).
		Align(lipgloss.Center)

	focusedConfirm := button.Foreground(s.Thm.AccentFg).Background(s.Thm.ErrorFg).Bold(true)
	focusedCancel := button.Foreground(s.Thm.AccentFg).Background(s.Thm.Accent).Bold(true)
	unfocused := button.Foreground(s.Thm.MutedFg).Background(s.Thm.Selected)

	confirmButton := unfocused.Render("[Confirm]")
	cancelButton := focusedCancel.Render("[Cancel]")
	if s.SelectedButton == 0 {
		confirmButton = focusedConfirm.Render("[Confirm]")
		cancelButton = unfocused.Render("[Cancel]")
	}

	var b strings.Builder
	if s.Title != "" {
		b.WriteString(titleStyle.Render(s.Title))
		b.WriteString("\n\n")
	}
	b.WriteString(messageStyle.Render(wordwrap.String(s.Message, inner)))
	fmt.Fprintf(&b, "\n\n%s  %s", confirmButton, cancelButton)

	return boxStyle.Render(b.String())
}

// SetTheme updates the theme for this screen.
func (s *ConfirmScreen) SetTheme(thm *theme.Theme) {
	s.Thm = thm
}
