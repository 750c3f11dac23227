package screen

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/chmouel/lazybranch/internal/theme"
)

// InfoScreen displays a modal message with an OK button. Long messages can
// be scrolled with the arrow keys.
type InfoScreen struct {
	Title   string
	Message string
	Thm     *theme.Theme
	// MaxLines caps the visible message lines, 0 means 15.
	MaxLines int
	offset   int

	OnClose func() tea.Cmd
}

// NewInfoScreen creates an informational modal.
func NewInfoScreen(title, message string, thm *theme.Theme) *InfoScreen {
	return &InfoScreen{
		Title:   title,
		Message: message,
		Thm:     thm,
	}
}

// Type returns the screen type.
func (s *InfoScreen) Type() Type {
	return TypeInfo
}

func (s *InfoScreen) lines() []string {
	return strings.Split(wordwrap.String(s.Message, modalWidth-6), "\n")
}

func (s *InfoScreen) visible() int {
	if s.MaxLines > 0 {
		return s.MaxLines
	}
	return 15
}

// Update processes keyboard events for the info dialog.
func (s *InfoScreen) Update(msg tea.KeyMsg) (Screen, tea.Cmd) {
	switch msg.String() {
	case keyEnter, keyEsc, keyEscRaw, keyQ, keyCtrlC:
		if s.OnClose != nil {
			return nil, s.OnClose()
		}
		return nil, nil
	case "down", "j":
		if s.offset+s.visible() < len(s.lines()) {
			s.offset++
		}
	case "up", "k":
		if s.offset > 0 {
			s.offset--
		}
	}
	return s, nil
}

// View renders the message box with a single OK button.
func (s *InfoScreen) View() string {
	inner := modalWidth - 6

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.Thm.Accent).
		Padding(1, 2).
		Width(modalWidth)

	titleStyle := lipgloss.NewStyle().
		Width(inner).
		Align(lipgloss.Center).
		Foreground(s.Thm.Accent).
		Bold(true)

	okStyle := lipgloss.NewStyle().
		Width(inner).
		Align(lipgloss.Center).
		Foreground(s.Thm.AccentFg).
		Background(s.Thm.Accent).
		Bold(true)

	lines := s.lines()
	end := min(s.offset+s.visible(), len(lines))
	body := strings.Join(lines[s.offset:end], "\n")
	if end < len(lines) {
		body += "\n" + lipgloss.NewStyle().Foreground(s.Thm.MutedFg).Render("↓ more")
	}

	var b strings.Builder
	if s.Title != "" {
		b.WriteString(titleStyle.Render(s.Title))
		b.WriteString("\n\n")
	}
	b.WriteString(lipgloss.NewStyle().Foreground(s.Thm.TextFg).Render(body))
	b.WriteString("\n\n")
	b.WriteString(okStyle.Render("[OK]"))

	return boxStyle.Render(b.String())
}

// SetTheme updates the theme for this screen.
func (s *InfoScreen) SetTheme(thm *theme.Theme) {
	s.Thm = thm
}
