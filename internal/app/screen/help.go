package screen

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chmouel/lazybranch/internal/theme"
)

const helpText = `lazybranch help

Navigation
  j / k, arrows   move the cursor
  g / G           first / last branch
  q, ctrl+c       quit (cancels a running batch, waiting up to 3s)

Selection
  space           mark / unmark the branch under the cursor
  a               mark every visible deletable branch, again to unmark
  x               clear the selection

Filtering
  tab / shift+tab cycle All, Local Only, Remote Only, Merged, Unmerged
  /               search branch names (enter keeps, esc clears)
  s               sort by name or by last commit date

Deletion
  L               delete the marked branches locally (git branch -d)
  R               delete them on the remote (git push --delete)
  B               delete both sides
  esc             cancel a running batch after the current branch

  Protected, current and worktree branches are never deleted.
  Unmerged branches ask before being force deleted.

Repository
  r               refresh the branch list
  f               fetch --all --prune, then refresh
`

// HelpScreen shows the key bindings in a scrollable viewport.
type HelpScreen struct {
	Viewport viewport.Model
	Thm      *theme.Theme
}

// NewHelpScreen sizes the help viewport to the available space.
func NewHelpScreen(maxWidth, maxHeight int, thm *theme.Theme) *HelpScreen {
	width := min(max(maxWidth-4, 20), 72)
	height := min(max(maxHeight-6, 5), strings.Count(helpText, "\n")+1)

	vp := viewport.New(width, height)
	vp.SetContent(helpText)
	return &HelpScreen{Viewport: vp, Thm: thm}
}

// Type returns the screen type.
func (s *HelpScreen) Type() Type {
	return TypeHelp
}

// Update scrolls the viewport or closes the screen.
func (s *HelpScreen) Update(msg tea.KeyMsg) (Screen, tea.Cmd) {
	switch msg.String() {
	case keyEsc, keyEscRaw, keyQ, keyCtrlC, keyEnter, "?":
		return nil, nil
	}
	var cmd tea.Cmd
	s.Viewport, cmd = s.Viewport.Update(msg)
	return s, cmd
}

// View renders the help box.
func (s *HelpScreen) View() string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.Thm.Accent).
		Foreground(s.Thm.TextFg).
		Padding(0, 1).
		Render(s.Viewport.View())
}

// SetTheme updates the theme for this screen.
func (s *HelpScreen) SetTheme(thm *theme.Theme) {
	s.Thm = thm
}
