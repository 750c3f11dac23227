package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/chmouel/lazybranch/internal/models"
	"github.com/chmouel/lazybranch/internal/theme"
)

const (
	markSelected = "●"
	markBlocked  = "·"

	// header, filter bar, status line, key hints and the pane border
	chromeHeight = 7
)

func newBranchTable(thm *theme.Theme) table.Model {
	t := table.New(
		table.WithColumns(branchColumns(100)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(thm.Border).
		BorderBottom(true).
		Foreground(thm.Accent).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(thm.AccentFg).
		Background(thm.Accent).
		Bold(false)
	styles.Cell = styles.Cell.Foreground(thm.TextFg)
	t.SetStyles(styles)
	return t
}

func branchColumns(totalWidth int) []table.Column {
	mark := 2
	where := 7
	status := 20
	last := 15
	rest := max(totalWidth-mark-where-status-last-10, 20)
	branch := max(rest*2/5, 12)
	subject := max(rest-branch, 8)
	return []table.Column{
		{Title: "", Width: mark},
		{Title: "Branch", Width: branch},
		{Title: "Where", Width: where},
		{Title: "Status", Width: status},
		{Title: "Last Commit", Width: last},
		{Title: "Subject", Width: subject},
	}
}

// visibleRecords applies the filter mode, the search query and the sort order.
func (m *Model) visibleRecords() []models.BranchRecord {
	return m.data.records.Visible(m.view.Filter, m.view.Query, m.view.SortByDate)
}

func (m *Model) updateTable() {
	var current string
	if record, ok := m.cursorRecord(); ok {
		current = record.Name
	}

	m.data.rows = m.visibleRecords()
	rows := make([]table.Row, 0, len(m.data.rows))
	cursor := 0
	for i, r := range m.data.rows {
		mark := ""
		switch {
		case m.data.selected[r.Name]:
			mark = markSelected
		case r.Blocked():
			mark = markBlocked
		}
		rows = append(rows, table.Row{
			mark,
			r.Name,
			r.Presence.String(),
			strings.Join(r.StatusLabels(), ", "),
			r.LastCommit.Relative,
			r.LastCommit.Subject,
		})
		if r.Name == current {
			cursor = i
		}
	}
	m.ui.table.SetRows(rows)
	// keep the cursor on the same branch across refreshes
	if len(rows) > 0 {
		m.ui.table.SetCursor(cursor)
	}
}

func (m *Model) applyLayout() {
	width := m.view.WindowWidth
	height := m.view.WindowHeight
	if width <= 0 || height <= 0 {
		return
	}
	inner := max(width-4, 20)
	m.ui.table.SetColumns(branchColumns(inner))
	m.ui.table.SetWidth(inner)
	m.ui.table.SetHeight(max(height-chromeHeight, 3))
	m.ui.progress.Width = max(inner-30, 10)
	m.ui.search.Width = max(inner-20, 10)
}

func (m *Model) renderMain() string {
	width := m.view.WindowWidth
	parts := []string{
		m.renderHeader(width),
		m.renderFilterBar(width),
		m.renderBody(width),
		m.renderStatus(width),
		m.renderFooter(width),
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderHeader(width int) string {
	style := lipgloss.NewStyle().
		Foreground(m.theme.Accent).
		Bold(true).
		Align(lipgloss.Center)
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render("─── lazybranch ───")
}

func (m *Model) renderFilterBar(width int) string {
	labelStyle := lipgloss.NewStyle().Foreground(m.theme.Accent).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(m.theme.MutedFg)

	sortLabel := "name"
	if m.view.SortByDate {
		sortLabel = "date"
	}
	search := mutedStyle.Render(m.view.Query)
	if m.view.ShowingSearch {
		search = m.ui.search.View()
	}
	line := fmt.Sprintf("%s %s  %s %s  %s %s  %s %d",
		labelStyle.Render("Filter:"), m.view.Filter.Label(),
		labelStyle.Render("Sort:"), sortLabel,
		labelStyle.Render("/"), search,
		labelStyle.Render("Marked:"), len(m.data.selected),
	)
	style := lipgloss.NewStyle().Foreground(m.theme.TextFg).Padding(0, 1)
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(line)
}

func (m *Model) renderBody(width int) string {
	content := m.ui.table.View()
	if m.data.loaded && len(m.data.rows) == 0 {
		content = lipgloss.NewStyle().Foreground(m.theme.MutedFg).Render("No branches match the current filter.")
	}
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.theme.Border)
	if width > 2 {
		style = style.Width(width - 2)
	}
	return style.Render(content)
}

func (m *Model) renderStatus(width int) string {
	style := lipgloss.NewStyle().Foreground(m.theme.TextFg).Padding(0, 1)
	if width > 0 {
		style = style.Width(width)
	}

	status := m.status
	if m.busy() {
		status = m.ui.spinner.View() + " " + status
	}
	if m.batchRunning() {
		status = m.ui.progress.ViewAs(m.batch.progress.Percent()) + "  " + status
	}
	return style.Render(status)
}

func (m *Model) renderFooter(width int) string {
	hints := []string{
		m.renderKeyHint("space", "Mark"),
		m.renderKeyHint("L/R/B", "Delete local/remote/both"),
		m.renderKeyHint("tab", "Filter"),
		m.renderKeyHint("/", "Search"),
		m.renderKeyHint("r", "Refresh"),
		m.renderKeyHint("f", "Fetch"),
		m.renderKeyHint("?", "Help"),
		m.renderKeyHint("q", "Quit"),
	}
	if m.batchRunning() {
		hints = []string{
			m.renderKeyHint("esc", "Cancel deletion"),
			m.renderKeyHint("q", "Cancel and quit"),
		}
	}
	style := lipgloss.NewStyle().Foreground(m.theme.MutedFg).Padding(0, 1)
	if width > 0 {
		style = style.Width(width)
	}
	return style.Render(strings.Join(hints, "  "))
}

func (m *Model) renderKeyHint(key, label string) string {
	keyStyle := lipgloss.NewStyle().Foreground(m.theme.Accent).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(m.theme.MutedFg)
	return fmt.Sprintf("%s %s", keyStyle.Render(key), labelStyle.Render(label))
}

func (m *Model) renderScreen() string {
	view := m.ui.screens.Current().View()
	if m.view.WindowWidth <= 0 || m.view.WindowHeight <= 0 {
		return view
	}
	return lipgloss.Place(m.view.WindowWidth, m.view.WindowHeight, lipgloss.Center, lipgloss.Center, view)
}
