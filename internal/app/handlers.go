package app

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chmouel/lazybranch/internal/app/screen"
	"github.com/chmouel/lazybranch/internal/branches"
	"github.com/chmouel/lazybranch/internal/models"
)

const (
	keyEnter    = "enter"
	keyEsc      = "esc"
	keyCtrlC    = "ctrl+c"
	keyTab      = "tab"
	keyShiftTab = "shift+tab"
	keySpace    = " "
)

// tableKeys are forwarded to the branch table. Everything else is ours:
// the table's default key map also pages on space, f and b.
var tableKeys = map[string]bool{
	"up": true, "down": true, "k": true, "j": true,
	"g": true, "G": true, "home": true, "end": true,
	"pgup": true, "pgdown": true,
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == keyCtrlC {
		return m, m.quit()
	}
	if m.ui.screens.IsActive() {
		return m.handleScreenKey(msg)
	}
	if m.view.ShowingSearch {
		return m.handleSearchKey(msg)
	}

	key := msg.String()
	switch key {
	case "q":
		return m, m.quit()
	case "?":
		m.ui.screens.Push(screen.NewHelpScreen(m.view.WindowWidth, m.view.WindowHeight, m.theme))
		return m, nil
	case keyEsc:
		if m.batchRunning() {
			m.batch.engine.Cancel()
			m.status = "Cancelling after the current branch..."
			return m, nil
		}
		if m.view.Query != "" {
			m.setQuery("")
		}
		return m, nil
	case keySpace:
		m.toggleCursor()
		return m, nil
	case "a":
		m.toggleAllVisible()
		return m, nil
	case "x":
		m.data.selected = map[string]bool{}
		m.updateTable()
		return m, nil
	case keyTab:
		m.view.NextFilter(1)
		m.updateTable()
		return m, nil
	case keyShiftTab:
		m.view.NextFilter(-1)
		m.updateTable()
		return m, nil
	case "/":
		m.view.ShowingSearch = true
		m.ui.search.SetValue(m.view.Query)
		m.ui.search.CursorEnd()
		return m, m.ui.search.Focus()
	case "s":
		m.view.SortByDate = !m.view.SortByDate
		m.updateTable()
		return m, nil
	case "L":
		return m, m.requestDeletion(models.ScopeLocal)
	case "R":
		return m, m.requestDeletion(models.ScopeRemote)
	case "B":
		return m, m.requestDeletion(models.ScopeBoth)
	case "r":
		if m.batchRunning() {
			m.status = "Refresh happens when the deletion finishes"
			return m, nil
		}
		return m, m.refresh()
	case "f":
		return m, m.fetch()
	}

	if tableKeys[key] {
		var cmd tea.Cmd
		m.ui.table, cmd = m.ui.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleScreenKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	current := m.ui.screens.Current()
	next, cmd := current.Update(msg)
	if next == nil {
		// callbacks may have pushed a follow-up screen
		m.ui.screens.Remove(func(s screen.Screen) bool { return s == current })
	} else if next != current {
		m.ui.screens.Replace(next)
	}
	return m, cmd
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case keyEnter:
		m.view.ShowingSearch = false
		m.ui.search.Blur()
		return m, nil
	case keyEsc:
		m.view.ShowingSearch = false
		m.ui.search.Blur()
		m.setQuery("")
		return m, nil
	}
	var cmd tea.Cmd
	m.ui.search, cmd = m.ui.search.Update(msg)
	if value := m.ui.search.Value(); value != m.view.Query {
		m.view.Query = value
		m.updateTable()
	}
	return m, cmd
}

func (m *Model) setQuery(query string) {
	m.view.Query = query
	m.ui.search.SetValue(query)
	m.updateTable()
}

func (m *Model) cursorRecord() (models.BranchRecord, bool) {
	idx := m.ui.table.Cursor()
	if idx < 0 || idx >= len(m.data.rows) {
		return models.BranchRecord{}, false
	}
	return m.data.rows[idx], true
}

func (m *Model) toggleCursor() {
	record, ok := m.cursorRecord()
	if !ok {
		return
	}
	if reason := branches.RejectionReason(record); reason != "" {
		m.status = fmt.Sprintf("%s cannot be deleted: %s", record.Name, reason)
		return
	}
	if m.data.selected[record.Name] {
		delete(m.data.selected, record.Name)
	} else {
		m.data.selected[record.Name] = true
	}
	m.updateTable()
}

// toggleAllVisible marks every visible deletable branch, or unmarks them
// when they are all marked already.
func (m *Model) toggleAllVisible() {
	var deletable []string
	allMarked := true
	for _, r := range m.data.rows {
		if r.Blocked() {
			continue
		}
		deletable = append(deletable, r.Name)
		if !m.data.selected[r.Name] {
			allMarked = false
		}
	}
	for _, name := range deletable {
		if allMarked {
			delete(m.data.selected, name)
		} else {
			m.data.selected[name] = true
		}
	}
	m.updateTable()
}

// selection returns the marked branches, or the branch under the cursor when
// nothing is marked.
func (m *Model) selection() []string {
	if len(m.data.selected) > 0 {
		names := make([]string, 0, len(m.data.selected))
		for _, r := range m.data.records.Sorted(m.view.SortByDate) {
			if m.data.selected[r.Name] {
				names = append(names, r.Name)
			}
		}
		return names
	}
	if record, ok := m.cursorRecord(); ok {
		return []string{record.Name}
	}
	return nil
}

func describeRejections(plan branches.Plan) string {
	var b strings.Builder
	for _, r := range plan.Rejected {
		fmt.Fprintf(&b, "  %s: %s\n", r.Name, r.Reason)
	}
	for _, name := range plan.Inapplicable {
		fmt.Fprintf(&b, "  %s: not on the targeted side\n", name)
	}
	return b.String()
}
