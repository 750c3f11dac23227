package app

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chmouel/lazybranch/internal/app/screen"
	"github.com/chmouel/lazybranch/internal/branches"
	"github.com/chmouel/lazybranch/internal/deletion"
	"github.com/chmouel/lazybranch/internal/models"
)

func scopeLabel(scope models.Scope) string {
	switch scope {
	case models.ScopeRemote:
		return "remote"
	case models.ScopeBoth:
		return "local and remote"
	default:
		return "local"
	}
}

// requestDeletion plans the selection under scope and either asks for the
// batch to be confirmed or starts it.
func (m *Model) requestDeletion(scope models.Scope) tea.Cmd {
	if m.batchRunning() {
		m.status = "A deletion is already running"
		return nil
	}
	if m.services.repo == nil {
		return nil
	}
	if !m.data.loaded {
		m.status = "Branches are still loading"
		return nil
	}
	selection := m.selection()
	if len(selection) == 0 {
		m.status = "No branch selected"
		return nil
	}

	plan := branches.PlanDeletion(selection, m.data.records, scope)
	if len(plan.Eligible) == 0 {
		msg := fmt.Sprintf("None of the selected branches can be deleted (%s).", scopeLabel(scope))
		if details := describeRejections(plan); details != "" {
			msg += "\n\n" + details
		}
		m.showInfo("Nothing to delete", msg)
		return nil
	}

	if !m.config.ConfirmBatch {
		return m.startBatch(plan, scope)
	}

	confirm := screen.NewConfirmScreen(
		fmt.Sprintf("Delete %d branch(es) (%s)?", len(plan.Eligible), scopeLabel(scope)),
		batchMessage(plan, scope),
		m.theme,
	)
	confirm.OnConfirm = func() tea.Cmd {
		return m.startBatch(plan, scope)
	}
	m.ui.screens.Push(confirm)
	return nil
}

func batchMessage(plan branches.Plan, scope models.Scope) string {
	var b strings.Builder
	for _, name := range plan.Names() {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	if skipped := describeRejections(plan); skipped != "" {
		b.WriteString("\nSkipped:\n")
		b.WriteString(skipped)
	}
	if scope != models.ScopeLocal {
		b.WriteString("\nRemote deletions are PERMANENT!")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) startBatch(plan branches.Plan, scope models.Scope) tea.Cmd {
	listener := deletion.NewChannelListener(len(plan.Eligible))
	engine := deletion.NewEngine(m.services.repo, listener, deletion.Options{
		Remote:         m.config.Remote,
		ConfirmTimeout: m.config.ConfirmTimeout(),
		PollInterval:   m.config.ConfirmPollInterval(),
	})
	if err := engine.Start(m.ctx, plan.Eligible); err != nil {
		m.showInfo("Deletion failed", err.Error())
		return nil
	}

	m.batch = batchState{
		engine:   engine,
		events:   listener.Events(),
		scope:    scope,
		progress: deletion.Progress{Total: len(plan.Eligible)},
	}
	m.status = fmt.Sprintf("Deleting %d branch(es)...", len(plan.Eligible))
	m.debugf("app: started %s deletion of %v", scope, plan.Names())
	return tea.Batch(m.waitForEngineEvent(), m.ui.spinner.Tick)
}

func (m *Model) waitForEngineEvent() tea.Cmd {
	events := m.batch.events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-events
		if !ok {
			return engineClosedMsg{}
		}
		return engineEventMsg{event: event}
	}
}

func (m *Model) handleEngineEvent(event deletion.Event) (tea.Model, tea.Cmd) {
	switch ev := event.(type) {
	case deletion.Progress:
		m.batch.progress = ev
		m.status = ev.String()
		// the prompt of a request answered by timeout or cancel is stale
		m.dropConfirmationScreens()
		return m, m.waitForEngineEvent()

	case deletion.ConfirmationRequest:
		m.showConfirmation(ev)
		return m, m.waitForEngineEvent()

	case deletion.Completed:
		return m, tea.Batch(m.finishBatch(ev.Report), m.waitForEngineEvent())
	}
	return m, m.waitForEngineEvent()
}

func (m *Model) showConfirmation(req deletion.ConfirmationRequest) {
	engine := m.batch.engine
	confirm := screen.NewConfirmScreenWithDefault(
		fmt.Sprintf("Force delete %s?", req.Branch),
		fmt.Sprintf("%s\n\nForce delete it with git branch -D? Unmerged commits will be lost.", req.Reason),
		1,
		m.theme,
	)
	confirm.Tag = strconv.FormatUint(req.ID, 10)
	respond := func(accept bool) func() tea.Cmd {
		return func() tea.Cmd {
			return func() tea.Msg {
				return confirmRespondedMsg{branch: req.Branch, err: engine.Respond(req.ID, accept)}
			}
		}
	}
	confirm.OnConfirm = respond(true)
	confirm.OnCancel = respond(false)
	m.ui.screens.Push(confirm)
	m.status = fmt.Sprintf("%s is not fully merged", req.Branch)
}

func (m *Model) dropConfirmationScreens() {
	m.ui.screens.Remove(func(s screen.Screen) bool {
		confirm, ok := s.(*screen.ConfirmScreen)
		return ok && confirm.Tag != ""
	})
}

func (m *Model) finishBatch(report deletion.Report) tea.Cmd {
	m.dropConfirmationScreens()
	for _, outcome := range report.Outcomes {
		if outcome.State() == deletion.StateSucceeded {
			delete(m.data.selected, outcome.Branch)
		}
	}
	if m.batch.engine != nil {
		m.batch.engine.Close()
	}
	m.batch.engine = nil

	title := "Deletion finished"
	if report.Cancelled {
		title = "Deletion cancelled"
	}
	if report.Err != nil {
		title = "Deletion aborted"
	}
	message := report.Summary()
	if failures := report.Failures(); len(failures) > 0 {
		message += "\n\n" + strings.Join(failures, "\n")
	}
	m.showInfo(title, message)

	refresh := m.refresh()
	m.status = report.Summary()
	return refresh
}
