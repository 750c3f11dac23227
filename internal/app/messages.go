package app

import (
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chmouel/lazybranch/internal/app/services"
	"github.com/chmouel/lazybranch/internal/deletion"
	log "github.com/chmouel/lazybranch/internal/log"
	"github.com/chmouel/lazybranch/internal/models"
)

// Message types for the Bubble Tea app.
type (
	errMsg            struct{ err error }
	branchesLoadedMsg struct {
		records models.BranchMap
		err     error
	}
	cachedBranchesMsg struct{ records models.BranchMap }
	fetchDoneMsg      struct{ err error }
	engineEventMsg    struct {
		event deletion.Event
	}
	engineClosedMsg     struct{}
	confirmRespondedMsg struct {
		branch string
		err    error
	}
	gitDirChangedMsg struct{}
	quitNowMsg       struct{}
)

func (m *Model) loadBranches() tea.Cmd {
	classifier := m.services.classifier
	if classifier == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		records, err := classifier.Classify(ctx)
		return branchesLoadedMsg{records: records, err: err}
	}
}

func (m *Model) refresh() tea.Cmd {
	if m.services.classifier == nil {
		return nil
	}
	m.loading = true
	m.status = loadingBranches
	return tea.Batch(m.loadBranches(), m.ui.spinner.Tick)
}

func (m *Model) handleBranchesLoaded(msg branchesLoadedMsg) (tea.Model, tea.Cmd) {
	m.loading = false
	if msg.err != nil {
		m.debugf("app: classification failed: %v", msg.err)
		m.status = "Classification failed"
		m.showInfo("Classification failed", msg.err.Error())
		return m, nil
	}
	m.data.records = msg.records
	m.data.loaded = true
	// marks on branches that no longer exist would end up inapplicable
	for name := range m.data.selected {
		if _, ok := m.data.records[name]; !ok {
			delete(m.data.selected, name)
		}
	}
	m.updateTable()
	m.saveCache()
	if m.status == loadingBranches {
		m.status = fmt.Sprintf("%d branch(es)", len(m.data.records))
	}
	return m, nil
}

func (m *Model) loadCache() tea.Cmd {
	path := m.services.cacheFile
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		records, err := services.LoadBranchCache(path)
		if err != nil {
			log.Printf("app: ignoring branch cache %s: %v", path, err)
			return nil
		}
		return cachedBranchesMsg{records: records}
	}
}

// handleCachedBranches shows the cached list until the first classification
// lands. Deletion stays disabled until then.
func (m *Model) handleCachedBranches(msg cachedBranchesMsg) {
	if m.data.loaded || len(msg.records) == 0 {
		return
	}
	m.data.records = msg.records
	m.updateTable()
	m.status = "Showing cached branches, refreshing..."
}

func (m *Model) saveCache() {
	if m.services.cacheFile == "" {
		return
	}
	if err := services.SaveBranchCache(m.services.cacheFile, m.data.records); err != nil {
		m.debugf("app: failed to write branch cache: %v", err)
	}
}

func (m *Model) fetch() tea.Cmd {
	if m.batchRunning() {
		m.status = "Cannot fetch while a deletion is running"
		return nil
	}
	if m.fetching || m.services.repo == nil {
		return nil
	}
	m.fetching = true
	m.status = "Fetching all remotes..."
	repo := m.services.repo
	ctx := m.ctx
	return tea.Batch(func() tea.Msg {
		return fetchDoneMsg{err: repo.Fetch(ctx)}
	}, m.ui.spinner.Tick)
}

func (m *Model) handleFetchDone(msg fetchDoneMsg) (tea.Model, tea.Cmd) {
	m.fetching = false
	if msg.err != nil {
		m.status = "Fetch failed"
		m.showInfo("Fetch failed", msg.err.Error())
		return m, nil
	}
	return m, m.refresh()
}

func (m *Model) handleGitDirChanged() (tea.Model, tea.Cmd) {
	if m.services.watch != nil {
		m.services.watch.ResetWaiting()
	}
	cmds := []tea.Cmd{m.waitForGitWatchEvent()}
	// a completed batch refreshes on its own
	if !m.batchRunning() && !m.loading && m.shouldRefreshGitEvent(time.Now()) {
		m.debugf("app: refs changed on disk, reclassifying")
		cmds = append(cmds, m.refresh())
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleConfirmResponded(msg confirmRespondedMsg) {
	switch {
	case msg.err == nil:
	case errors.Is(msg.err, deletion.ErrStaleConfirmation), errors.Is(msg.err, deletion.ErrNoPendingConfirmation):
		m.status = fmt.Sprintf("Confirmation for %s expired", msg.branch)
	default:
		m.status = fmt.Sprintf("Confirmation for %s failed: %v", msg.branch, msg.err)
	}
}
