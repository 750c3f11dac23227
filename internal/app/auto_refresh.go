package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chmouel/lazybranch/internal/app/services"
)

func (m *Model) startGitWatcher() tea.Cmd {
	if m.config == nil || !m.config.AutoRefresh || m.services.resolver == nil {
		return nil
	}
	if m.services.watch != nil && m.services.watch.Started() {
		return nil
	}
	if m.services.watch == nil {
		m.services.watch = services.NewGitWatchService(m.services.resolver, m.debugf)
	}
	started, err := m.services.watch.Start(m.ctx)
	if err != nil {
		return func() tea.Msg {
			return errMsg{err: err}
		}
	}
	if !started {
		return nil
	}
	return m.waitForGitWatchEvent()
}

func (m *Model) stopGitWatcher() {
	if m.services.watch == nil || !m.services.watch.Started() {
		return
	}
	m.services.watch.Stop()
}

func (m *Model) waitForGitWatchEvent() tea.Cmd {
	if m.services.watch == nil {
		return nil
	}
	events := m.services.watch.NextEvent()
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		_, ok := <-events
		if !ok {
			return nil
		}
		return gitDirChangedMsg{}
	}
}

func (m *Model) shouldRefreshGitEvent(now time.Time) bool {
	if m.services.watch == nil {
		return false
	}
	return m.services.watch.ShouldRefresh(now)
}
