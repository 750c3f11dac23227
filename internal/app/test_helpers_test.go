package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chmouel/lazybranch/internal/config"
	"github.com/chmouel/lazybranch/internal/deletion"
	"github.com/chmouel/lazybranch/internal/git"
	"github.com/chmouel/lazybranch/internal/models"
)

type fakeClassifier struct {
	records models.BranchMap
	err     error
	calls   atomic.Int32
}

func (c *fakeClassifier) Classify(context.Context) (models.BranchMap, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	clone := make(models.BranchMap, len(c.records))
	for k, v := range c.records {
		clone[k] = v
	}
	return clone, nil
}

type fakeRepo struct {
	mu       sync.Mutex
	calls    []string
	unmerged map[string]bool
	fetchErr error
	fetches  int

	// when gate is set, local deletions announce themselves on started and
	// wait for gate to be closed
	gate    chan struct{}
	started chan string
}

func (r *fakeRepo) DeleteLocalBranch(_ context.Context, name string, force bool) git.Result {
	if r.gate != nil {
		r.started <- name
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	flag := "-d"
	if force {
		flag = "-D"
	}
	r.calls = append(r.calls, flag+" "+name)
	if !force && r.unmerged[name] {
		return git.Result{ExitCode: 1, Stderr: "error: the branch '" + name + "' is not fully merged.\n"}
	}
	return git.Result{}
}

func (r *fakeRepo) DeleteRemoteBranch(_ context.Context, remote, name string) git.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "push "+remote+" "+name)
	return git.Result{}
}

func (r *fakeRepo) Fetch(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	return r.fetchErr
}

func (r *fakeRepo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newGatedRepo() *fakeRepo {
	return &fakeRepo{gate: make(chan struct{}), started: make(chan string, 16)}
}

// sampleRecords sorts by name as feature, fix, main, old, wt.
func sampleRecords() models.BranchMap {
	return models.BranchMap{
		"feature": {Name: "feature", Presence: models.PresenceBoth, IsMerged: true,
			LastCommit: models.CommitInfo{Subject: "add feature", Relative: "2 days ago", Timestamp: 200}},
		"fix": {Name: "fix", Presence: models.PresenceLocalOnly,
			LastCommit: models.CommitInfo{Subject: "fix bug", Relative: "1 day ago", Timestamp: 300}},
		"main": {Name: "main", Presence: models.PresenceBoth, IsProtected: true, IsCurrent: true,
			LastCommit: models.CommitInfo{Subject: "release", Relative: "3 days ago", Timestamp: 100}},
		"old": {Name: "old", Presence: models.PresenceRemoteOnly,
			LastCommit: models.CommitInfo{Subject: "ancient", Relative: "1 year ago", Timestamp: 50}},
		"wt": {Name: "wt", Presence: models.PresenceLocalOnly, IsWorktreeBound: true,
			LastCommit: models.CommitInfo{Subject: "in progress", Relative: "1 hour ago", Timestamp: 400}},
	}
}

func testConfig() *config.AppConfig {
	cfg := config.DefaultConfig()
	cfg.ConfirmBatch = false
	cfg.AutoRefresh = false
	cfg.ConfirmTimeoutSeconds = 5
	cfg.ConfirmPollIntervalMS = 5
	return cfg
}

// newLoadedModel returns a sized model with sampleRecords already classified.
func newLoadedModel(t *testing.T, cfg *config.AppConfig, repo *fakeRepo) (*Model, *fakeClassifier) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	if repo == nil {
		repo = &fakeRepo{}
	}
	classifier := &fakeClassifier{records: sampleRecords()}
	m := NewModel(cfg, Deps{Classifier: classifier, Repository: repo}, "")
	t.Cleanup(m.cancel)
	m.setWindowSize(120, 40)
	m.Update(branchesLoadedMsg{records: sampleRecords()})
	return m, classifier
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
}

func press(m *Model, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(keyMsg(k))
	}
	return cmd
}

// drainBatch feeds engine events to the model until the event channel is
// closed. answer, when set, is pressed on every force-delete prompt.
func drainBatch(t *testing.T, m *Model, answer string) deletion.Report {
	t.Helper()
	var report deletion.Report
	deadline := time.After(5 * time.Second)
	for m.batch.events != nil {
		msgs := make(chan tea.Msg, 1)
		go func(cmd tea.Cmd) { msgs <- cmd() }(m.waitForEngineEvent())

		var msg tea.Msg
		select {
		case msg = <-msgs:
		case <-deadline:
			t.Fatal("deletion batch did not finish")
		}
		m.Update(msg)

		ev, ok := msg.(engineEventMsg)
		if !ok {
			continue
		}
		switch e := ev.event.(type) {
		case deletion.ConfirmationRequest:
			if answer == "" {
				continue
			}
			if cmd := press(m, answer); cmd != nil {
				m.Update(cmd())
			}
		case deletion.Completed:
			report = e.Report
		}
	}
	return report
}
