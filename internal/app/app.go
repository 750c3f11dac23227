// Package app is the Bubble Tea controller of lazybranch: it lists the
// classified branches, builds deletion plans from the user's selection and
// drives the background deletion engine.
package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chmouel/lazybranch/internal/app/screen"
	"github.com/chmouel/lazybranch/internal/app/services"
	"github.com/chmouel/lazybranch/internal/app/state"
	"github.com/chmouel/lazybranch/internal/config"
	"github.com/chmouel/lazybranch/internal/deletion"
	log "github.com/chmouel/lazybranch/internal/log"
	"github.com/chmouel/lazybranch/internal/models"
	"github.com/chmouel/lazybranch/internal/theme"
)

const (
	// quitWaitTimeout bounds how long quitting waits for a cancelled batch.
	quitWaitTimeout = 3 * time.Second

	loadingBranches = "Loading branches..."
)

// Classifier produces the branch map.
type Classifier interface {
	Classify(ctx context.Context) (models.BranchMap, error)
}

// Repository runs the mutating git commands.
type Repository interface {
	deletion.Deleter
	Fetch(ctx context.Context) error
}

// Deps are the collaborators the model drives. Watcher and CacheFile are
// optional.
type Deps struct {
	Classifier Classifier
	Repository Repository
	Watcher    services.CommonDirResolver
	CacheFile  string
}

type serviceState struct {
	classifier Classifier
	repo       Repository
	resolver   services.CommonDirResolver
	watch      *services.GitWatchService
	cacheFile  string
}

type uiState struct {
	table    table.Model
	search   textinput.Model
	progress progress.Model
	spinner  spinner.Model
	screens  *screen.Manager
}

type dataState struct {
	records  models.BranchMap
	rows     []models.BranchRecord
	selected map[string]bool
	loaded   bool
}

// batchState tracks the running deletion batch, if any.
type batchState struct {
	engine   *deletion.Engine
	events   <-chan deletion.Event
	scope    models.Scope
	progress deletion.Progress
}

// Model is the lazybranch TUI.
type Model struct {
	config *config.AppConfig
	theme  *theme.Theme

	services serviceState
	ui       uiState
	data     dataState
	view     state.ViewState
	batch    batchState

	ctx    context.Context
	cancel context.CancelFunc

	loading  bool
	fetching bool
	status   string
	quitting bool
}

// NewModel builds the model. Nothing runs until Init.
func NewModel(cfg *config.AppConfig, deps Deps, initialFilter string) *Model {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	thm := theme.GetTheme(cfg.Theme)

	search := textinput.New()
	search.Placeholder = "branch name"
	search.Prompt = ""
	search.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(thm.Accent)

	m := &Model{
		config: cfg,
		theme:  thm,
		services: serviceState{
			classifier: deps.Classifier,
			repo:       deps.Repository,
			resolver:   deps.Watcher,
			cacheFile:  deps.CacheFile,
		},
		ui: uiState{
			table:    newBranchTable(thm),
			search:   search,
			progress: progress.New(progress.WithGradient(string(thm.Accent), string(thm.SuccessFg)), progress.WithoutPercentage()),
			spinner:  sp,
			screens:  screen.NewManager(),
		},
		data: dataState{
			records:  models.BranchMap{},
			selected: map[string]bool{},
		},
		view: state.ViewState{
			Filter:     cfg.DefaultFilter,
			SortByDate: cfg.SortMode == config.SortByDate,
		},
		ctx:     ctx,
		cancel:  cancel,
		loading: true,
		status:  loadingBranches,
	}
	if m.view.Filter == "" {
		m.view.Filter = models.FilterAll
	}
	if initialFilter != "" {
		m.view.Query = initialFilter
		m.ui.search.SetValue(initialFilter)
	}
	return m
}

// Init loads the branches and starts the ref watcher.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadCache(),
		m.loadBranches(),
		m.ui.spinner.Tick,
		m.startGitWatcher(),
	)
}

// Update dispatches messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setWindowSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.ui.spinner, cmd = m.ui.spinner.Update(msg)
		return m, cmd

	case cachedBranchesMsg:
		m.handleCachedBranches(msg)
		return m, nil

	case branchesLoadedMsg:
		return m.handleBranchesLoaded(msg)

	case fetchDoneMsg:
		return m.handleFetchDone(msg)

	case engineEventMsg:
		return m.handleEngineEvent(msg.event)

	case engineClosedMsg:
		m.batch.events = nil
		return m, nil

	case confirmRespondedMsg:
		m.handleConfirmResponded(msg)
		return m, nil

	case gitDirChangedMsg:
		return m.handleGitDirChanged()

	case errMsg:
		if msg.err != nil {
			log.Errorf("app: %v", msg.err)
			m.showInfo("Error", msg.err.Error())
		}
		return m, nil

	case quitNowMsg:
		return m, m.quitNow()
	}
	return m, nil
}

// View renders the list, or the active modal centred on top of it.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.ui.screens.IsActive() {
		return m.renderScreen()
	}
	return m.renderMain()
}

func (m *Model) busy() bool {
	return m.loading || m.fetching || m.batchRunning()
}

// batchRunning holds from Start until finishBatch has shown the report, so
// events still queued after the engine stops keep the batch open.
func (m *Model) batchRunning() bool {
	return m.batch.engine != nil
}

func (m *Model) debugf(format string, args ...any) {
	log.Printf(format, args...)
}

func (m *Model) setWindowSize(width, height int) {
	m.view.WindowWidth = width
	m.view.WindowHeight = height
	m.applyLayout()
}

func (m *Model) showInfo(title, message string) {
	m.ui.screens.Push(screen.NewInfoScreen(title, message, m.theme))
}

// quit cancels a running batch, gives it a few seconds to stop after the
// branch in flight, then exits.
func (m *Model) quit() tea.Cmd {
	engine := m.batch.engine
	if engine == nil || !engine.Running() {
		return m.quitNow()
	}
	engine.Cancel()
	m.status = "Cancelling deletion before quitting..."
	return func() tea.Msg {
		if !engine.Wait(quitWaitTimeout) {
			log.Printf("app: deletion still running after %s, quitting anyway", quitWaitTimeout)
		}
		return quitNowMsg{}
	}
}

func (m *Model) quitNow() tea.Cmd {
	if m.batch.engine != nil {
		m.batch.engine.Close()
	}
	m.stopGitWatcher()
	m.cancel()
	m.quitting = true
	return tea.Quit
}
