package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/crane-app/crane/internal/prefs"
	"github.com/crane-app/crane/internal/runtime"
	"github.com/crane-app/crane/internal/session"
	"github.com/crane-app/crane/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewContainers View = iota
	ViewLogs
	ViewNetworks
	ViewCreate
)

const (
	uiTick        = time.Second
	actionTimeout = 30 * time.Second
)

// Actions are the container operations the UI can trigger.
type Actions interface {
	Refresh(ctx context.Context) error
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Create(ctx context.Context, spec runtime.CreateSpec) (string, error)
}

// Refresher controls the background container list poller.
type Refresher interface {
	Trigger()
	SetAuto(on bool)
	Auto() bool
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Actions   Actions
	Store     *state.Store
	Logs      *session.Manager
	Refresh   Refresher
	Prefs     prefs.Prefs
	PrefsPath string
	Logger    *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	actions   Actions
	store     *state.Store
	logs      *session.Manager
	refresher Refresher
	prefs     prefs.Prefs
	prefsPath string
	logger    *slog.Logger

	keys  keyMap
	help  help.Model
	theme Theme

	currentView View
	width       int
	height      int
	ready       bool

	snapshot    state.Snapshot
	selectedRow int

	logState    logState
	createForm  createForm
	showHelp    bool
	confirmRm   string
	flash       string
	flashIsErr  bool
	lastUpdated time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	userPrefs := opts.Prefs
	if userPrefs.Theme == "" {
		userPrefs = prefs.Default()
	}
	return Model{
		ctx:         ctx,
		actions:     opts.Actions,
		store:       opts.Store,
		logs:        opts.Logs,
		refresher:   opts.Refresh,
		prefs:       userPrefs,
		prefsPath:   opts.PrefsPath,
		logger:      logger,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		theme:       GetTheme(userPrefs.Theme),
		currentView: ViewContainers,
		logState:    newLogState(),
		createForm:  newCreateForm(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(uiTick)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.logs != nil {
		cmds = append(cmds, waitLogChange(m.logs.Changes()))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.resizeLogViewport()
		m.renderLogContent()
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(uiTick)}
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.lastUpdated = time.Now()
		m.clampSelection()
		return m, nil

	case logChangedMsg:
		if string(msg) == m.logState.id {
			m.syncLogs()
		}
		return m, waitLogChange(m.logs.Changes())

	case logLoadedMsg:
		if string(msg) == m.logState.id {
			m.syncLogs()
		}
		return m, nil

	case actionDoneMsg:
		m.setFlash(msg.describe(), msg.err != nil)
		if msg.err != nil {
			m.logger.Warn("container action failed", "action", msg.verb, "container", msg.id, "error", msg.err)
		}
		return m, fetchSnapshotCmd(m.store)

	case createdMsg:
		m.createForm.busy = false
		if msg.err != nil {
			m.createForm.err = msg.err.Error()
			return m, nil
		}
		m.createForm = newCreateForm()
		m.currentView = ViewContainers
		m.setFlash("created "+msg.id, false)
		return m, fetchSnapshotCmd(m.store)
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	switch m.currentView {
	case ViewLogs:
		b.WriteString(m.renderLogs())
	case ViewNetworks:
		b.WriteString(m.renderNetworks())
	case ViewCreate:
		b.WriteString(m.renderCreate())
	default:
		b.WriteString(m.renderContainers())
	}
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// handleKey routes keyboard input: overlays first, then global keys, then the
// active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.confirmRm != "" {
		id := m.confirmRm
		m.confirmRm = ""
		if key.Matches(msg, m.keys.Yes) {
			return m, m.actionCmd("remove", id, m.actions.Remove)
		}
		return m, nil
	}
	if m.currentView == ViewCreate {
		return m.handleCreateKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.renderLogContent()
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		if m.refresher != nil {
			m.refresher.Trigger()
		}
		return m, nil
	case key.Matches(msg, m.keys.AutoRefresh):
		if m.refresher != nil {
			on := !m.refresher.Auto()
			m.refresher.SetAuto(on)
			m.prefs = m.prefs.WithAutoRefresh(on)
			m.savePrefs()
			m.setFlash("auto refresh "+onOff(on), false)
		}
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.leaveLogs()
		m.currentView = ViewContainers
		return m, nil
	}

	switch m.currentView {
	case ViewLogs:
		return m.handleLogsKey(msg)
	case ViewNetworks:
		return m.handleNetworksKey(msg)
	default:
		return m.handleContainersKey(msg)
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashIsErr = isErr
}

func (m *Model) savePrefs() {
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save prefs failed", "error", err)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// logChangedMsg comes from the session change channel; the waiter is re-armed
// after each one.
type logChangedMsg string

// logLoadedMsg marks the end of a log command started by the UI.
type logLoadedMsg string

type actionDoneMsg struct {
	verb string
	id   string
	err  error
}

func (a actionDoneMsg) describe() string {
	if a.err != nil {
		return a.err.Error()
	}
	return a.verb + " " + a.id + " done"
}

type createdMsg struct {
	id  string
	err error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

func waitLogChange(changes <-chan string) tea.Cmd {
	return func() tea.Msg {
		id, ok := <-changes
		if !ok {
			return nil
		}
		return logChangedMsg(id)
	}
}

func (m Model) actionCmd(verb, id string, fn func(context.Context, string) error) tea.Cmd {
	if m.actions == nil || id == "" {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, actionTimeout)
		defer cancel()
		return actionDoneMsg{verb: verb, id: id, err: fn(ctx, id)}
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or the
// context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	programOpts := []tea.ProgramOption{tea.WithAltScreen()}
	if opts.Context != nil {
		programOpts = append(programOpts, tea.WithContext(opts.Context))
	}
	p := tea.NewProgram(m, programOpts...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && opts.Context != nil && opts.Context.Err() != nil {
		return nil
	}
	return err
}
