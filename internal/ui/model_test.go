package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/crane-app/crane/internal/runtime"
	"github.com/crane-app/crane/internal/session"
	"github.com/crane-app/crane/internal/state"
)

type fakeActions struct {
	mu      sync.Mutex
	calls   []string
	created runtime.CreateSpec
	err     error
}

func (f *fakeActions) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeActions) Refresh(context.Context) error { return f.record("refresh") }
func (f *fakeActions) Start(_ context.Context, id string) error { return f.record("start " + id) }
func (f *fakeActions) Stop(_ context.Context, id string) error { return f.record("stop " + id) }
func (f *fakeActions) Remove(_ context.Context, id string) error { return f.record("remove " + id) }

func (f *fakeActions) Create(_ context.Context, spec runtime.CreateSpec) (string, error) {
	f.mu.Lock()
	f.created = spec
	f.mu.Unlock()
	return spec.Name, f.record("create " + spec.Image)
}

type fileOpener struct{ dir string }

func (o fileOpener) OpenLogStreams(_ context.Context, id string) ([]runtime.LogStream, error) {
	stream, err := runtime.OpenFile(filepath.Join(o.dir, id+".log"), "")
	if err != nil {
		return nil, runtime.ErrNoLogs
	}
	return []runtime.LogStream{stream}, nil
}

func newTestModel(t *testing.T) (Model, *fakeActions, string) {
	t.Helper()
	dir := t.TempDir()
	store := &state.Store{}
	store.Update([]runtime.Container{
		{ID: "a1", Name: "api", Image: "api:1", State: runtime.StateRunning},
		{ID: "b2", Name: "db", Image: "postgres:16", State: runtime.StateStopped},
	}, nil)

	logs := session.NewManager(fileOpener{dir: dir}, session.DefaultConfig(), nil)
	t.Cleanup(logs.Close)
	logs.Sync([]string{"a1", "b2"})

	actions := &fakeActions{}
	m := New(Options{
		Actions:   actions,
		Store:     store,
		Logs:      logs,
		PrefsPath: filepath.Join(dir, "prefs.toml"),
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = update(t, m, snapshotMsg(store.Snapshot()))
	return m, actions, dir
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func TestModel_SelectionMoves(t *testing.T) {
	m, _, _ := newTestModel(t)

	m, _ = press(t, m, "j")
	if m.selectedRow != 1 {
		t.Fatalf("selectedRow = %d, want 1", m.selectedRow)
	}
	m, _ = press(t, m, "j")
	if m.selectedRow != 1 {
		t.Fatalf("selectedRow = %d, want 1 at the last row", m.selectedRow)
	}
	m, _ = press(t, m, "g")
	if m.selectedRow != 0 {
		t.Fatalf("selectedRow = %d, want 0 after top", m.selectedRow)
	}
}

func TestModel_StartRunsAction(t *testing.T) {
	m, actions, _ := newTestModel(t)

	_, cmd := press(t, m, "s")
	if cmd == nil {
		t.Fatal("start returned no command")
	}
	msg, ok := cmd().(actionDoneMsg)
	if !ok {
		t.Fatalf("start command produced %T, want actionDoneMsg", msg)
	}
	if msg.err != nil || msg.id != "a1" {
		t.Fatalf("actionDoneMsg = %+v, want success for a1", msg)
	}
	if len(actions.calls) != 1 || actions.calls[0] != "start a1" {
		t.Fatalf("calls = %v, want [start a1]", actions.calls)
	}
}

func TestModel_RemoveNeedsConfirmation(t *testing.T) {
	m, actions, _ := newTestModel(t)

	m, cmd := press(t, m, "d")
	if cmd != nil || m.confirmRm != "a1" {
		t.Fatalf("confirmRm = %q, cmd = %v, want prompt for a1 without a command", m.confirmRm, cmd)
	}
	if !strings.Contains(m.renderFooter(), "Remove api?") {
		t.Fatalf("footer = %q, want remove prompt", m.renderFooter())
	}

	m, cmd = press(t, m, "n")
	if cmd != nil || m.confirmRm != "" {
		t.Fatal("any key other than y should cancel the removal")
	}

	m, _ = press(t, m, "d")
	_, cmd = press(t, m, "y")
	if cmd == nil {
		t.Fatal("confirmed remove returned no command")
	}
	cmd()
	if len(actions.calls) != 1 || actions.calls[0] != "remove a1" {
		t.Fatalf("calls = %v, want [remove a1]", actions.calls)
	}
}

func TestModel_ActionErrorIsFlashed(t *testing.T) {
	m, _, _ := newTestModel(t)
	m = update(t, m, actionDoneMsg{verb: "stop", id: "a1", err: errors.New("stop a1: not found")})
	if !m.flashIsErr || m.flash != "stop a1: not found" {
		t.Fatalf("flash = %q (err %v), want the error", m.flash, m.flashIsErr)
	}
}

func TestModel_LogsViewLoadsWindow(t *testing.T) {
	m, _, dir := newTestModel(t)
	if err := os.WriteFile(filepath.Join(dir, "a1.log"), []byte("boot INFO ok\nserving\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	m, cmd := press(t, m, "enter")
	if m.currentView != ViewLogs || m.logState.id != "a1" {
		t.Fatalf("view = %v id = %q, want logs of a1", m.currentView, m.logState.id)
	}
	if cmd == nil {
		t.Fatal("entering logs returned no command")
	}
	m = update(t, m, cmd())

	if len(m.logState.lines) != 2 || m.logState.lines[1].Text != "serving" {
		t.Fatalf("lines = %+v, want boot/serving", m.logState.lines)
	}
	if !strings.Contains(m.renderLogStatus(), "follow on") {
		t.Fatalf("status = %q, want follow on", m.renderLogStatus())
	}

	m, _ = press(t, m, " ")
	if st, _ := m.activeStream(); st.Follow {
		t.Fatal("space should switch follow off")
	}

	m, _ = press(t, m, "esc")
	if m.currentView != ViewContainers {
		t.Fatalf("view = %v, want containers after esc", m.currentView)
	}
}

func TestModel_LeavingLogsPausesFollow(t *testing.T) {
	m, _, dir := newTestModel(t)
	if err := os.WriteFile(filepath.Join(dir, "a1.log"), []byte("line\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m, cmd := press(t, m, "enter")
	m = update(t, m, cmd())

	m, _ = press(t, m, "esc")
	snap, _ := m.logs.Snapshot("a1")
	if snap.Streams[0].Follow {
		t.Fatal("follow still on after leaving the log view")
	}

	m, _ = press(t, m, "enter")
	snap, _ = m.logs.Snapshot("a1")
	if !snap.Streams[0].Follow {
		t.Fatal("follow not restored on returning to the log view")
	}
}

func TestModel_LogsWithoutStreamsShowsReason(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = press(t, m, "j")
	m, cmd := press(t, m, "enter")
	m = update(t, m, cmd())
	if got := m.logPlaceholder(); !strings.HasPrefix(got, "No logs:") {
		t.Fatalf("placeholder = %q, want a no logs message", got)
	}
}

func TestModel_CreateFormSubmits(t *testing.T) {
	m, actions, _ := newTestModel(t)

	m, _ = press(t, m, "c")
	if m.currentView != ViewCreate {
		t.Fatalf("view = %v, want create", m.currentView)
	}
	m = typeText(t, m, "nginx:latest")
	m, _ = press(t, m, "tab")
	m = typeText(t, m, "web")
	m, _ = press(t, m, "tab")
	m = typeText(t, m, "2")
	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "tab")
	m = typeText(t, m, "8080:80,8443:443")

	m, cmd := press(t, m, "enter")
	if cmd == nil {
		t.Fatalf("submit returned no command, form error %q", m.createForm.err)
	}
	m = update(t, m, cmd())
	if m.currentView != ViewContainers {
		t.Fatalf("view = %v, want containers after create", m.currentView)
	}
	got := actions.created
	if got.Image != "nginx:latest" || got.Name != "web" || got.CPUs != 2 {
		t.Fatalf("created = %+v, want nginx:latest/web/2", got)
	}
	if len(got.PublishPorts) != 2 {
		t.Fatalf("PublishPorts = %v, want two mappings", got.PublishPorts)
	}
}

func TestModel_CreateFormRejectsBadInput(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = press(t, m, "c")

	m, cmd := press(t, m, "enter")
	if cmd != nil || m.createForm.err == "" {
		t.Fatal("empty image should be rejected without a command")
	}

	m = typeText(t, m, "nginx")
	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "tab")
	m = typeText(t, m, "two")
	m, cmd = press(t, m, "enter")
	if cmd != nil || !strings.Contains(m.createForm.err, "cpus") {
		t.Fatalf("err = %q, want cpus error", m.createForm.err)
	}
}

func TestModel_ViewRenders(t *testing.T) {
	m, _, _ := newTestModel(t)
	out := m.View()
	for _, want := range []string{"crane", "api", "postgres:16"} {
		if !strings.Contains(out, want) {
			t.Fatalf("View() missing %q", want)
		}
	}
	m, _ = press(t, m, "n")
	if m.currentView != ViewNetworks {
		t.Fatalf("view = %v, want networks", m.currentView)
	}
	if !strings.Contains(m.View(), "No networks in use") {
		t.Fatal("networks view should report no networks")
	}
}
