package ui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/crane-app/crane/internal/logtail"
	"github.com/crane-app/crane/internal/session"
)

// logState holds the log view of the container being watched.
type logState struct {
	id       string
	stream   int
	viewport viewport.Model
	lines    []logtail.LogLine
	session  session.Snapshot

	// firstID is the id of the oldest rendered line, used to keep the scroll
	// position steady when history is prepended.
	firstID int64

	// paused is the container whose follow mode was switched off when the
	// view was left, so it can be restored on return.
	paused string
}

func newLogState() logState {
	return logState{viewport: viewport.New(0, 0)}
}

func (m *Model) resizeLogViewport() {
	m.logState.viewport.Width = maxWidth(m.width - 2)
	m.logState.viewport.Height = maxWidth(m.contentHeight() - 3)
}

// enterLogs shows the logs of id, opening its session on first use.
func (m *Model) enterLogs(id string) tea.Cmd {
	if m.logs == nil {
		return nil
	}
	if m.logState.id != id {
		m.leaveLogs()
		m.logState = newLogState()
		m.logState.id = id
		m.resizeLogViewport()
	}
	m.currentView = ViewLogs
	m.logs.Track(id)
	if m.logState.paused == id {
		m.logs.SetFollow(id, m.logState.stream, true)
		m.logState.paused = ""
	}
	m.syncLogs()

	ctx, logs := m.ctx, m.logs
	return func() tea.Msg {
		_ = logs.Open(ctx, id)
		return logLoadedMsg(id)
	}
}

// leaveLogs stops follow polling of the watched container while it is not on
// screen.
func (m *Model) leaveLogs() {
	if m.currentView != ViewLogs || m.logState.id == "" || m.logs == nil {
		return
	}
	if st, ok := m.activeStream(); ok && st.Follow {
		m.logs.SetFollow(m.logState.id, m.logState.stream, false)
		m.logState.paused = m.logState.id
	}
}

func (m Model) activeStream() (session.StreamSnapshot, bool) {
	idx := m.logState.stream
	if idx < 0 || idx >= len(m.logState.session.Streams) {
		return session.StreamSnapshot{}, false
	}
	return m.logState.session.Streams[idx], true
}

// syncLogs pulls the current window of the watched stream and re-renders,
// keeping the reader's place when older lines arrive above it.
func (m *Model) syncLogs() {
	if m.logs == nil || m.logState.id == "" {
		return
	}
	snap, ok := m.logs.Snapshot(m.logState.id)
	if !ok {
		m.logState.session = session.Snapshot{ContainerID: m.logState.id, State: session.Closed}
		m.logState.lines = nil
		m.renderLogContent()
		return
	}
	m.logState.session = snap
	if snap.Active != m.logState.stream && m.logState.stream < len(snap.Streams) {
		m.logs.SelectStream(m.logState.id, m.logState.stream)
	}

	lines := m.logs.Lines(m.logState.id, m.logState.stream)
	prepended := 0
	if len(m.logState.lines) > 0 && len(lines) > 0 && lines[0].ID < m.logState.firstID {
		for i, l := range lines {
			if l.ID == m.logState.firstID {
				prepended = i
				break
			}
		}
	}
	offset := m.logState.viewport.YOffset
	m.logState.lines = lines
	if len(lines) > 0 {
		m.logState.firstID = lines[0].ID
	}
	m.renderLogContent()

	st, _ := m.activeStream()
	switch {
	case st.Follow && !st.UserScrolled:
		m.logState.viewport.GotoBottom()
	case prepended > 0:
		m.logState.viewport.SetYOffset(offset + prepended)
	}
}

func (m *Model) renderLogContent() {
	styles := m.theme.Styles()
	if len(m.logState.lines) == 0 {
		m.logState.viewport.SetContent(styles.MutedText.Render(m.logPlaceholder()))
		return
	}
	width := m.logState.viewport.Width
	var b strings.Builder
	for i, line := range m.logState.lines {
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("%6d │ ", line.ID)))
		b.WriteString(colorizeLine(truncate(line.Text, width-9), line.Malformed, styles))
		if i < len(m.logState.lines)-1 {
			b.WriteString("\n")
		}
	}
	m.logState.viewport.SetContent(b.String())
}

var levelRe = regexp.MustCompile(`\b(DEBUG|INFO|WARN|WARNING|ERROR|FATAL)\b`)

// colorizeLine highlights the first log level keyword of a line. Malformed
// lines are shown in the warning color as a whole.
func colorizeLine(text string, malformed bool, styles Styles) string {
	if malformed {
		return styles.WarningText.Render(text)
	}
	loc := levelRe.FindStringIndex(text)
	if loc == nil {
		return styles.Text.Render(text)
	}
	level := text[loc[0]:loc[1]]
	return styles.Text.Render(text[:loc[0]]) +
		levelStyle(level, styles).Bold(true).Render(level) +
		styles.Text.Render(text[loc[1]:])
}

func levelStyle(level string, styles Styles) lipgloss.Style {
	switch level {
	case "INFO":
		return styles.SuccessText
	case "WARN", "WARNING":
		return styles.WarningText
	case "ERROR", "FATAL":
		return styles.DangerText
	case "DEBUG":
		return styles.InfoText
	default:
		return styles.Text
	}
}

func (m Model) logPlaceholder() string {
	snap := m.logState.session
	switch {
	case snap.State == session.Uninitialized || snap.State == session.LoadingInitial:
		return "Loading logs..."
	case snap.State == session.Closed:
		return "Container is gone"
	case snap.OpenErr != nil:
		return "No logs: " + snap.OpenErr.Error()
	default:
		return "No log entries"
	}
}

// renderLogs renders the log view.
func (m Model) renderLogs() string {
	title := "Logs"
	if c, ok := m.snapshot.Container(m.logState.id); ok {
		title = "Logs " + c.DisplayName()
	}
	if st, ok := m.activeStream(); ok {
		title += " · " + st.Name
	}
	box := m.renderBox(title, m.logState.viewport.View(), m.width, m.contentHeight()-1, true)
	return box + "\n" + m.renderLogStatus()
}

func (m Model) renderLogStatus() string {
	styles := m.theme.Styles()
	st, ok := m.activeStream()
	if !ok {
		return styles.FaintText.Render(m.logState.session.State.String())
	}
	parts := []string{
		fmt.Sprintf("%d lines", len(m.logState.lines)),
		"follow " + onOff(st.Follow),
	}
	if n := len(m.logState.session.Streams); n > 1 {
		parts = append(parts, fmt.Sprintf("stream %d/%d", m.logState.stream+1, n))
	}
	if m.logState.session.LoadingOlder {
		parts = append(parts, "loading older...")
	} else if st.HasHistory {
		parts = append(parts, "o for older")
	}
	out := styles.FaintText.Render(strings.Join(parts, " • "))
	if st.Err != nil {
		out += "  " + styles.DangerText.Render(truncate(st.Err.Error(), 60))
	}
	return out
}

// handleLogsKey processes keyboard input for the log view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id, idx := m.logState.id, m.logState.stream
	vp := &m.logState.viewport

	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		st, _ := m.activeStream()
		on := !st.Follow
		m.logs.SetFollow(id, idx, on)
		if on {
			m.logs.SetUserScrolled(id, idx, false)
			vp.GotoBottom()
		}
		m.syncLogs()
		return m, nil

	case key.Matches(msg, m.keys.LoadOlder):
		return m, m.olderCmd()

	case key.Matches(msg, m.keys.NextStream), key.Matches(msg, m.keys.PrevStream):
		n := len(m.logState.session.Streams)
		if n < 2 {
			return m, nil
		}
		step := 1
		if key.Matches(msg, m.keys.PrevStream) {
			step = n - 1
		}
		m.logState.stream = (idx + step) % n
		m.logState.lines = nil
		m.logs.SelectStream(id, m.logState.stream)
		m.syncLogs()
		return m, m.tailCmd()

	case key.Matches(msg, m.keys.Top):
		vp.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		vp.GotoBottom()
	case key.Matches(msg, m.keys.Down):
		vp.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		vp.ScrollUp(1)
	case key.Matches(msg, m.keys.HalfPageDown):
		vp.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		vp.HalfPageUp()
	case key.Matches(msg, m.keys.PageDown):
		vp.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		vp.PageUp()
	default:
		return m, nil
	}

	m.logs.SetUserScrolled(id, idx, !vp.AtBottom())
	if vp.AtTop() {
		return m, m.olderCmd()
	}
	return m, nil
}

func (m Model) olderCmd() tea.Cmd {
	if !m.logState.session.HasHistory() || m.logState.session.LoadingOlder {
		return nil
	}
	ctx, logs, id := m.ctx, m.logs, m.logState.id
	return func() tea.Msg {
		_ = logs.RequestOlder(ctx, id)
		return logLoadedMsg(id)
	}
}

func (m Model) tailCmd() tea.Cmd {
	ctx, logs, id := m.ctx, m.logs, m.logState.id
	return func() tea.Msg {
		_ = logs.RequestTail(ctx, id)
		return logLoadedMsg(id)
	}
}
