package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/crane-app/crane/internal/runtime"
)

// Column widths of the container table.
const (
	colName   = 24
	colImage  = 28
	colState  = 10
	colCPUs   = 5
	colMemory = 9
)

func (m *Model) clampSelection() {
	n := len(m.snapshot.Containers)
	if m.selectedRow >= n {
		m.selectedRow = n - 1
	}
	if m.selectedRow < 0 {
		m.selectedRow = 0
	}
}

func (m Model) selectedContainer() (runtime.Container, bool) {
	if m.selectedRow < 0 || m.selectedRow >= len(m.snapshot.Containers) {
		return runtime.Container{}, false
	}
	return m.snapshot.Containers[m.selectedRow], true
}

// handleContainersKey processes keyboard input for the container list.
func (m Model) handleContainersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ViewNetworks):
		m.currentView = ViewNetworks
		return m, nil
	case key.Matches(msg, m.keys.NewContainer):
		m.createForm = newCreateForm()
		m.currentView = ViewCreate
		return m, m.createForm.focusCmd()
	}

	c, ok := m.selectedContainer()
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if m.selectedRow < len(m.snapshot.Containers)-1 {
			m.selectedRow++
		}
	case key.Matches(msg, m.keys.Up):
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case key.Matches(msg, m.keys.Top):
		m.selectedRow = 0
	case key.Matches(msg, m.keys.Bottom):
		m.selectedRow = len(m.snapshot.Containers) - 1
	case key.Matches(msg, m.keys.ViewLogs):
		return m, m.enterLogs(c.ID)
	case key.Matches(msg, m.keys.Start):
		return m, m.actionCmd("start", c.ID, m.actions.Start)
	case key.Matches(msg, m.keys.Stop):
		return m, m.actionCmd("stop", c.ID, m.actions.Stop)
	case key.Matches(msg, m.keys.Remove):
		m.confirmRm = c.ID
	}
	return m, nil
}

// renderContainers renders the container table above the detail pane.
func (m Model) renderContainers() string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	detailHeight := 9
	tableHeight := height - detailHeight
	if tableHeight < 4 {
		tableHeight = height
		detailHeight = 0
	}

	table := m.renderBox("Containers", m.containerRows(styles, tableHeight-2), m.width, tableHeight, true)
	if detailHeight == 0 {
		return table
	}
	detail := m.renderBox("Detail", m.containerDetail(styles), m.width, detailHeight, false)
	return table + "\n" + detail
}

func (m Model) containerRows(styles Styles, rows int) string {
	if !m.snapshot.HasData {
		if m.snapshot.LastError != nil {
			return styles.DangerText.Render("runtime unreachable: " + m.snapshot.LastError.Error())
		}
		return styles.MutedText.Render("Loading containers...")
	}
	if len(m.snapshot.Containers) == 0 {
		return styles.MutedText.Render("No containers. Press c to create one.")
	}

	var lines []string
	header := padRight("NAME", colName) + padRight("IMAGE", colImage) + padRight("STATE", colState) +
		padRight("CPUS", colCPUs) + padRight("MEMORY", colMemory) + "PORTS"
	lines = append(lines, styles.FaintText.Render(header))

	start := 0
	if visible := rows - 1; visible > 0 && m.selectedRow >= visible {
		start = m.selectedRow - visible + 1
	}
	for i := start; i < len(m.snapshot.Containers) && len(lines) < rows; i++ {
		c := m.snapshot.Containers[i]
		stateLabel := string(c.State)
		if pending := m.snapshot.Pending[c.ID]; pending != "" {
			stateLabel = pending
		}
		row := padRight(truncate(c.DisplayName(), colName-1), colName) +
			padRight(truncate(c.Image, colImage-1), colImage) +
			styles.StatusStyle(stateLabel).Render(padRight(stateLabel, colState-2)) + " " +
			padRight(cpuLabel(c.CPUs), colCPUs) +
			padRight(memoryLabel(c.MemoryBytes), colMemory) +
			truncate(portsLabel(c.Ports), maxWidth(m.width-colName-colImage-colState-colCPUs-colMemory-4))
		if i == m.selectedRow {
			row = styles.Selected.Render(row)
		}
		lines = append(lines, row)
	}
	return strings.Join(lines, "\n")
}

func (m Model) containerDetail(styles Styles) string {
	c, ok := m.selectedContainer()
	if !ok {
		return styles.MutedText.Render("Nothing selected")
	}
	label := func(s string) string { return styles.MutedText.Render(padRight(s, 10)) }

	created := "-"
	if !c.Created.IsZero() {
		created = humanize.Time(c.Created)
	}
	lines := []string{
		label("ID") + styles.Text.Render(c.ID),
		label("Status") + styles.Text.Render(orDash(c.Status)),
		label("Created") + styles.Text.Render(created),
		label("Ports") + styles.Text.Render(orDash(portsLabel(c.Ports))),
	}
	if len(c.Networks) == 0 {
		lines = append(lines, label("Networks")+styles.Text.Render("-"))
	}
	for i, n := range c.Networks {
		name := ""
		if i == 0 {
			name = "Networks"
		}
		lines = append(lines, label(name)+styles.AccentText.Render(n.Network)+" "+
			styles.Text.Render(orDash(n.Address))+" "+styles.FaintText.Render(n.Hostname))
	}
	return strings.Join(lines, "\n")
}

// renderBox draws content inside a rounded border with a title on the top edge.
func (m Model) renderBox(title, content string, width, height int, focused bool) string {
	border := m.theme.Border
	if focused {
		border = m.theme.BorderFocus
	}
	innerWidth := maxWidth(width - 2)
	innerHeight := height - 2
	if innerHeight < 1 {
		innerHeight = 1
	}

	body := lipgloss.NewStyle().
		Width(innerWidth).
		Height(innerHeight).
		MaxHeight(innerHeight).
		Render(content)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Render(body)

	if title == "" {
		return box
	}
	// Splice the title into the top border.
	lines := strings.SplitN(box, "\n", 2)
	if len(lines) < 2 {
		return box
	}
	titleText := m.theme.Styles().AccentText.Bold(true).Render(" " + title + " ")
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(border))
	fill := innerWidth - lipgloss.Width(titleText) - 1
	if fill < 0 {
		return box
	}
	top := borderStyle.Render("╭─") + titleText + borderStyle.Render(strings.Repeat("─", fill)+"╮")
	return top + "\n" + lines[1]
}

func (m Model) contentHeight() int {
	// header + footer
	h := m.height - 2
	if h < 3 {
		h = 3
	}
	return h
}

func cpuLabel(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

func memoryLabel(bytes int64) string {
	if bytes <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(bytes))
}

func portsLabel(ports []runtime.Port) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ", ")
}

func maxWidth(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
