package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) handleNetworksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ViewNetworks) {
		m.currentView = ViewContainers
	}
	return m, nil
}

// renderNetworks lists every network with the containers attached to it.
func (m Model) renderNetworks() string {
	styles := m.theme.Styles()
	names := m.snapshot.NetworkNames()

	var lines []string
	if len(names) == 0 {
		lines = append(lines, styles.MutedText.Render("No networks in use"))
	}
	for _, name := range names {
		lines = append(lines, styles.AccentText.Bold(true).Render(name))
		for _, id := range m.snapshot.Networks[name] {
			c, ok := m.snapshot.Container(id)
			if !ok {
				continue
			}
			addr := "-"
			for _, a := range c.Networks {
				if a.Network == name {
					addr = orDash(a.Address)
				}
			}
			lines = append(lines, "  "+styles.Text.Render(padRight(truncate(c.DisplayName(), colName-1), colName))+
				styles.MutedText.Render(addr))
		}
	}
	return m.renderBox("Networks", strings.Join(lines, "\n"), m.width, m.contentHeight(), true)
}
