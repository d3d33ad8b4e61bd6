package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// renderHeader renders the top status bar.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := NewBgStyle(m.theme.Surface)

	parts := []string{bg.Render("crane", styles.Logo)}

	switch {
	case !m.snapshot.HasData && m.snapshot.LastError == nil:
		parts = append(parts, bg.Render("Connecting...", styles.WarningText.Bold(true)))
	case m.snapshot.IsOffline():
		parts = append(parts,
			bg.Render("● OFFLINE", styles.DangerText),
			bg.Render(fmt.Sprintf("%d failures", m.snapshot.ConsecutiveFailures), styles.MutedText))
	default:
		running := 0
		for _, c := range m.snapshot.Containers {
			if c.Running() {
				running++
			}
		}
		parts = append(parts,
			bg.Render("● ON", styles.SuccessText),
			bg.Render("Containers:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", len(m.snapshot.Containers)), styles.Text),
			bg.Render("Running:", styles.MutedText)+bg.Space()+
				bg.Render(fmt.Sprintf("%d", running), styles.Text))
	}

	if m.refresher != nil && !m.refresher.Auto() {
		parts = append(parts, bg.Render("auto refresh off", styles.WarningText))
	}
	if !m.snapshot.LastUpdated.IsZero() {
		parts = append(parts, bg.Render(m.snapshot.LastUpdated.Format(time.TimeOnly), styles.FaintText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Width(m.width).
		Render(bg.Join(parts, "  "))
}

// renderFooter shows prompts, the last action result, or key hints.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	switch {
	case m.confirmRm != "":
		name := m.confirmRm
		if c, ok := m.snapshot.Container(name); ok {
			name = c.DisplayName()
		}
		return styles.WarningText.Bold(true).Render(fmt.Sprintf("Remove %s? y to confirm, any other key cancels", name))
	case m.flash != "" && m.flashIsErr:
		return styles.DangerText.Render(truncate(m.flash, m.width))
	case m.flash != "":
		return styles.SuccessText.Render(truncate(m.flash, m.width))
	default:
		return m.help.ShortHelpView(m.keys.ShortHelp())
	}
}
