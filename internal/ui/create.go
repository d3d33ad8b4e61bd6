package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/crane-app/crane/internal/runtime"
)

// Create form fields, in tab order.
const (
	fieldImage = iota
	fieldName
	fieldCPUs
	fieldMemory
	fieldPorts
	fieldNetworks
	fieldArgs
	fieldCount
)

var fieldLabels = [fieldCount]string{"Image", "Name", "CPUs", "Memory", "Ports", "Networks", "Args"}

var fieldPlaceholders = [fieldCount]string{
	"docker.io/library/nginx:latest",
	"generated when empty",
	"2",
	"512M",
	"8080:80, 8443:443",
	"default",
	"command arguments",
}

type createForm struct {
	inputs  [fieldCount]textinput.Model
	focused int
	err     string
	busy    bool
}

func newCreateForm() createForm {
	var f createForm
	for i := range f.inputs {
		ti := textinput.New()
		ti.Placeholder = fieldPlaceholders[i]
		ti.CharLimit = 256
		f.inputs[i] = ti
	}
	f.inputs[fieldImage].Focus()
	return f
}

func (f createForm) focusCmd() tea.Cmd {
	return textinput.Blink
}

func (f *createForm) move(step int) {
	f.inputs[f.focused].Blur()
	f.focused = (f.focused + step + fieldCount) % fieldCount
	f.inputs[f.focused].Focus()
}

// spec builds a CreateSpec from the form. Lists are comma separated.
func (f createForm) spec() (runtime.CreateSpec, error) {
	spec := runtime.CreateSpec{
		Image:        f.inputs[fieldImage].Value(),
		Name:         f.inputs[fieldName].Value(),
		Memory:       f.inputs[fieldMemory].Value(),
		PublishPorts: runtime.SplitList(f.inputs[fieldPorts].Value()),
		Networks:     runtime.SplitList(f.inputs[fieldNetworks].Value()),
		Args:         strings.Fields(f.inputs[fieldArgs].Value()),
	}
	if v := strings.TrimSpace(f.inputs[fieldCPUs].Value()); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return runtime.CreateSpec{}, fmt.Errorf("cpus: %q is not a number", v)
		}
		spec.CPUs = n
	}
	return spec.Normalize()
}

func (m Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.createForm
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit
	case key.Matches(msg, m.keys.Escape):
		m.currentView = ViewContainers
		return m, nil
	case key.Matches(msg, m.keys.NextField):
		f.move(1)
		return m, nil
	case key.Matches(msg, m.keys.PrevField):
		f.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		if f.busy {
			return m, nil
		}
		spec, err := f.spec()
		if err != nil {
			f.err = err.Error()
			return m, nil
		}
		if m.actions == nil {
			return m, nil
		}
		f.err = ""
		f.busy = true
		ctx, actions := m.ctx, m.actions
		return m, func() tea.Msg {
			id, err := actions.Create(ctx, spec)
			return createdMsg{id: id, err: err}
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focused], cmd = f.inputs[f.focused].Update(msg)
	return m, cmd
}

func (m Model) renderCreate() string {
	styles := m.theme.Styles()
	f := m.createForm

	var lines []string
	for i, in := range f.inputs {
		label := styles.MutedText.Render(padRight(fieldLabels[i], 10))
		if i == f.focused {
			label = styles.AccentText.Bold(true).Render(padRight(fieldLabels[i], 10))
		}
		lines = append(lines, label+in.View())
	}
	lines = append(lines, "")
	switch {
	case f.busy:
		lines = append(lines, styles.WarningText.Render("Creating..."))
	case f.err != "":
		lines = append(lines, styles.DangerText.Render(f.err))
	default:
		lines = append(lines, styles.FaintText.Render("enter create • tab next field • esc cancel"))
	}
	return m.renderBox("Create container", strings.Join(lines, "\n"), m.width, m.contentHeight(), true)
}
