package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunActivity shows the runs in flight with the step each one is at
type RunActivity struct {
	spinner spinner.Model
	steps   map[string]string
	order   []string
	width   int
	height  int
}

// NewRunActivity creates an idle activity view
func NewRunActivity() *RunActivity {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	return &RunActivity{
		spinner: s,
		steps:   make(map[string]string),
	}
}

// Init starts the spinner animation
func (a *RunActivity) Init() tea.Cmd {
	return a.spinner.Tick
}

// Start adds a run
func (a *RunActivity) Start(runID string) {
	if _, ok := a.steps[runID]; ok {
		return
	}
	a.steps[runID] = "starting"
	a.order = append(a.order, runID)
}

// Step records the step a run has reached
func (a *RunActivity) Step(runID, step string) {
	if _, ok := a.steps[runID]; !ok {
		a.order = append(a.order, runID)
	}
	a.steps[runID] = step
}

// Finish removes a run
func (a *RunActivity) Finish(runID string) {
	if _, ok := a.steps[runID]; !ok {
		return
	}
	delete(a.steps, runID)
	for i, id := range a.order {
		if id == runID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// Count returns the number of runs in flight
func (a *RunActivity) Count() int {
	return len(a.order)
}

// Update advances the spinner
func (a *RunActivity) Update(msg tea.Msg) tea.Cmd {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	a.spinner, cmd = a.spinner.Update(msg)
	return cmd
}

// View renders one line per run
func (a *RunActivity) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Runs in flight (%d)", len(a.order))) + "\n\n")
	if len(a.order) == 0 {
		sb.WriteString(infoStyle.Render("idle, press the hotkey to capture the active tab"))
		return sb.String()
	}
	for _, id := range a.order {
		sb.WriteString(fmt.Sprintf("%s %s %s\n", a.spinner.View(), id, infoStyle.Render(a.steps[id])))
	}
	return sb.String()
}

// SetSize updates the view dimensions
func (a *RunActivity) SetSize(width, height int) {
	a.width = width
	a.height = height
}
