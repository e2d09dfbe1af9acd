// Package ui holds the terminal components of the watch screen.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Component is a panel body
type Component interface {
	Update(tea.Msg) tea.Cmd
	View() string
	SetSize(width, height int)
}

var (
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			PaddingLeft(1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Panels that take keyboard focus, in tab order
const (
	FocusTabs = iota
	FocusRuns
	FocusConsole
	focusCount
)

// panel draws a bordered box of exactly width x height cells
func panel(title string, focused bool, width, height int, body string) string {
	style := borderStyle
	if focused {
		style = style.BorderForeground(lipgloss.Color("205"))
	}
	inner := max(0, height-2)
	if title != "" {
		body = titleStyle.Render(title) + "\n" + body
	}
	return style.
		Width(max(0, width-2)).
		Height(inner).
		MaxHeight(height).
		Render(body)
}

// Layout arranges the watch screen
type Layout struct {
	activity *RunActivity
	stats    *StatsPanel
	tabs     *TabList
	runs     *RunsTable
	console  *Console
	toasts   string
	help     string
	focus    int
	width    int
	height   int
}

// NewLayout creates the layout with all panels
func NewLayout() *Layout {
	return &Layout{
		activity: NewRunActivity(),
		stats:    NewStatsPanel(),
		tabs:     NewTabList(),
		runs:     NewRunsTable(),
		console:  NewConsole(),
		focus:    FocusTabs,
	}
}

func (l *Layout) Activity() *RunActivity { return l.activity }
func (l *Layout) Stats() *StatsPanel     { return l.stats }
func (l *Layout) Tabs() *TabList         { return l.tabs }
func (l *Layout) Runs() *RunsTable       { return l.runs }
func (l *Layout) Console() *Console      { return l.console }

// Focus returns the panel receiving keys
func (l *Layout) Focus() int {
	return l.focus
}

// SetHelp sets the key help line
func (l *Layout) SetHelp(help string) {
	l.help = help
}

// SetToasts sets the rendered toast stack shown above the console
func (l *Layout) SetToasts(rendered string) {
	l.toasts = rendered
}

// SetSize adjusts the layout and all components to the given dimensions
func (l *Layout) SetSize(width, height int) {
	l.width = width
	l.height = height

	top, middle, bottom := l.rows()
	half := width / 2

	activityHeight := top / 2
	l.activity.SetSize(half-4, activityHeight-2)
	l.stats.SetSize(half-4, top-activityHeight-2)
	l.tabs.SetSize(width-half-4, top-3)
	l.runs.SetSize(width, middle-1)
	l.console.SetSize(width, bottom-1)
}

func (l *Layout) rows() (top, middle, bottom int) {
	usable := max(12, l.height-1)
	top = usable * 2 / 5
	middle = usable * 3 / 10
	bottom = usable - top - middle
	return top, middle, bottom
}

// Init starts the animated components
func (l *Layout) Init() tea.Cmd {
	return l.activity.Init()
}

// Update routes keys to the focused panel and everything else to all panels
func (l *Layout) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		l.SetSize(msg.Width, msg.Height)
		return l, nil
	case tea.KeyMsg:
		if msg.String() == "tab" {
			l.focus = (l.focus + 1) % focusCount
			return l, nil
		}
		return l, l.focused().Update(msg)
	}

	return l, tea.Batch(
		l.activity.Update(msg),
		l.tabs.Update(msg),
		l.runs.Update(msg),
		l.console.Update(msg),
	)
}

func (l *Layout) focused() Component {
	switch l.focus {
	case FocusRuns:
		return l.runs
	case FocusConsole:
		return l.console
	default:
		return l.tabs
	}
}

// View renders the complete layout
func (l *Layout) View() string {
	if l.width == 0 {
		return "Initializing..."
	}
	top, middle, bottom := l.rows()
	half := l.width / 2
	activityHeight := top / 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		panel("", false, half, activityHeight, l.activity.View()),
		panel("", false, half, top-activityHeight, l.stats.View()),
	)
	topRow := lipgloss.JoinHorizontal(lipgloss.Top,
		left,
		panel("", l.focus == FocusTabs, l.width-half, top, l.tabs.View()),
	)

	consoleHeight := bottom
	var toasts string
	if l.toasts != "" {
		toasts = lipgloss.PlaceHorizontal(l.width, lipgloss.Right, l.toasts)
		consoleHeight = max(3, bottom-lipgloss.Height(toasts))
	}

	parts := []string{
		topRow,
		panel("Runs", l.focus == FocusRuns, l.width, middle, l.runs.View()),
	}
	if toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts,
		panel("Console", l.focus == FocusConsole, l.width, consoleHeight, l.console.View()),
		helpStyle.Render(l.help),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// AddInfo adds an info line to the console
func (l *Layout) AddInfo(msg string) {
	l.console.AddEntry(LevelInfo, msg)
}

// AddWarning adds a warning line to the console
func (l *Layout) AddWarning(msg string) {
	l.console.AddEntry(LevelWarning, msg)
}

// AddError adds an error line to the console
func (l *Layout) AddError(msg string) {
	l.console.AddEntry(LevelError, msg)
}
