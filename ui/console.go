package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LogLevel is the severity of a console entry
type LogLevel int

const (
	LevelInfo LogLevel = iota
	LevelWarning
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARN"
	default:
		return "INFO"
	}
}

// LogEntry is a single console line
type LogEntry struct {
	At      time.Time
	Level   LogLevel
	Message string
}

// maxEntries bounds the console history
const maxEntries = 500

// Console shows the session log with a level filter
type Console struct {
	viewport  viewport.Model
	entries   []LogEntry
	width     int
	height    int
	showLevel LogLevel
}

var (
	errorLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	infoLogStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")).
			Italic(true)
)

// NewConsole creates an empty console
func NewConsole() *Console {
	c := &Console{showLevel: LevelInfo}
	c.viewport = viewport.New(0, 0)
	return c
}

// SetSize updates the console dimensions
func (c *Console) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.viewport.Width = width - 4
	c.viewport.Height = max(1, height-5)
	c.refresh()
}

// AddEntry appends a line
func (c *Console) AddEntry(level LogLevel, msg string) {
	c.entries = append(c.entries, LogEntry{At: time.Now(), Level: level, Message: msg})
	if len(c.entries) > maxEntries {
		c.entries = c.entries[len(c.entries)-maxEntries:]
	}
	c.refresh()
}

// Entries returns the lines at or above the current filter level
func (c *Console) Entries() []LogEntry {
	out := make([]LogEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Level >= c.showLevel {
			out = append(out, e)
		}
	}
	return out
}

// Update handles scrolling and the 1/2/3 level filter keys
func (c *Console) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			c.viewport.LineUp(1)
		case "down", "j":
			c.viewport.LineDown(1)
		case "1":
			c.showLevel = LevelInfo
			c.refresh()
		case "2":
			c.showLevel = LevelWarning
			c.refresh()
		case "3":
			c.showLevel = LevelError
			c.refresh()
		}
	}
	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	return cmd
}

// View renders the console
func (c *Console) View() string {
	footer := fmt.Sprintf(
		"Filter: %s (1:Info 2:Warn 3:Error) | Errors: %d | Warnings: %d",
		c.showLevel, c.countByLevel(LevelError), c.countByLevel(LevelWarning),
	)
	return c.viewport.View() + "\n" + infoStyle.Render(footer)
}

func (c *Console) refresh() {
	atBottom := c.viewport.AtBottom()

	var sb strings.Builder
	for _, e := range c.Entries() {
		style := infoLogStyle
		switch e.Level {
		case LevelError:
			style = errorLogStyle
		case LevelWarning:
			style = warningLogStyle
		}
		fmt.Fprintf(&sb, "%s [%s] %s\n", timestampStyle.Render(e.At.Format("15:04:05")), style.Render(e.Level.String()), e.Message)
	}
	c.viewport.SetContent(sb.String())

	if atBottom {
		c.viewport.GotoBottom()
	}
}

func (c *Console) countByLevel(level LogLevel) int {
	n := 0
	for _, e := range c.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}
