package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunRecord is one finished hotkey run
type RunRecord struct {
	RunID     string
	Host      string
	ChapterNo int
	ChapterID int64
	// Step is where the run stopped
	Step  string
	Error string
	Took  time.Duration
	At    time.Time
}

// OK reports whether the run went through
func (r RunRecord) OK() bool {
	return r.Error == ""
}

// RunsTable lists finished runs, newest last
type RunsTable struct {
	viewport    viewport.Model
	runs        []RunRecord
	width       int
	height      int
	headerStyle lipgloss.Style
	cellStyle   lipgloss.Style
}

// NewRunsTable creates an empty table
func NewRunsTable() *RunsTable {
	t := &RunsTable{
		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		cellStyle: lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingRight(1),
	}
	t.viewport = viewport.New(0, 0)
	return t
}

// SetSize updates the table dimensions
func (t *RunsTable) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.viewport.Width = width - 4
	t.viewport.Height = height - 4
	t.refresh()
}

// Update scrolls the table
func (t *RunsTable) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "pgup":
			t.viewport.HalfViewUp()
		case "pgdown":
			t.viewport.HalfViewDown()
		}
	}
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return cmd
}

// View renders the table
func (t *RunsTable) View() string {
	if len(t.runs) == 0 {
		return infoStyle.Render("No runs yet")
	}
	summary := fmt.Sprintf("Runs: %d | Saved: %d | Failed: %d", len(t.runs), t.savedCount(), len(t.runs)-t.savedCount())
	return t.viewport.View() + "\n" + infoStyle.Render(summary)
}

// AddRun appends a finished run
func (t *RunsTable) AddRun(r RunRecord) {
	atBottom := t.viewport.AtBottom()
	t.runs = append(t.runs, r)
	t.refresh()
	if atBottom {
		t.viewport.GotoBottom()
	}
}

// Runs returns the recorded runs
func (t *RunsTable) Runs() []RunRecord {
	return append([]RunRecord(nil), t.runs...)
}

func (t *RunsTable) refresh() {
	hostWidth := max(12, min(32, t.width/3))

	header := t.headerStyle.Render(fmt.Sprintf(
		"%-8s %-8s %-*s %7s %8s %-15s %s",
		"Time", "Run", hostWidth, "Host", "Chapter", "ID", "Stopped at", "Took",
	))

	rows := make([]string, 0, len(t.runs))
	for _, r := range t.runs {
		id := "-"
		if r.ChapterID != 0 {
			id = fmt.Sprintf("%d", r.ChapterID)
		}
		row := t.cellStyle.Render(fmt.Sprintf(
			"%-8s %-8s %-*s %7d %8s %-15s %v",
			r.At.Format("15:04:05"),
			r.RunID,
			hostWidth, truncate(r.Host, hostWidth),
			r.ChapterNo,
			id,
			r.Step,
			r.Took.Round(time.Millisecond),
		))
		if !r.OK() {
			row = errorStyle.Render(row) + "\n" + warningStyle.Render("  "+truncate(r.Error, max(20, t.width-8)))
		}
		rows = append(rows, row)
	}

	t.viewport.SetContent(header + "\n" + strings.Join(rows, "\n"))
}

func (t *RunsTable) savedCount() int {
	n := 0
	for _, r := range t.runs {
		if r.OK() {
			n++
		}
	}
	return n
}

func truncate(s string, w int) string {
	if len(s) <= w {
		return s
	}
	if w <= 3 {
		return s[:w]
	}
	return s[:w-3] + "..."
}
