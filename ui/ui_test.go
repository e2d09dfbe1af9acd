package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/chapterhook/internal/types"
)

func TestRunStatsRecord(t *testing.T) {
	var s RunStats
	s.Record(RunRecord{Step: "Done", Took: 100 * time.Millisecond})
	s.Record(RunRecord{Step: "Submit", Error: "HTTP 409: conflict", Took: 300 * time.Millisecond})
	s.Record(RunRecord{Step: "Submit", Error: "HTTP 500: boom", Took: 200 * time.Millisecond})

	assert.Equal(t, 3, s.Runs)
	assert.Equal(t, 1, s.Saved)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, map[string]int{"Submit": 2}, s.FailedAt)
	assert.Equal(t, 200*time.Millisecond, s.AverageTime)
}

func TestRunsTable(t *testing.T) {
	table := NewRunsTable()
	assert.Contains(t, table.View(), "No runs yet")

	table.SetSize(100, 10)
	table.AddRun(RunRecord{RunID: "ab12cd34", Host: "example.com", ChapterNo: 5, ChapterID: 42, Step: "Done", At: time.Now()})
	table.AddRun(RunRecord{RunID: "ef56", Host: "example.com", ChapterNo: 6, Step: "ProbeAgent", Error: "page agent absent", At: time.Now()})

	view := table.View()
	assert.Contains(t, view, "Runs: 2 | Saved: 1 | Failed: 1")
	assert.Len(t, table.Runs(), 2)
}

func TestConsoleFilter(t *testing.T) {
	c := NewConsole()
	c.SetSize(80, 10)
	c.AddEntry(LevelInfo, "Extracting…")
	c.AddEntry(LevelWarning, "Ignoring malformed extractor config")
	c.AddEntry(LevelError, "Hotkey flow error")

	assert.Len(t, c.Entries(), 3)

	c.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})
	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Hotkey flow error", entries[0].Message)
	assert.Contains(t, c.View(), "Filter: ERROR")
}

func TestConsoleKeepsBoundedHistory(t *testing.T) {
	c := NewConsole()
	for range maxEntries + 10 {
		c.AddEntry(LevelInfo, "line")
	}
	assert.Len(t, c.Entries(), maxEntries)
}

func TestTabListMarksActiveTab(t *testing.T) {
	l := NewTabList()
	l.SetSize(60, 20)
	l.SetTabs([]types.Tab{
		{ID: "a", URL: "https://a.example/1"},
		{ID: "b", URL: "https://b.example/2"},
	}, map[string]string{"b": "chrome"})

	tab, ok := l.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", tab.ID)
	assert.Contains(t, l.View(), "● https://b.example/2")
}

func TestRunActivity(t *testing.T) {
	a := NewRunActivity()
	a.Start("r1")
	a.Step("r1", "Extract")
	a.Step("r2", "ProbeAgent")
	assert.Equal(t, 2, a.Count())
	assert.Contains(t, a.View(), "Extract")

	a.Finish("r1")
	a.Finish("missing")
	assert.Equal(t, 1, a.Count())
	assert.NotContains(t, a.View(), "r1")
}

func TestLayoutFocusCycles(t *testing.T) {
	l := NewLayout()
	l.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, FocusTabs, l.Focus())

	l.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, FocusRuns, l.Focus())
	l.Update(tea.KeyMsg{Type: tea.KeyTab})
	l.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, FocusTabs, l.Focus())

	l.AddError("boom")
	l.SetToasts("Extracting…")
	l.SetHelp("ctrl+t capture")
	view := l.View()
	assert.Contains(t, view, "Extracting…")
	assert.Contains(t, view, "ctrl+t capture")
	assert.True(t, strings.Contains(view, "Runs"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "ab", truncate("abcdefgh", 2))
}
