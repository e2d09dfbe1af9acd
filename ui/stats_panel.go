package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// RunStats summarizes the runs of a session
type RunStats struct {
	Runs        int
	Saved       int
	Failed      int
	InFlight    int
	NextChapter int
	StartTime   time.Time
	AverageTime time.Duration
	// FailedAt counts failed runs by the step they stopped at
	FailedAt map[string]int
}

// Record folds a finished run into the stats
func (s *RunStats) Record(r RunRecord) {
	s.AverageTime = (s.AverageTime*time.Duration(s.Runs) + r.Took) / time.Duration(s.Runs+1)
	s.Runs++
	if r.OK() {
		s.Saved++
		return
	}
	s.Failed++
	if s.FailedAt == nil {
		s.FailedAt = make(map[string]int)
	}
	s.FailedAt[r.Step]++
}

// StatsPanel displays session statistics
type StatsPanel struct {
	stats      RunStats
	width      int
	height     int
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
}

// NewStatsPanel creates an empty panel
func NewStatsPanel() *StatsPanel {
	return &StatsPanel{
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")),
	}
}

func (s *StatsPanel) SetSize(width, height int) {
	s.width = width
	s.height = height
}

func (s *StatsPanel) Update(tea.Msg) tea.Cmd {
	return nil
}

func (s *StatsPanel) View() string {
	successRate := 0.0
	if s.stats.Runs > 0 {
		successRate = float64(s.stats.Saved) / float64(s.stats.Runs) * 100
	}
	next := "-"
	if s.stats.NextChapter > 0 {
		next = fmt.Sprintf("%d", s.stats.NextChapter)
	}

	rows := []struct {
		label string
		value string
	}{
		{"Runs", fmt.Sprintf("%d (%d in flight)", s.stats.Runs, s.stats.InFlight)},
		{"Saved", fmt.Sprintf("%.1f%% (%d/%d)", successRate, s.stats.Saved, s.stats.Runs)},
		{"Next chapter", next},
		{"Avg run", s.stats.AverageTime.Round(time.Millisecond).String()},
		{"Session", formatElapsed(s.stats.StartTime)},
	}

	var content strings.Builder
	content.WriteString(titleStyle.Render("Session") + "\n\n")
	for _, row := range rows {
		fmt.Fprintf(&content, "%s %s\n", s.labelStyle.Render(fmt.Sprintf("%-13s", row.label+":")), s.valueStyle.Render(row.value))
	}

	if len(s.stats.FailedAt) > 0 {
		steps := make([]string, 0, len(s.stats.FailedAt))
		for step := range s.stats.FailedAt {
			steps = append(steps, step)
		}
		sort.Strings(steps)
		content.WriteString("\nFailures by step:\n")
		for _, step := range steps {
			content.WriteString(warningStyle.Render(fmt.Sprintf("• %s: %d", step, s.stats.FailedAt[step])) + "\n")
		}
	}

	return content.String()
}

// UpdateStats replaces the statistics
func (s *StatsPanel) UpdateStats(stats RunStats) {
	s.stats = stats
}

func formatElapsed(start time.Time) string {
	if start.IsZero() {
		return "00:00:00"
	}
	elapsed := time.Since(start)
	return fmt.Sprintf("%02d:%02d:%02d",
		int(elapsed.Hours()),
		int(elapsed.Minutes())%60,
		int(elapsed.Seconds())%60,
	)
}
