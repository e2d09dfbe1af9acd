package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-scripts/chapterhook/internal/pipeline"
	"github.com/go-scripts/chapterhook/internal/settings"
	"github.com/go-scripts/chapterhook/ui"
)

// Message types
type runStepMsg pipeline.Event
type runDoneMsg struct {
	outcome pipeline.Outcome
	took    time.Duration
}
type logLineMsg []byte
type toastsMsg struct{}
type statsTickMsg struct{}
type tabsChangedMsg struct{}

func tickStats() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return statsTickMsg{}
	})
}

// watchModel is the watch screen
type watchModel struct {
	rt     *watchRuntime
	layout *ui.Layout
	stats  ui.RunStats
}

func newWatchModel(rt *watchRuntime) watchModel {
	m := watchModel{
		rt:     rt,
		layout: ui.NewLayout(),
		stats:  ui.RunStats{StartTime: time.Now()},
	}
	m.layout.SetHelp(fmt.Sprintf("%s capture active tab • enter activate tab • tab switch panel • 1/2/3 filter console • q quit", rt.hotkey))
	if next, err := settings.GetInt(rt.ctx, rt.store, settings.KeyChapterNo, 1); err == nil {
		m.stats.NextChapter = next
	}
	m.refreshTabs()
	m.layout.Stats().UpdateStats(m.stats)
	return m
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		m.layout.Init(),
		waitForLog(m.rt.logs),
		tickStats(),
	)
}

// capture runs the hotkey flow once
func (m watchModel) capture() tea.Cmd {
	rt := m.rt
	return func() tea.Msg {
		start := time.Now()
		out := rt.orch.Run(rt.ctx)
		return runDoneMsg{outcome: out, took: time.Since(start)}
	}
}

func (m *watchModel) refreshTabs() {
	kinds := make(map[string]string)
	for _, id := range m.rt.hub.Tabs() {
		kinds[id] = "agent"
	}
	if m.rt.browser != nil {
		for _, t := range m.rt.browser.Tabs() {
			if _, ok := kinds[t.ID]; ok {
				kinds[t.ID] = "chrome"
			}
		}
	}
	m.layout.Tabs().SetTabs(m.rt.tabs.Tabs(), kinds)
}

// activate makes the highlighted tab the one the hotkey captures
func (m watchModel) activate() tea.Cmd {
	tab, ok := m.layout.Tabs().Selected()
	if !ok {
		return nil
	}
	rt := m.rt
	return func() tea.Msg {
		if rt.browser == nil || rt.browser.Focus(rt.ctx, tab.ID) != nil {
			rt.tabs.Activate(tab)
		}
		return tabsChangedMsg{}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case statsTickMsg:
		m.refreshTabs()
		m.layout.Stats().UpdateStats(m.stats)
		cmds = append(cmds, tickStats())

	case tabsChangedMsg:
		m.refreshTabs()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case m.rt.hotkey:
			m.stats.InFlight++
			m.layout.Stats().UpdateStats(m.stats)
			return m, m.capture()
		case "enter":
			if m.layout.Focus() == ui.FocusTabs {
				return m, m.activate()
			}
		}

	case runStepMsg:
		if msg.Step == pipeline.StepResolveTarget {
			m.layout.Activity().Start(msg.RunID)
		}
		m.layout.Activity().Step(msg.RunID, string(msg.Step))
		return m, nil

	case runDoneMsg:
		o := msg.outcome
		m.layout.Activity().Finish(o.RunID)
		rec := ui.RunRecord{
			RunID:     o.RunID,
			Host:      o.Host,
			ChapterNo: o.ChapterNo,
			ChapterID: o.ChapterID,
			Step:      string(o.Step),
			Took:      msg.took,
			At:        time.Now(),
		}
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
		m.layout.Runs().AddRun(rec)
		m.stats.Record(rec)
		m.stats.InFlight = max(0, m.stats.InFlight-1)
		if o.NextChapterNo > 0 {
			m.stats.NextChapter = o.NextChapterNo
		}
		m.layout.Stats().UpdateStats(m.stats)
		return m, nil

	case logLineMsg:
		level, line := parseLogLine(msg)
		m.layout.Console().AddEntry(level, line)
		return m, waitForLog(m.rt.logs)

	case toastsMsg:
		m.layout.SetToasts(m.rt.board.Render())
		return m, nil
	}

	layoutModel, layoutCmd := m.layout.Update(msg)
	if updatedLayout, ok := layoutModel.(*ui.Layout); ok {
		m.layout = updatedLayout
	}
	cmds = append(cmds, layoutCmd)

	return m, tea.Batch(cmds...)
}

func (m watchModel) View() string {
	return m.layout.View()
}
