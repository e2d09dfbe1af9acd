package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-scripts/chapterhook/internal/types"
)

// TabItem is an open tab in the list
type TabItem struct {
	tab    types.Tab
	active bool
	agent  string
}

// FilterValue implements list.Item
func (i TabItem) FilterValue() string { return i.tab.URL }

// Title returns the tab URL
func (i TabItem) Title() string {
	if i.active {
		return "● " + i.tab.URL
	}
	return i.tab.URL
}

// Description shows the tab id and how its agent is connected
func (i TabItem) Description() string {
	return fmt.Sprintf("id: %s | agent: %s", i.tab.ID, i.agent)
}

// Tab returns the tab behind the item
func (i TabItem) Tab() types.Tab { return i.tab }

// TabList lists the open tabs, the active one marked
type TabList struct {
	list   list.Model
	width  int
	height int
}

// NewTabList creates an empty tab list
func NewTabList() *TabList {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(lipgloss.Color("170"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(lipgloss.Color("244"))

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Tabs"
	l.Styles.Title = l.Styles.Title.Foreground(lipgloss.Color("240"))
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return &TabList{list: l}
}

// SetSize updates the list dimensions
func (t *TabList) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.list.SetSize(width, height)
}

// Update handles UI updates
func (t *TabList) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	t.list, cmd = t.list.Update(msg)
	return cmd
}

// View renders the component
func (t *TabList) View() string {
	return t.list.View()
}

// SetTabs replaces the listed tabs. tabs are ordered least recently
// activated first; the last one is the active tab.
func (t *TabList) SetTabs(tabs []types.Tab, agents map[string]string) {
	items := make([]list.Item, 0, len(tabs))
	for i := len(tabs) - 1; i >= 0; i-- {
		agent := agents[tabs[i].ID]
		if agent == "" {
			agent = "none"
		}
		items = append(items, TabItem{tab: tabs[i], active: i == len(tabs)-1, agent: agent})
	}
	t.list.SetItems(items)
	t.list.Title = fmt.Sprintf("Tabs (%d open)", len(tabs))
}

// Selected returns the highlighted tab
func (t *TabList) Selected() (types.Tab, bool) {
	item, ok := t.list.SelectedItem().(TabItem)
	if !ok {
		return types.Tab{}, false
	}
	return item.tab, true
}
