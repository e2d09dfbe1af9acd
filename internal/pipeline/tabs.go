package pipeline

import (
	"context"
	"sync"

	"github.com/go-scripts/chapterhook/internal/types"
)

// TabLocator finds the tab a hotkey press refers to
type TabLocator interface {
	ActiveTab(ctx context.Context) (types.Tab, error)
}

// Registry tracks open tabs. The most recently activated tab is the active one.
type Registry struct {
	mu    sync.Mutex
	tabs  map[string]types.Tab
	order []string
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{tabs: make(map[string]types.Tab)}
}

// Activate records tab (or its new URL) and makes it the active tab
func (r *Registry) Activate(tab types.Tab) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(tab.ID)
	r.tabs[tab.ID] = tab
	r.order = append(r.order, tab.ID)
}

// SetURL records a navigation inside an open tab without changing which tab
// is active
func (r *Registry) SetURL(id, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tab, ok := r.tabs[id]; ok {
		tab.URL = url
		r.tabs[id] = tab
	}
}

// Remove forgets a closed tab
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drop(id)
}

func (r *Registry) drop(id string) {
	if _, ok := r.tabs[id]; !ok {
		return
	}
	delete(r.tabs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// ActiveTab returns the most recently activated open tab
func (r *Registry) ActiveTab(context.Context) (types.Tab, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return types.Tab{}, ErrNoActiveTab
	}
	return r.tabs[r.order[len(r.order)-1]], nil
}

// Tabs lists open tabs, least recently activated first
func (r *Registry) Tabs() []types.Tab {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Tab, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tabs[id])
	}
	return out
}
