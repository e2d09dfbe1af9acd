// Package progress reports batch capture progress on a terminal.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	okMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Render("✓")
	failMark = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
)

// Tracker draws an overall progress bar for a batch of pages
type Tracker struct {
	bar    progress.Model
	out    io.Writer
	total  int
	done   int
	failed int
	mu     sync.Mutex
}

// New creates a Tracker for total pages writing to out
func New(out io.Writer, total int) *Tracker {
	return &Tracker{
		bar:   progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		out:   out,
		total: total,
	}
}

// Start announces that pageURL is being captured
func (t *Tracker) Start(pageURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "Capturing %d/%d: %s\n", t.done+1, t.total, pageURL)
}

// Finish records the result of a page and redraws the bar
func (t *Tracker) Finish(pageURL string, ok bool, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	mark := okMark
	if !ok {
		t.failed++
		mark = failMark
	}
	fmt.Fprintf(t.out, "%s %s %s\n", mark, pageURL, detail)
	fmt.Fprintf(t.out, "Progress: %s %d/%d pages\n", t.bar.ViewAs(t.percent()), t.done, t.total)
}

// Percent returns the share of pages finished
func (t *Tracker) Percent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.percent()
}

func (t *Tracker) percent() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.done) / float64(t.total)
}

// Counts returns finished and failed pages
func (t *Tracker) Counts() (done, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done, t.failed
}
