// Package notify carries the user-visible status messages of a run.
//
// The host side (Sink) is fire-and-forget and intentionally lossy. The page
// side (Board) shows each message as a toast that removes itself after
// ToastTTL; toasts stack independently and are never merged.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// ToastTTL is how long a toast stays visible
const ToastTTL = 2500 * time.Millisecond

var toastStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MaxWidth(48)

// Toast is a message currently on screen
type Toast struct {
	ID      int
	Message string
	Shown   time.Time
}

// Board is a page's toast layer
type Board struct {
	mu       sync.Mutex
	toasts   []Toast
	history  []string
	nextID   int
	ttl      time.Duration
	mirror   *log.Logger
	onChange func()
}

// BoardOption configures a Board
type BoardOption func(*Board)

// WithTTL overrides ToastTTL
func WithTTL(d time.Duration) BoardOption {
	return func(b *Board) {
		b.ttl = d
	}
}

// WithMirror also logs every toast to logger
func WithMirror(logger *log.Logger) BoardOption {
	return func(b *Board) {
		b.mirror = logger
	}
}

// WithOnChange registers fn to run whenever a toast appears or expires
func WithOnChange(fn func()) BoardOption {
	return func(b *Board) {
		b.onChange = fn
	}
}

// NewBoard creates an empty Board
func NewBoard(opts ...BoardOption) *Board {
	b := &Board{ttl: ToastTTL}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Toast shows msg. It satisfies the agent's toaster.
func (b *Board) Toast(_ context.Context, msg string) {
	b.Show(msg)
}

// Show displays msg immediately and schedules its removal
func (b *Board) Show(msg string) int {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.toasts = append(b.toasts, Toast{ID: id, Message: msg, Shown: time.Now()})
	b.history = append(b.history, msg)
	b.mu.Unlock()

	if b.mirror != nil {
		b.mirror.Info(msg)
	}
	time.AfterFunc(b.ttl, func() { b.remove(id) })
	b.changed()
	return id
}

func (b *Board) remove(id int) {
	b.mu.Lock()
	for i, t := range b.toasts {
		if t.ID == id {
			b.toasts = append(b.toasts[:i], b.toasts[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
	b.changed()
}

func (b *Board) changed() {
	if b.onChange != nil {
		b.onChange()
	}
}

// Active returns the toasts currently visible, oldest first
func (b *Board) Active() []Toast {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Toast(nil), b.toasts...)
}

// History returns every message ever shown, in order
func (b *Board) History() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.history...)
}

// Render draws the visible toasts stacked bottom-up, newest last
func (b *Board) Render() string {
	active := b.Active()
	if len(active) == 0 {
		return ""
	}
	rows := make([]string, 0, len(active))
	for _, t := range active {
		rows = append(rows, toastStyle.Render(t.Message))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rows...)
}
