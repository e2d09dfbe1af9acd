// Package browser drives a Chrome instance through chromedp. Every tab it
// opens gets an in-process page agent attached to the messaging hub, so
// hotkey runs can extract from live pages.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/go-scripts/chapterhook/internal/agent"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/types"
)

// Options configures the Chrome instance
type Options struct {
	Headless    bool
	Width       int
	Height      int
	UserAgent   string
	LoadTimeout time.Duration
}

// TabTracker is told about tabs as they open, navigate and close
type TabTracker interface {
	Activate(tab types.Tab)
	SetURL(id, url string)
	Remove(id string)
}

// Browser owns the Chrome process and its tabs
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	hub     *messaging.Hub
	tracker TabTracker
	logger  *log.Logger
	opts    Options

	mu   sync.Mutex
	tabs map[string]*Tab
}

// New starts Chrome. It fails when no Chrome binary can be launched.
func New(opts Options, hub *messaging.Hub, tracker TabTracker, logger *log.Logger) (*Browser, error) {
	if logger == nil {
		logger = log.Default()
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(logger.Errorf))

	// an empty run launches the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Browser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		hub:         hub,
		tracker:     tracker,
		logger:      logger,
		opts:        opts,
		tabs:        make(map[string]*Tab),
	}, nil
}

// OpenTab opens url in a new tab, waits for its body and attaches a page
// agent. The new tab becomes the active one.
func (b *Browser) OpenTab(ctx context.Context, url string) (*Tab, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	t := &Tab{
		id:      uuid.NewString(),
		ctx:     tabCtx,
		cancel:  cancel,
		tracker: b.tracker,
	}

	// the first run creates the target and must use the tab context itself
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	chromedp.ListenTarget(tabCtx, t.onEvent)

	loadCtx, loadCancel := context.WithTimeout(tabCtx, b.opts.LoadTimeout)
	defer loadCancel()
	stop := context.AfterFunc(ctx, loadCancel)
	defer stop()

	var location string
	err := chromedp.Run(loadCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	t.setURL(location)

	t.endpoint = messaging.ServeLocal(agent.New(t, t, b.logger.With("tab", t.id)), b.logger)
	b.hub.Attach(t.id, t.endpoint)

	b.mu.Lock()
	b.tabs[t.id] = t
	b.mu.Unlock()
	b.tracker.Activate(types.Tab{ID: t.id, URL: location})

	b.logger.Info("Tab opened", "tab", t.id, "url", location)
	return t, nil
}

// Focus brings tab id to the front and makes it the active tab
func (b *Browser) Focus(ctx context.Context, id string) error {
	t, err := b.tab(id)
	if err != nil {
		return err
	}
	if err := t.run(ctx, page.BringToFront()); err != nil {
		return fmt.Errorf("failed to focus tab %s: %w", id, err)
	}
	b.tracker.Activate(types.Tab{ID: id, URL: t.URL()})
	return nil
}

// Navigate loads url in an open tab. The agent stays attached.
func (b *Browser) Navigate(ctx context.Context, id, url string) error {
	t, err := b.tab(id)
	if err != nil {
		return err
	}
	loadCtx, cancel := context.WithTimeout(ctx, b.opts.LoadTimeout)
	defer cancel()
	return t.run(loadCtx, chromedp.Navigate(url), chromedp.WaitReady("body"))
}

// Tabs lists the open tabs
func (b *Browser) Tabs() []types.Tab {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Tab, 0, len(b.tabs))
	for id, t := range b.tabs {
		out = append(out, types.Tab{ID: id, URL: t.URL()})
	}
	return out
}

// CloseTab closes tab id and detaches its agent
func (b *Browser) CloseTab(id string) {
	b.mu.Lock()
	t, ok := b.tabs[id]
	delete(b.tabs, id)
	b.mu.Unlock()
	if !ok {
		return
	}
	b.hub.Detach(id, t.endpoint)
	t.endpoint.Close()
	b.tracker.Remove(id)
	t.cancel()
}

// Close closes every tab and stops Chrome
func (b *Browser) Close() {
	b.mu.Lock()
	ids := make([]string, 0, len(b.tabs))
	for id := range b.tabs {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.CloseTab(id)
	}
	b.cancel()
	b.allocCancel()
}

func (b *Browser) tab(id string) (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tabs[id]
	if !ok {
		return nil, fmt.Errorf("no open tab %s", id)
	}
	return t, nil
}
