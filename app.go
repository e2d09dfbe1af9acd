package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/go-scripts/chapterhook/internal/agent"
	"github.com/go-scripts/chapterhook/internal/archive"
	"github.com/go-scripts/chapterhook/internal/browser"
	"github.com/go-scripts/chapterhook/internal/config"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/pipeline"
	"github.com/go-scripts/chapterhook/internal/settings"
	"github.com/go-scripts/chapterhook/internal/types"
)

const defaultConfigFile = "chapterhook.yaml"

// app holds what every command needs: configuration, logger and store
type app struct {
	cfg     config.Config
	logger  *log.Logger
	store   *settings.SQLiteStore
	closers []func() error
}

// newApp loads configuration, applies flag overrides and opens the store.
// Logs go to logOut unless a log file is configured.
func newApp(ctx context.Context, cli *CLI, logOut io.Writer) (*app, error) {
	path, explicit := cli.ConfigFile, cli.ConfigFile != ""
	if !explicit {
		path = defaultConfigFile
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if cli.Store != "" {
		cfg.StorePath = cli.Store
	}
	if cli.LogLevel != "" {
		cfg.LogLevel = cli.LogLevel
	}
	if cli.LogFile != "" {
		cfg.LogFile = cli.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		a.closers = append(a.closers, f.Close)
		logOut = f
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	a.logger = log.NewWithOptions(logOut, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Level:           level,
	})
	log.SetDefault(a.logger)

	store, err := settings.OpenSQLite(ctx, cfg.StorePath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)
	a.logger.Debug("Settings store opened", "path", cfg.StorePath)
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *app) newHub() *messaging.Hub {
	return messaging.NewHub(
		messaging.WithReplyTimeout(a.cfg.ReplyTimeout),
		messaging.WithHubLogger(a.logger),
	)
}

func (a *app) newOrchestrator(tabs pipeline.TabLocator, ch messaging.Channel, opts ...pipeline.Option) (*pipeline.Orchestrator, error) {
	base := []pipeline.Option{
		pipeline.WithLogger(a.logger),
		pipeline.WithHTTPClient(a.backendHTTPClient()),
	}
	if a.cfg.ArchiveDir != "" {
		w, err := archive.New(a.cfg.ArchiveDir)
		if err != nil {
			return nil, err
		}
		base = append(base, pipeline.WithArchiver(w))
	}
	if a.cfg.ExclusiveRuns {
		base = append(base, pipeline.WithExclusiveRuns())
	}
	return pipeline.New(tabs, a.store, ch, append(base, opts...)...), nil
}

// backendHTTPClient waits indefinitely unless backend_timeout is set
func (a *app) backendHTTPClient() *http.Client {
	return &http.Client{Timeout: a.cfg.BackendTimeout}
}

func (a *app) browserOptions() browser.Options {
	b := a.cfg.Browser
	return browser.Options{
		Headless:    b.Headless,
		Width:       b.Width,
		Height:      b.Height,
		UserAgent:   b.UserAgent,
		LoadTimeout: b.LoadTimeout,
	}
}

// openStatic fetches pageURL, serves it from an in-process agent and makes
// it the active tab. The returned func closes the tab.
func (a *app) openStatic(ctx context.Context, hub *messaging.Hub, tabs *pipeline.Registry, pageURL, userAgent string, toaster agent.Toaster) (types.Tab, func(), error) {
	client := &http.Client{Timeout: a.cfg.Browser.LoadTimeout}
	page, err := agent.FetchPage(ctx, client, pageURL, userAgent)
	if err != nil {
		return types.Tab{}, nil, err
	}
	tab := types.Tab{ID: uuid.NewString(), URL: page.URL()}
	ep := messaging.ServeLocal(agent.New(page, toaster, a.logger), a.logger)
	hub.Attach(tab.ID, ep)
	tabs.Activate(tab)
	return tab, func() {
		hub.Detach(tab.ID, ep)
		ep.Close()
		tabs.Remove(tab.ID)
	}, nil
}

// serveAgents accepts remote page agents on addr until ctx ends
func (a *app) serveAgents(ctx context.Context, addr string, hub *messaging.Hub, tabs *pipeline.Registry) (*http.Server, error) {
	mux := http.NewServeMux()
	mux.Handle("/agent", messaging.NewAgentServer(hub, a.logger,
		messaging.OnConnect(tabs.Activate),
		messaging.OnDisconnect(tabs.Remove),
	))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})

	select {
	case err := <-errCh:
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	case <-time.After(100 * time.Millisecond):
	}
	a.logger.Info("Accepting page agents", "addr", "ws://"+addr+"/agent")
	return srv, nil
}
