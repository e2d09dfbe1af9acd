package main

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/chapterhook/internal/browser"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/notify"
	"github.com/go-scripts/chapterhook/internal/pipeline"
	"github.com/go-scripts/chapterhook/internal/settings"
	"github.com/go-scripts/chapterhook/ui"
)

// WatchCmd keeps pages open and captures the active one on a hotkey
type WatchCmd struct {
	URLs      []string `arg:"" optional:"" help:"Pages to open"`
	Static    bool     `help:"Fetch pages over HTTP instead of opening them in Chrome"`
	UserAgent string   `help:"User agent for static fetches" default:"chapterhook/1.0"`
	Listen    string   `help:"Accept remote page agents on this address, overrides the configuration"`
	Hotkey    string   `help:"Key that captures the active tab, overrides the configuration"`
}

var errNothingToWatch = errors.New("nothing to watch: give page URLs or --listen")

func (c *WatchCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cli, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	listen := cmp.Or(c.Listen, a.cfg.Listen)
	if len(c.URLs) == 0 && listen == "" {
		return errNothingToWatch
	}

	logs := make(logPipe, 256)
	if a.cfg.LogFile == "" {
		a.logger.SetOutput(logs)
		a.logger.SetFormatter(log.JSONFormatter)
	}

	rt := &watchRuntime{
		ctx:    ctx,
		hotkey: cmp.Or(c.Hotkey, a.cfg.Hotkey),
		store:  a.store,
		logs:   logs,
		send:   func(tea.Msg) {},
	}
	rt.hub = a.newHub()
	defer rt.hub.Close()
	rt.tabs = pipeline.NewRegistry()
	rt.board = notify.NewBoard(notify.WithOnChange(func() { rt.send(toastsMsg{}) }))

	if listen != "" {
		if _, err := a.serveAgents(ctx, listen, rt.hub, rt.tabs); err != nil {
			return err
		}
	}

	if c.Static {
		for _, u := range c.URLs {
			// toasts already reach the screen through boardChannel
			if _, _, err := a.openStatic(ctx, rt.hub, rt.tabs, u, c.UserAgent, nil); err != nil {
				a.logger.Error("Could not open page", "url", u, "error", err)
			}
		}
	} else if len(c.URLs) > 0 {
		b, err := browser.New(a.browserOptions(), rt.hub, rt.tabs, a.logger)
		if err != nil {
			return err
		}
		defer b.Close()
		rt.browser = b
		for _, u := range c.URLs {
			if _, err := b.OpenTab(ctx, u); err != nil {
				a.logger.Error("Could not open page", "url", u, "error", err)
			}
		}
	}

	rt.orch, err = a.newOrchestrator(rt.tabs, boardChannel{Channel: rt.hub, board: rt.board},
		pipeline.WithObserver(func(e pipeline.Event) { rt.send(runStepMsg(e)) }),
	)
	if err != nil {
		return err
	}

	p := tea.NewProgram(newWatchModel(rt), tea.WithAltScreen(), tea.WithContext(ctx))
	rt.send = p.Send
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("watch screen: %w", err)
	}
	return nil
}

// boardChannel shows every notification on the local board as well as
// delivering it to the tab
type boardChannel struct {
	messaging.Channel
	board *notify.Board
}

func (c boardChannel) Post(ctx context.Context, tabID string, req messaging.Request) error {
	if req.Type == messaging.KindNotify {
		c.board.Show(req.Message)
	}
	return c.Channel.Post(ctx, tabID, req)
}

// logPipe hands JSON log records to the watch screen. Records are dropped
// while the screen is behind.
type logPipe chan []byte

func (p logPipe) Write(b []byte) (int, error) {
	select {
	case p <- bytes.Clone(b):
	default:
	}
	return len(b), nil
}

func waitForLog(p logPipe) tea.Cmd {
	return func() tea.Msg {
		return logLineMsg(<-p)
	}
}

// parseLogLine turns a JSON log record into a console entry
func parseLogLine(b []byte) (ui.LogLevel, string) {
	var rec map[string]any
	if err := json.Unmarshal(b, &rec); err != nil {
		return ui.LevelInfo, strings.TrimSpace(string(b))
	}

	level := ui.LevelInfo
	switch rec[log.LevelKey] {
	case "warn":
		level = ui.LevelWarning
	case "error", "fatal":
		level = ui.LevelError
	}

	var sb strings.Builder
	if prefix, _ := rec[log.PrefixKey].(string); prefix != "" {
		sb.WriteString(prefix + ": ")
	}
	msg, _ := rec[log.MessageKey].(string)
	sb.WriteString(msg)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		switch k {
		case log.TimestampKey, log.LevelKey, log.MessageKey, log.PrefixKey, log.CallerKey:
		default:
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, rec[k])
	}
	return level, sb.String()
}

// watchRuntime is shared by every copy of the model
type watchRuntime struct {
	ctx     context.Context
	orch    *pipeline.Orchestrator
	tabs    *pipeline.Registry
	hub     *messaging.Hub
	browser *browser.Browser
	board   *notify.Board
	store   settings.Store
	hotkey  string
	logs    logPipe
	send    func(tea.Msg)
}
