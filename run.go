package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/chapterhook/internal/browser"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/notify"
	"github.com/go-scripts/chapterhook/internal/pipeline"
)

// RunCmd captures one page
type RunCmd struct {
	URL       string `arg:"" help:"Page to capture"`
	Static    bool   `help:"Fetch the page over HTTP instead of opening it in Chrome"`
	UserAgent string `help:"User agent for static fetches" default:"chapterhook/1.0"`
	NoSpinner bool   `help:"Disable the progress spinner"`

	out io.Writer
}

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func (c *RunCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := c.out
	if out == nil {
		out = os.Stdout
	}

	a, err := newApp(ctx, cli, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	hub := a.newHub()
	defer hub.Close()
	tabs := pipeline.NewRegistry()

	// page toasts are echoed to the terminal
	board := notify.NewBoard(notify.WithMirror(a.logger.WithPrefix("page")))

	var tabID string
	if c.Static {
		tab, closeTab, err := a.openStatic(ctx, hub, tabs, c.URL, c.UserAgent, board)
		if err != nil {
			return err
		}
		defer closeTab()
		tabID = tab.ID
	} else {
		b, err := browser.New(a.browserOptions(), hub, tabs, a.logger)
		if err != nil {
			return err
		}
		defer b.Close()
		tab, err := b.OpenTab(ctx, c.URL)
		if err != nil {
			return err
		}
		tabID = tab.ID()
	}

	var s *spinner.Spinner
	if !c.NoSpinner {
		s = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " starting"
		s.Start()
	}
	orch, err := a.newOrchestrator(tabs, hub, pipeline.WithObserver(func(e pipeline.Event) {
		if s == nil {
			return
		}
		s.Lock()
		s.Suffix = " " + string(e.Step)
		s.Unlock()
	}))
	if err != nil {
		if s != nil {
			s.Stop()
		}
		return err
	}

	result := orch.Run(ctx)
	if s != nil {
		s.Stop()
	}

	// let queued notifications reach the page before it goes away
	if _, err := messaging.Ping(ctx, hub, tabID); err != nil {
		a.logger.Debug("Agent gone before final notifications", "error", err)
	}

	return report(out, a.logger, result)
}

func report(out io.Writer, logger *log.Logger, o pipeline.Outcome) error {
	if !o.OK() {
		fmt.Fprintln(out, failStyle.Render(fmt.Sprintf("✗ Stopped at %s", o.Step)))
		return fmt.Errorf("run %s stopped at %s: %w", o.RunID, o.Step, o.Err)
	}
	msg := fmt.Sprintf("✓ Saved chapter %d of %s as id %d", o.ChapterNo, o.Host, o.ChapterID)
	if o.NextChapterNo > 0 {
		msg += fmt.Sprintf(", next chapter = %d", o.NextChapterNo)
	}
	fmt.Fprintln(out, okStyle.Render(msg))
	logger.Debug("Run finished", "run", o.RunID, "url", o.URL)
	return nil
}
