package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/go-scripts/chapterhook/internal/browser"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/notify"
	"github.com/go-scripts/chapterhook/internal/pipeline"
	"github.com/go-scripts/chapterhook/internal/progress"
	"github.com/go-scripts/chapterhook/internal/queue"
)

// BatchCmd captures several pages in order, one run per page
type BatchCmd struct {
	URLs        []string      `arg:"" help:"Pages to capture, in chapter order"`
	Static      bool          `help:"Fetch pages over HTTP instead of opening them in Chrome"`
	UserAgent   string        `help:"User agent for static fetches" default:"chapterhook/1.0"`
	StopOnError bool          `help:"Stop after the first failed page"`
	Delay       time.Duration `help:"Pause between pages" default:"0s"`

	out io.Writer
}

func (c *BatchCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out := stdout(c.out)
	a, err := newApp(ctx, cli, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	q := queue.New()
	for _, u := range c.URLs {
		if !q.Add(u) {
			a.logger.Warn("Skipping repeated page", "url", u)
		}
	}

	hub := a.newHub()
	defer hub.Close()
	tabs := pipeline.NewRegistry()
	board := notify.NewBoard(notify.WithMirror(a.logger.WithPrefix("page")))

	var b *browser.Browser
	if !c.Static {
		b, err = browser.New(a.browserOptions(), hub, tabs, a.logger)
		if err != nil {
			return err
		}
		defer b.Close()
	}

	orch, err := a.newOrchestrator(tabs, hub)
	if err != nil {
		return err
	}

	tracker := progress.New(out, q.Len())
	for {
		pageURL, ok := q.Next()
		if !ok {
			break
		}
		if q.Taken() > 1 && c.Delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(c.Delay):
			}
		}
		if ctx.Err() != nil {
			break
		}

		tracker.Start(pageURL)
		o, err := c.capture(ctx, a, orch, hub, tabs, b, board, pageURL)
		switch {
		case err != nil:
			tracker.Finish(pageURL, false, err.Error())
		case o.OK():
			tracker.Finish(pageURL, true, fmt.Sprintf("chapter %d saved as id %d", o.ChapterNo, o.ChapterID))
		default:
			tracker.Finish(pageURL, false, fmt.Sprintf("stopped at %s: %v", o.Step, o.Err))
		}

		if _, failed := tracker.Counts(); failed > 0 && c.StopOnError {
			break
		}
	}

	done, failed := tracker.Counts()
	a.logger.Info("Batch finished", "captured", done-failed, "failed", failed, "skipped", q.Len())
	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, done)
	}
	return ctx.Err()
}

// capture opens pageURL as the active tab, runs the pipeline and closes it
func (c *BatchCmd) capture(ctx context.Context, a *app, orch *pipeline.Orchestrator, hub *messaging.Hub, tabs *pipeline.Registry, b *browser.Browser, board *notify.Board, pageURL string) (pipeline.Outcome, error) {
	var tabID string
	if b == nil {
		tab, closeTab, err := a.openStatic(ctx, hub, tabs, pageURL, c.UserAgent, board)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		defer closeTab()
		tabID = tab.ID
	} else {
		tab, err := b.OpenTab(ctx, pageURL)
		if err != nil {
			return pipeline.Outcome{}, err
		}
		defer b.CloseTab(tab.ID())
		tabID = tab.ID()
	}

	o := orch.Run(ctx)
	// let the last notifications land before the tab closes
	if _, err := messaging.Ping(ctx, hub, tabID); err != nil {
		a.logger.Debug("Agent gone before final notifications", "error", err)
	}
	return o, nil
}
