// Command pageagent serves one page to a chapterhook host as a remote tab.
// The page is fetched over HTTP and answered from the parsed document.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/go-scripts/chapterhook/internal/agent"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/notify"
)

type flags struct {
	Host      string        `help:"Agent endpoint of the host" default:"ws://127.0.0.1:7878/agent"`
	URL       string        `arg:"" help:"Page to serve"`
	Tab       string        `help:"Tab id to register as (random by default)"`
	UserAgent string        `help:"User agent for the page fetch" default:"chapterhook/1.0"`
	Timeout   time.Duration `help:"Page fetch timeout" default:"30s"`
	Debug     bool          `help:"Enable debug logging"`
}

func main() {
	var f flags
	kong.Parse(&f,
		kong.Name("pageagent"),
		kong.Description("Serve a page to a chapterhook host as a remote tab."),
		kong.UsageOnError(),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "pageagent",
	})
	if f.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(f, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	page, err := agent.FetchPage(ctx, &http.Client{Timeout: f.Timeout}, f.URL, f.UserAgent)
	if err != nil {
		return err
	}
	tabID := f.Tab
	if tabID == "" {
		tabID = uuid.NewString()
	}

	board := notify.NewBoard(notify.WithMirror(logger.WithPrefix("toast")))
	logger.Info("Serving page", "url", page.URL(), "tab", tabID, "host", f.Host)
	return messaging.DialAgent(ctx, f.Host, tabID, page.URL(), agent.New(page, board, logger), logger)
}
