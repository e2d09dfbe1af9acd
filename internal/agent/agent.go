// Package agent is the page side of the messaging channel: it answers
// probes, runs extractions against its page and shows toasts.
package agent

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/chapterhook/internal/extract"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/types"
)

// Page is the document an agent is injected into
type Page interface {
	URL() string
	// Document returns the page as it is now
	Document(ctx context.Context) (extract.Document, error)
}

// Toaster displays a transient message on the page
type Toaster interface {
	Toast(ctx context.Context, msg string)
}

// Agent handles requests for one page
type Agent struct {
	page    Page
	toaster Toaster
	logger  *log.Logger
}

// New creates an Agent for page
func New(page Page, toaster Toaster, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{page: page, toaster: toaster, logger: logger}
}

// Handle answers one request
func (a *Agent) Handle(ctx context.Context, req messaging.Request) (any, error) {
	switch req.Type {
	case messaging.KindPing:
		return messaging.PingReply{OK: true, URL: a.page.URL()}, nil
	case messaging.KindExtract:
		return a.extract(ctx, req.Config), nil
	case messaging.KindNotify:
		if a.toaster != nil {
			a.toaster.Toast(ctx, req.Message)
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported message type %q", req.Type)
	}
}

func (a *Agent) extract(ctx context.Context, rule *types.Rule) types.Result {
	doc, err := a.page.Document(ctx)
	if err != nil {
		a.logger.Error("Page document unavailable", "url", a.page.URL(), "error", err)
		return types.Failure(fmt.Sprintf("Page unavailable: %v", err))
	}
	res := extract.Extract(ctx, doc, rule)
	if res.OK {
		a.logger.Debug("Extracted", "url", a.page.URL(), "chars", len(res.Text))
	} else {
		a.logger.Debug("Extraction failed", "url", a.page.URL(), "reason", res.Error)
	}
	return res
}

// StaticPage is a page parsed once from HTML
type StaticPage struct {
	url string
	doc *extract.StaticDocument
}

// NewStaticPage wraps a parsed document loaded from url
func NewStaticPage(url string, doc *extract.StaticDocument) *StaticPage {
	return &StaticPage{url: url, doc: doc}
}

func (p *StaticPage) URL() string {
	return p.url
}

func (p *StaticPage) Document(context.Context) (extract.Document, error) {
	return p.doc, nil
}
