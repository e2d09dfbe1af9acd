// Package pipeline runs the hotkey flow: resolve the tab and its settings,
// probe the page agent, extract the chapter, submit it to the backend,
// trigger translation and advance the chapter counter.
//
// Every step either succeeds or halts the run; nothing is retried and there
// is no rollback. Overlapping runs are independent and share only the
// settings store, so two runs started together can submit the same chapter
// number. WithExclusiveRuns turns on a single-run guard for callers that
// want to rule that out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/go-scripts/chapterhook/internal/archive"
	"github.com/go-scripts/chapterhook/internal/backend"
	"github.com/go-scripts/chapterhook/internal/messaging"
	"github.com/go-scripts/chapterhook/internal/notify"
	"github.com/go-scripts/chapterhook/internal/settings"
)

// Step names a state of the run
type Step string

const (
	StepResolveTarget   Step = "ResolveTarget"
	StepResolveSettings Step = "ResolveSettings"
	StepProbeAgent      Step = "ProbeAgent"
	StepExtract         Step = "Extract"
	StepSubmit          Step = "Submit"
	StepTranslate       Step = "Translate"
	StepAdvance         Step = "Advance"
	StepDone            Step = "Done"
)

var (
	ErrNoActiveTab   = errors.New("no active tab")
	ErrInvalidURL    = errors.New("invalid or missing URL")
	ErrNoRule        = errors.New("no extractor config")
	ErrAgentAbsent   = errors.New("page agent absent")
	ErrExtractFailed = errors.New("extraction failed")
	ErrRunInProgress = errors.New("a run is already in progress")
)

// User-facing messages
const (
	msgNoAgent       = "No content script on this page. Refresh the page and try again."
	msgNotResponding = "Content script not responding. Reload page."
	msgEmptyText     = "Extractor returned empty text."
)

var httpURL = regexp.MustCompile(`^https?://`)

// Backend is the part of the chapter API a run uses
type Backend interface {
	CreateChapter(ctx context.Context, novelID int, in backend.ChapterCreate) (*backend.Chapter, error)
	TranslateChapter(ctx context.Context, id int64) (*backend.Chapter, error)
}

// BackendFactory builds the backend for the base URL resolved by a run
type BackendFactory func(baseURL string) Backend

// Archiver keeps a copy of an extracted chapter
type Archiver interface {
	Write(c archive.Capture) (string, error)
}

// Event reports a step transition to an observer
type Event struct {
	RunID string
	Step  Step
	Err   error
}

// Outcome describes where a run stopped
type Outcome struct {
	RunID string
	// Step is the step that halted the run, or StepDone
	Step          Step
	Err           error
	TabID         string
	URL           string
	Host          string
	ChapterNo     int
	ChapterID     int64
	NextChapterNo int
}

// OK reports whether the run went all the way through
func (o Outcome) OK() bool {
	return o.Step == StepDone && o.Err == nil
}

// Orchestrator runs hotkey flows
type Orchestrator struct {
	tabs       TabLocator
	resolver   *settings.Resolver
	store      settings.Store
	channel    messaging.Channel
	newBackend BackendFactory
	archiver   Archiver
	observer   func(Event)
	logger     *log.Logger

	exclusive bool
	running   atomic.Bool
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithBackendFactory replaces the HTTP backend client
func WithBackendFactory(f BackendFactory) Option {
	return func(o *Orchestrator) {
		o.newBackend = f
	}
}

// WithHTTPClient sets the HTTP client of the default backend
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) {
		o.newBackend = func(baseURL string) Backend {
			return backend.NewClient(baseURL, c)
		}
	}
}

// WithArchiver keeps a copy of every extracted chapter before submission
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) {
		o.archiver = a
	}
}

// WithObserver registers fn to receive step transitions
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) {
		o.observer = fn
	}
}

// WithExclusiveRuns rejects a run while another one is in flight
func WithExclusiveRuns() Option {
	return func(o *Orchestrator) {
		o.exclusive = true
	}
}

// New creates an Orchestrator
func New(tabs TabLocator, store settings.Store, channel messaging.Channel, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tabs:    tabs,
		store:   store,
		channel: channel,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.newBackend == nil {
		o.newBackend = func(baseURL string) Backend {
			return backend.NewClient(baseURL, nil)
		}
	}
	o.resolver = settings.NewResolver(store, o.logger)
	return o
}

// run carries the state of one hotkey flow
type run struct {
	o      *Orchestrator
	out    Outcome
	logger *log.Logger
	sink   notify.Sink
}

// Run executes one hotkey flow. It never panics and never returns an
// error; the Outcome tells where and why it stopped.
func (o *Orchestrator) Run(ctx context.Context) (out Outcome) {
	r := &run{o: o}
	r.out.RunID = uuid.NewString()[:8]
	r.logger = o.logger.With("run", r.out.RunID)

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Hotkey flow error", "step", r.out.Step, "panic", p)
			r.out.Err = fmt.Errorf("panic in %s: %v", r.out.Step, p)
		}
		out = r.out
	}()

	if o.exclusive {
		if !o.running.CompareAndSwap(false, true) {
			r.logger.Warn("Hotkey ignored", "reason", ErrRunInProgress)
			r.out.Step = StepResolveTarget
			r.out.Err = ErrRunInProgress
			return
		}
		defer o.running.Store(false)
	}

	start := time.Now()
	r.execute(ctx)
	if r.out.OK() {
		r.logger.Info("Hotkey flow finished", "chapter", r.out.ChapterNo, "id", r.out.ChapterID, "took", time.Since(start).Round(time.Millisecond))
	}
	return
}

func (r *run) enter(step Step) {
	r.out.Step = step
	r.logger.Debug("Step", "step", step)
	if r.o.observer != nil {
		r.o.observer(Event{RunID: r.out.RunID, Step: step})
	}
}

func (r *run) halt(err error) {
	r.out.Err = err
	if r.o.observer != nil {
		r.o.observer(Event{RunID: r.out.RunID, Step: r.out.Step, Err: err})
	}
}

func (r *run) notify(ctx context.Context, msg string) {
	if r.out.TabID != "" {
		r.sink.Notify(ctx, msg)
	}
}

func (r *run) execute(ctx context.Context) {
	o := r.o

	// ResolveTarget
	r.enter(StepResolveTarget)
	tab, err := o.tabs.ActiveTab(ctx)
	if err != nil || tab.ID == "" {
		if err == nil {
			err = ErrNoActiveTab
		}
		r.logger.Error("Hotkey flow error", "error", err)
		r.halt(err)
		return
	}
	r.out.TabID = tab.ID
	r.out.URL = tab.URL
	r.sink = notify.NewSink(o.channel, tab.ID)

	host, err := hostOf(tab.URL)
	if err != nil {
		r.logger.Error("Hotkey flow error", "error", err)
		r.notify(ctx, fmt.Sprintf("Invalid or missing URL: %s", tab.URL))
		r.halt(err)
		return
	}
	r.out.Host = host

	// ResolveSettings
	r.enter(StepResolveSettings)
	resolved, err := o.resolver.Resolve(ctx, host)
	if err != nil {
		r.logger.Error("Reading settings failed", "host", host, "error", err)
		r.notify(ctx, fmt.Sprintf("Could not read settings: %v", err))
		r.halt(err)
		return
	}
	r.logger.Debug("Using settings", "backend", resolved.BackendURL, "novel", resolved.NovelID,
		"chapter", resolved.ChapterNo, "auto_increment", resolved.AutoIncrement, "key", resolved.KeyUsed)
	r.out.ChapterNo = resolved.ChapterNo
	if resolved.Rule == nil {
		r.notify(ctx, fmt.Sprintf("No extractor config saved for %s. Open popup and save one.", resolved.KeyUsed))
		r.halt(fmt.Errorf("%w for %s", ErrNoRule, resolved.KeyUsed))
		return
	}

	// ProbeAgent
	r.enter(StepProbeAgent)
	if _, err := messaging.Ping(ctx, o.channel, tab.ID); err != nil {
		r.logger.Error("PING failed", "tab", tab.ID, "error", err)
		r.notify(ctx, msgNoAgent)
		r.halt(fmt.Errorf("%w: %w", ErrAgentAbsent, err))
		return
	}

	// Extract
	r.enter(StepExtract)
	r.notify(ctx, "Extracting…")
	res, err := messaging.Extract(ctx, o.channel, tab.ID, resolved.Rule)
	if err != nil {
		r.logger.Error("Content script not responding", "tab", tab.ID, "error", err)
		r.notify(ctx, msgNotResponding)
		r.halt(fmt.Errorf("%w: %w", ErrAgentAbsent, err))
		return
	}
	if !res.OK {
		reason := res.Error
		if reason == "" {
			reason = "unknown error"
		}
		r.notify(ctx, fmt.Sprintf("Extract failed: %s", reason))
		r.halt(fmt.Errorf("%w: %s", ErrExtractFailed, reason))
		return
	}
	raw := strings.TrimSpace(res.Text)
	if raw == "" {
		r.notify(ctx, msgEmptyText)
		r.halt(fmt.Errorf("%w: empty text", ErrExtractFailed))
		return
	}
	r.keep(resolved, tab.URL, raw)

	// Submit
	r.enter(StepSubmit)
	client := o.newBackend(resolved.BackendURL)
	r.notify(ctx, fmt.Sprintf("Posting chapter %d…", resolved.ChapterNo))
	created, err := client.CreateChapter(ctx, resolved.NovelID, backend.ChapterCreate{
		ChapterNo: resolved.ChapterNo,
		Raw:       raw,
		SourceURL: tab.URL,
	})
	if err != nil {
		// backend failures only reach the log
		r.logger.Error("Hotkey flow error", "step", StepSubmit, "error", err)
		r.halt(err)
		return
	}
	r.out.ChapterID = created.ID

	// Translate
	r.enter(StepTranslate)
	r.notify(ctx, fmt.Sprintf("Translating id=%d…", created.ID))
	if _, err := client.TranslateChapter(ctx, created.ID); err != nil {
		r.logger.Error("Hotkey flow error", "step", StepTranslate, "id", created.ID, "error", err)
		r.halt(err)
		return
	}
	r.notify(ctx, fmt.Sprintf("Done. Saved chapter %d.", resolved.ChapterNo))

	// Advance
	if resolved.AutoIncrement {
		r.enter(StepAdvance)
		next := resolved.ChapterNo + 1
		if err := settings.SetChapterNo(ctx, o.store, next); err != nil {
			r.logger.Error("Hotkey flow error", "step", StepAdvance, "error", err)
			r.halt(err)
			return
		}
		r.out.NextChapterNo = next
		r.notify(ctx, fmt.Sprintf("Next chapter = %d", next))
	}

	r.enter(StepDone)
}

// keep archives the capture when an archiver is configured. Failures are
// logged and do not stop the run.
func (r *run) keep(resolved settings.Resolved, sourceURL, text string) {
	if r.o.archiver == nil {
		return
	}
	path, err := r.o.archiver.Write(archive.Capture{
		SourceURL: sourceURL,
		NovelID:   resolved.NovelID,
		ChapterNo: resolved.ChapterNo,
		Text:      text,
	})
	if err != nil {
		r.logger.Warn("Archiving capture failed", "error", err)
		return
	}
	r.logger.Debug("Capture archived", "path", path)
}

// hostOf validates an http(s) tab URL and returns its hostname
func hostOf(raw string) (string, error) {
	if raw == "" || !httpURL.MatchString(raw) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u.Hostname(), nil
}
