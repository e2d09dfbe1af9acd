package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Endpoint is the host's handle on one agent
type Endpoint interface {
	Deliver(ctx context.Context, req Request) (json.RawMessage, error)
	Post(ctx context.Context, req Request) error
	Close() error
}

// Hub routes requests to the endpoint attached for each tab
type Hub struct {
	mu           sync.RWMutex
	endpoints    map[string]Endpoint
	replyTimeout time.Duration
	logger       *log.Logger
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithReplyTimeout bounds how long Send waits for an answer. Zero waits
// for as long as the caller's context allows.
func WithReplyTimeout(d time.Duration) HubOption {
	return func(h *Hub) {
		h.replyTimeout = d
	}
}

// WithHubLogger sets the hub logger
func WithHubLogger(logger *log.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates a Hub with no agents attached
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		endpoints: make(map[string]Endpoint),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach makes ep the agent of tabID, closing any previous one
func (h *Hub) Attach(tabID string, ep Endpoint) {
	h.mu.Lock()
	old := h.endpoints[tabID]
	h.endpoints[tabID] = ep
	h.mu.Unlock()

	if old != nil && old != ep {
		old.Close()
	}
	h.logger.Debug("Agent attached", "tab", tabID)
}

// Detach removes ep if it is still the agent of tabID
func (h *Hub) Detach(tabID string, ep Endpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.endpoints[tabID]; ok && cur == ep {
		delete(h.endpoints, tabID)
		h.logger.Debug("Agent detached", "tab", tabID)
	}
}

// Tabs lists the tabs that currently have an agent
func (h *Hub) Tabs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tabs := make([]string, 0, len(h.endpoints))
	for id := range h.endpoints {
		tabs = append(tabs, id)
	}
	return tabs
}

func (h *Hub) endpoint(tabID string) (Endpoint, error) {
	h.mu.RLock()
	ep, ok := h.endpoints[tabID]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no agent for tab %s", ErrNotDelivered, tabID)
	}
	return ep, nil
}

// Send delivers req to the agent of tabID and waits for its reply
func (h *Hub) Send(ctx context.Context, tabID string, req Request) (json.RawMessage, error) {
	ep, err := h.endpoint(tabID)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if h.replyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.replyTimeout)
		defer cancel()
	}

	data, err := ep.Deliver(ctx, req)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w", ErrNotDelivered, ErrReplyTimeout)
	}
	return data, err
}

// Post delivers req to the agent of tabID without waiting for a reply
func (h *Hub) Post(ctx context.Context, tabID string, req Request) error {
	ep, err := h.endpoint(tabID)
	if err != nil {
		return err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	return ep.Post(ctx, req)
}

// Close closes every attached endpoint
func (h *Hub) Close() {
	h.mu.Lock()
	eps := h.endpoints
	h.endpoints = make(map[string]Endpoint)
	h.mu.Unlock()

	for _, ep := range eps {
		ep.Close()
	}
}
