package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/go-scripts/chapterhook/internal/types"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var agentUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// agentReply is the wire shape of an agent answer
type agentReply struct {
	ID    string          `json:"id"`
	Reply json.RawMessage `json:"reply,omitempty"`
	Error string          `json:"error,omitempty"`
}

// RemoteEndpoint is an agent connected over a websocket
type RemoteEndpoint struct {
	conn   *websocket.Conn
	logger *log.Logger

	out       chan Request
	mu        sync.Mutex
	pending   map[string]chan reply
	done      chan struct{}
	closeOnce sync.Once
}

func newRemoteEndpoint(conn *websocket.Conn, logger *log.Logger) *RemoteEndpoint {
	return &RemoteEndpoint{
		conn:    conn,
		logger:  logger,
		out:     make(chan Request, inboxSize),
		pending: make(map[string]chan reply),
		done:    make(chan struct{}),
	}
}

// run pumps the connection until it drops or the endpoint is closed
func (e *RemoteEndpoint) run() {
	defer e.Close()

	if err := e.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	e.conn.SetPongHandler(func(string) error {
		return e.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go e.writeLoop()

	for {
		var msg agentReply
		if err := e.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				e.logger.Debug("Agent connection lost", "error", err)
			}
			return
		}
		e.resolve(msg)
	}
}

func (e *RemoteEndpoint) writeLoop() {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case req := <-e.out:
			if err := e.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				e.Close()
				return
			}
			if err := e.conn.WriteJSON(req); err != nil {
				e.Close()
				return
			}
		case <-ticker.C:
			if err := e.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				e.Close()
				return
			}
			if err := e.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				e.Close()
				return
			}
		}
	}
}

func (e *RemoteEndpoint) resolve(msg agentReply) {
	e.mu.Lock()
	ch, ok := e.pending[msg.ID]
	delete(e.pending, msg.ID)
	e.mu.Unlock()
	if !ok {
		// replies to posted requests have no waiter
		return
	}
	if msg.Error != "" {
		ch <- reply{err: fmt.Errorf("%w: %s", ErrNotDelivered, msg.Error)}
		return
	}
	ch <- reply{data: msg.Reply}
}

func (e *RemoteEndpoint) push(ctx context.Context, req Request) error {
	select {
	case <-e.done:
		return fmt.Errorf("%w: agent disconnected", ErrNotDelivered)
	default:
	}
	select {
	case e.out <- req:
		return nil
	case <-e.done:
		return fmt.Errorf("%w: agent disconnected", ErrNotDelivered)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *RemoteEndpoint) Deliver(ctx context.Context, req Request) (json.RawMessage, error) {
	ch := make(chan reply, 1)
	e.mu.Lock()
	e.pending[req.ID] = ch
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.pending, req.ID)
		e.mu.Unlock()
	}()

	if err := e.push(ctx, req); err != nil {
		return nil, err
	}
	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, fmt.Errorf("%w: agent disconnected", ErrNotDelivered)
	}
}

func (e *RemoteEndpoint) Post(ctx context.Context, req Request) error {
	return e.push(ctx, req)
}

// Close drops the connection. Calls waiting for a reply fail with ErrNotDelivered.
func (e *RemoteEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		err = e.conn.Close()
	})
	return err
}

// AgentServer accepts page agents over websockets and attaches them to a Hub.
// Agents connect with ?tab=<id>&url=<page url>.
type AgentServer struct {
	hub          *Hub
	logger       *log.Logger
	onConnect    func(types.Tab)
	onDisconnect func(tabID string)
}

// AgentServerOption configures an AgentServer
type AgentServerOption func(*AgentServer)

// OnConnect registers a hook run after an agent attaches
func OnConnect(fn func(types.Tab)) AgentServerOption {
	return func(s *AgentServer) {
		s.onConnect = fn
	}
}

// OnDisconnect registers a hook run after an agent detaches
func OnDisconnect(fn func(tabID string)) AgentServerOption {
	return func(s *AgentServer) {
		s.onDisconnect = fn
	}
}

// NewAgentServer creates an AgentServer feeding hub
func NewAgentServer(hub *Hub, logger *log.Logger, opts ...AgentServerOption) *AgentServer {
	if logger == nil {
		logger = log.Default()
	}
	s := &AgentServer{hub: hub, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AgentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tabID := strings.TrimSpace(r.URL.Query().Get("tab"))
	if tabID == "" {
		http.Error(w, "tab is required", http.StatusBadRequest)
		return
	}
	pageURL := strings.TrimSpace(r.URL.Query().Get("url"))

	conn, err := agentUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Agent upgrade failed", "tab", tabID, "error", err)
		return
	}

	ep := newRemoteEndpoint(conn, s.logger)
	s.hub.Attach(tabID, ep)
	s.logger.Info("Agent connected", "tab", tabID, "url", pageURL, "remote", r.RemoteAddr)
	if s.onConnect != nil {
		s.onConnect(types.Tab{ID: tabID, URL: pageURL})
	}

	ep.run()

	s.hub.Detach(tabID, ep)
	if s.onDisconnect != nil {
		s.onDisconnect(tabID)
	}
	s.logger.Info("Agent disconnected", "tab", tabID)
}

// DialAgent connects handler to the host at hostURL as the agent of tabID
// and serves requests one at a time until ctx ends or the host goes away.
func DialAgent(ctx context.Context, hostURL, tabID, pageURL string, handler Handler, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	u, err := url.Parse(hostURL)
	if err != nil {
		return fmt.Errorf("parse host url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("tab", tabID)
	q.Set("url", pageURL)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial host: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		conn.Close()
	})
	defer stop()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		out := agentReply{ID: req.ID}
		r := safeHandle(ctx, handler, req)
		if r.err != nil {
			out.Error = r.err.Error()
		} else {
			out.Reply = r.data
		}

		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := conn.WriteJSON(out); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("write reply: %w", err)
		}
	}
}

func safeHandle(ctx context.Context, handler Handler, req Request) (r reply) {
	defer func() {
		if p := recover(); p != nil {
			r = reply{err: errors.New(fmt.Sprint("agent panicked: ", p))}
		}
	}()
	return encodeReply(handler.Handle(ctx, req))
}
