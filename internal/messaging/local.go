package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

const inboxSize = 16

type envelope struct {
	ctx   context.Context
	req   Request
	reply chan reply // nil for posted requests
}

// LocalEndpoint runs an agent handler on its own goroutine. Requests are
// handled one at a time in arrival order.
type LocalEndpoint struct {
	handler   Handler
	logger    *log.Logger
	inbox     chan envelope
	done      chan struct{}
	closeOnce sync.Once
}

// ServeLocal starts handler on a new goroutine and returns its endpoint
func ServeLocal(handler Handler, logger *log.Logger) *LocalEndpoint {
	if logger == nil {
		logger = log.Default()
	}
	ep := &LocalEndpoint{
		handler: handler,
		logger:  logger,
		inbox:   make(chan envelope, inboxSize),
		done:    make(chan struct{}),
	}
	go ep.loop()
	return ep
}

func (e *LocalEndpoint) loop() {
	for {
		select {
		case <-e.done:
			return
		case env := <-e.inbox:
			r := e.handle(env)
			if env.reply != nil {
				env.reply <- r
			} else if r.err != nil {
				e.logger.Debug("Posted request failed", "type", env.req.Type, "error", r.err)
			}
		}
	}
}

func (e *LocalEndpoint) handle(env envelope) (r reply) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("Agent panicked", "type", env.req.Type, "panic", p)
			r = reply{err: fmt.Errorf("%w: agent failed: %v", ErrNotDelivered, p)}
		}
	}()
	v, err := e.handler.Handle(env.ctx, env.req)
	if err != nil {
		return reply{err: fmt.Errorf("%w: %v", ErrNotDelivered, err)}
	}
	return encodeReply(v, nil)
}

func (e *LocalEndpoint) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-e.done:
		return fmt.Errorf("%w: agent closed", ErrNotDelivered)
	default:
	}
	select {
	case <-e.done:
		return fmt.Errorf("%w: agent closed", ErrNotDelivered)
	case <-ctx.Done():
		return ctx.Err()
	case e.inbox <- env:
		return nil
	}
}

func (e *LocalEndpoint) Deliver(ctx context.Context, req Request) (json.RawMessage, error) {
	env := envelope{ctx: ctx, req: req, reply: make(chan reply, 1)}
	if err := e.enqueue(ctx, env); err != nil {
		return nil, err
	}
	select {
	case r := <-env.reply:
		return r.data, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, fmt.Errorf("%w: agent closed", ErrNotDelivered)
	}
}

func (e *LocalEndpoint) Post(ctx context.Context, req Request) error {
	// posted work outlives the caller's context
	return e.enqueue(ctx, envelope{ctx: context.WithoutCancel(ctx), req: req})
}

// Close stops the agent goroutine. Pending and later requests fail with
// ErrNotDelivered.
func (e *LocalEndpoint) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}
