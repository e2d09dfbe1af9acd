// Package messaging connects the host process to page agents.
//
// Requests are addressed by tab id and answered exactly once by the agent
// owning that tab. A request that cannot reach an agent fails fast with
// ErrNotDelivered; callers treat that as "agent absent", which is distinct
// from an agent that answered with a failed extraction.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/chapterhook/internal/types"
)

// Kind is the type of a request
type Kind string

const (
	KindPing    Kind = "PING"
	KindExtract Kind = "EXTRACT_WITH_CONFIG"
	KindNotify  Kind = "NOTIFY"
)

var (
	// ErrNotDelivered means no agent received or answered the request
	ErrNotDelivered = errors.New("message not delivered")
	// ErrReplyTimeout means the agent did not answer within the reply timeout
	ErrReplyTimeout = errors.New("no reply before timeout")
)

// Request is the wire shape of a host to agent message
type Request struct {
	ID      string      `json:"id,omitempty"`
	Type    Kind        `json:"type"`
	Config  *types.Rule `json:"config,omitempty"`
	Message string      `json:"message,omitempty"`
}

// PingReply is the answer to a PING
type PingReply struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

// Handler is the agent side of the channel
type Handler interface {
	Handle(ctx context.Context, req Request) (any, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, req Request) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, req Request) (any, error) {
	return f(ctx, req)
}

// Channel delivers requests to the agent of a tab
type Channel interface {
	// Send delivers req and waits for its reply
	Send(ctx context.Context, tabID string, req Request) (json.RawMessage, error)
	// Post delivers req without waiting for a reply
	Post(ctx context.Context, tabID string, req Request) error
}

// Ping probes the agent of tabID
func Ping(ctx context.Context, ch Channel, tabID string) (PingReply, error) {
	raw, err := ch.Send(ctx, tabID, Request{Type: KindPing})
	if err != nil {
		return PingReply{}, err
	}
	var reply PingReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return PingReply{}, fmt.Errorf("%w: malformed ping reply: %v", ErrNotDelivered, err)
	}
	return reply, nil
}

// Extract asks the agent of tabID to run rule against its page
func Extract(ctx context.Context, ch Channel, tabID string, rule *types.Rule) (types.Result, error) {
	raw, err := ch.Send(ctx, tabID, Request{Type: KindExtract, Config: rule})
	if err != nil {
		return types.Result{}, err
	}
	var res types.Result
	if err := json.Unmarshal(raw, &res); err != nil {
		// an answer that is not a result object counts as a failed extraction
		return types.Failure("unknown error"), nil
	}
	return res, nil
}

// Notify shows message on the page of tabID. It is best effort: delivery
// failures are logged at debug level and otherwise dropped.
func Notify(ctx context.Context, ch Channel, tabID, message string) {
	if err := ch.Post(ctx, tabID, Request{Type: KindNotify, Message: message}); err != nil {
		log.Debug("Notification dropped", "tab", tabID, "message", message, "error", err)
	}
}

type reply struct {
	data json.RawMessage
	err  error
}

func encodeReply(v any, err error) reply {
	if err != nil {
		return reply{err: err}
	}
	data, mErr := json.Marshal(v)
	if mErr != nil {
		return reply{err: fmt.Errorf("encode reply: %w", mErr)}
	}
	return reply{data: data}
}
