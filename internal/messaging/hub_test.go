package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/chapterhook/internal/types"
)

// fakeAgent answers like a page agent and records notifications
type fakeAgent struct {
	mu       sync.Mutex
	url      string
	result   types.Result
	notified []string
	block    chan struct{}
}

func (a *fakeAgent) Handle(_ context.Context, req Request) (any, error) {
	switch req.Type {
	case KindPing:
		return PingReply{OK: true, URL: a.url}, nil
	case KindExtract:
		if a.block != nil {
			<-a.block
		}
		return a.result, nil
	case KindNotify:
		a.mu.Lock()
		a.notified = append(a.notified, req.Message)
		a.mu.Unlock()
		return nil, nil
	}
	return nil, errors.New("unsupported message")
}

func (a *fakeAgent) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.notified...)
}

func TestHubSendToMissingTab(t *testing.T) {
	hub := NewHub()

	_, err := Ping(context.Background(), hub, "nope")
	assert.ErrorIs(t, err, ErrNotDelivered)

	_, err = Extract(context.Background(), hub, "nope", &types.Rule{Mode: types.ModeSelector})
	assert.ErrorIs(t, err, ErrNotDelivered)
}

func TestHubLocalRoundTrip(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	agent := &fakeAgent{url: "https://example.com/ch/1", result: types.Success("text")}
	hub.Attach("tab-1", ServeLocal(agent, nil))

	ping, err := Ping(context.Background(), hub, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, PingReply{OK: true, URL: "https://example.com/ch/1"}, ping)

	res, err := Extract(context.Background(), hub, "tab-1", &types.Rule{Mode: types.ModeSelector, Selector: "p"})
	require.NoError(t, err)
	assert.Equal(t, types.Success("text"), res)
}

func TestHubNotifyKeepsOrderAndSwallowsErrors(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	agent := &fakeAgent{}
	hub.Attach("tab-1", ServeLocal(agent, nil))

	Notify(context.Background(), hub, "tab-1", "one")
	Notify(context.Background(), hub, "tab-1", "two")
	Notify(context.Background(), hub, "missing", "lost")

	// a round trip drains everything posted before it
	_, err := Ping(context.Background(), hub, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, agent.messages())
}

func TestHubClosedEndpointFailsFast(t *testing.T) {
	hub := NewHub()
	ep := ServeLocal(&fakeAgent{}, nil)
	hub.Attach("tab-1", ep)
	ep.Close()

	_, err := Ping(context.Background(), hub, "tab-1")
	assert.ErrorIs(t, err, ErrNotDelivered)

	hub.Detach("tab-1", ep)
	assert.Empty(t, hub.Tabs())
}

func TestHubHandlerErrorIsDeliveryFailure(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	hub.Attach("tab-1", ServeLocal(HandlerFunc(func(context.Context, Request) (any, error) {
		return nil, errors.New("no listener")
	}), nil))

	_, err := hub.Send(context.Background(), "tab-1", Request{Type: "OTHER"})
	assert.ErrorIs(t, err, ErrNotDelivered)
}

func TestHubRecoversAgentPanic(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	hub.Attach("tab-1", ServeLocal(HandlerFunc(func(context.Context, Request) (any, error) {
		panic("boom")
	}), nil))

	_, err := Ping(context.Background(), hub, "tab-1")
	assert.ErrorIs(t, err, ErrNotDelivered)
}

func TestHubReplyTimeout(t *testing.T) {
	hub := NewHub(WithReplyTimeout(50 * time.Millisecond))
	agent := &fakeAgent{block: make(chan struct{})}
	hub.Attach("tab-1", ServeLocal(agent, nil))
	defer func() {
		close(agent.block)
		hub.Close()
	}()

	_, err := Extract(context.Background(), hub, "tab-1", &types.Rule{Mode: types.ModeSelector})
	assert.ErrorIs(t, err, ErrNotDelivered)
	assert.ErrorIs(t, err, ErrReplyTimeout)
}

func TestHubAttachReplacesPreviousAgent(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	first := ServeLocal(&fakeAgent{url: "https://a.test/"}, nil)
	hub.Attach("tab-1", first)
	hub.Attach("tab-1", ServeLocal(&fakeAgent{url: "https://b.test/"}, nil))

	ping, err := Ping(context.Background(), hub, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, "https://b.test/", ping.URL)

	_, err = first.Deliver(context.Background(), Request{Type: KindPing})
	assert.ErrorIs(t, err, ErrNotDelivered)
}
