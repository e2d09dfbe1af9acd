package messaging

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-scripts/chapterhook/internal/types"
)

func TestRemoteAgentRoundTrip(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	connected := make(chan types.Tab, 1)
	disconnected := make(chan string, 1)
	srv := httptest.NewServer(NewAgentServer(hub, nil,
		OnConnect(func(tab types.Tab) { connected <- tab }),
		OnDisconnect(func(id string) { disconnected <- id }),
	))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	agent := &fakeAgent{url: "https://example.com/c/9", result: types.Success("remote text")}
	dialErr := make(chan error, 1)
	go func() {
		dialErr <- DialAgent(ctx, srv.URL, "remote-1", agent.url, agent, nil)
	}()

	select {
	case tab := <-connected:
		assert.Equal(t, types.Tab{ID: "remote-1", URL: "https://example.com/c/9"}, tab)
	case <-time.After(5 * time.Second):
		t.Fatal("agent never connected")
	}

	ping, err := Ping(context.Background(), hub, "remote-1")
	require.NoError(t, err)
	assert.True(t, ping.OK)
	assert.Equal(t, agent.url, ping.URL)

	Notify(context.Background(), hub, "remote-1", "hello")

	res, err := Extract(context.Background(), hub, "remote-1", &types.Rule{Mode: types.ModeSelector, Selector: "p"})
	require.NoError(t, err)
	assert.Equal(t, types.Success("remote text"), res)
	assert.Equal(t, []string{"hello"}, agent.messages())

	_, err = hub.Send(context.Background(), "remote-1", Request{Type: "BOGUS"})
	assert.ErrorIs(t, err, ErrNotDelivered)

	cancel()
	require.NoError(t, <-dialErr)

	select {
	case id := <-disconnected:
		assert.Equal(t, "remote-1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("agent never detached")
	}

	_, err = Ping(context.Background(), hub, "remote-1")
	assert.ErrorIs(t, err, ErrNotDelivered)
}

func TestRemoteAgentDropsDuringRequest(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	connected := make(chan types.Tab, 1)
	srv := httptest.NewServer(NewAgentServer(hub, nil,
		OnConnect(func(tab types.Tab) { connected <- tab }),
	))
	t.Cleanup(srv.Close)

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	handler := HandlerFunc(func(context.Context, Request) (any, error) {
		close(started)
		<-release
		return PingReply{OK: true}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	dialErr := make(chan error, 1)
	go func() {
		dialErr <- DialAgent(ctx, srv.URL, "remote-2", "https://example.com/c/2", handler, nil)
	}()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("agent never connected")
	}

	sendErr := make(chan error, 1)
	go func() {
		_, err := hub.Send(context.Background(), "remote-2", Request{Type: KindPing})
		sendErr <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the agent")
	}
	cancel()

	select {
	case err := <-sendErr:
		assert.ErrorIs(t, err, ErrNotDelivered)
	case <-time.After(5 * time.Second):
		t.Fatal("send still waiting after the agent dropped")
	}

	release <- struct{}{}
	select {
	case err := <-dialErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestAgentServerRequiresTab(t *testing.T) {
	srv := httptest.NewServer(NewAgentServer(NewHub(), nil))
	t.Cleanup(srv.Close)

	err := DialAgent(context.Background(), srv.URL+"?tab=", "", "", HandlerFunc(nil), nil)
	assert.Error(t, err)
}
