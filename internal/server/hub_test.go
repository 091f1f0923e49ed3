package server

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(logs.GetLoggerFromLevel(slog.LevelDebug))
}

func newQueuedClient(hub *Hub, id presence.ConnectionID, buffer int) *Client {
	return &Client{
		id:   id,
		send: make(chan []byte, buffer),
		hub:  hub,
		addr: "127.0.0.1:12345",
		log:  hub.log,
	}
}

func TestHub_SendEnqueuesPayload(t *testing.T) {
	hub := newTestHub(t)
	client := newQueuedClient(hub, "c1", 1)
	hub.addClient(client)

	require.NoError(t, hub.Send("c1", []byte("hello")))
	assert.Equal(t, []byte("hello"), <-client.send)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_SendToFullBufferDoesNotBlock(t *testing.T) {
	hub := newTestHub(t)
	hub.addClient(newQueuedClient(hub, "c1", 1))

	require.NoError(t, hub.Send("c1", []byte("first")))
	assert.ErrorIs(t, hub.Send("c1", []byte("second")), ErrSendBufferFull)
}

func TestHub_SendToUnknownConnection(t *testing.T) {
	hub := newTestHub(t)
	client := newQueuedClient(hub, "c1", 1)
	hub.addClient(client)
	hub.removeClient(client)

	assert.ErrorIs(t, hub.Send("c1", []byte("late")), presence.ErrUnknownConnection)
	assert.ErrorIs(t, hub.Send("missing", []byte("x")), presence.ErrUnknownConnection)

	_, open := <-client.send
	assert.False(t, open, "queue is closed on removal")

	// A second removal must not close the queue twice
	assert.NotPanics(t, func() { hub.removeClient(client) })
	assert.Zero(t, hub.ClientCount())
}

func TestHub_ShutdownRejectsRegistrations(t *testing.T) {
	hub := newTestHub(t)
	go hub.Run()

	require.NoError(t, hub.Shutdown(time.Second))

	assert.ErrorIs(t, hub.Context().Err(), context.Canceled)
	assert.False(t, hub.registerClient(newQueuedClient(hub, "c1", 1)))

	done := make(chan struct{})
	go func() {
		hub.unregisterClient(newQueuedClient(hub, "c2", 1))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked after shutdown")
	}
}
