// Package server tracks live WebSocket connections and delivers outbound
// payloads to them via the Hub type.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/presence"
)

// ErrSendBufferFull is returned when a connection's outbound queue is full.
var ErrSendBufferFull = errors.New("send buffer full")

// Hub owns every live WebSocket connection. It starts the pumps of newly
// registered clients, closes the queues of departed ones and implements
// presence.Sender so the presence registry can push to a single connection.
type Hub struct {
	clients    map[presence.ConnectionID]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	log        *slog.Logger
}

// NewHub creates and initializes a new Hub instance. Run must be started
// before clients are registered.
func NewHub(log *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[presence.ConnectionID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
	}
}

// Context is cancelled when the hub shuts down.
func (h *Hub) Context() context.Context {
	return h.ctx
}

// ClientCount returns the number of live connections, joined or not.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Send implements presence.Sender. It enqueues payload on the connection's
// outbound queue without blocking.
func (h *Hub) Send(id presence.ConnectionID, payload []byte) error {
	// Hold the lock during the entire send operation so the queue cannot be
	// closed underneath us
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	client, exists := h.clients[id]
	if !exists || client.closed {
		return presence.ErrUnknownConnection
	}

	select {
	case client.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	h.log.Info("Client connected", "connection_id", client.id, "addr", client.addr, "total", clientCount)
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock
	close(client.send)
	h.log.Info("Client disconnected", "connection_id", client.id, "addr", client.addr, "total", clientCount)
}

// registerClient hands a new client to the run loop. It returns false when
// the hub is shutting down.
func (h *Hub) registerClient(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// Run starts the hub's main event loop, handling client registration and
// unregistration. This method should be called in a separate goroutine as it
// runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.log.Warn("Received nil client registration; skipping")
				continue
			}
			h.addClient(client)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	h.log.Info("Shutting down all client connections...")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			h.log.Warn("Error closing client connection", "addr", client.addr, "error", err)
		}
	}

	h.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		h.log.Warn("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
