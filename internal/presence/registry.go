// Package presence tracks the connections subscribed to the chat topic and
// fans outbound events out to them.
package presence

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/samber/lo"
)

// ErrUnknownConnection is returned by a Sender when the target connection is
// already gone.
var ErrUnknownConnection = errors.New("unknown connection")

// ConnectionID is the opaque handle the gateway assigns to a live connection.
type ConnectionID string

// Sender pushes one serialized event to one connection. Implementations must
// not block on slow connections.
type Sender interface {
	Send(id ConnectionID, payload []byte) error
}

// Entry binds a connection to the display name it joined with.
type Entry struct {
	ConnectionID ConnectionID
	Username     string
}

// Registry is the live set of subscribed connections. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[ConnectionID]Entry
	sender  Sender
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewRegistry creates an empty registry delivering through sender.
func NewRegistry(sender Sender, log *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		entries: make(map[ConnectionID]Entry),
		sender:  sender,
		log:     log,
		metrics: m,
	}
}

// Register adds the entry for id, replacing any previous username.
func (r *Registry) Register(id ConnectionID, username string) {
	r.mu.Lock()
	r.entries[id] = Entry{ConnectionID: id, Username: username}
	n := len(r.entries)
	r.mu.Unlock()

	r.metrics.SetConnections(n)
	r.log.Info("Connection registered", "connection_id", id, "username", username, "total", n)
}

// Unregister removes the entry for id and returns it. Removing an absent
// connection is a no-op.
func (r *Registry) Unregister(id ConnectionID) (Entry, bool) {
	r.mu.Lock()
	entry, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	n := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.metrics.SetConnections(n)
		r.log.Info("Connection unregistered", "connection_id", id, "username", entry.Username, "total", n)
	}
	return entry, ok
}

// Lookup returns the entry registered for id.
func (r *Registry) Lookup(id ConnectionID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns a consistent copy of the registered entries.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.entries)
}

// Broadcast delivers ev to every connection registered when the call begins.
// A failed delivery is logged and skipped; it never unregisters the
// connection, since only the gateway's disconnect signal does that. The
// returned error is only set when ev cannot be encoded.
func (r *Registry) Broadcast(ev chat.Event) error {
	payload, err := chat.Encode(ev)
	if err != nil {
		return err
	}

	targets := r.Snapshot()
	r.log.Debug("Broadcasting event", "recipients", len(targets))

	for _, entry := range targets {
		err := r.sender.Send(entry.ConnectionID, payload)
		r.metrics.RecordDelivery(err)
		if err != nil {
			r.log.Warn("Delivery failed",
				"connection_id", entry.ConnectionID,
				"username", entry.Username,
				"error", err)
		}
	}
	return nil
}
