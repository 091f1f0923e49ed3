// Package relay is the broadcast router of the chat: it turns inbound join
// and send events into persisted history and outbound fan-out.
//
// The relay keeps no state of its own. History lives in the store and
// membership in the presence registry. Its one job is ordering: every
// outbound event goes through a single publish lock, and a send holds that
// lock from the start of its append until its broadcast completes. Two
// racing sends are therefore broadcast in the order the store persisted
// them, and no connection ever sees two events out of publish order.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/store"
)

// DefaultAppendTimeout bounds how long a send waits on the store.
const DefaultAppendTimeout = 5 * time.Second

// Presence is the part of the presence registry the relay drives.
type Presence interface {
	Register(id presence.ConnectionID, username string)
	Unregister(id presence.ConnectionID) (presence.Entry, bool)
	Broadcast(ev chat.Event) error
}

// Relay routes inbound chat events. It is safe for concurrent use by any
// number of connections.
type Relay struct {
	store         store.Store
	presence      Presence
	log           *slog.Logger
	metrics       *metrics.Metrics
	appendTimeout time.Duration
	now           func() time.Time

	publishMu sync.Mutex
}

// Option configures a Relay.
type Option func(*Relay)

// WithAppendTimeout sets the bound on a single append. Zero or a negative
// value disables the bound.
func WithAppendTimeout(d time.Duration) Option {
	return func(r *Relay) { r.appendTimeout = d }
}

// WithMetrics records relay and store activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithClock overrides the time source used for notices.
func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

// New creates a relay over the given store and presence registry.
func New(st store.Store, p Presence, log *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:         st,
		presence:      p,
		log:           log,
		appendTimeout: DefaultAppendTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleJoin registers the connection under username and announces it to
// every registered connection, the joining one included. The announcement is
// never persisted.
func (r *Relay) HandleJoin(_ context.Context, id presence.ConnectionID, username string) error {
	name, err := chat.ValidateJoin(username)
	if err != nil {
		r.metrics.RecordEvent("join", err)
		return err
	}

	r.presence.Register(id, name)
	err = r.publish(chat.JoinNotice(name, r.now().UTC()))
	r.metrics.RecordEvent("join", err)
	return err
}

// HandleLeave is the gateway's disconnect signal. It unregisters the
// connection and, if it had joined, announces the departure. Repeated calls
// for the same connection are no-ops.
func (r *Relay) HandleLeave(id presence.ConnectionID) error {
	entry, ok := r.presence.Unregister(id)
	if !ok {
		return nil
	}
	err := r.publish(chat.LeaveNotice(entry.Username, r.now().UTC()))
	r.metrics.RecordEvent("leave", err)
	return err
}

// HandleSend validates, persists and broadcasts a chat message, returning
// the persisted record. A message is never broadcast unless its append
// succeeded, and the broadcast carries exactly the ID and CreatedAt the
// store assigned.
func (r *Relay) HandleSend(ctx context.Context, author, body string) (chat.Message, error) {
	author, err := chat.ValidateSend(author, body)
	if err != nil {
		r.metrics.RecordEvent("send", err)
		return chat.Message{}, err
	}

	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	msg, err := r.append(ctx, author, body)
	if err != nil {
		r.metrics.RecordEvent("send", err)
		r.log.Error("Message not persisted, dropping broadcast", "author", author, "error", err)
		return chat.Message{}, err
	}

	if err := r.presence.Broadcast(msg); err != nil {
		// The message is durable; only its live delivery was lost
		r.log.Error("Failed to broadcast persisted message", "id", msg.ID, "error", err)
	}
	r.metrics.RecordEvent("send", nil)
	r.log.Debug("Message relayed", "id", msg.ID, "author", msg.Author)
	return msg, nil
}

// HydrateHistory returns the chronological history shown on room entry.
// A limit <= 0 returns the whole log, otherwise the limit most recent
// messages, oldest first.
func (r *Relay) HydrateHistory(ctx context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return r.store.ListAll(ctx)
	}
	return r.store.ListRecent(ctx, limit)
}

func (r *Relay) append(ctx context.Context, author, body string) (chat.Message, error) {
	if r.appendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.appendTimeout)
		defer cancel()
	}

	start := time.Now()
	msg, err := r.store.Append(ctx, author, body)
	r.metrics.ObserveAppend(start, err)
	if err != nil && !errors.Is(err, chat.ErrStorageUnavailable) {
		err = fmt.Errorf("%w: %w", chat.ErrStorageUnavailable, err)
	}
	return msg, err
}

func (r *Relay) publish(ev chat.Event) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	return r.presence.Broadcast(ev)
}
