// Package store implements the durable, append-only chat message log.
//
// Every backend assigns IDs gap-free and strictly increasing in persist
// order, and assigns CreatedAt so that it never decreases in persist order.
// History order, (CreatedAt, ID) ascending, is therefore also persist order.
// Failures of the underlying medium are reported as chat.ErrStorageUnavailable.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// Store is the ordered append and ordered range-read contract the relay
// depends on. Implementations are safe for concurrent use.
type Store interface {
	// Append persists a message and returns it with ID and CreatedAt set.
	// The write is atomic: on error nothing is visible.
	Append(ctx context.Context, author, body string) (chat.Message, error)
	// ListAll returns every stored message in history order.
	ListAll(ctx context.Context) ([]chat.Message, error)
	// ListRecent returns the limit most recent messages, oldest first.
	// A limit <= 0 yields an empty slice.
	ListRecent(ctx context.Context, limit int) ([]chat.Message, error)
	Close() error
}

// Clock returns the current time.
type Clock func() time.Time

// Option configures a store.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.now = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// nextTimestamp returns now at nanosecond precision in UTC without a
// monotonic reading, clamped so it never goes before last.
func nextTimestamp(now, last time.Time) time.Time {
	at := time.Unix(0, now.UnixNano()).UTC()
	if at.Before(last) {
		return last
	}
	return at
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", chat.ErrStorageUnavailable, op, err)
}
