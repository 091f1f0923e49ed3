package store

import (
	"context"
	"slices"
	"sync"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// MemoryStore keeps the log in process memory. It satisfies the ordering
// contract but is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	messages []chat.Message
	opts     options
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{opts: buildOptions(opts)}
}

func (s *MemoryStore) Append(ctx context.Context, author, body string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return chat.Message{}, unavailable("append", err)
	}

	var last chat.Message
	if n := len(s.messages); n > 0 {
		last = s.messages[n-1]
	}
	msg := chat.Message{
		ID:        last.ID + 1,
		Author:    author,
		Body:      body,
		CreatedAt: nextTimestamp(s.opts.now(), last.CreatedAt),
	}
	if err := ctx.Err(); err != nil {
		return chat.Message{}, unavailable("append", err)
	}
	s.messages = append(s.messages, msg)
	return msg, nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages), nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list recent", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	from := max(len(s.messages)-limit, 0)
	return slices.Clone(s.messages[from:]), nil
}

func (s *MemoryStore) Close() error { return nil }
