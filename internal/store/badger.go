package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/dgraph-io/badger/v4"
)

const messagePrefix = "msg:"

// BadgerStore persists the log in BadgerDB.
//
// Keys are formatted as "msg:{id_padded}" with 20-digit zero padding so that
// lexicographical key order is ID order. Because CreatedAt never decreases in
// persist order, a forward prefix scan yields history order and a reverse
// scan yields the most recent messages first.
type BadgerStore struct {
	mu     sync.Mutex
	db     *badger.DB
	log    *slog.Logger
	opts   options
	ownsDB bool
	lastID int64
	lastAt time.Time
}

// OpenBadgerStore opens (or creates) a Badger database at path.
// The returned store closes the database on Close.
func OpenBadgerStore(path string, log *slog.Logger, opts ...Option) (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	s, err := NewBadgerStore(db, log, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewBadgerStore wraps an already opened database and resumes numbering
// after the last stored message.
func NewBadgerStore(db *badger.DB, log *slog.Logger, opts ...Option) (*BadgerStore, error) {
	s := &BadgerStore{db: db, log: log, opts: buildOptions(opts)}
	last, ok, err := s.tail()
	if err != nil {
		return nil, fmt.Errorf("load last message: %w", err)
	}
	if ok {
		s.lastID = last.ID
		s.lastAt = last.CreatedAt
	}
	s.log.Debug("Badger message store ready", "last_id", s.lastID)
	return s, nil
}

func messageKey(id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, id))
}

// tail returns the message with the highest ID, if any.
func (s *BadgerStore) tail() (chat.Message, bool, error) {
	recent, err := s.scanRecent(1)
	if err != nil || len(recent) == 0 {
		return chat.Message{}, false, err
	}
	return recent[0], true, nil
}

// Append assigns the next ID under the store lock and commits the record in
// a single transaction. The context is checked again right before commit, so
// an expired deadline never produces a record. The in-memory counters only advance after a
// successful commit, so a failed write leaves no gap.
func (s *BadgerStore) Append(ctx context.Context, author, body string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return chat.Message{}, unavailable("append", err)
	}

	msg := chat.Message{
		ID:        s.lastID + 1,
		Author:    author,
		Body:      body,
		CreatedAt: nextTimestamp(s.opts.now(), s.lastAt),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(msg.ID), encodeRecord(msg)); err != nil {
			return err
		}
		// Returning an error discards the transaction instead of committing
		return ctx.Err()
	})
	if err != nil {
		s.log.Error("Failed to append message", "id", msg.ID, "error", err)
		return chat.Message{}, unavailable("append", err)
	}

	s.lastID = msg.ID
	s.lastAt = msg.CreatedAt
	return msg, nil
}

// ListAll retrieves every message with a forward prefix scan.
func (s *BadgerStore) ListAll(ctx context.Context) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", err)
	}

	var messages []chat.Message
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte(messagePrefix)
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			msg, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("list", err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

// ListRecent walks the log backwards from the newest key, then restores
// chronological order before returning.
func (s *BadgerStore) ListRecent(ctx context.Context, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return []chat.Message{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list recent", err)
	}

	messages, err := s.scanRecent(limit)
	if err != nil {
		return nil, unavailable("list recent", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// scanRecent returns up to limit messages, newest first.
func (s *BadgerStore) scanRecent(limit int) ([]chat.Message, error) {
	messages := make([]chat.Message, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the largest possible padded ID, then walk back
		seekKey := []byte(messagePrefix + "99999999999999999999")
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			msg, err := decodeItem(it.Item())
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

func decodeItem(item *badger.Item) (chat.Message, error) {
	var msg chat.Message
	err := item.Value(func(value []byte) error {
		var err error
		msg, err = decodeRecord(value)
		return err
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("key %s: %w", item.Key(), err)
	}
	return msg, nil
}

// Close releases the database if the store opened it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	s.log.Info("Closing BadgerDB...")
	return s.db.Close()
}
