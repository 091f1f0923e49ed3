package chat

import (
	"fmt"
	"time"
)

const (
	// MaxAuthorLength is the maximum number of characters in an author or username.
	MaxAuthorLength = 50
	// MaxBodyLength is the maximum number of characters in a message body.
	MaxBodyLength = 1000
	// SystemAuthor is the author of every notice.
	SystemAuthor = "System"
)

// Event is an outbound event fanned out to every registered connection.
// It is either a Message or a Notice.
type Event interface {
	kind() string
}

// Message is a chat message that has been persisted by a store. A Message is
// only ever produced by a store, so ID and CreatedAt are always set, and it
// is never mutated afterwards.
type Message struct {
	ID        int64
	Author    string
	Body      string
	CreatedAt time.Time
}

func (Message) kind() string { return "message" }

// Notice is a system generated announcement. It is broadcast like a Message
// but is never written to a store and never receives an ID.
type Notice struct {
	Author    string
	Body      string
	CreatedAt time.Time
}

func (Notice) kind() string { return "notice" }

// JoinNotice builds the announcement broadcast when username enters the room.
func JoinNotice(username string, at time.Time) Notice {
	return Notice{
		Author:    SystemAuthor,
		Body:      fmt.Sprintf("%s joined the chat", username),
		CreatedAt: at,
	}
}

// LeaveNotice builds the announcement broadcast when username leaves the room.
func LeaveNotice(username string, at time.Time) Notice {
	return Notice{
		Author:    SystemAuthor,
		Body:      fmt.Sprintf("%s left the chat", username),
		CreatedAt: at,
	}
}

// Before reports whether m sorts before other in history order, which is
// (CreatedAt, ID) ascending.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
