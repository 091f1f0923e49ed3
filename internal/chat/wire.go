package chat

import (
	"encoding/json"
	"time"
)

// Frame is the JSON shape of an outbound event and of a history entry.
// Notices carry no ID.
type Frame struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ToFrame converts an event into its wire representation.
func ToFrame(ev Event) Frame {
	switch e := ev.(type) {
	case Message:
		return Frame{Type: e.kind(), ID: e.ID, Author: e.Author, Body: e.Body, CreatedAt: e.CreatedAt}
	case Notice:
		return Frame{Type: e.kind(), Author: e.Author, Body: e.Body, CreatedAt: e.CreatedAt}
	default:
		return Frame{Type: ev.kind()}
	}
}

// Encode serializes an event once so it can be pushed to many connections.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ToFrame(ev))
}
