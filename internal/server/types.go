// Package server defines the wire frames exchanged with WebSocket clients and
// utility helpers that are reused across client and hub logic.
package server

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

// Inbound event types.
const (
	EventJoin = "join"
	EventSend = "send"
)

// InboundFrame is the JSON shape of every client to server frame. Join
// frames carry Username, send frames carry Author and Body.
type InboundFrame struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Author   string `json:"author,omitempty"`
	Body     string `json:"body,omitempty"`
}

// ErrorFrame is sent only to the connection whose event was rejected.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// HistoryResponse is the body served by the history endpoint.
type HistoryResponse struct {
	Messages []chat.Frame `json:"messages"`
}

// encodeRejection builds the error frame for err. Storage details stay in
// the server log.
func encodeRejection(err error) []byte {
	reason := "internal error"
	switch {
	case errors.Is(err, chat.ErrInvalidMessage):
		reason = err.Error()
	case errors.Is(err, chat.ErrStorageUnavailable):
		reason = "message could not be stored, please retry"
	}
	payload, _ := json.Marshal(ErrorFrame{Type: "error", Error: reason})
	return payload
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
