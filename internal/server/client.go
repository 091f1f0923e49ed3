// Package server manages individual WebSocket clients, handling read/write
// pumps, inbound event decoding, and lifecycle control for each connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Relay is the broadcast router the gateway hands decoded events to.
type Relay interface {
	HandleJoin(ctx context.Context, id presence.ConnectionID, username string) error
	HandleSend(ctx context.Context, author, body string) (chat.Message, error)
	HandleLeave(id presence.ConnectionID) error
	HydrateHistory(ctx context.Context, limit int) ([]chat.Message, error)
}

// Client represents a WebSocket client connection in the chat system.
// It manages the connection state, the outbound queue, and the hub and relay
// references.
type Client struct {
	id             presence.ConnectionID
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	relay          Relay
	addr           string
	closed         bool
	maxMessageSize int64
	log            *slog.Logger
}

// NewClient creates a new Client with a fresh opaque connection ID. The
// client's send channel is buffered to absorb bursts of broadcasts.
func NewClient(conn *websocket.Conn, hub *Hub, relay Relay, addr string, cfg Config) *Client {
	cfg = sanitizeConfig(cfg)
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := presence.ConnectionID(uuid.NewString())

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		relay:          relay,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		log:            hub.log.With("connection_id", id, "addr", addr),
	}
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError logs the read error and reports whether the read loop
// should stop. Every read error is terminal for a gorilla connection.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "max_bytes", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("Client closed the connection", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug("Connection closed", "error", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", "error", err)
	default:
		c.log.Warn("WebSocket read error", "error", err)
	}
	return true
}

// processMessage decodes one inbound frame and hands it to the relay. A
// rejected event is answered with an error frame to this connection only.
func (c *Client) processMessage(rawMessage []byte) error {
	var frame InboundFrame
	if err := json.Unmarshal(rawMessage, &frame); err != nil {
		return c.reject(fmt.Errorf("%w: malformed frame", chat.ErrInvalidMessage))
	}

	ctx := c.hub.Context()
	var err error
	switch frame.Type {
	case EventJoin:
		err = c.relay.HandleJoin(ctx, c.id, frame.Username)
	case EventSend:
		var msg chat.Message
		msg, err = c.relay.HandleSend(ctx, frame.Author, frame.Body)
		if err == nil {
			c.log.Debug("Message accepted", "id", msg.ID)
		}
	default:
		err = fmt.Errorf("%w: unknown event type %q", chat.ErrInvalidMessage, frame.Type)
	}

	if err != nil {
		return c.reject(err)
	}
	return nil
}

func (c *Client) reject(err error) error {
	c.log.Info("Event rejected", "error", err)
	if sendErr := c.hub.Send(c.id, encodeRejection(err)); sendErr != nil {
		c.log.Warn("Could not deliver rejection", "error", sendErr)
	}
	return err
}

func (c *Client) readPump() {
	defer func() {
		if err := c.relay.HandleLeave(c.id); err != nil {
			c.log.Warn("Leave notice failed", "error", err)
		}
		c.hub.unregisterClient(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("Error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if c.handleReadError(err) {
			return
		}

		_ = c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	case <-c.hub.Context().Done():
		return false
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("Error closing connection in writePump", "error", err)
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	// One event per frame so clients can decode each frame as a JSON document
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing close message", "error", err)
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("Error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn("Error writing ping message", "error", err)
		return false
	}
	return true
}
