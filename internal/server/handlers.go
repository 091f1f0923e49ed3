// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, the history endpoint, and the built-in chat page.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Tyrowin/chatrelay/internal/chat"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handlers groups the HTTP handlers of the gateway and their dependencies.
type Handlers struct {
	hub      *Hub
	relay    Relay
	cfg      Config
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandlers creates the handlers for the given hub and relay.
func NewHandlers(hub *Hub, relay Relay, cfg Config, log *slog.Logger) *Handlers {
	cfg = sanitizeConfig(cfg)
	origins := newOriginPolicy(cfg.AllowedOrigins, log)
	return &Handlers{
		hub:   hub,
		relay: relay,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		log: log,
	}
}

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client, and hands it to the hub which starts
// the client's read/write pumps.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := NewClient(conn, h.hub, h.relay, r.RemoteAddr, h.cfg)
	if !h.hub.registerClient(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func (h *Handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running! Connections: %d", h.hub.ClientCount())
}

// HistoryHandler serves the chronological message history shown on room
// entry. The optional limit query parameter returns only the most recent
// messages, still oldest first.
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := h.cfg.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	messages, err := h.relay.HydrateHistory(r.Context(), limit)
	if err != nil {
		h.log.Error("Failed to load history", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrStorageUnavailable) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	response := HistoryResponse{
		Messages: lo.Map(messages, func(m chat.Message, _ int) chat.Frame {
			return chat.ToFrame(m)
		}),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Warn("Error writing history response", "error", err)
	}
}

// ChatPageHandler serves a minimal chat page that loads the history, joins
// the room and renders live events.
func (h *Handlers) ChatPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, chatPage); err != nil {
		h.log.Warn("Error writing HTML response", "error", err)
	}
}

const chatPage = `<!DOCTYPE html>
<html>
<head>
    <title>Chat Relay</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .notice { color: gray; font-style: italic; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>Chat Relay</h1>

    <div>
        <input type="text" id="username" placeholder="Your name..." maxlength="50">
        <button id="joinButton" onclick="join()">Join</button>
    </div>

    <div id="messages"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." maxlength="1000" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        let ws = null;
        let username = '';
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');

        function render(event) {
            const el = document.createElement('div');
            if (event.type === 'message') {
                const time = new Date(event.createdAt).toLocaleTimeString();
                el.textContent = '[' + time + '] ' + event.author + ': ' + event.body;
            } else if (event.type === 'notice') {
                el.className = 'notice';
                el.textContent = event.body;
            } else {
                el.className = 'error';
                el.textContent = event.error;
            }
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        async function join() {
            username = document.getElementById('username').value.trim();
            if (!username) {
                return;
            }
            const history = await fetch('/api/messages').then(r => r.json());
            history.messages.forEach(render);

            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() {
                ws.send(JSON.stringify({type: 'join', username: username}));
                messageInput.disabled = false;
                sendButton.disabled = false;
            };
            ws.onmessage = function(event) {
                render(JSON.parse(event.data));
            };
            ws.onclose = function() {
                render({type: 'notice', body: 'Connection closed'});
                messageInput.disabled = true;
                sendButton.disabled = true;
            };
        }

        function sendMessage() {
            const body = messageInput.value.trim();
            if (body && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: 'send', author: username, body: body}));
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
