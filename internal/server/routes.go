// Package server wires HTTP handlers into a router for the chat relay.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns the router with all application routes.
// The metrics handler is optional.
func SetupRoutes(h *Handlers, metrics http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", h.ChatPageHandler).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/messages", h.HistoryHandler).Methods(http.MethodGet)
	// The WebSocket handler answers non-GET requests itself
	router.HandleFunc("/ws", h.WebSocketHandler)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	return router
}
