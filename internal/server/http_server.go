// Package server constructs and starts the chat relay HTTP service with
// helpers that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it stops. A server
// stopped through ShutdownServer returns nil.
func StartServer(server *http.Server, log *slog.Logger) error {
	log.Info("Server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	log.Info("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
