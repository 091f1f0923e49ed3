// Package server implements the connection gateway of the chat relay: the
// HTTP and WebSocket surface that owns physical connections.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers. Inbound frames are
// decoded here and handed to the relay; the Hub is the per-connection send
// primitive the presence registry delivers through.
package server
