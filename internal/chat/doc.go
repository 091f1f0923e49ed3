// Package chat defines the chat data model shared by the relay, the message
// stores and the connection gateway: persisted messages, non-persisted
// notices, the error kinds surfaced to the gateway and the JSON shape of
// outbound events.
package chat
