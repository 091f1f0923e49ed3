// Package server provides configuration helpers that define runtime defaults
// and validation for the gateway.
package server

import (
	"strings"

	"github.com/Tyrowin/chatrelay/internal/chat"
)

const (
	defaultPort           = ":8080"
	defaultMaxMessageSize = 16 * 1024
	defaultSendBufferSize = 256

	// minMaxMessageSize fits the largest valid send frame: every author and
	// body character escaped as a JSON surrogate pair plus the envelope.
	minMaxMessageSize = (chat.MaxAuthorLength+chat.MaxBodyLength)*12 + 512
)

// Config holds the gateway configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	SendBufferSize int
	// HistoryLimit is the number of messages served by the history endpoint
	// when the request does not ask for a limit. Zero serves the full log.
	HistoryLimit int
}

func defaultConfig() Config {
	return Config{
		Port: defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		SendBufferSize: defaultSendBufferSize,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.MaxMessageSize < minMaxMessageSize {
		cfg.MaxMessageSize = minMaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
