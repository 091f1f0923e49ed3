package server

import (
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
)

func TestOriginPolicy(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "exact match", allowed: []string{"http://localhost:8080"}, origin: "http://localhost:8080", want: true},
		{name: "case insensitive", allowed: []string{"HTTP://LocalHost:8080"}, origin: "http://localhost:8080", want: true},
		{name: "other port", allowed: []string{"http://localhost:8080"}, origin: "http://localhost:9090", want: false},
		{name: "missing origin", allowed: []string{"http://localhost:8080"}, origin: "", want: false},
		{name: "malformed origin", allowed: []string{"*"}, origin: "not a url", want: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anywhere.example", want: true},
		{name: "invalid entries ignored", allowed: []string{"localhost", " "}, origin: "http://localhost", want: false},
		{name: "empty list", allowed: nil, origin: "http://localhost:8080", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newOriginPolicy(tt.allowed, log)
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, policy.checkOrigin(r))
		})
	}
}
