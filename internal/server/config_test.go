package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.EqualValues(t, 16384, cfg.MaxMessageSize)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.Zero(t, cfg.HistoryLimit)
}

func TestSanitizeConfig(t *testing.T) {
	origins := []string{"http://a.example"}
	cfg := sanitizeConfig(Config{
		AllowedOrigins: origins,
		MaxMessageSize: -1,
		SendBufferSize: 0,
		HistoryLimit:   -3,
	})

	assert.Equal(t, defaultPort, cfg.Port)
	assert.EqualValues(t, defaultMaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaultSendBufferSize, cfg.SendBufferSize)
	assert.Zero(t, cfg.HistoryLimit)

	// The origin list is copied
	cfg.AllowedOrigins[0] = "http://b.example"
	assert.Equal(t, "http://a.example", origins[0])
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"http://a.example", "https://b.example", ""},
		ParseOrigins(" http://a.example,https://b.example ,"))
}

func TestSanitizeConfig_MaxMessageSizeFitsLargestValidSend(t *testing.T) {
	assert.GreaterOrEqual(t, int64(defaultMaxMessageSize), int64(minMaxMessageSize))

	cfg := sanitizeConfig(Config{MaxMessageSize: 4096})
	assert.EqualValues(t, minMaxMessageSize, cfg.MaxMessageSize)

	cfg = sanitizeConfig(Config{MaxMessageSize: 64 * 1024})
	assert.EqualValues(t, 64*1024, cfg.MaxMessageSize)
}
