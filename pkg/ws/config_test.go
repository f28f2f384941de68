package ws

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.TypingTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "max connections", modify: func(c *Config) { c.MaxConnections = 0 }},
		{name: "send queue", modify: func(c *Config) { c.SendQueueSize = -1 }},
		{name: "sweep interval", modify: func(c *Config) { c.SweepInterval = 0 }},
		{name: "typing timeout", modify: func(c *Config) { c.TypingTimeout = 0 }},
		{name: "session shorter than typing", modify: func(c *Config) { c.SessionTimeout = time.Second }},
		{name: "read buffer", modify: func(c *Config) { c.UpgraderConfig.ReadBufferSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewManager_InvalidOption(t *testing.T) {
	_, err := NewManager(WithSweepInterval(0))
	assert.Error(t, err)
}

func TestOriginCheckers(t *testing.T) {
	req := httptest.NewRequest("GET", "http://portal.local/ws", nil)

	assert.True(t, defaultCheckOrigin(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "http://portal.local")
	assert.True(t, defaultCheckOrigin(req))

	req.Header.Set("Origin", "http://evil.local")
	assert.False(t, defaultCheckOrigin(req))

	check := createWhitelistChecker([]string{"http://app.local"})
	assert.False(t, check(req))
	req.Header.Set("Origin", "http://app.local")
	assert.True(t, check(req))

	req.Header.Del("Origin")
	assert.False(t, check(req))

	assert.True(t, createWhitelistChecker([]string{"*"})(req))
}
