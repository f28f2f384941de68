package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	l := NewLoader("", WithConfigPaths(t.TempDir()))
	app, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "student-advisor-portal", app.App.Name)
	assert.Equal(t, 8000, app.Server.Port)
	assert.Equal(t, "0.0.0.0:8000", app.Server.Addr())
	assert.Equal(t, "sqlite", app.Database.Driver)
	assert.Equal(t, 30*time.Minute, app.Auth.AccessTokenExpire)
	assert.Equal(t, int64(10<<20), app.Storage.MaxFileSize)
	assert.Equal(t, 10, app.Storage.MaxCertificates)
	assert.Equal(t, 30*time.Second, app.Chat.SweepInterval)
	assert.Equal(t, 5*time.Second, app.Chat.TypingTimeout)
	assert.Equal(t, 30*time.Minute, app.Chat.SessionTimeout)
	assert.Equal(t, "general", app.Chat.DefaultRoom)
	assert.Contains(t, app.CORS.AllowOrigins, "http://localhost:3000")
	assert.False(t, app.IsProduction())
}

func TestLoader_FileAndEnvOverrides(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", `
server:
  port: 9000
database:
  driver: postgres
  dsn: host=db user=advisor
chat:
  typing_timeout: 3s
cors:
  allow_origins: ["https://portal.example.com"]
`)
	t.Setenv("ADVISOR_SERVER_PORT", "9100")
	t.Setenv("ADVISOR_CACHE_DRIVER", "redis")
	t.Setenv("ADVISOR_BROKER_BROKERS", "k1:9092,k2:9092")

	app, err := NewLoader(cfgPath).Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, app.Server.Port)
	assert.Equal(t, "postgres", app.Database.Driver)
	assert.Equal(t, "host=db user=advisor", app.Database.DSN)
	assert.Equal(t, "redis", app.Cache.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, app.Broker.Brokers)
	assert.Equal(t, 3*time.Second, app.Chat.TypingTimeout)
	assert.Equal(t, []string{"https://portal.example.com"}, app.CORS.AllowOrigins)
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*AppConfig)
	}{
		{"port", func(c *AppConfig) { c.Server.Port = 0 }},
		{"log output", func(c *AppConfig) { c.Log.Output = "syslog" }},
		{"database driver", func(c *AppConfig) { c.Database.Driver = "oracle" }},
		{"cache driver", func(c *AppConfig) { c.Cache.Driver = "memcached" }},
		{"storage driver", func(c *AppConfig) { c.Storage.Driver = "gcs" }},
		{"broker driver", func(c *AppConfig) { c.Broker.Driver = "sqs" }},
		{"exporter", func(c *AppConfig) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }},
		{"session timeout", func(c *AppConfig) { c.Chat.SessionTimeout = time.Second }},
		{"rate limit", func(c *AppConfig) { c.RateLimit.Requests = 0 }},
		{"production secret", func(c *AppConfig) { c.App.Environment = "production" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := NewLoader("", WithConfigPaths(t.TempDir())).Load()
			require.NoError(t, err)
			tt.modify(app)
			assert.ErrorIs(t, app.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoader_InvalidFileRejected(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", "database:\n  driver: oracle\n")
	_, err := NewLoader(cfgPath).Load()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoader_Watch(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", "log:\n  level: info\n")
	l := NewLoader(cfgPath)
	_, err := l.Load()
	require.NoError(t, err)

	levels := make(chan string, 4)
	require.NoError(t, l.Watch(func(app *AppConfig) {
		levels <- app.Log.Level
	}))
	t.Cleanup(l.Close)

	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: debug\n"), 0644))

	select {
	case level := <-levels:
		assert.Equal(t, "debug", level)
	case <-time.After(2 * time.Second):
		t.Fatal("watch callback was not triggered")
	}
}

func TestLoader_WatchWithoutFile(t *testing.T) {
	l := NewLoader(t.TempDir() + "/absent.yaml")
	_, err := l.Load()
	require.NoError(t, err)

	assert.Empty(t, l.ConfigFileUsed())
	assert.ErrorIs(t, l.Watch(func(*AppConfig) {}), ErrConfigNotFound)
}
