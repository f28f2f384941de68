package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
app:
  name: test-app
  port: 8080
  debug: true
  timeout: 5s
  tags:
    - web
    - api
`

func writeTestConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	assert.Equal(t, "test-app", c.GetString("app.name"))
	assert.Equal(t, 8080, c.GetInt("app.port"))
	assert.True(t, c.GetBool("app.debug"))
	assert.Equal(t, 5*time.Second, c.GetDuration("app.timeout"))
	assert.Equal(t, []string{"web", "api"}, c.GetStringSlice("app.tags"))
	assert.Equal(t, cfgPath, c.ConfigFileUsed())
}

func TestLoadWithNameAndPaths(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "myconfig.yaml", testYAML)

	c := New(WithConfigName("myconfig"), WithConfigType("yaml"), WithConfigPaths(dir))
	require.NoError(t, c.Load())

	assert.Equal(t, "test-app", c.GetString("app.name"))
}

func TestLoad_NotFound(t *testing.T) {
	err := New(WithConfigFile("/nonexistent/path/config.yaml")).Load()
	assert.ErrorIs(t, err, ErrConfigNotFound)

	err = New(WithConfigName("missing"), WithConfigPaths(t.TempDir())).Load()
	assert.ErrorIs(t, err, ErrConfigNotFound)

	assert.ErrorIs(t, New().Load(), ErrConfigNotFound)
}

func TestLoad_OptionalFile(t *testing.T) {
	c := New(
		WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")),
		WithOptionalFile(true),
		WithDefaults(map[string]any{"app.name": "fallback"}),
	)
	require.NoError(t, c.Load())
	assert.Equal(t, "fallback", c.GetString("app.name"))
	assert.Empty(t, c.ConfigFileUsed())
	assert.ErrorIs(t, c.StartWatch(), ErrConfigNotFound)
	assert.False(t, c.Watching())
}

func TestLoad_InvalidFile(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", "app: [unterminated")
	assert.ErrorIs(t, New(WithConfigFile(cfgPath)).Load(), ErrConfigReadFailed)
}

func TestGenericGet(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	assert.Equal(t, "test-app", Get[string](c, "app.name"))
	assert.Equal(t, 0, Get[int](c, "app.name"))
	assert.Equal(t, "", Get[string](c, "missing"))
}

func TestWithEnvPrefix(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", "app:\n  name: myapp\n")
	t.Setenv("MYAPP_APP_NAME", "env-app")

	c := New(WithConfigFile(cfgPath), WithEnvPrefix("MYAPP"))
	require.NoError(t, c.Load())

	assert.Equal(t, "env-app", c.GetString("app.name"))
}

func TestWithEnvKeyReplacer(t *testing.T) {
	t.Setenv("X__APP__NAME", "replaced")

	c := New(
		WithOptionalFile(true),
		WithEnvKeyReplacer(strings.NewReplacer(".", "__")),
		WithEnvPrefix("X_"),
		WithDefaults(map[string]any{"app.name": "default"}),
	)
	require.NoError(t, c.Load())
	assert.Equal(t, "replaced", c.GetString("app.name"))
}

func TestUnmarshalKey(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	var app struct {
		Name    string        `mapstructure:"name"`
		Port    int           `mapstructure:"port"`
		Timeout time.Duration `mapstructure:"timeout"`
	}
	require.NoError(t, c.UnmarshalKey("app", &app))
	assert.Equal(t, "test-app", app.Name)
	assert.Equal(t, 8080, app.Port)
	assert.Equal(t, 5*time.Second, app.Timeout)
}

func TestConcurrentAccess(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.GetString("app.name")
			_ = c.IsSet("app.port")
		}()
		go func(i int) {
			defer wg.Done()
			c.Set("dynamic.key", i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "test-app", c.GetString("app.name"))
}

func TestWatch_OnChange(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	changed := make(chan struct{}, 1)
	c := New(
		WithConfigFile(cfgPath),
		WithAutoWatch(true),
		WithOnChange(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		}),
	)
	require.NoError(t, c.Load())
	assert.True(t, c.Watching())

	require.NoError(t, os.WriteFile(cfgPath, []byte("app:\n  name: updated-app\n"), 0644))

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange callback was not triggered within timeout")
	}
	assert.Eventually(t, func() bool {
		return c.GetString("app.name") == "updated-app"
	}, time.Second, 10*time.Millisecond)
}

func TestWatch_CallbackPanicReported(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)

	errCh := make(chan error, 1)
	c := New(
		WithConfigFile(cfgPath),
		WithOnError(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}),
	)
	require.NoError(t, c.Load())
	c.OnChange(func() { panic("boom") })
	require.NoError(t, c.StartWatch())

	require.NoError(t, os.WriteFile(cfgPath, []byte("app:\n  name: x\n"), 0644))

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not reported")
	}
}

func TestStartStopWatch(t *testing.T) {
	cfgPath := writeTestConfig(t, t.TempDir(), "config.yaml", testYAML)
	c := New(WithConfigFile(cfgPath))
	require.NoError(t, c.Load())

	require.NoError(t, c.StartWatch())
	require.NoError(t, c.StartWatch())
	assert.True(t, c.Watching())

	c.StopWatch()
	assert.False(t, c.Watching())

	require.NoError(t, c.StartWatch())
	assert.True(t, c.Watching())
	c.Close()
	assert.False(t, c.Watching())
}
