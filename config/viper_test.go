package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
registration:
  service_name: base-service
  port: 8080
  registry:
    host: localhost
    port: 9090
log:
  level: info
`)
	writeFile(t, filepath.Join(dir, "config.dev.yaml"), `
registration:
  registry:
    host: registry.dev
`)
	writeFile(t, filepath.Join(dir, ".env"), "REGTEST_LOG_FORMAT=json\n")

	t.Setenv("REGTEST_ENV", "dev")
	t.Setenv("REGTEST_REGISTRATION_SERVICE_NAME", "env-service")
	t.Cleanup(func() { os.Unsetenv("REGTEST_LOG_FORMAT") })

	loader, err := New(&Config{Name: "config", Paths: []string{dir}, EnvPrefix: "regtest"},
		WithDefaults(map[string]any{"metrics.enabled": true}))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "env-service", loader.Get("registration.service_name"), "environment variable wins")
	assert.Equal(t, "json", loader.Get("log.format"), ".env file")
	assert.Equal(t, "registry.dev", loader.Get("registration.registry.host"), "environment overlay")
	assert.Equal(t, 9090, loader.Get("registration.registry.port"), "base file")
	assert.Equal(t, true, loader.Get("metrics.enabled"), "default")

	var registry struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	}
	require.NoError(t, loader.UnmarshalKey("registration.registry", &registry))
	assert.Equal(t, "registry.dev", registry.Host)
	assert.Equal(t, 9090, registry.Port)
}

func TestLoaderValidate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		loader, err := New(&Config{Name: "missing", Paths: []string{t.TempDir()}, EnvPrefix: "REGTEST_EMPTY"})
		require.NoError(t, err)
		err = loader.Load(context.Background())
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.True(t, IsInvalidInput(err))
	})

	t.Run("defaults only", func(t *testing.T) {
		loader, err := New(&Config{Name: "missing", Paths: []string{t.TempDir()}, EnvPrefix: "REGTEST_DEFAULTS"},
			WithDefaults(map[string]any{"registration.enabled": true}))
		require.NoError(t, err)
		require.NoError(t, loader.Load(context.Background()))
		assert.NoError(t, loader.Validate())
	})

	t.Run("malformed file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "config.yaml"), "registration: [unclosed\n")
		loader, err := New(&Config{Paths: []string{dir}, EnvPrefix: "REGTEST_BAD"})
		require.NoError(t, err)
		assert.True(t, IsInvalidInput(loader.Load(context.Background())))
	})
}

func TestWatchBeforeLoad(t *testing.T) {
	loader, err := New(nil)
	require.NoError(t, err)
	_, err = loader.Watch(context.Background(), "log.level")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestLoaderWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "watch.yaml")
	writeFile(t, file, "log:\n  level: info\n")

	loader, err := New(&Config{Name: "watch", Paths: []string{dir}, EnvPrefix: "REGTEST_WATCH"})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "log.level")
	require.NoError(t, err)

	// fsnotify 需要一点时间开始监听
	time.Sleep(200 * time.Millisecond)
	writeFile(t, file, "log:\n  level: debug\n")

	select {
	case ev := <-ch:
		assert.Equal(t, "log.level", ev.Key)
		assert.Equal(t, "debug", ev.Value)
		assert.Equal(t, "info", ev.OldValue)
		assert.Equal(t, "file", ev.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("no change event received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
