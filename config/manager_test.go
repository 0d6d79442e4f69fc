package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hostConfig mirrors the shape of the real host properties
type hostConfig struct {
	PluginPath string `mapstructure:"path"`
	Prefix     string `mapstructure:"restPathPrefix"`
	EnableID   bool   `mapstructure:"enablePluginIdRestPathPrefix"`
	MaxConns   int    `mapstructure:"maxConns"`
}

func (c *hostConfig) GetName() string { return "host" }

func (c *hostConfig) Validate() error {
	if c.MaxConns < 0 {
		return fmt.Errorf("maxConns must not be negative")
	}
	return nil
}

func (c *hostConfig) Defaults() map[string]any {
	return map[string]any{
		"enablePluginIdRestPathPrefix": true,
		"path":                         "./plugins",
	}
}

type recordingListener struct {
	mu      sync.Mutex
	count   int32
	name    string
	newest  Config
	oldest  Config
	failErr error
}

func (l *recordingListener) OnConfigChanged(configName string, newConfig, oldConfig Config) error {
	atomic.AddInt32(&l.count, 1)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.name = configName
	l.newest = newConfig
	l.oldest = oldConfig
	return l.failErr
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "host.yaml"), `
path: /opt/plugins
restPathPrefix: /api
maxConns: 12
`)

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)

	cfg := &hostConfig{}
	require.NoError(t, cm.LoadConfig("host", cfg))

	assert.Equal(t, "/opt/plugins", cfg.PluginPath)
	assert.Equal(t, "/api", cfg.Prefix)
	assert.Equal(t, 12, cfg.MaxConns)
	assert.True(t, cfg.EnableID, "default should apply when the key is absent")

	got, err := cm.GetConfig("host")
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(t.TempDir())

	cfg := &hostConfig{}
	require.NoError(t, cm.LoadConfig("host", cfg))
	assert.Equal(t, "./plugins", cfg.PluginPath)
	assert.True(t, cfg.EnableID)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "host.yaml"), "restPathPrefix: /api\nmaxConns: 1\n")
	t.Setenv("HOST_RESTPATHPREFIX", "/env")

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)

	cfg := &hostConfig{}
	require.NoError(t, cm.LoadConfig("host", cfg))
	assert.Equal(t, "/env", cfg.Prefix)
}

func TestLoadConfig_EnvironmentDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "production"), 0o755))
	writeFile(t, filepath.Join(dir, "production", "host.yaml"), "restPathPrefix: /prod\n")

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)
	cm.SetEnvironment("production")

	cfg := &hostConfig{}
	require.NoError(t, cm.LoadConfig("host", cfg))
	assert.Equal(t, "/prod", cfg.Prefix)
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "host.yaml"), "maxConns: -1\n")

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)

	err := cm.LoadConfig("host", &hostConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config failed")

	_, err = cm.GetConfig("host")
	assert.Error(t, err, "a rejected config must not be stored")
}

func TestLoadConfig_RegisteredValidator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "host.yaml"), "restPathPrefix: nope\n")

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)
	cm.RegisterValidator("host", func(c Config) error {
		if c.(*hostConfig).Prefix == "nope" {
			return errors.New("rejected")
		}
		return nil
	})

	assert.Error(t, cm.LoadConfig("host", &hostConfig{}))
}

func TestGetConfig_NotFound(t *testing.T) {
	cm := NewConfigManager()
	_, err := cm.GetConfig("missing")
	assert.Error(t, err)
	_, err = cm.Viper("missing")
	assert.Error(t, err)
}

func TestViperExposesRawProperties(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "host.yaml"), "db:\n  url: jdbc://x\n")

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)
	require.NoError(t, cm.LoadConfig("host", &hostConfig{}))

	v, err := cm.Viper("host")
	require.NoError(t, err)
	assert.Equal(t, "jdbc://x", v.GetString("db.url"))
}

func TestReloadNotifiesListeners(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "host.yaml")
	writeFile(t, file, "restPathPrefix: /v1\n")

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)

	listener := &recordingListener{}
	cm.AddChangeListener(listener)
	cm.AddChangeListener(nil)

	require.NoError(t, cm.LoadConfig("host", &hostConfig{}))
	writeFile(t, file, "restPathPrefix: /v2\n")

	// A write may surface as several events; wait for the final content.
	require.Eventually(t, func() bool {
		listener.mu.Lock()
		defer listener.mu.Unlock()
		cfg, ok := listener.newest.(*hostConfig)
		return ok && cfg.Prefix == "/v2"
	}, 5*time.Second, 20*time.Millisecond)

	listener.mu.Lock()
	assert.Equal(t, "host", listener.name)
	assert.NotNil(t, listener.oldest)
	listener.mu.Unlock()

	got, err := cm.GetConfig("host")
	require.NoError(t, err)
	assert.Equal(t, "/v2", got.(*hostConfig).Prefix)
}

func TestReloadHookVetoKeepsOldConfig(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "host.yaml")
	writeFile(t, file, "restPathPrefix: /v1\n")

	var reported atomic.Int32
	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)
	cm.SetErrorHandler(func(string, error) { reported.Add(1) })
	cm.RegisterHook("host", func(_, _ Config) error { return errors.New("veto") })

	listener := &recordingListener{}
	cm.AddChangeListener(listener)
	require.NoError(t, cm.LoadConfig("host", &hostConfig{}))

	writeFile(t, file, "restPathPrefix: /v2\n")
	require.Eventually(t, func() bool { return reported.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)

	got, err := cm.GetConfig("host")
	require.NoError(t, err)
	assert.Equal(t, "/v1", got.(*hostConfig).Prefix)
	assert.Equal(t, int32(0), atomic.LoadInt32(&listener.count))
}

func TestListenerErrorIsReported(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "host.yaml")
	writeFile(t, file, "restPathPrefix: /v1\n")

	var reported atomic.Int32
	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)
	cm.SetErrorHandler(func(string, error) { reported.Add(1) })

	failing := &recordingListener{failErr: errors.New("boom")}
	after := &recordingListener{}
	cm.AddChangeListener(failing)
	cm.AddChangeListener(after)
	require.NoError(t, cm.LoadConfig("host", &hostConfig{}))

	writeFile(t, file, "restPathPrefix: /v2\n")
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&after.count) >= 1 && reported.Load() >= 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConcurrentGetConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "host.yaml"), "maxConns: 3\n")

	cm := NewConfigManager()
	defer cm.Close()
	cm.SetBasePath(dir)
	require.NoError(t, cm.LoadConfig("host", &hostConfig{}))

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cm.GetConfig("host"); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Zero(t, failures.Load())
}
