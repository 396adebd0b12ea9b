package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pelusa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:5000", cfg.DevServer.Addr)
	assert.Equal(t, "http://localhost:5000", cfg.APIBaseURL())

	rc := cfg.RealtimeSettings()
	assert.True(t, rc.Reconnect.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.ActivitySettings().InactivityThreshold)
	assert.Equal(t, 10, cfg.NotifySettings().MaxVisible)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
token: from-file
log:
  level: debug
realtime:
  url: https://rt.example.com
  page_host: pelusa.app
  reconnect: false
  ping_period: 15s
activity:
  heartbeat_interval: 30s
notifications:
  display_window: 8s
`)
	t.Setenv("PELUSA_TOKEN", "from-env")
	t.Setenv("PELUSA_API_URL", "https://api.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "debug", cfg.Log.Level)

	rc := cfg.RealtimeSettings()
	assert.Equal(t, "https://rt.example.com", rc.RealtimeURL)
	assert.Equal(t, "https://api.example.com", rc.APIURL)
	assert.False(t, rc.Reconnect.Enabled)
	assert.Equal(t, 15*time.Second, rc.PingPeriod)
	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL())

	assert.Equal(t, 30*time.Second, cfg.ActivitySettings().HeartbeatInterval)
	assert.Equal(t, 8*time.Second, cfg.NotifySettings().DisplayWindow)
}

func TestLoad_ProductionHostSelectsProductionAPI(t *testing.T) {
	t.Setenv("PELUSA_PAGE_HOST", "www.pelusa.app")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://api.pelusa.app", cfg.APIBaseURL())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "realtime: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("PELUSA_RECONNECT", "sometimes")
	_, err = Load("")
	assert.Error(t, err)
}
