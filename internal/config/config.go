// Package config loads runtime settings from .env, an optional YAML file and
// PELUSA_* environment variables, in that order of precedence (last wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pelusa-v/pelusa-live/internal/activity"
	"github.com/pelusa-v/pelusa-live/internal/logger"
	"github.com/pelusa-v/pelusa-live/internal/notify"
	"github.com/pelusa-v/pelusa-live/internal/realtime"
)

type RealtimeConfig struct {
	URL        string        `yaml:"url"`
	APIURL     string        `yaml:"api_url"`
	PageHost   string        `yaml:"page_host"`
	PingPeriod time.Duration `yaml:"ping_period"`
	PongWait   time.Duration `yaml:"pong_wait"`
	Reconnect  *bool         `yaml:"reconnect"`
	MaxRetries uint64        `yaml:"max_retries"`
}

type ActivityConfig struct {
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval"`
	InactivityThreshold time.Duration `yaml:"inactivity_threshold"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
}

type NotifyConfig struct {
	MaxVisible    int           `yaml:"max_visible"`
	DisplayWindow time.Duration `yaml:"display_window"`
	NativeWindow  time.Duration `yaml:"native_window"`
}

type DevServerConfig struct {
	Addr       string `yaml:"addr"`
	Secret     string `yaml:"secret"`
	RateLimit  int    `yaml:"rate_limit"`
	QueueLimit int    `yaml:"queue_limit"`
}

type Config struct {
	Token     string          `yaml:"token"`
	DataDir   string          `yaml:"data_dir"`
	DebugAddr string          `yaml:"debug_addr"`
	Log       logger.Config   `yaml:"log"`
	Realtime  RealtimeConfig  `yaml:"realtime"`
	Activity  ActivityConfig  `yaml:"activity"`
	Notify    NotifyConfig    `yaml:"notifications"`
	DevServer DevServerConfig `yaml:"devserver"`
}

// Load reads .env when present, then the YAML file at path (optional), then
// environment overrides.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := &Config{
		Log:       logger.Config{Level: "info"},
		DevServer: DevServerConfig{Addr: "127.0.0.1:5000", RateLimit: 20, QueueLimit: 100},
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config file %s: %w", path, err)
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Token = getEnv("PELUSA_TOKEN", cfg.Token)
	cfg.DataDir = getEnv("PELUSA_DATA_DIR", cfg.DataDir)
	cfg.DebugAddr = getEnv("PELUSA_DEBUG_ADDR", cfg.DebugAddr)
	cfg.Log.Level = getEnv("PELUSA_LOG_LEVEL", cfg.Log.Level)
	cfg.Realtime.URL = getEnv("PELUSA_REALTIME_URL", cfg.Realtime.URL)
	cfg.Realtime.APIURL = getEnv("PELUSA_API_URL", cfg.Realtime.APIURL)
	cfg.Realtime.PageHost = getEnv("PELUSA_PAGE_HOST", cfg.Realtime.PageHost)
	cfg.DevServer.Addr = getEnv("PELUSA_DEVSERVER_ADDR", cfg.DevServer.Addr)
	cfg.DevServer.Secret = getEnv("PELUSA_DEVSERVER_SECRET", cfg.DevServer.Secret)

	if v, ok := os.LookupEnv("PELUSA_RECONNECT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("PELUSA_RECONNECT: %w", err)
		}
		cfg.Realtime.Reconnect = &b
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// RealtimeSettings merges the file settings over realtime.DefaultConfig.
func (c *Config) RealtimeSettings() realtime.Config {
	rc := realtime.DefaultConfig()
	rc.RealtimeURL = c.Realtime.URL
	rc.APIURL = c.Realtime.APIURL
	rc.PageHost = c.Realtime.PageHost
	if c.Realtime.PingPeriod > 0 {
		rc.PingPeriod = c.Realtime.PingPeriod
	}
	if c.Realtime.PongWait > 0 {
		rc.PongWait = c.Realtime.PongWait
	}
	if c.Realtime.Reconnect != nil {
		rc.Reconnect.Enabled = *c.Realtime.Reconnect
	}
	if c.Realtime.MaxRetries > 0 {
		rc.Reconnect.MaxRetries = c.Realtime.MaxRetries
	}
	return rc
}

// APIBaseURL is the REST origin, resolved the same way as the realtime
// endpoint but without the websocket scheme and path.
func (c *Config) APIBaseURL() string {
	rc := c.RealtimeSettings()
	switch {
	case c.Realtime.APIURL != "":
		return c.Realtime.APIURL
	case realtime.IsProductionHost(rc.PageHost, rc.ProductionHosts):
		return rc.ProductionURL
	default:
		return rc.LocalURL
	}
}

func (c *Config) ActivitySettings() activity.Config {
	ac := activity.DefaultConfig()
	if c.Activity.HeartbeatInterval > 0 {
		ac.HeartbeatInterval = c.Activity.HeartbeatInterval
	}
	if c.Activity.InactivityThreshold > 0 {
		ac.InactivityThreshold = c.Activity.InactivityThreshold
	}
	if c.Activity.RequestTimeout > 0 {
		ac.RequestTimeout = c.Activity.RequestTimeout
	}
	return ac
}

func (c *Config) NotifySettings() notify.Config {
	nc := notify.DefaultConfig()
	if c.Notify.MaxVisible > 0 {
		nc.MaxVisible = c.Notify.MaxVisible
	}
	if c.Notify.DisplayWindow > 0 {
		nc.DisplayWindow = c.Notify.DisplayWindow
	}
	if c.Notify.NativeWindow > 0 {
		nc.NativeWindow = c.Notify.NativeWindow
	}
	return nc
}
