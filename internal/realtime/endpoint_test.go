package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name: "explicit realtime url wins",
			mutate: func(c *Config) {
				c.RealtimeURL = "https://rt.example.com"
				c.APIURL = "https://api.example.com"
				c.PageHost = "pelusa.app"
			},
			want: "wss://rt.example.com/ws",
		},
		{
			name:   "api url when no realtime url",
			mutate: func(c *Config) { c.APIURL = "http://10.0.0.5:8080/" },
			want:   "ws://10.0.0.5:8080/ws",
		},
		{
			name:   "production host",
			mutate: func(c *Config) { c.PageHost = "www.pelusa.app" },
			want:   "wss://api.pelusa.app/ws",
		},
		{
			name:   "production host with port",
			mutate: func(c *Config) { c.PageHost = "Pelusa.App:443" },
			want:   "wss://api.pelusa.app/ws",
		},
		{
			name:   "local fallback",
			mutate: func(c *Config) { c.PageHost = "staging.pelusa.dev" },
			want:   "ws://localhost:5000/ws",
		},
		{
			name:   "path already present",
			mutate: func(c *Config) { c.RealtimeURL = "wss://rt.example.com/ws" },
			want:   "wss://rt.example.com/ws",
		},
		{
			name: "path without leading slash matches whole segments",
			mutate: func(c *Config) {
				c.RealtimeURL = "https://rt.example.com/news"
				c.Path = "ws"
			},
			want: "wss://rt.example.com/news/ws",
		},
		{
			name: "path with trailing slash",
			mutate: func(c *Config) {
				c.RealtimeURL = "https://rt.example.com/live/ws/"
				c.Path = "/ws/"
			},
			want: "wss://rt.example.com/live/ws",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			got, err := ResolveEndpoint(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveEndpoint_RejectsUnknownScheme(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RealtimeURL = "ftp://files.example.com"
	_, err := ResolveEndpoint(cfg)
	assert.Error(t, err)
}
