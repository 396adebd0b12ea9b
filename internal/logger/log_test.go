package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "debug json", cfg: Config{Level: "debug", Encoding: "json"}},
		{name: "file output", cfg: Config{Level: "warn", Outputs: []string{filepath.Join(t.TempDir(), "live.log")}}},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l)
			l.Info("logger ready")
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := parseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, zap.WarnLevel, lvl)
}
