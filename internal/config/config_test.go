package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
	assert.Equal(t, 1024, cfg.Server.WebSocket.ReadBufferSize)
	assert.Equal(t, 24, cfg.Game.BoardWidth)
	assert.Equal(t, 24, cfg.Game.BoardHeight)
	assert.Equal(t, time.Second, cfg.Game.GravityInterval)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, int32(4), cfg.Database.MaxConns)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.WebSocket.Address)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  websocket:
    address: ":9090"
game:
  board_width: 32
  gravity_interval: 500ms
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.WebSocket.Address)
	assert.Equal(t, 32, cfg.Game.BoardWidth)
	assert.Equal(t, 500*time.Millisecond, cfg.Game.GravityInterval)
	assert.Equal(t, 24, cfg.Game.BoardHeight, "unset keys keep their defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml:::"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
