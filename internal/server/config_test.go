package server

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, "/dev/ttyUSB0", cfg.Device.PortPath)
	assert.Equal(t, 115200, cfg.Device.BaudRate)
	assert.Equal(t, 1000, cfg.Device.ResponseTimeoutMs)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.False(t, cfg.Poll.Enabled)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
device:
  port_path: /dev/ttyACM3
  baud_rate: 57600
  response_timeout_ms: 2500
poll:
  enabled: true
  interval_ms: 15000
server:
  listen_addr: ":9090"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg := LoadConfig(path)
	assert.Equal(t, "/dev/ttyACM3", cfg.Device.PortPath)
	assert.Equal(t, 57600, cfg.Device.BaudRate)
	assert.Equal(t, 2500, cfg.Device.ResponseTimeoutMs)
	assert.True(t, cfg.Poll.Enabled)
	assert.Equal(t, 15000, cfg.Poll.IntervalMs)
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 100, cfg.Device.NoDataSilenceMs)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GM8050_PORT", "/dev/ttyS7")
	t.Setenv("GM8050_BAUD", "230400")
	t.Setenv("POLL_ENABLED", "true")
	t.Setenv("LISTEN_ADDR", ":7000")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, "/dev/ttyS7", cfg.Device.PortPath)
	assert.Equal(t, 230400, cfg.Device.BaudRate)
	assert.True(t, cfg.Poll.Enabled)
	assert.Equal(t, ":7000", cfg.Server.ListenAddr)
}
