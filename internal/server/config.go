package server

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all daemon configuration.
type Config struct {
	Device DeviceConfig `yaml:"device" json:"device"`
	Poll   PollConfig   `yaml:"poll" json:"poll"`
	Server ServerConfig `yaml:"server" json:"server"`
}

// DeviceConfig configures the serial link to the instrument.
type DeviceConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyUSB0
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`

	// ResponseTimeoutMs bounds each request/response cycle.
	ResponseTimeoutMs int `yaml:"response_timeout_ms" json:"responseTimeoutMs"`
	// NoDataSilenceMs tunes the fast "device absent" classification; it is
	// a latency heuristic, not a protocol constant.
	NoDataSilenceMs int `yaml:"no_data_silence_ms" json:"noDataSilenceMs"`
}

// PollConfig controls the periodic spectrum acquisition loop.
type PollConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled"`
	IntervalMs int  `yaml:"interval_ms" json:"intervalMs"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			PortPath:          "/dev/ttyUSB0",
			BaudRate:          115200,
			ResponseTimeoutMs: 1000,
			NoDataSilenceMs:   100,
		},
		Poll: PollConfig{
			Enabled:    false,
			IntervalMs: 10000,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies environment
// variable overrides. Falls back to defaults if the file is missing.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GM8050_PORT, GM8050_BAUD, GM8050_TIMEOUT_MS, LISTEN_ADDR,
// POLL_ENABLED, POLL_INTERVAL_MS.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GM8050_PORT"); v != "" {
		c.Device.PortPath = v
	}
	if v := os.Getenv("GM8050_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Device.BaudRate = n
		}
	}
	if v := os.Getenv("GM8050_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Device.ResponseTimeoutMs = n
		}
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("POLL_ENABLED"); v != "" {
		c.Poll.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("POLL_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Poll.IntervalMs = n
		}
	}
}
