// Package config loads runtime configuration for the linkkeeper CLI.
//
// Sources, later ones win: built-in defaults, an optional JSON file named by
// -c/-config, then command-line flags.
//
//	-a string   base URL of the linkkeeper HTTP API
//	-t int      per-request timeout (seconds)
//	-i int      online status check interval (seconds)
package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the linkkeeper CLI.
type Config struct {
	ServerEndpointAddr  string
	RequestTimeout      time.Duration
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:5000"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	args := os.Args[1:]

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
