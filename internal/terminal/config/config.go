// Package config handles configuration for the terminal binary, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for a fare terminal.
//
// Money values are integer minor currency units. Passphrase may be left
// empty, in which case the terminal prompts for it on startup.
type Config struct {
	ServerEndpointAddr string
	DatabaseDSN        string
	FareAmount         int64
	DefaultBalance     int64
	RetryInterval      time.Duration
	RequestTimeout     time.Duration
	Passphrase         string
	Salt               string
}

// LoadDefaults populates c with development defaults.
// NOTE: the salt and passphrase defaults are insecure and must be
// overridden in production.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8443"
	c.DatabaseDSN = "terminal.db"
	c.FareAmount = 250
	c.DefaultBalance = 5000
	c.RetryInterval = 30 * time.Second
	c.RequestTimeout = 5 * time.Second
	c.Passphrase = ""
	c.Salt = "bus_terminal_salt_value_123"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present). Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
