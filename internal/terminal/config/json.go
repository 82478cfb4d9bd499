package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals are
// integer seconds; values are copied into the runtime Config afterwards.
type JsonConfig struct {
	ServerEndpointAddr string `json:"server_endpoint_addr"`
	DatabaseDSN        string `json:"database_dsn"`
	FareAmount         int64  `json:"fare_amount"`
	DefaultBalance     int64  `json:"default_balance"`
	RetryIntervalSec   int    `json:"retry_interval_sec"`
	RequestTimeoutSec  int    `json:"request_timeout_sec"`
	Passphrase         string `json:"passphrase"`
	Salt               string `json:"salt"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. When no file is given the function is a no-op.
// Panics on read or unmarshal errors (startup-time misconfiguration).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.FareAmount > 0 {
		cfg.FareAmount = jc.FareAmount
	}
	if jc.DefaultBalance > 0 {
		cfg.DefaultBalance = jc.DefaultBalance
	}
	if jc.RetryIntervalSec > 0 {
		cfg.RetryInterval = time.Duration(jc.RetryIntervalSec) * time.Second
	}
	if jc.RequestTimeoutSec > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeoutSec) * time.Second
	}
	if jc.Passphrase != "" {
		cfg.Passphrase = jc.Passphrase
	}
	if jc.Salt != "" {
		cfg.Salt = jc.Salt
	}
}
