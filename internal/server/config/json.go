package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/farekeeper/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. The token
// validity is integer minutes; values are copied into the runtime Config.
type JsonConfig struct {
	EndpointAddr     string `json:"endpoint_addr"`
	DatabaseDSN      string `json:"database_dsn"`
	SecretKey        string `json:"secret_key"`
	TokenValidityMin int    `json:"token_validity_min"`
	DefaultBalance   int64  `json:"default_balance"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flag. When no file is given the function is a no-op.
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

	if jc.EndpointAddr != "" {
		cfg.EndpointAddr = jc.EndpointAddr
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.SecretKey != "" {
		cfg.SecretKey = jc.SecretKey
	}
	if jc.TokenValidityMin > 0 {
		cfg.TokenValidityDuration = time.Duration(jc.TokenValidityMin) * time.Minute
	}
	if jc.DefaultBalance > 0 {
		cfg.DefaultBalance = jc.DefaultBalance
	}
}
