package config

import (
	"encoding/json"
	"os"

	"github.com/mpetrenko/homeledger/internal/flagx"
	"github.com/mpetrenko/homeledger/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations may
// be written either as strings like "30s" or as integer nanoseconds.
type JsonConfig struct {
	ServerAddr                string         `json:"server_addr"`
	DatabasePath              string         `json:"database_path"`
	LockDir                   string         `json:"lock_dir"`
	OnlineCheckInterval       timex.Duration `json:"online_check_interval"`
	GeneratorInterval         timex.Duration `json:"generator_interval"`
	GeneratorThrottle         timex.Duration `json:"generator_throttle"`
	MaxCreatedPerRun          *int           `json:"max_created_per_run"`
	MaxOccurrencesPerTemplate *int           `json:"max_occurrences_per_template"`
	OutboxMaxRetries          *int           `json:"outbox_max_retries"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c/-config flag. Absent file means no overlay; unset JSON fields keep the
// current value.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		cfg.ServerAddr = jc.ServerAddr
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.LockDir != "" {
		cfg.LockDir = jc.LockDir
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.GeneratorInterval.Duration > 0 {
		cfg.GeneratorInterval = jc.GeneratorInterval.Duration
	}
	if jc.GeneratorThrottle.Duration > 0 {
		cfg.GeneratorThrottle = jc.GeneratorThrottle.Duration
	}
	if jc.MaxCreatedPerRun != nil {
		cfg.MaxCreatedPerRun = *jc.MaxCreatedPerRun
	}
	if jc.MaxOccurrencesPerTemplate != nil {
		cfg.MaxOccurrencesPerTemplate = *jc.MaxOccurrencesPerTemplate
	}
	if jc.OutboxMaxRetries != nil {
		cfg.OutboxMaxRetries = *jc.OutboxMaxRetries
	}
}
