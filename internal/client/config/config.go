// Package config holds runtime settings for the homeledger agent, assembled
// from defaults, an optional JSON file, and command-line flags — later
// sources override earlier ones.
package config

import "time"

// Config holds agent settings. The four safety constants at the bottom are
// deliberate, tunable configuration, not incidental literals: the recurring
// generator's correctness argument depends on them being enforced.
type Config struct {
	// ServerAddr is the base URL of the remote document store.
	ServerAddr string

	// DatabasePath is the local SQLite database file.
	DatabasePath string

	// LockDir is the shared directory for advisory lock files. Empty
	// disables cross-process locking (noop manager).
	LockDir string

	// OnlineCheckInterval is how often the connectivity monitor probes the
	// remote store.
	OnlineCheckInterval time.Duration

	// GeneratorInterval is the cadence of periodic materializer attempts.
	// Most attempts are no-ops thanks to the throttle below.
	GeneratorInterval time.Duration

	// GeneratorThrottle skips a materializer run when one completed within
	// this window.
	GeneratorThrottle time.Duration

	// MaxCreatedPerRun caps transactions created across all templates in
	// one materializer invocation.
	MaxCreatedPerRun int

	// MaxOccurrencesPerTemplate caps missed occurrences processed for a
	// single template in one invocation.
	MaxOccurrencesPerTemplate int

	// OutboxMaxRetries bounds retries of a failed outbox operation.
	OutboxMaxRetries int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.DatabasePath = "homeledger.db"
	c.LockDir = ".homeledger-locks"
	c.OnlineCheckInterval = 30 * time.Second
	c.GeneratorInterval = 15 * time.Minute
	c.GeneratorThrottle = time.Hour
	c.MaxCreatedPerRun = 100
	c.MaxOccurrencesPerTemplate = 100
	c.OutboxMaxRetries = 5
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
