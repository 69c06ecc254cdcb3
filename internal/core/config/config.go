package config

import (
	"time"

	redisclient "treasuryd/internal/infra/redis"
	"treasuryd/internal/infra/source/analytics"
	"treasuryd/internal/infra/source/custody"
	"treasuryd/internal/infra/source/governance"
	"treasuryd/internal/infra/source/ledger"
	"treasuryd/internal/infra/source/nftindex"
	"treasuryd/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Cache     CacheConfig        `yaml:"cache"`
	Scheduler SchedulerConfig    `yaml:"scheduler"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
	Sources   SourcesConfig      `yaml:"sources"`

	// Wallets is the configured treasury wallet list, overridable at
	// runtime via the admin settings store
	Wallets []string `yaml:"wallets"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CacheConfig holds snapshot freshness settings.
type CacheConfig struct {
	MaxAge time.Duration `yaml:"max_age"`
}

// SchedulerConfig holds periodic generation settings.
type SchedulerConfig struct {
	Interval        time.Duration `yaml:"interval"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// SourcesConfig holds per-provider adapter settings. A provider with no
// configuration contributes nothing and is skipped at wiring time.
type SourcesConfig struct {
	Custody    custody.Config    `yaml:"custody"`
	Analytics  analytics.Config  `yaml:"analytics"`
	Ledger     ledger.Config     `yaml:"ledger"`
	NftIndex   nftindex.Config   `yaml:"nft_index"`
	Governance governance.Config `yaml:"governance"`
}
