// Package config holds all ledgerseed configuration: volume presets,
// per-phase concurrency, retry and circuit breaker tuning, and the
// checkpoint location. Values load from defaults, then an optional YAML
// file, then LEDGERSEED_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Volume selects a named generation size.
type Volume string

const (
	// VolumeSmall is a quick smoke-level dataset.
	VolumeSmall Volume = "small"
	// VolumeMedium is a realistic development dataset.
	VolumeMedium Volume = "medium"
	// VolumeLarge is a load-test scale dataset; runs can take hours.
	VolumeLarge Volume = "large"
)

// Counts fixes how many entities each phase creates.
type Counts struct {
	Organizations          int `yaml:"organizations" json:"organizations"`
	LedgersPerOrganization int `yaml:"ledgers_per_organization" json:"ledgers_per_organization"`
	AssetsPerLedger        int `yaml:"assets_per_ledger" json:"assets_per_ledger"`
	PortfoliosPerLedger    int `yaml:"portfolios_per_ledger" json:"portfolios_per_ledger"`
	SegmentsPerLedger      int `yaml:"segments_per_ledger" json:"segments_per_ledger"`
	AccountsPerLedger      int `yaml:"accounts_per_ledger" json:"accounts_per_ledger"`
	TransactionsPerLedger  int `yaml:"transactions_per_ledger" json:"transactions_per_ledger"`
}

// VolumeCounts returns the fixed per-phase counts for a volume.
func VolumeCounts(v Volume) Counts {
	switch v {
	case VolumeMedium:
		return Counts{
			Organizations:          4,
			LedgersPerOrganization: 3,
			AssetsPerLedger:        5,
			PortfoliosPerLedger:    3,
			SegmentsPerLedger:      3,
			AccountsPerLedger:      20,
			TransactionsPerLedger:  50,
		}
	case VolumeLarge:
		return Counts{
			Organizations:          10,
			LedgersPerOrganization: 5,
			AssetsPerLedger:        8,
			PortfoliosPerLedger:    5,
			SegmentsPerLedger:      5,
			AccountsPerLedger:      100,
			TransactionsPerLedger:  500,
		}
	default: // VolumeSmall
		return Counts{
			Organizations:          2,
			LedgersPerOrganization: 2,
			AssetsPerLedger:        3,
			PortfoliosPerLedger:    2,
			SegmentsPerLedger:      2,
			AccountsPerLedger:      5,
			TransactionsPerLedger:  10,
		}
	}
}

// Concurrency caps in-flight creations per phase.
type Concurrency struct {
	Organizations int `yaml:"organizations" json:"organizations"`
	Ledgers       int `yaml:"ledgers" json:"ledgers"`
	Assets        int `yaml:"assets" json:"assets"`
	Accounts      int `yaml:"accounts" json:"accounts"`
	Transactions  int `yaml:"transactions" json:"transactions"`
}

// RetryConfig tunes the retry executor. Durations are strings like "1s".
type RetryConfig struct {
	MaxAttempts    int    `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff string `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff" json:"max_backoff"`
}

// Backoffs returns the parsed backoff durations.
func (r RetryConfig) Backoffs() (initial, max time.Duration) {
	return parseDurationOr(r.InitialBackoff, 1*time.Second),
		parseDurationOr(r.MaxBackoff, 30*time.Second)
}

// BreakerConfig tunes the per-operation-class circuit breakers.
type BreakerConfig struct {
	FailureThreshold int     `yaml:"failure_threshold" json:"failure_threshold"`
	MinimumRequests  int     `yaml:"minimum_requests" json:"minimum_requests"`
	SuccessThreshold float64 `yaml:"success_threshold" json:"success_threshold"`
	RecoveryTimeout  string  `yaml:"recovery_timeout" json:"recovery_timeout"`
	MonitoringPeriod string  `yaml:"monitoring_period" json:"monitoring_period"`
}

// Timeouts returns the parsed recovery and monitoring durations.
func (b BreakerConfig) Timeouts() (recovery, monitoring time.Duration) {
	return parseDurationOr(b.RecoveryTimeout, 30*time.Second),
		parseDurationOr(b.MonitoringPeriod, 60*time.Second)
}

// Config is the full generator configuration. It is embedded verbatim in
// every checkpoint so a resumed run can detect drift.
type Config struct {
	OnboardingURL  string `yaml:"onboarding_url" json:"onboarding_url"`
	TransactionURL string `yaml:"transaction_url" json:"transaction_url"`

	Volume Volume `yaml:"volume" json:"volume"`
	// Counts override the volume preset when non-zero.
	Counts Counts `yaml:"counts" json:"counts"`

	Concurrency Concurrency `yaml:"concurrency" json:"concurrency"`
	// MaxInFlight caps concurrent HTTP requests across all phases.
	MaxInFlight int `yaml:"max_in_flight" json:"max_in_flight"`

	BatchDelay     string `yaml:"batch_delay" json:"batch_delay"`
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`

	CheckpointDir  string `yaml:"checkpoint_dir" json:"checkpoint_dir"`
	CheckpointKeep int    `yaml:"checkpoint_keep" json:"checkpoint_keep"`

	MaxEntitiesInMemory int `yaml:"max_entities_in_memory" json:"max_entities_in_memory"`

	// Seed makes payload generation reproducible; 0 means time-based.
	Seed  int64 `yaml:"seed" json:"seed"`
	Debug bool  `yaml:"debug" json:"debug"`

	Retry   RetryConfig   `yaml:"retry" json:"retry"`
	Breaker BreakerConfig `yaml:"breaker" json:"breaker"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		OnboardingURL:  "http://localhost:3000",
		TransactionURL: "http://localhost:3001",
		Volume:         VolumeSmall,
		Concurrency: Concurrency{
			Organizations: 2,
			Ledgers:       2,
			Assets:        4,
			Accounts:      8,
			Transactions:  8,
		},
		MaxInFlight:         20,
		BatchDelay:          "100ms",
		RequestTimeout:      "30s",
		CheckpointDir:       ".ledgerseed/checkpoints",
		CheckpointKeep:      5,
		MaxEntitiesInMemory: 10000,
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: "1s",
			MaxBackoff:     "30s",
		},
		Breaker: BreakerConfig{
			FailureThreshold: 5,
			MinimumRequests:  3,
			SuccessThreshold: 0.6,
			RecoveryTimeout:  "30s",
			MonitoringPeriod: "60s",
		},
	}
}

// Load builds a Config from defaults, an optional YAML file, and
// environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides fields from LEDGERSEED_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("LEDGERSEED_ONBOARDING_URL"); v != "" {
		c.OnboardingURL = v
	}
	if v := os.Getenv("LEDGERSEED_TRANSACTION_URL"); v != "" {
		c.TransactionURL = v
	}
	if v := os.Getenv("LEDGERSEED_CHECKPOINT_DIR"); v != "" {
		c.CheckpointDir = v
	}
	if v := os.Getenv("LEDGERSEED_VOLUME"); v != "" {
		c.Volume = Volume(v)
	}
	if v := os.Getenv("LEDGERSEED_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Seed = n
		}
	}
	if v := os.Getenv("LEDGERSEED_DEBUG"); v != "" {
		c.Debug = v == "1" || v == "true"
	}
}

// Normalize backfills zero values: counts come from the volume preset, and
// the transaction service defaults to the onboarding host.
func (c *Config) Normalize() {
	preset := VolumeCounts(c.Volume)
	if c.Counts.Organizations <= 0 {
		c.Counts.Organizations = preset.Organizations
	}
	if c.Counts.LedgersPerOrganization <= 0 {
		c.Counts.LedgersPerOrganization = preset.LedgersPerOrganization
	}
	if c.Counts.AssetsPerLedger <= 0 {
		c.Counts.AssetsPerLedger = preset.AssetsPerLedger
	}
	if c.Counts.PortfoliosPerLedger <= 0 {
		c.Counts.PortfoliosPerLedger = preset.PortfoliosPerLedger
	}
	if c.Counts.SegmentsPerLedger <= 0 {
		c.Counts.SegmentsPerLedger = preset.SegmentsPerLedger
	}
	if c.Counts.AccountsPerLedger <= 0 {
		c.Counts.AccountsPerLedger = preset.AccountsPerLedger
	}
	if c.Counts.TransactionsPerLedger <= 0 {
		c.Counts.TransactionsPerLedger = preset.TransactionsPerLedger
	}
	if c.TransactionURL == "" {
		c.TransactionURL = c.OnboardingURL
	}
	if c.CheckpointKeep <= 0 {
		c.CheckpointKeep = 5
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.OnboardingURL == "" {
		return fmt.Errorf("onboarding_url is required")
	}
	switch c.Volume {
	case VolumeSmall, VolumeMedium, VolumeLarge:
	default:
		return fmt.Errorf("unknown volume %q (want small, medium, or large)", c.Volume)
	}
	for name, value := range map[string]string{
		"batch_delay":               c.BatchDelay,
		"request_timeout":           c.RequestTimeout,
		"retry.initial_backoff":     c.Retry.InitialBackoff,
		"retry.max_backoff":         c.Retry.MaxBackoff,
		"breaker.recovery_timeout":  c.Breaker.RecoveryTimeout,
		"breaker.monitoring_period": c.Breaker.MonitoringPeriod,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	return nil
}

// BatchDelayDuration returns the parsed inter-batch delay.
func (c *Config) BatchDelayDuration() time.Duration {
	return parseDurationOr(c.BatchDelay, 100*time.Millisecond)
}

// RequestTimeoutDuration returns the parsed per-request timeout.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return parseDurationOr(c.RequestTimeout, 30*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
