// Package config loads the linescore application configuration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JohnPlummer/line-scorer/internal/logging"
	"github.com/JohnPlummer/line-scorer/scorer"
)

// EnvPrefix prefixes every environment override, e.g. LINESCORE_SCORER_WORKERS
const EnvPrefix = "LINESCORE"

// AppConfig represents the complete application configuration.
type AppConfig struct {
	Logger  LoggerConfig  `mapstructure:"logger"`
	Scorer  ScorerConfig  `mapstructure:"scorer"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Input   InputConfig   `mapstructure:"input"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggerConfig defines logging settings.
type LoggerConfig struct {
	// Level: debug, info, warn, warning or error (case-insensitive)
	Level string `mapstructure:"level"`
	// Format: text or json
	Format string `mapstructure:"format"`
	// File enables rotating file output when set
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ScorerConfig holds the engine and endpoint settings.
type ScorerConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	Provider       string        `mapstructure:"provider"`
	OpenAIKey      string        `mapstructure:"openai_key"`
	Model          string        `mapstructure:"model"`
	Workers        int           `mapstructure:"workers"`
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	TotalLines     int           `mapstructure:"total_lines"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Backend        string        `mapstructure:"backend"`
	CircuitBreaker bool          `mapstructure:"circuit_breaker"`
}

// RetryConfig controls per-line attempts.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
}

// InputConfig names the file to score.
type InputConfig struct {
	File string `mapstructure:"file"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", logging.FormatText)
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 5)

	v.SetDefault("scorer.endpoint", "")
	v.SetDefault("scorer.provider", string(scorer.ProviderHTTP))
	v.SetDefault("scorer.openai_key", "")
	v.SetDefault("scorer.model", "")
	v.SetDefault("scorer.workers", scorer.DefaultNumWorkers)
	v.SetDefault("scorer.max_concurrent", scorer.DefaultMaxConcurrent)
	v.SetDefault("scorer.total_lines", 0)
	v.SetDefault("scorer.timeout", scorer.DefaultTimeout)
	v.SetDefault("scorer.backend", string(scorer.BackendLocal))
	v.SetDefault("scorer.circuit_breaker", false)

	v.SetDefault("retry.max_attempts", scorer.DefaultMaxAttempts)
	v.SetDefault("retry.initial_delay", scorer.DefaultInitialDelay)

	v.SetDefault("input.file", "")
	v.SetDefault("metrics.address", "")
}

// Load reads configuration from the YAML file at path, when path is not
// empty, and applies LINESCORE_* environment overrides on top of it.
// Nested keys use underscores: scorer.workers is LINESCORE_SCORER_WORKERS.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks every section and returns the first error found.
// The endpoint itself is checked later, once CLI flags have been applied.
func (c *AppConfig) Validate() error {
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	if err := c.Scorer.Validate(); err != nil {
		return err
	}
	return c.Retry.Validate()
}

// Validate checks the logger level and format.
func (l *LoggerConfig) Validate() error {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		return fmt.Errorf("logger.level: %w", err)
	}
	switch strings.ToLower(l.Format) {
	case logging.FormatText, logging.FormatJSON, "":
	default:
		return fmt.Errorf("logger.format: unsupported format '%s'", l.Format)
	}
	return nil
}

// Validate checks the engine settings.
func (s *ScorerConfig) Validate() error {
	if s.Workers <= 0 {
		return errors.New("scorer.workers: must be positive")
	}
	if s.MaxConcurrent <= 0 {
		return errors.New("scorer.max_concurrent: must be positive")
	}
	if s.TotalLines < 0 {
		return errors.New("scorer.total_lines: must not be negative")
	}
	switch scorer.Provider(s.Provider) {
	case scorer.ProviderHTTP, scorer.ProviderOpenAI:
	default:
		return fmt.Errorf("scorer.provider: unsupported provider '%s'", s.Provider)
	}
	switch scorer.Backend(s.Backend) {
	case scorer.BackendLocal, scorer.BackendProcess:
	default:
		return fmt.Errorf("scorer.backend: unsupported backend '%s'", s.Backend)
	}
	return nil
}

// Validate checks the retry settings.
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts: must be positive")
	}
	if r.InitialDelay < 0 {
		return errors.New("retry.initial_delay: must not be negative")
	}
	return nil
}

// LoggingOptions converts the logger section for logging.Setup
func (c *AppConfig) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Logger.Level,
		Format:     c.Logger.Format,
		File:       c.Logger.File,
		MaxSizeMB:  c.Logger.MaxSizeMB,
		MaxBackups: c.Logger.MaxBackups,
	}
}

// ToScorerConfig builds the engine config. A process backend still needs
// its worker command set by the caller.
func (c *AppConfig) ToScorerConfig() scorer.Config {
	cfg := scorer.NewDefaultConfig(c.Scorer.Endpoint).
		WithWorkers(c.Scorer.Workers).
		WithMaxConcurrent(c.Scorer.MaxConcurrent).
		WithTotalLines(c.Scorer.TotalLines).
		WithTimeout(c.Scorer.Timeout).
		WithRetryConfig(&scorer.RetryConfig{
			MaxAttempts:  c.Retry.MaxAttempts,
			InitialDelay: c.Retry.InitialDelay,
		}).
		WithMetrics(c.Metrics.Address != "")

	cfg.Backend = scorer.Backend(c.Scorer.Backend)
	if scorer.Provider(c.Scorer.Provider) == scorer.ProviderOpenAI {
		cfg = cfg.WithOpenAI(c.Scorer.OpenAIKey, c.Scorer.Model)
	}
	if c.Scorer.CircuitBreaker {
		cfg = cfg.WithCircuitBreaker()
	}
	return cfg
}
