package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/buildbot/internal/foundation/errors"
)

// DefaultPath is the configuration file looked up when no path is given.
const DefaultPath = "buildbot.yaml"

// Config represents the pipeline driver configuration.
//
// Options are run options and BuildFlags are per-build configuration flags;
// a stage bound to either is skipped when the entry is present and false.
type Config struct {
	Version    string          `yaml:"version"`
	Pipeline   PipelineConfig  `yaml:"pipeline"`
	Options    map[string]bool `yaml:"options,omitempty"`
	BuildFlags map[string]bool `yaml:"build,omitempty"`
	Parallel   ParallelConfig  `yaml:"parallel"`
	Ledger     LedgerConfig    `yaml:"ledger"`
	Retry      RetryConfig     `yaml:"retry"`
	Logging    LoggingConfig   `yaml:"logging"`
	Metrics    MetricsConfig   `yaml:"metrics"`
}

// PipelineConfig describes the ordered stages of one pipeline and settings shared by all of them.
type PipelineConfig struct {
	Name           string        `yaml:"name"`
	ManifestBranch string        `yaml:"manifest_branch,omitempty"`
	Stages         []StageConfig `yaml:"stages"`
}

// StageConfig describes a single configured stage.
type StageConfig struct {
	Name       string    `yaml:"name"`
	Type       StageType `yaml:"type"`
	Command    string    `yaml:"command,omitempty"`  // command (type command) or template (type pool)
	Commands   []string  `yaml:"commands,omitempty"` // one step per command (type parallel)
	Inputs     []string  `yaml:"inputs,omitempty"`   // queue entries (type pool)
	Processes  int       `yaml:"processes,omitempty"`
	Option     string    `yaml:"option,omitempty"`
	ConfigFlag string    `yaml:"config_flag,omitempty"`
	Forgive    bool      `yaml:"forgive,omitempty"`
	Retries    int       `yaml:"retries,omitempty"`
}

// ParallelConfig tunes worker processes.
type ParallelConfig struct {
	Processes    int           `yaml:"processes,omitempty"` // 0 means one per CPU
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	TempDir      string        `yaml:"temp_dir,omitempty"`
}

// LedgerConfig controls results persistence between runs.
type LedgerConfig struct {
	Path   string `yaml:"path"`
	Resume bool   `yaml:"resume"`
}

// RetryConfig holds the backoff applied between stage retries.
type RetryConfig struct {
	Backoff      RetryBackoffMode `yaml:"backoff"`
	InitialDelay time.Duration    `yaml:"initial_delay"`
	MaxDelay     time.Duration    `yaml:"max_delay"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig controls Prometheus export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile,omitempty"`
}

// OptionEnabled reports whether option is set and its value (ok is false when absent).
func (c *Config) OptionEnabled(name string) (enabled, ok bool) {
	enabled, ok = c.Options[name]
	return enabled, ok
}

// BuildFlag reports whether flag is set and its value (ok is false when absent).
func (c *Config) BuildFlag(name string) (enabled, ok bool) {
	enabled, ok = c.BuildFlags[name]
	return enabled, ok
}

// Load loads, defaults and validates configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", configPath)).
			WithContext("path", configPath).
			Build()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads .env and .env.local when present. Existing process
// environment variables are never overwritten.
func loadEnvFiles() {
	for _, path := range []string{".env", ".env.local"} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			slog.Warn("Failed to load environment file", "path", path, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", path)
	}
}
