package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/buildbot/internal/foundation/errors"
)

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).
			UserAction().
			Build()
	}

	example := Example()
	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create config directory").Build()
		}
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}

// Example returns the configuration written by Init.
func Example() Config {
	return Config{
		Version: "1",
		Pipeline: PipelineConfig{
			Name:           "main",
			ManifestBranch: "main",
			Stages: []StageConfig{
				{Name: "Sync", Type: StageTypeCommand, Command: "git fetch --all", Option: "sync"},
				{Name: "Build", Type: StageTypeCommand, Command: "go build ./...", Retries: 1},
				{
					Name:     "UnitTests",
					Type:     StageTypeParallel,
					Commands: []string{"go test ./internal/...", "go vet ./..."},
				},
				{
					Name:       "Archive",
					Type:       StageTypePool,
					Command:    "tar czf out/{}.tgz {}",
					Inputs:     []string{"docs", "configs"},
					Processes:  2,
					ConfigFlag: "archive",
					Forgive:    true,
				},
			},
		},
		Options:    map[string]bool{"sync": true},
		BuildFlags: map[string]bool{"archive": true},
		Parallel:   ParallelConfig{PollInterval: defaultPollInterval},
		Ledger:     LedgerConfig{Path: defaultLedgerPath},
		Retry: RetryConfig{
			Backoff:      RetryBackoffLinear,
			InitialDelay: defaultInitialDelay,
			MaxDelay:     defaultMaxDelay,
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatAuto},
		Metrics: MetricsConfig{Textfile: ".buildbot/metrics.prom"},
	}
}
