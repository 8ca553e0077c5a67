package config

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/buildbot/internal/foundation/errors"
)

const (
	defaultPipelineName = "main"
	defaultLedgerPath   = ".buildbot/ledger.db"
	defaultPollInterval = time.Second
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
)

// Normalize canonicalizes enum-like fields, rejecting unknown stage types and backoff modes.
func (c *Config) Normalize() error {
	for i := range c.Pipeline.Stages {
		st := &c.Pipeline.Stages[i]
		typ, err := NormalizeStageType(string(st.Type))
		if err != nil {
			return errors.WrapError(err, errors.CategoryValidation, fmt.Sprintf("stage %q: invalid type", st.Name)).
				WithContext("stage", st.Name).
				Build()
		}
		st.Type = typ
	}

	mode, err := NormalizeRetryBackoff(string(c.Retry.Backoff))
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "invalid retry backoff").Build()
	}
	c.Retry.Backoff = mode

	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
	return nil
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "1"
	}
	if c.Pipeline.Name == "" {
		c.Pipeline.Name = defaultPipelineName
	}
	if c.Options == nil {
		c.Options = map[string]bool{}
	}
	if c.BuildFlags == nil {
		c.BuildFlags = map[string]bool{}
	}
	if c.Parallel.PollInterval == 0 {
		c.Parallel.PollInterval = defaultPollInterval
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = defaultLedgerPath
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = RetryBackoffLinear
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = defaultInitialDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = defaultMaxDelay
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatAuto
	}
}
