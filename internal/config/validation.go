package config

import (
	"fmt"

	"git.home.luguber.info/inful/buildbot/internal/foundation/errors"
)

// Validate checks a normalized, defaulted configuration.
func Validate(cfg *Config) error {
	v := &validator{cfg: cfg}
	for _, check := range []func() error{v.validateStages, v.validateParallel, v.validateRetry} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type validator struct {
	cfg *Config
}

func (v *validator) fail(msg string) error {
	return errors.ValidationError(msg).Build()
}

func (v *validator) validateStages() error {
	seen := make(map[string]bool, len(v.cfg.Pipeline.Stages))
	for i, st := range v.cfg.Pipeline.Stages {
		if st.Name == "" {
			return v.fail(fmt.Sprintf("stage %d: name cannot be empty", i))
		}
		if seen[st.Name] {
			return v.fail(fmt.Sprintf("duplicate stage name: %s", st.Name))
		}
		seen[st.Name] = true

		switch st.Type {
		case StageTypeCommand, StageTypePool:
			if st.Command == "" {
				return v.fail(fmt.Sprintf("stage %s: command cannot be empty", st.Name))
			}
		case StageTypeParallel:
			if len(st.Commands) == 0 {
				return v.fail(fmt.Sprintf("stage %s: commands cannot be empty", st.Name))
			}
			for _, c := range st.Commands {
				if c == "" {
					return v.fail(fmt.Sprintf("stage %s: command cannot be empty", st.Name))
				}
			}
		default:
			return v.fail(fmt.Sprintf("stage %s: unknown type %q", st.Name, st.Type))
		}

		if st.Processes < 0 {
			return v.fail(fmt.Sprintf("stage %s: processes cannot be negative", st.Name))
		}
		if st.Retries < 0 {
			return v.fail(fmt.Sprintf("stage %s: retries cannot be negative", st.Name))
		}
	}
	return nil
}

func (v *validator) validateParallel() error {
	if v.cfg.Parallel.Processes < 0 {
		return v.fail("parallel.processes cannot be negative")
	}
	if v.cfg.Parallel.PollInterval <= 0 {
		return v.fail("parallel.poll_interval must be positive")
	}
	return nil
}

func (v *validator) validateRetry() error {
	r := v.cfg.Retry
	if r.InitialDelay <= 0 || r.MaxDelay <= 0 {
		return v.fail("retry delays must be positive")
	}
	if r.InitialDelay > r.MaxDelay {
		return v.fail("retry.initial_delay cannot exceed retry.max_delay")
	}
	return nil
}
