package stages

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/buildbot/internal/config"
	"git.home.luguber.info/inful/buildbot/internal/parallel"
	"git.home.luguber.info/inful/buildbot/internal/results"
	"git.home.luguber.info/inful/buildbot/internal/retry"
	"git.home.luguber.info/inful/buildbot/internal/stage"
)

// Planned is a configured stage ready to run, with its retry policy.
type Planned struct {
	name   string
	body   stage.Body
	deps   stage.Deps
	opts   []stage.Option
	policy retry.Policy
}

func (p *Planned) Name() string { return p.name }

// Body exposes the stage body, mainly for inspection in tests.
func (p *Planned) Body() stage.Body { return p.body }

// Run runs the stage, with retries when the stage configures them.
func (p *Planned) Run(ctx context.Context) error {
	if p.policy.MaxRetries > 0 {
		return stage.RunWithRetry(ctx, p.body, p.deps, p.policy, p.opts...)
	}
	return stage.New(p.body, p.deps, p.opts...).Run(ctx)
}

// Build turns the configured stages into runnable stages sharing deps.
// popts apply to every worker started by parallel and pool stages.
func Build(cfg *config.Config, deps stage.Deps, popts ...parallel.Option) ([]*Planned, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	deps.Config = cfg
	if deps.Ledger == nil {
		deps.Ledger = results.NewLedger()
	}

	planned := make([]*Planned, 0, len(cfg.Pipeline.Stages))
	for _, sc := range cfg.Pipeline.Stages {
		body, err := newBody(cfg, sc, deps, popts)
		if err != nil {
			return nil, err
		}

		opts := []stage.Option{stage.WithName(sc.Name)}
		if sc.Option != "" {
			opts = append(opts, stage.WithOption(sc.Option))
		}
		if sc.ConfigFlag != "" {
			opts = append(opts, stage.WithConfigFlag(sc.ConfigFlag))
		}

		planned = append(planned, &Planned{
			name:   sc.Name,
			body:   body,
			deps:   deps,
			opts:   opts,
			policy: retry.FromConfig(cfg.Retry, sc.Retries),
		})
	}
	return planned, nil
}

func newBody(cfg *config.Config, sc config.StageConfig, deps stage.Deps, popts []parallel.Option) (stage.Body, error) {
	branch := cfg.Pipeline.ManifestBranch
	workerOpts := append([]parallel.Option{
		parallel.WithLedger(deps.Ledger),
		parallel.WithPollInterval(cfg.Parallel.PollInterval),
		parallel.WithTempDir(cfg.Parallel.TempDir),
		parallel.WithLogger(deps.Logger),
		parallel.WithRecorder(deps.Recorder),
	}, popts...)
	if deps.Console != nil {
		workerOpts = append(workerOpts, parallel.WithOutput(deps.Console))
	}

	switch sc.Type {
	case config.StageTypeCommand, "":
		return &CommandStage{
			Command:        sc.Command,
			ManifestBranch: branch,
			Forgive:        sc.Forgive,
			Output:         deps.Console,
		}, nil
	case config.StageTypeParallel:
		return &ParallelCommandStage{
			Name:           sc.Name,
			Commands:       sc.Commands,
			ManifestBranch: branch,
			Forgive:        sc.Forgive,
			Options:        workerOpts,
		}, nil
	case config.StageTypePool:
		processes := sc.Processes
		if processes == 0 {
			processes = cfg.Parallel.Processes
		}
		return &PoolCommandStage{
			Name:           sc.Name,
			Template:       sc.Command,
			Inputs:         sc.Inputs,
			Processes:      processes,
			ManifestBranch: branch,
			Forgive:        sc.Forgive,
			Options:        workerOpts,
		}, nil
	default:
		return nil, fmt.Errorf("stage %s: unknown type %q", sc.Name, sc.Type)
	}
}
