package stages

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/buildbot/internal/parallel"
	"git.home.luguber.info/inful/buildbot/internal/results"
	"git.home.luguber.info/inful/buildbot/internal/stage"
)

// ParallelCommandStage runs every command in its own worker process. Each
// command is recorded as a stage named "<Name> #<n>".
type ParallelCommandStage struct {
	Name           string
	Commands       []string
	ManifestBranch string
	Dir            string
	Forgive        bool
	Options        []parallel.Option
}

func (p *ParallelCommandStage) PerformStage(ctx context.Context) error {
	steps := make([]parallel.Step, 0, len(p.Commands))
	for i, command := range p.Commands {
		st, err := parallel.NewStep(CommandTask, commandRequest{
			Name:           fmt.Sprintf("%s #%d", p.Name, i+1),
			Command:        command,
			ManifestBranch: p.ManifestBranch,
			Dir:            p.Dir,
		})
		if err != nil {
			return err
		}
		steps = append(steps, st)
	}
	return parallel.RunParallelSteps(ctx, steps, p.Options...)
}

func (p *ParallelCommandStage) ClassifyError(err error) results.Outcome {
	if p.Forgive {
		return results.OutcomeForgiven
	}
	return stage.DefaultClassify(err)
}

// InputPlaceholder is replaced by the queue entry in a pool command template.
const InputPlaceholder = "{}"

// PoolCommandStage applies a command template to every input on a pool of
// worker processes. Each input is recorded as a stage named "<Name>[<input>]".
type PoolCommandStage struct {
	Name           string
	Template       string
	Inputs         []string
	Processes      int
	ManifestBranch string
	Dir            string
	Forgive        bool
	Options        []parallel.Option
}

func (p *PoolCommandStage) PerformStage(ctx context.Context) error {
	inputs := make([][]any, len(p.Inputs))
	for i, in := range p.Inputs {
		inputs[i] = []any{commandRequest{
			Name:           fmt.Sprintf("%s[%s]", p.Name, in),
			Command:        strings.ReplaceAll(p.Template, InputPlaceholder, in),
			ManifestBranch: p.ManifestBranch,
			Dir:            p.Dir,
		}}
	}
	return parallel.RunTasksInProcessPool(ctx, CommandTask, inputs, p.Processes, p.Options...)
}

func (p *PoolCommandStage) ClassifyError(err error) results.Outcome {
	if p.Forgive {
		return results.OutcomeForgiven
	}
	return stage.DefaultClassify(err)
}
