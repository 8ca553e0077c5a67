package stages

import (
	"context"

	"git.home.luguber.info/inful/buildbot/internal/parallel"
	"git.home.luguber.info/inful/buildbot/internal/stage"
)

// CommandTask is the registered worker task that runs one command as a stage
// inside a worker process.
const CommandTask = "buildbot.command"

// commandRequest is the argument of CommandTask.
type commandRequest struct {
	Name           string `json:"name"`
	Command        string `json:"command"`
	ManifestBranch string `json:"manifest_branch,omitempty"`
	Dir            string `json:"dir,omitempty"`
}

func init() {
	parallel.Register(CommandTask, runCommandTask)
}

// runCommandTask records the command's outcome in the worker ledger, from
// where it is merged into the parent ledger.
func runCommandTask(ctx context.Context, tc *parallel.TaskContext) error {
	var req commandRequest
	if err := tc.Arg(0, &req); err != nil {
		return err
	}
	body := &CommandStage{
		Command:        req.Command,
		ManifestBranch: req.ManifestBranch,
		Dir:            req.Dir,
		Output:         tc.Output,
	}
	deps := stage.Deps{Ledger: tc.Ledger, Console: tc.Output, Logger: tc.Logger}
	return stage.New(body, deps, stage.WithName(req.Name)).Run(ctx)
}
