// Package stages provides the concrete stage bodies a configured pipeline is
// built from: single shell commands, fan-out of several commands across
// worker processes, and a command template applied to a queue of inputs.
package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/google/shlex"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/results"
	"git.home.luguber.info/inful/buildbot/internal/stage"
)

// ManifestBranchEnv carries the pipeline's manifest branch to every command.
const ManifestBranchEnv = "BUILDBOT_MANIFEST_BRANCH"

// CommandStage runs one command line, split with shell quoting rules but
// without a shell.
type CommandStage struct {
	Command        string
	ManifestBranch string
	Dir            string
	// Forgive records failures as forgiven instead of failing the pipeline.
	Forgive bool
	Output  io.Writer
}

func (c *CommandStage) PerformStage(ctx context.Context) error {
	args, err := shlex.Split(c.Command)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "parse command").
			WithContext("command", c.Command).
			Build()
	}
	if len(args) == 0 {
		return ferrors.ValidationError("empty command").Build()
	}

	out := c.Output
	if out == nil {
		out = os.Stdout
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = os.Environ()
	if c.ManifestBranch != "" {
		cmd.Env = append(cmd.Env, ManifestBranchEnv+"="+c.ManifestBranch)
	}
	cmd.Stdout = out
	cmd.Stderr = out

	_, _ = fmt.Fprintf(out, "$ %s\n", c.Command)
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ferrors.WrapError(ctxErr, ferrors.CategoryInterrupt, "command interrupted").
				WithContext("command", c.Command).
				Build()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ferrors.WrapError(err, ferrors.CategoryCommand, fmt.Sprintf("command %q failed", c.Command)).
				WithContext("exit_code", exitErr.ExitCode()).
				Build()
		}
		return ferrors.WrapError(err, ferrors.CategoryCommand, fmt.Sprintf("command %q could not run", c.Command)).Build()
	}
	return nil
}

func (c *CommandStage) ClassifyError(err error) results.Outcome {
	if c.Forgive {
		return results.OutcomeForgiven
	}
	return stage.DefaultClassify(err)
}
