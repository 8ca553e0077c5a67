package stage

import (
	"context"
	"errors"
	"log/slog"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/retry"
)

// RunWithRetry runs body as a stage and reruns it after a StepFailed error
// until policy.MaxRetries retries are used up. Each attempt after the first is
// a distinct stage named "<name> (attempt N)" and records its own outcome.
// Failures whose cause asks for user action are not retried. A resumed run
// jumps straight to the attempt that succeeded before.
func RunWithRetry(ctx context.Context, body Body, deps Deps, policy retry.Policy, opts ...Option) error {
	attempts := policy.MaxRetries + 1
	newAttempt := func(n int) *Stage {
		return New(body, deps, append(opts, withAttempt(n))...)
	}

	if deps.Ledger != nil {
		for n := 1; n <= attempts; n++ {
			st := newAttempt(n)
			if _, ok := deps.Ledger.PreviouslyCompleted(st.Name()); ok {
				return st.Run(ctx)
			}
		}
	}

	for n := 1; ; n++ {
		st := newAttempt(n)
		err := st.Run(ctx)
		if err == nil || !errors.Is(err, ErrStepFailed) {
			return err
		}
		if ferrors.GetRetryStrategy(err) == ferrors.RetryUserAction {
			st.deps.Logger.Warn("Stage failure needs user action; not retrying", logfields.Stage(st.Name()))
			return err
		}
		if n >= attempts {
			if policy.MaxRetries > 0 {
				st.deps.Recorder.IncStageRetryExhausted(newAttempt(1).Name())
			}
			return err
		}

		st.deps.Recorder.IncStageRetry(newAttempt(1).Name())
		st.deps.Logger.Warn("Retrying stage",
			logfields.Stage(st.Name()),
			logfields.Attempt(n+1),
			slog.Duration("delay", policy.Delay(n)))
		if werr := policy.Wait(ctx, n); werr != nil {
			return err
		}
	}
}
