package parallel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"git.home.luguber.info/inful/buildbot/internal/results"
)

const poolLogEnv = "BUILDBOT_TEST_POOL_LOG"

func TestMain(m *testing.M) {
	ServeIfWorker()
	os.Exit(m.Run())
}

func init() {
	Register("test.record", func(_ context.Context, tc *TaskContext) error {
		var name string
		if err := tc.Arg(0, &name); err != nil {
			return err
		}
		tc.Ledger.Record(results.StageRecord{Name: name, Outcome: results.OutcomeSuccess, Duration: time.Millisecond})
		fmt.Fprintf(tc.Output, "ran %s\n", name)
		return nil
	})
	Register("test.print", func(_ context.Context, tc *TaskContext) error {
		var text string
		var delayMS int
		if err := tc.Arg(0, &text); err != nil {
			return err
		}
		if tc.NArgs() > 1 {
			if err := tc.Arg(1, &delayMS); err != nil {
				return err
			}
		}
		time.Sleep(time.Duration(delayMS) * time.Millisecond)
		fmt.Fprintln(tc.Output, text)
		return nil
	})
	Register("test.fail", func(_ context.Context, tc *TaskContext) error {
		var msg string
		if err := tc.Arg(0, &msg); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "about to fail")
		return errors.New(msg)
	})
	Register("test.panic", func(context.Context, *TaskContext) error {
		panic("worker exploded")
	})
	Register("test.exit", func(context.Context, *TaskContext) error {
		os.Exit(3)
		return nil
	})
	Register("test.pool.item", func(_ context.Context, tc *TaskContext) error {
		var item string
		if err := tc.Arg(0, &item); err != nil {
			return err
		}
		if err := appendLine(os.Getenv(poolLogEnv), "item "+item); err != nil {
			return err
		}
		tc.Ledger.Record(results.StageRecord{Name: "item:" + item, Outcome: results.OutcomeSuccess})
		if item == "bad" {
			return errors.New("cannot process bad item")
		}
		return nil
	})
	Register("test.pool.pid", func(_ context.Context, tc *TaskContext) error {
		var item string
		if err := tc.Arg(0, &item); err != nil {
			return err
		}
		if err := appendLine(os.Getenv(poolLogEnv), fmt.Sprintf("pid %d %s", os.Getpid(), item)); err != nil {
			return err
		}
		tc.Ledger.Record(results.StageRecord{Name: "item:" + item, Outcome: results.OutcomeSuccess})
		if item == "bad" {
			return errors.New("cannot process bad item")
		}
		return nil
	})
	Register("test.pool.exit", func(context.Context, *TaskContext) error {
		return appendLine(os.Getenv(poolLogEnv), fmt.Sprintf("exit %d", os.Getpid()))
	})
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}
