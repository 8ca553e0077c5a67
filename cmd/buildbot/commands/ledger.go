package commands

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbot/internal/ledgerstore"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

// LedgerCmd implements the 'ledger' command.
type LedgerCmd struct {
	RunID string `name:"run" help:"Show the stage records of one run" placeholder:"ID"`
	Limit int    `help:"Number of runs to list" default:"20"`
}

func (l *LedgerCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	store, err := ledgerstore.NewSQLiteStore(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return ShowLedger(context.Background(), store, os.Stdout, l.RunID, l.Limit)
}

// ShowLedger prints the records of runID, or the most recent runs when runID is empty.
func ShowLedger(ctx context.Context, store ledgerstore.Store, out io.Writer, runID string, limit int) error {
	if runID != "" {
		recs, err := store.RunRecords(ctx, runID)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return ferrors.ValidationError("unknown run " + runID).Build()
		}
		return results.WriteReport(out, recs)
	}

	runs, err := store.Runs(ctx, limit)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Run", "Pipeline", "Outcome", "Started", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID,
			r.Pipeline,
			r.Outcome,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		})
	}
	t.Render()
	return nil
}
