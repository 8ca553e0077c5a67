package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/buildbot/internal/config"
	"git.home.luguber.info/inful/buildbot/internal/ledgerstore"
	"git.home.luguber.info/inful/buildbot/internal/logfields"
	"git.home.luguber.info/inful/buildbot/internal/metrics"
	"git.home.luguber.info/inful/buildbot/internal/parallel"
	"git.home.luguber.info/inful/buildbot/internal/pipeline"
	"git.home.luguber.info/inful/buildbot/internal/results"
	"git.home.luguber.info/inful/buildbot/internal/stage"
	"git.home.luguber.info/inful/buildbot/internal/stages"
	"git.home.luguber.info/inful/buildbot/internal/workspace"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Resume    bool     `help:"Skip stages that succeeded in the previous run"`
	Skip      []string `help:"Disable a stage option (repeatable)" placeholder:"OPTION"`
	Processes int      `short:"j" help:"Override parallel.processes for pool stages"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	r.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, err = RunPipeline(ctx, cfg, os.Stdout, g.Logger)
	return err
}

// apply layers the command-line overrides onto cfg.
func (r *RunCmd) apply(cfg *config.Config) {
	if r.Resume {
		cfg.Ledger.Resume = true
	}
	for _, name := range r.Skip {
		cfg.Options[name] = false
	}
	if r.Processes > 0 {
		cfg.Parallel.Processes = r.Processes
	}
}

// RunPipeline builds the configured stages, runs them and prints the stage
// report to out. Metrics are exported to the configured textfile after the run.
func RunPipeline(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) (*pipeline.Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := ledgerstore.NewSQLiteStore(cfg.Ledger.Path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("Failed to close ledger store", logfields.Error(cerr))
		}
	}()

	var (
		reg      *prom.Registry
		recorder metrics.Recorder = metrics.NoopRecorder{}
	)
	if cfg.Metrics.Enabled {
		reg = prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	ws := workspace.NewManager(cfg.Parallel.TempDir)
	if err := ws.Create(); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := ws.Cleanup(); cerr != nil {
			logger.Warn("Failed to clean up workspace", logfields.Error(cerr))
		}
	}()

	ledger := results.NewLedger()
	deps := stage.Deps{Ledger: ledger, Console: out, Logger: logger, Recorder: recorder}
	planned, err := stages.Build(cfg, deps,
		parallel.WithLogLevel(cfg.Logging.Level.SlogLevel()),
		parallel.WithTempDir(ws.Path()),
	)
	if err != nil {
		return nil, err
	}

	p := pipeline.New(cfg.Pipeline.Name, ledger,
		pipeline.WithStore(store),
		pipeline.WithResume(cfg.Ledger.Resume),
		pipeline.WithLockFile(cfg.Ledger.Path+".lock"),
		pipeline.WithRecorder(recorder),
		pipeline.WithLogger(logger),
	)
	for _, st := range planned {
		p.Add(st)
	}

	res, runErr := p.Run(ctx)
	if res != nil {
		_, _ = fmt.Fprintln(out)
		if err := results.WriteReport(out, res.Records); err != nil {
			logger.Warn("Failed to write stage report", logfields.Error(err))
		}
	}

	if reg != nil && cfg.Metrics.Textfile != "" {
		if err := metrics.WriteTextfile(reg, cfg.Metrics.Textfile); err != nil {
			logger.Warn("Failed to write metrics textfile", logfields.Path(cfg.Metrics.Textfile), logfields.Error(err))
		}
	}
	return res, runErr
}
