package parallel

import (
	"io"
	"log/slog"
	"os"
	"time"

	"git.home.luguber.info/inful/buildbot/internal/metrics"
	"git.home.luguber.info/inful/buildbot/internal/results"
)

// DefaultPollInterval is how often a waiting parent forwards new worker output.
const DefaultPollInterval = time.Second

// Option configures RunParallelSteps and pools.
type Option func(*options)

type options struct {
	output       io.Writer
	ledger       *results.Ledger
	pollInterval time.Duration
	executable   string
	tempDir      string
	logger       *slog.Logger
	logLevel     slog.Level
	recorder     metrics.Recorder
}

func newOptions(opts []Option) *options {
	o := &options{
		output:       os.Stdout,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
		logLevel:     slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.ledger == nil {
		o.ledger = results.NewLedger()
	}
	o.recorder = metrics.OrNoop(o.recorder)
	return o
}

// WithOutput sets where worker output is replayed (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithLedger sets the ledger that worker records are merged into.
func WithLedger(l *results.Ledger) Option {
	return func(o *options) { o.ledger = l }
}

// WithPollInterval sets how often new worker output is forwarded while waiting.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithExecutable overrides the binary started for workers (default os.Executable).
func WithExecutable(path string) Option {
	return func(o *options) { o.executable = path }
}

// WithTempDir sets the directory for worker output files.
func WithTempDir(dir string) Option {
	return func(o *options) { o.tempDir = dir }
}

// WithLogger sets the parent-side logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLogLevel sets the level of the worker-side logger.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.logLevel = level }
}

// WithRecorder sets the metrics recorder for worker lifetimes.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

func (o *options) resolveExecutable() (string, error) {
	if o.executable != "" {
		return o.executable, nil
	}
	return os.Executable()
}
