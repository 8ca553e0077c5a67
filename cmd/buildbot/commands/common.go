// Package commands implements the buildbot CLI subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/buildbot/internal/config"
	ferrors "git.home.luguber.info/inful/buildbot/internal/foundation/errors"
)

// Global carries state shared by subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"buildbot.yaml"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogLevel  string           `name:"log-level" help:"Override logging.level (debug|info|warn|error)"`
	LogFormat string           `name:"log-format" help:"Override logging.format (auto|json|text)"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run    RunCmd    `cmd:"" help:"Run the configured pipeline"`
	Ledger LedgerCmd `cmd:"" help:"Show persisted runs and their stage records"`
	Init   InitCmd   `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; setup logging once from the flags.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = c.setupLogging(os.Stderr, config.LoggingConfig{})
	return nil
}

// ErrorAdapter returns the adapter that maps errors onto exit codes.
func (c *CLI) ErrorAdapter() *ferrors.CLIErrorAdapter {
	return ferrors.NewCLIErrorAdapter(c.Verbose, slog.Default())
}

// setupLogging installs the default slog logger. Flags take precedence over
// the configured values; auto format picks text on a terminal and JSON otherwise.
func (c *CLI) setupLogging(w io.Writer, lc config.LoggingConfig) *slog.Logger {
	level := c.level(lc)
	format := config.NormalizeLogFormat(string(lc.Format))
	if c.LogFormat != "" {
		format = config.NormalizeLogFormat(c.LogFormat)
	}
	if format == config.LogFormatAuto {
		format = config.LogFormatJSON
		if f, ok := w.(interface{ Fd() uintptr }); ok && isatty.IsTerminal(f.Fd()) {
			format = config.LogFormatText
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func (c *CLI) level(lc config.LoggingConfig) slog.Level {
	switch {
	case c.Verbose:
		return slog.LevelDebug
	case c.LogLevel != "":
		return config.LogLevel(c.LogLevel).SlogLevel()
	case lc.Level != "":
		return lc.Level.SlogLevel()
	default:
		return slog.LevelInfo
	}
}

// loadConfig reads the configuration and reapplies logging with its settings.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	g.Logger = c.setupLogging(os.Stderr, cfg.Logging)
	return cfg, nil
}
