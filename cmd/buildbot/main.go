package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/buildbot/cmd/buildbot/commands"
	"git.home.luguber.info/inful/buildbot/internal/parallel"
	"git.home.luguber.info/inful/buildbot/internal/version"
)

func main() {
	// Worker processes are re-executions of this binary and never reach kong.
	parallel.ServeIfWorker()

	cli := &commands.CLI{}
	global := &commands.Global{}
	ctx := kong.Parse(cli,
		kong.Name("buildbot"),
		kong.Description("Run CI pipeline stages with a persistent result ledger."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	if err := ctx.Run(global, cli); err != nil {
		cli.ErrorAdapter().HandleError(err)
	}
}
