package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docgen/cmd/docgen/commands"
	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("docgen"),
		kong.Description("Run doxygen next to this binary and report the result."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	global := &commands.Global{Stdout: os.Stdout, Stderr: os.Stderr}
	if err := ctx.Run(global, &cli); err != nil {
		foundation.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
