package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/docgen/internal/build"
)

// BuildCmd implements the 'build' command, which is also what a bare
// `docgen` runs.
type BuildCmd struct {
	Dir      string `help:"Run in this directory instead of the binary's directory" type:"path"`
	Tool     string `help:"Generator executable (default: doxygen)"`
	Doxyfile string `help:"Generator configuration file (default: Doxyfile)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ws, err := loadWorkspace(g, root, b.Dir)
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("Invoke %s as script. Script dir: %s", ws.Location.Executable, ws.Dir))

	cfg := ws.Config
	if b.Tool != "" {
		cfg.Doxygen.Tool = b.Tool
	}
	if b.Doxyfile != "" {
		cfg.Doxygen.ConfigFile = b.Doxyfile
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cleanup := newBuildService(cfg, nil)
	defer cleanup()

	_, err = svc.Run(ctx, build.BuildRequest{Config: cfg, Dir: ws.Dir, Trigger: "cli"})
	return err
}
