// Package commands implements the docgen subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docgen/internal/build"
	"git.home.luguber.info/inful/docgen/internal/config"
	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/history"
	"git.home.luguber.info/inful/docgen/internal/logfields"
	"git.home.luguber.info/inful/docgen/internal/metrics"
	"git.home.luguber.info/inful/docgen/internal/notify"
	"git.home.luguber.info/inful/docgen/internal/selfpath"
)

// Global is shared state handed to every command.
type Global struct {
	// Stdout receives user-facing command output.
	Stdout io.Writer
	// Stderr receives log output once the configuration is loaded.
	Stderr io.Writer
	// Locate resolves the running binary; nil means selfpath.Locate.
	Locate func() (selfpath.Location, error)
}

func (g *Global) locate() (selfpath.Location, error) {
	if g.Locate != nil {
		return g.Locate()
	}
	return selfpath.Locate()
}

func (g *Global) stdout() io.Writer {
	if g.Stdout != nil {
		return g.Stdout
	}
	return os.Stdout
}

func (g *Global) stderr() io.Writer {
	if g.Stderr != nil {
		return g.Stderr
	}
	return os.Stderr
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default: docgen.yaml next to the binary)" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" default:"withargs" help:"Run doxygen Doxyfile in the binary's directory (default)"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild when sources change or on a schedule"`
	History HistoryCmd `cmd:"" help:"Show recent builds"`
	Init    InitCmd    `cmd:"" help:"Write an example docgen.yaml next to the binary"`
}

// AfterApply runs after flag parsing; sets up logging before any config is read.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// workspace is the resolved program location, build directory and config.
type workspace struct {
	Location selfpath.Location
	Dir      string
	Config   *config.Config
}

// loadWorkspace locates the binary, applies a --dir override, loads the
// configuration and reconfigures logging from it.
func loadWorkspace(g *Global, root *CLI, dirOverride string) (*workspace, error) {
	loc, err := g.locate()
	if err != nil {
		return nil, err
	}
	dir := loc.Dir
	if dirOverride != "" {
		abs, err := filepath.Abs(dirOverride)
		if err != nil {
			return nil, foundation.WrapError(err, foundation.CategoryValidation, "cannot resolve --dir").Build()
		}
		dir = abs
	}
	cfg, err := config.Load(dir, root.Config)
	if err != nil {
		return nil, err
	}
	configureLogging(g.stderr(), cfg, root.Verbose)
	if cfg.Source != "" {
		slog.Debug("Loaded configuration", logfields.Path(cfg.Source))
	}
	return &workspace{Location: loc, Dir: dir, Config: cfg}, nil
}

// configureLogging applies logging.level and logging.format. -v always wins.
func configureLogging(w io.Writer, cfg *config.Config, verbose bool) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case config.LogLevelDebug:
		level = slog.LevelDebug
	case config.LogLevelWarn:
		level = slog.LevelWarn
	case config.LogLevelError:
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// newBuildService wires the optional history store, NATS publisher and
// metrics recorder. Bookkeeping that cannot be set up is logged and skipped;
// it never prevents a build. The returned cleanup is always non-nil.
func newBuildService(cfg *config.Config, recorder metrics.Recorder) (*build.DefaultBuildService, func()) {
	svc := build.NewBuildService().WithRecorder(recorder)
	var closers []func() error

	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			slog.Warn("Build history disabled", logfields.Path(cfg.HistoryPath()), logfields.Error(err))
		} else {
			svc.WithHistory(store)
			closers = append(closers, store.Close)
		}
	}
	if cfg.Notify.NATSURL != "" {
		pub, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			slog.Warn("Build notifications disabled", logfields.Error(err))
		} else {
			svc.WithPublisher(pub)
			closers = append(closers, pub.Close)
		}
	}

	return svc, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("Cleanup failed", logfields.Error(err))
			}
		}
	}
}
