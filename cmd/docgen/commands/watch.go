package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/docgen/internal/daemon"
	"git.home.luguber.info/inful/docgen/internal/logfields"
	"git.home.luguber.info/inful/docgen/internal/metrics"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Dir         string `help:"Run in this directory instead of the binary's directory" type:"path"`
	Schedule    string `help:"Rebuild interval or cron expression (overrides watch.schedule)"`
	MetricsAddr string `name:"metrics-addr" help:"Serve /metrics and /health on this address (overrides watch.metrics_addr)"`
}

func (w *WatchCmd) Run(g *Global, root *CLI) error {
	ws, err := loadWorkspace(g, root, w.Dir)
	if err != nil {
		return err
	}
	cfg := ws.Config
	if w.Schedule != "" {
		cfg.Watch.Schedule = w.Schedule
	}
	if w.MetricsAddr != "" {
		cfg.Watch.MetricsAddr = w.MetricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	svc, cleanup := newBuildService(cfg, metrics.NewPrometheusRecorder(reg))
	defer cleanup()

	d, err := daemon.New(cfg, ws.Dir, svc, reg)
	if err != nil {
		return err
	}
	slog.Info("Starting watch mode", logfields.Dir(ws.Dir), slog.String("schedule", cfg.Watch.Schedule))
	if err := d.Run(ctx); err != nil {
		return err
	}
	slog.Info("Watch mode stopped")
	return nil
}
