package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docgen/internal/build"
	"git.home.luguber.info/inful/docgen/internal/config"
	"git.home.luguber.info/inful/docgen/internal/doxygen"
	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// Trigger sources.
const (
	TriggerStartup  = "startup"
	TriggerFSNotify = "fsnotify"
	TriggerSchedule = "schedule"
)

const shutdownTimeout = 10 * time.Second

// Daemon serializes builds requested by the startup run, the source watcher
// and the scheduler. A request made while a build runs is held in a single
// slot, so any number of them yields exactly one follow-up build.
type Daemon struct {
	cfg      *config.Config
	dir      string
	svc      build.BuildService
	registry *prom.Registry

	triggers chan string
	workers  workerGroup
	running  atomic.Bool
	building atomic.Bool

	mu         sync.RWMutex
	startedAt  time.Time
	lastReport *build.Report
	builds     int
	addr       string
	ready      chan struct{}
}

// New creates a daemon building dir with svc. A nil registry disables
// /metrics even when cfg.Watch.MetricsAddr is set.
func New(cfg *config.Config, dir string, svc build.BuildService, registry *prom.Registry) (*Daemon, error) {
	if cfg == nil {
		return nil, foundation.ValidationError("configuration is required").Build()
	}
	if svc == nil {
		return nil, foundation.ValidationError("build service is required").Build()
	}
	if dir == "" {
		dir = cfg.Dir
	}
	return &Daemon{
		cfg:      cfg,
		dir:      dir,
		svc:      svc,
		registry: registry,
		triggers: make(chan string, 1),
		ready:    make(chan struct{}),
	}, nil
}

// Trigger requests a build. It returns false when a request is already
// pending and this one was folded into it.
func (d *Daemon) Trigger(source string) bool {
	select {
	case d.triggers <- source:
		slog.Debug("Build requested", logfields.Trigger(source))
		return true
	default:
		slog.Debug("Build already pending; request coalesced", logfields.Trigger(source))
		return false
	}
}

// Ready is closed once Run has started every component.
func (d *Daemon) Ready() <-chan struct{} { return d.ready }

// Addr returns the metrics listener address, or "" when there is none.
func (d *Daemon) Addr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.addr
}

// LastReport returns the most recent build report, or nil before the first
// build finishes.
func (d *Daemon) LastReport() *build.Report {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastReport
}

// Run blocks until ctx is done. Build failures are logged and do not end it.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return foundation.DaemonError("daemon is already running").Build()
	}
	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()

	var server *http.Server
	if d.cfg.Watch.MetricsAddr != "" {
		srv, err := d.startHTTP(d.cfg.Watch.MetricsAddr)
		if err != nil {
			return err
		}
		server = srv
	}

	roots, ignore := d.watchPlan()
	watcher, err := NewSourceWatcher(roots, ignore, d.cfg.DebounceDuration(), func(path string) {
		slog.Info("Sources changed", logfields.Path(path))
		d.Trigger(TriggerFSNotify)
	})
	if err != nil {
		d.stopHTTP(server)
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		_ = watcher.Close()
		d.stopHTTP(server)
		return err
	}

	var scheduler *Scheduler
	if d.cfg.Watch.Schedule != "" {
		scheduler, err = NewScheduler(d.cfg.Watch.Schedule, func() { d.Trigger(TriggerSchedule) })
		if err != nil {
			_ = watcher.Close()
			d.stopHTTP(server)
			return err
		}
		scheduler.Start()
	}

	d.workers.Go(func() { d.buildLoop(ctx) })
	d.Trigger(TriggerStartup)
	close(d.ready)
	slog.Info("Watch daemon started", logfields.Dir(d.dir))

	<-ctx.Done()
	slog.Info("Stopping watch daemon")

	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			slog.Warn("Scheduler shutdown failed", logfields.Error(err))
		}
	}
	if err := watcher.Close(); err != nil {
		slog.Warn("Watcher shutdown failed", logfields.Error(err))
	}
	d.stopHTTP(server)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.workers.StopAndWait(stopCtx); err != nil {
		return foundation.WrapError(err, foundation.CategoryDaemon, "build worker did not stop").Build()
	}
	return nil
}

func (d *Daemon) buildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case source := <-d.triggers:
			if ctx.Err() != nil {
				return
			}
			d.runBuild(ctx, source)
		}
	}
}

func (d *Daemon) runBuild(ctx context.Context, source string) {
	d.building.Store(true)
	defer d.building.Store(false)

	report, err := d.svc.Run(ctx, build.BuildRequest{Config: d.cfg, Dir: d.dir, Trigger: source})
	if err != nil {
		slog.Debug("Watch build failed; waiting for the next change", logfields.Trigger(source), logfields.Error(err))
	}
	d.mu.Lock()
	d.builds++
	if report != nil {
		d.lastReport = report
	}
	d.mu.Unlock()
}

// watchPlan derives the watched roots and ignored output paths from the
// Doxyfile. With INPUT set only the inputs and the Doxyfile with its includes
// are watched; otherwise, or without a readable Doxyfile, the build directory
// is.
func (d *Daemon) watchPlan() (roots, ignore []string) {
	configFile := d.cfg.Doxygen.ConfigFile
	if !filepath.IsAbs(configFile) {
		configFile = filepath.Join(d.dir, configFile)
	}
	doxy, err := doxygen.ReadDoxyfile(configFile)
	switch {
	case err != nil:
		slog.Warn("Cannot read Doxyfile; watching the build directory", logfields.Path(configFile), logfields.Error(err))
		roots = append(roots, d.dir)
	case doxy.HasInput():
		roots = append(roots, doxy.Inputs(d.dir)...)
		roots = append(roots, doxy.Files()...)
		ignore = doxy.OutputPaths(d.dir)
	default:
		roots = append(roots, d.dir)
		ignore = doxy.OutputPaths(d.dir)
	}
	roots = append(roots, d.cfg.WatchPaths()...)
	if hist := d.cfg.HistoryPath(); hist != ":memory:" {
		ignore = append(ignore, hist, hist+"-journal", hist+"-wal", hist+"-shm")
	}
	return dedupe(roots), ignore
}

func dedupe(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		p = filepath.Clean(p)
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (d *Daemon) startHTTP(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, foundation.WrapError(err, foundation.CategoryNetwork, "cannot listen for metrics").
			WithContext("addr", addr).
			Build()
	}
	srv := &http.Server{
		Handler:           d.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.mu.Lock()
	d.addr = ln.Addr().String()
	d.mu.Unlock()
	slog.Info("Serving metrics", slog.String("addr", d.Addr()))
	d.workers.Go(func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	})
	return srv, nil
}

func (d *Daemon) stopHTTP(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Warn("Metrics server shutdown failed", logfields.Error(err))
	}
}
