package build

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docgen/internal/artifacts"
	"git.home.luguber.info/inful/docgen/internal/config"
	"git.home.luguber.info/inful/docgen/internal/doxygen"
	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/git"
	"git.home.luguber.info/inful/docgen/internal/history"
	"git.home.luguber.info/inful/docgen/internal/logfields"
	"git.home.luguber.info/inful/docgen/internal/metrics"
	"git.home.luguber.info/inful/docgen/internal/notify"
	"git.home.luguber.info/inful/docgen/internal/retry"
)

// Environment variables exported to the generator.
const (
	EnvBuildID   = "DOCGEN_BUILD_ID"
	EnvGitCommit = "DOCGEN_GIT_COMMIT"
	EnvGitBranch = "DOCGEN_GIT_BRANCH"
)

// Runner executes a prepared invocation.
type Runner interface {
	Run(ctx context.Context, inv *doxygen.Invocation) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv *doxygen.Invocation) error

func (f RunnerFunc) Run(ctx context.Context, inv *doxygen.Invocation) error { return f(ctx, inv) }

// HistoryStore persists build records.
type HistoryStore interface {
	Append(ctx context.Context, r history.Record) error
}

// Publisher announces finished builds.
type Publisher interface {
	Publish(ctx context.Context, event notify.BuildEvent) error
}

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	runner     Runner
	provenance func(dir string) (git.Provenance, error)
	recorder   metrics.Recorder
	history    HistoryStore
	publisher  Publisher
	retry      retry.Policy
	newID      func() string
	now        func() time.Time
}

// NewBuildService creates a service that runs the real generator and has no
// metrics, history, or notifications attached.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		runner:     RunnerFunc(func(ctx context.Context, inv *doxygen.Invocation) error { return inv.Run(ctx) }),
		provenance: git.Head,
		recorder:   metrics.NoopRecorder{},
		retry:      retry.DefaultPolicy(),
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// WithRunner replaces the generator runner (for testing).
func (s *DefaultBuildService) WithRunner(r Runner) *DefaultBuildService {
	s.runner = r
	return s
}

// WithProvenance replaces the git provenance lookup.
func (s *DefaultBuildService) WithProvenance(f func(dir string) (git.Provenance, error)) *DefaultBuildService {
	s.provenance = f
	return s
}

// WithRecorder attaches a metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithHistory attaches a history store.
func (s *DefaultBuildService) WithHistory(h HistoryStore) *DefaultBuildService {
	s.history = h
	return s
}

// WithPublisher attaches a build event publisher.
func (s *DefaultBuildService) WithPublisher(p Publisher) *DefaultBuildService {
	s.publisher = p
	return s
}

// WithRetryPolicy sets the backoff for history and notification writes.
func (s *DefaultBuildService) WithRetryPolicy(p retry.Policy) *DefaultBuildService {
	s.retry = p
	return s
}

// Run executes one build. The returned error is the generator's error (or a
// setup error); the Report is non-nil whenever the generator was attempted.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*Report, error) {
	cfg := req.Config
	if cfg == nil {
		return nil, foundation.InternalError("build request without configuration").Build()
	}
	dir := req.Dir
	if dir == "" {
		dir = cfg.Dir
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = "cli"
	}

	report := &Report{
		ID:         s.newID(),
		Trigger:    trigger,
		Dir:        dir,
		Tool:       cfg.Doxygen.Tool,
		ConfigFile: cfg.Doxygen.ConfigFile,
		StartedAt:  s.now(),
	}
	log := slog.With(logfields.BuildID(report.ID))
	s.recorder.IncTrigger(trigger)

	if p, err := s.provenance(dir); err != nil {
		if errors.Is(err, git.ErrNotRepository) {
			log.Debug("Documentation directory is not in a git repository", logfields.Dir(dir))
		} else {
			log.Warn("Cannot read git provenance", logfields.Dir(dir), logfields.Error(err))
		}
	} else {
		report.Commit, report.Branch, report.Dirty = p.Commit, p.Branch, p.Dirty
	}

	env, err := config.LoadDotEnv(dir)
	if err != nil {
		return nil, err
	}
	for k, v := range cfg.Doxygen.Env {
		env[k] = v
	}
	env[EnvBuildID] = report.ID
	env[EnvGitCommit] = report.Commit
	env[EnvGitBranch] = report.Branch

	inv := doxygen.NewInvocation(dir)
	inv.Tool = report.Tool
	inv.ConfigFile = report.ConfigFile
	inv.Env = env

	log.Info("Starting documentation build",
		logfields.Dir(dir),
		logfields.Trigger(trigger),
		logfields.Commit(report.Commit),
		logfields.Branch(report.Branch))

	runErr := s.runner.Run(ctx, inv)
	report.Duration = s.now().Sub(report.StartedAt)
	report.Err = runErr
	report.ExitCode = doxygen.ExitCode(runErr)
	switch {
	case runErr == nil:
		report.Outcome = metrics.OutcomeSuccess
		report.Artifacts = s.summarize(log, dir, report.ConfigFile)
	case ctx.Err() != nil:
		report.Outcome = metrics.OutcomeCanceled
	default:
		report.Outcome = metrics.OutcomeFailure
	}

	s.recorder.ObserveBuildDuration(report.Duration)
	s.recorder.IncBuildOutcome(report.Outcome)
	s.recorder.SetLastBuild(report.StartedAt.Add(report.Duration))
	s.record(ctx, log, report)
	s.publish(ctx, log, report)

	attrs := []any{
		logfields.Outcome(string(report.Outcome)),
		logfields.DurationMS(float64(report.Duration.Milliseconds())),
	}
	if runErr != nil {
		log.Error("Documentation build failed", append(attrs, logfields.ExitCode(report.ExitCode), logfields.Error(runErr))...)
		return report, foundation.Logged(runErr)
	}
	if report.Artifacts.Present {
		attrs = append(attrs, slog.String("html", report.Artifacts.Dir), slog.Int("files", report.Artifacts.Files))
	}
	log.Info("Documentation build finished", attrs...)
	return report, nil
}

// summarize reads the Doxyfile to find the HTML output; any failure only
// costs the summary.
func (s *DefaultBuildService) summarize(log *slog.Logger, dir, configFile string) artifacts.Summary {
	path := configFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	doxy, err := doxygen.ReadDoxyfile(path)
	if err != nil {
		log.Debug("Cannot read Doxyfile for artifact summary", logfields.Path(path), logfields.Error(err))
		return artifacts.Summary{}
	}
	summary, err := artifacts.Summarize(doxy.HTMLDir(dir))
	if err != nil {
		log.Warn("Cannot summarize HTML output", logfields.Error(err))
	}
	return summary
}

func (s *DefaultBuildService) record(ctx context.Context, log *slog.Logger, r *Report) {
	if s.history == nil {
		return
	}
	// The build context may already be cancelled; the row should still land.
	ctx = context.WithoutCancel(ctx)
	rec := ToRecord(r)
	err := s.retry.Do(ctx, "history append", func(ctx context.Context) error {
		return s.history.Append(ctx, rec)
	})
	if err != nil {
		log.Warn("Cannot record build history", logfields.Error(err))
	}
}

func (s *DefaultBuildService) publish(ctx context.Context, log *slog.Logger, r *Report) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	event := ToEvent(r)
	err := s.retry.Do(ctx, "publish build event", func(ctx context.Context) error {
		return s.publisher.Publish(ctx, event)
	})
	if err != nil {
		log.Warn("Cannot publish build event", logfields.Error(err))
	}
}

// ToRecord projects a report onto a history row.
func ToRecord(r *Report) history.Record {
	rec := history.Record{
		BuildID:    r.ID,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration,
		Dir:        r.Dir,
		Tool:       r.Tool,
		ConfigFile: r.ConfigFile,
		Commit:     r.Commit,
		Branch:     r.Branch,
		Dirty:      r.Dirty,
		Outcome:    string(r.Outcome),
		ExitCode:   r.ExitCode,
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// ToEvent projects a report onto a notification payload.
func ToEvent(r *Report) notify.BuildEvent {
	ev := notify.BuildEvent{
		BuildID:    r.ID,
		Dir:        r.Dir,
		Tool:       r.Tool,
		ConfigFile: r.ConfigFile,
		Commit:     r.Commit,
		Branch:     r.Branch,
		Dirty:      r.Dirty,
		Outcome:    string(r.Outcome),
		ExitCode:   r.ExitCode,
		StartedAt:  r.StartedAt.UTC(),
		DurationMS: r.Duration.Milliseconds(),
		Title:      r.Artifacts.Title,
	}
	if r.Artifacts.Present {
		ev.HTMLDir = r.Artifacts.Dir
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	return ev
}
