package build

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docgen/internal/config"
	"git.home.luguber.info/inful/docgen/internal/doxygen"
	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/git"
	"git.home.luguber.info/inful/docgen/internal/history"
	"git.home.luguber.info/inful/docgen/internal/metrics"
	"git.home.luguber.info/inful/docgen/internal/notify"
	"git.home.luguber.info/inful/docgen/internal/retry"
)

type fakeRecorder struct {
	mu        sync.Mutex
	durations []time.Duration
	outcomes  []metrics.Outcome
	triggers  []string
	last      time.Time
}

func (f *fakeRecorder) ObserveBuildDuration(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durations = append(f.durations, d)
}

func (f *fakeRecorder) IncBuildOutcome(o metrics.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
}

func (f *fakeRecorder) SetLastBuild(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = t
}

func (f *fakeRecorder) IncTrigger(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, t)
}

type fakeHistory struct {
	records []history.Record
	calls   int
	// failures is how many leading calls fail with err; negative fails all.
	failures int
	err      error
}

func (f *fakeHistory) Append(ctx context.Context, r history.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return f.err
	}
	f.records = append(f.records, r)
	return nil
}

type fakePublisher struct {
	events []notify.BuildEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e notify.BuildEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func fixedProvenance(p git.Provenance) func(string) (git.Provenance, error) {
	return func(string) (git.Provenance, error) { return p, nil }
}

func newTestService(runner Runner) *DefaultBuildService {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	svc := NewBuildService().
		WithRunner(runner).
		WithProvenance(fixedProvenance(git.Provenance{Commit: "0123456789abcdef", Branch: "main"})).
		WithRetryPolicy(retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, 2))
	svc.newID = func() string { return "build-1" }
	svc.now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 1500 * time.Millisecond)
	}
	return svc
}

func TestRunSuccess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Doxyfile"), []byte("PROJECT_NAME = Demo\n"), 0o600))

	var got *doxygen.Invocation
	runner := RunnerFunc(func(_ context.Context, inv *doxygen.Invocation) error {
		got = inv
		require.NoError(t, os.MkdirAll(filepath.Join(inv.Dir, "html"), 0o750))
		return os.WriteFile(filepath.Join(inv.Dir, "html", "index.html"),
			[]byte("<html><head><title>Demo: Main Page</title></head></html>"), 0o600)
	})

	rec := &fakeRecorder{}
	hist := &fakeHistory{}
	pub := &fakePublisher{}
	svc := newTestService(runner).WithRecorder(rec).WithHistory(hist).WithPublisher(pub)

	report, err := svc.Run(t.Context(), BuildRequest{Config: config.Default(dir)})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, dir, got.Dir)
	assert.Equal(t, []string{"doxygen", "Doxyfile"}, got.Args())
	assert.Equal(t, "build-1", got.Env[EnvBuildID])
	assert.Equal(t, "0123456789abcdef", got.Env[EnvGitCommit])
	assert.Equal(t, "main", got.Env[EnvGitBranch])

	assert.True(t, report.Succeeded())
	assert.Equal(t, "cli", report.Trigger)
	assert.Equal(t, 0, report.ExitCode)
	assert.Equal(t, 1500*time.Millisecond, report.Duration)
	assert.True(t, report.Artifacts.Present)
	assert.Equal(t, 1, report.Artifacts.Files)
	assert.Equal(t, "Demo: Main Page", report.Artifacts.Title)

	assert.Equal(t, []string{"cli"}, rec.triggers)
	assert.Equal(t, []metrics.Outcome{metrics.OutcomeSuccess}, rec.outcomes)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, rec.durations)
	assert.Equal(t, report.StartedAt.Add(report.Duration), rec.last)

	require.Len(t, hist.records, 1)
	assert.Equal(t, "build-1", hist.records[0].BuildID)
	assert.Equal(t, "success", hist.records[0].Outcome)
	assert.Empty(t, hist.records[0].Error)

	require.Len(t, pub.events, 1)
	assert.Equal(t, filepath.Join(dir, "html"), pub.events[0].HTMLDir)
	assert.Equal(t, "Demo: Main Page", pub.events[0].Title)
	assert.Equal(t, int64(1500), pub.events[0].DurationMS)
}

func TestRunFailurePropagatesGeneratorError(t *testing.T) {
	dir := t.TempDir()
	toolErr := foundation.ToolError("doxygen Doxyfile failed").
		WithContext(foundation.ContextKeyExitCode, 3).
		Build()
	rec := &fakeRecorder{}
	hist := &fakeHistory{}
	pub := &fakePublisher{}
	svc := newTestService(RunnerFunc(func(context.Context, *doxygen.Invocation) error { return toolErr })).
		WithRecorder(rec).WithHistory(hist).WithPublisher(pub)

	report, err := svc.Run(t.Context(), BuildRequest{Config: config.Default(dir), Trigger: "schedule"})
	require.Error(t, err)
	assert.ErrorIs(t, err, toolErr)
	assert.True(t, foundation.IsLogged(err))

	require.NotNil(t, report)
	assert.False(t, report.Succeeded())
	assert.Equal(t, metrics.OutcomeFailure, report.Outcome)
	assert.Equal(t, 3, report.ExitCode)
	assert.False(t, report.Artifacts.Present)

	assert.Equal(t, []metrics.Outcome{metrics.OutcomeFailure}, rec.outcomes)
	require.Len(t, hist.records, 1)
	assert.Equal(t, "failure", hist.records[0].Outcome)
	assert.Equal(t, 3, hist.records[0].ExitCode)
	assert.Contains(t, hist.records[0].Error, "doxygen Doxyfile failed")
	require.Len(t, pub.events, 1)
	assert.Equal(t, "failure", pub.events[0].Outcome)
}

func TestRunCanceledStillRecordsHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	hist := &fakeHistory{}
	svc := newTestService(RunnerFunc(func(context.Context, *doxygen.Invocation) error {
		cancel()
		return context.Canceled
	})).WithHistory(hist)

	report, err := svc.Run(ctx, BuildRequest{Config: config.Default(t.TempDir())})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, metrics.OutcomeCanceled, report.Outcome)
	require.Len(t, hist.records, 1)
	assert.Equal(t, "canceled", hist.records[0].Outcome)
}

func TestRunBookkeepingFailuresDoNotFailBuild(t *testing.T) {
	hist := &fakeHistory{failures: -1, err: errors.New("disk full")}
	svc := newTestService(RunnerFunc(func(context.Context, *doxygen.Invocation) error { return nil })).
		WithHistory(hist).
		WithPublisher(&fakePublisher{err: errors.New("no servers")})

	report, err := svc.Run(t.Context(), BuildRequest{Config: config.Default(t.TempDir())})
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	assert.Equal(t, 3, hist.calls)
	assert.Empty(t, hist.records)
}

func TestRunRetriesBusyHistory(t *testing.T) {
	hist := &fakeHistory{failures: 1, err: errors.New("database is locked")}
	svc := newTestService(RunnerFunc(func(context.Context, *doxygen.Invocation) error { return nil })).
		WithHistory(hist)

	_, err := svc.Run(t.Context(), BuildRequest{Config: config.Default(t.TempDir())})
	require.NoError(t, err)
	assert.Equal(t, 2, hist.calls)
	assert.Len(t, hist.records, 1)
}

func TestRunOutsideRepository(t *testing.T) {
	var got *doxygen.Invocation
	svc := newTestService(RunnerFunc(func(_ context.Context, inv *doxygen.Invocation) error {
		got = inv
		return nil
	})).WithProvenance(func(string) (git.Provenance, error) { return git.Provenance{}, git.ErrNotRepository })

	report, err := svc.Run(t.Context(), BuildRequest{Config: config.Default(t.TempDir())})
	require.NoError(t, err)
	assert.Empty(t, report.Commit)
	assert.Empty(t, report.Branch)
	assert.Empty(t, got.Env[EnvGitCommit])
}

func TestRunEnvironmentLayers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("DOCGEN_TEST_FROM_DOTENV=dotenv\nDOCGEN_TEST_OVERRIDDEN=dotenv\nDOCGEN_TEST_PROCESS=dotenv\n"), 0o600))
	t.Setenv("DOCGEN_TEST_PROCESS", "process")

	cfg := config.Default(dir)
	cfg.Doxygen.Env = map[string]string{"DOCGEN_TEST_OVERRIDDEN": "config", EnvBuildID: "spoofed"}

	var got *doxygen.Invocation
	svc := newTestService(RunnerFunc(func(_ context.Context, inv *doxygen.Invocation) error {
		got = inv
		return nil
	}))
	_, err := svc.Run(t.Context(), BuildRequest{Config: cfg})
	require.NoError(t, err)

	assert.Equal(t, "dotenv", got.Env["DOCGEN_TEST_FROM_DOTENV"])
	assert.Equal(t, "config", got.Env["DOCGEN_TEST_OVERRIDDEN"])
	assert.NotContains(t, got.Env, "DOCGEN_TEST_PROCESS")
	assert.Equal(t, "build-1", got.Env[EnvBuildID])
}

func TestRunCustomToolAndDir(t *testing.T) {
	cfgDir := t.TempDir()
	workDir := t.TempDir()
	cfg := config.Default(cfgDir)
	cfg.Doxygen.Tool = "/opt/doxygen/bin/doxygen"
	cfg.Doxygen.ConfigFile = "docs/Doxyfile"

	var got *doxygen.Invocation
	svc := newTestService(RunnerFunc(func(_ context.Context, inv *doxygen.Invocation) error {
		got = inv
		return nil
	}))
	report, err := svc.Run(t.Context(), BuildRequest{Config: cfg, Dir: workDir})
	require.NoError(t, err)
	assert.Equal(t, workDir, got.Dir)
	assert.Equal(t, []string{"/opt/doxygen/bin/doxygen", "docs/Doxyfile"}, got.Args())
	assert.Equal(t, workDir, report.Dir)
}

func TestRunRequiresConfig(t *testing.T) {
	svc := newTestService(RunnerFunc(func(context.Context, *doxygen.Invocation) error {
		t.Fatal("runner must not be called")
		return nil
	}))
	report, err := svc.Run(t.Context(), BuildRequest{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, foundation.HasCategory(err, foundation.CategoryInternal))
}

func TestRunWithRealGenerator(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake generator is a POSIX shell script")
	}
	bin := t.TempDir()
	script := "#!/bin/sh\nprintf '%s' \"$DOCGEN_BUILD_ID\" > build-id.txt\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "doxygen"), []byte(script), 0o755))
	sh, err := exec.LookPath("sh")
	require.NoError(t, err)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+filepath.Dir(sh))

	dir := t.TempDir()
	svc := NewBuildService().WithProvenance(func(string) (git.Provenance, error) { return git.Provenance{}, git.ErrNotRepository })
	svc.newID = func() string { return "real-run" }

	report, err := svc.Run(t.Context(), BuildRequest{Config: config.Default(dir)})
	require.NoError(t, err)
	assert.True(t, report.Succeeded())
	data, err := os.ReadFile(filepath.Join(dir, "build-id.txt"))
	require.NoError(t, err)
	assert.Equal(t, "real-run", string(data))
}
