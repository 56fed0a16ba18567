package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/docgen/internal/artifacts"
	"git.home.luguber.info/inful/docgen/internal/config"
	"git.home.luguber.info/inful/docgen/internal/metrics"
)

// BuildService is the canonical interface for executing documentation builds.
// The CLI and the watch daemon are thin wrappers over it.
type BuildService interface {
	Run(ctx context.Context, req BuildRequest) (*Report, error)
}

// BuildRequest contains the inputs for one build.
type BuildRequest struct {
	// Config is the loaded configuration; Config.Dir is used when Dir is empty.
	Config *config.Config
	// Dir is the generator's working directory.
	Dir string
	// Trigger records what asked for the build (cli, fsnotify, schedule).
	Trigger string
}

// Report describes a finished build.
type Report struct {
	ID         string
	Trigger    string
	Dir        string
	Tool       string
	ConfigFile string
	Commit     string
	Branch     string
	Dirty      bool
	StartedAt  time.Time
	Duration   time.Duration
	Outcome    metrics.Outcome
	ExitCode   int
	Err        error
	Artifacts  artifacts.Summary
}

// Succeeded reports whether the generator exited 0.
func (r *Report) Succeeded() bool {
	return r != nil && r.Outcome == metrics.OutcomeSuccess
}
