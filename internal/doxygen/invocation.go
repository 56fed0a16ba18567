package doxygen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
	"git.home.luguber.info/inful/docgen/internal/logfields"
)

const (
	// DefaultTool is the generator executable looked up on PATH.
	DefaultTool = "doxygen"
	// DefaultConfigFile is the configuration file passed as the only argument.
	DefaultConfigFile = "Doxyfile"
)

// ErrToolNotFound is matched (errors.Is) by failures to locate the generator executable.
var ErrToolNotFound = errors.New("documentation tool not found")

// lookPath is swapped out in tests.
var lookPath = exec.LookPath

// Invocation describes one run of the documentation generator.
type Invocation struct {
	Tool       string
	ConfigFile string
	Dir        string
	// Env entries are appended to the inherited process environment; later
	// entries win.
	Env    map[string]string
	Stdout io.Writer
	Stderr io.Writer
}

// NewInvocation returns an invocation of `doxygen Doxyfile` in dir that streams
// the generator's output to the process's stdout and stderr.
func NewInvocation(dir string) *Invocation {
	return &Invocation{
		Tool:       DefaultTool,
		ConfigFile: DefaultConfigFile,
		Dir:        dir,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// Args returns the command line that Run executes.
func (inv *Invocation) Args() []string {
	return []string{inv.Tool, inv.ConfigFile}
}

// Run starts the generator and waits for it to finish.
func (inv *Invocation) Run(ctx context.Context) error {
	tool := inv.Tool
	if tool == "" {
		tool = DefaultTool
	}
	configFile := inv.ConfigFile
	if configFile == "" {
		configFile = DefaultConfigFile
	}

	path, err := lookPath(inv.toolPath(tool))
	if err != nil {
		return foundation.ToolError(fmt.Sprintf("%s executable not found", tool)).
			WithCause(fmt.Errorf("%w: %w", ErrToolNotFound, err)).
			WithContext(logfields.KeyTool, tool).
			WithContext(logfields.KeyDir, inv.Dir).
			Build()
	}

	cmd := exec.CommandContext(ctx, path, configFile)
	cmd.Dir = inv.Dir
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.envList()...)
	}

	slog.Info("Running documentation generator",
		logfields.Tool(path),
		logfields.ConfigFile(configFile),
		logfields.Dir(inv.Dir))

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return foundation.ToolError(fmt.Sprintf("cannot start %s", tool)).
			WithCause(err).
			WithContext(logfields.KeyTool, tool).
			WithContext(logfields.KeyDir, inv.Dir).
			Build()
	}
	err = cmd.Wait()
	elapsed := time.Since(start)
	if err != nil {
		code := ExitCode(err)
		slog.Debug("Documentation generator failed",
			logfields.Tool(tool),
			logfields.ExitCode(code),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		return foundation.ToolError(fmt.Sprintf("%s %s failed", tool, configFile)).
			WithCause(err).
			WithContext(logfields.KeyTool, tool).
			WithContext(logfields.KeyConfigFile, configFile).
			WithContext(logfields.KeyDir, inv.Dir).
			WithContext(foundation.ContextKeyExitCode, code).
			Build()
	}

	slog.Debug("Documentation generator finished",
		logfields.Tool(tool),
		logfields.DurationMS(float64(elapsed.Milliseconds())))
	return nil
}

// toolPath anchors a relative tool path such as ./tools/doxygen at Dir.
// Bare names are left for PATH lookup.
func (inv *Invocation) toolPath(tool string) string {
	if inv.Dir == "" || filepath.IsAbs(tool) || !strings.ContainsAny(tool, `/`+string(filepath.Separator)) {
		return tool
	}
	return filepath.Join(inv.Dir, tool)
}

func (inv *Invocation) envList() []string {
	keys := make([]string, 0, len(inv.Env))
	for k := range inv.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+inv.Env[k])
	}
	return env
}

// ExitCode reports the generator's exit status carried by err: 0 for nil, the
// process status when it ran, and -1 when it never ran or was killed by a signal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	if classified, ok := foundation.AsClassified(err); ok {
		if code, ok := classified.Context().GetInt(foundation.ContextKeyExitCode); ok {
			return code
		}
	}
	return -1
}
