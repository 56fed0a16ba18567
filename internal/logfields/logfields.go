package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyTool       = "tool"
	KeyConfigFile = "config_file"
	KeyDir        = "dir"
	KeyExecutable = "executable"
	KeyExitCode   = "exit_code"
	KeyOutcome    = "outcome"
	KeyDurationMS = "duration_ms"
	KeyCommit     = "commit"
	KeyBranch     = "branch"
	KeyPath       = "path"
	KeyTrigger    = "trigger"
	KeySubject    = "subject"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Tool(name string) slog.Attr      { return slog.String(KeyTool, name) }
func ConfigFile(f string) slog.Attr   { return slog.String(KeyConfigFile, f) }
func Dir(d string) slog.Attr          { return slog.String(KeyDir, d) }
func Executable(p string) slog.Attr   { return slog.String(KeyExecutable, p) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func Branch(b string) slog.Attr       { return slog.String(KeyBranch, b) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Trigger(t string) slog.Attr      { return slog.String(KeyTrigger, t) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
