// Package config loads docgen's optional docgen.yaml and .env files.
//
// Everything here is optional: with no files present, Default returns a
// configuration that runs `doxygen Doxyfile` and nothing else.
package config

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultFileName is looked up in the program directory when --config is not given.
	DefaultFileName = "docgen.yaml"
	// CurrentVersion is the only accepted config version.
	CurrentVersion = "1"

	defaultHistoryPath = ".docgen/history.db"
	defaultSubject     = "docgen.builds"
	defaultDebounce    = 2 * time.Second
)

// Config is the docgen.yaml document.
type Config struct {
	Version string        `yaml:"version"`
	Doxygen DoxygenConfig `yaml:"doxygen"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	History HistoryConfig `yaml:"history,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
	Watch   WatchConfig   `yaml:"watch,omitempty"`

	// Dir is the directory relative paths resolve against (the program directory).
	Dir string `yaml:"-"`
	// Source is the file the configuration was read from; empty for defaults.
	Source string `yaml:"-"`
}

// DoxygenConfig describes the generator invocation.
type DoxygenConfig struct {
	Tool       string            `yaml:"tool,omitempty"`
	ConfigFile string            `yaml:"config_file,omitempty"`
	Env        map[string]string `yaml:"env,omitempty"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level,omitempty"`
	Format LogFormat `yaml:"format,omitempty"`
}

// HistoryConfig controls the SQLite build history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// NotifyConfig controls NATS build notifications. An empty URL disables them.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig controls `docgen watch`.
type WatchConfig struct {
	// Paths to watch in addition to the Doxyfile inputs, relative to Dir.
	Paths []string `yaml:"paths,omitempty"`
	// Debounce is a Go duration string.
	Debounce string `yaml:"debounce,omitempty"`
	// Schedule is either a Go duration ("1h") or a five-field cron expression.
	Schedule    string `yaml:"schedule,omitempty"`
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// Default returns the configuration used when no docgen.yaml exists.
func Default(dir string) *Config {
	cfg := &Config{Version: CurrentVersion, Dir: dir}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Doxygen.Tool == "" {
		cfg.Doxygen.Tool = "doxygen"
	}
	if cfg.Doxygen.ConfigFile == "" {
		cfg.Doxygen.ConfigFile = "Doxyfile"
	}
	cfg.Logging.Level = LogLevel(strings.ToLower(strings.TrimSpace(string(cfg.Logging.Level))))
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	cfg.Logging.Format = LogFormat(strings.ToLower(strings.TrimSpace(string(cfg.Logging.Format))))
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
	if cfg.History.Path == "" {
		cfg.History.Path = defaultHistoryPath
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = defaultSubject
	}
	if cfg.Watch.Debounce == "" {
		cfg.Watch.Debounce = defaultDebounce.String()
	}
}

// HistoryPath returns the history database path resolved against Dir.
func (c *Config) HistoryPath() string {
	return c.resolve(c.History.Path)
}

// WatchPaths returns the extra watch paths resolved against Dir.
func (c *Config) WatchPaths() []string {
	out := make([]string, 0, len(c.Watch.Paths))
	for _, p := range c.Watch.Paths {
		out = append(out, c.resolve(p))
	}
	return out
}

// DebounceDuration returns the parsed watch debounce, falling back to the default.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return defaultDebounce
	}
	return d
}

func (c *Config) resolve(p string) string {
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
