package config

import (
	"bytes"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

const initHeader = `# docgen configuration. Every section is optional.
# Environment variables (${VAR}) are expanded before parsing.
`

// Example returns the configuration written by Init.
func Example() *Config {
	return &Config{
		Version: CurrentVersion,
		Doxygen: DoxygenConfig{
			Tool:       "doxygen",
			ConfigFile: "Doxyfile",
			Env:        map[string]string{"HAVE_DOT": "YES"},
		},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		History: HistoryConfig{Enabled: true, Path: defaultHistoryPath},
		Notify:  NotifyConfig{Subject: defaultSubject},
		Watch: WatchConfig{
			Paths:       []string{"../include", "../src"},
			Debounce:    defaultDebounce.String(),
			Schedule:    "0 3 * * *",
			MetricsAddr: "127.0.0.1:9464",
		},
	}
}

// Init writes an example configuration file to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return foundation.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	}

	var buf bytes.Buffer
	buf.WriteString(initHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Example()); err != nil {
		return foundation.WrapError(err, foundation.CategoryInternal, "cannot encode example configuration").Build()
	}
	if err := enc.Close(); err != nil {
		return foundation.WrapError(err, foundation.CategoryInternal, "cannot encode example configuration").Build()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return foundation.WrapError(err, foundation.CategoryFileSystem, "cannot create configuration directory").
			WithContext("path", path).
			Build()
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return foundation.WrapError(err, foundation.CategoryFileSystem, "cannot write configuration file").
			WithContext("path", path).
			Build()
	}
	return nil
}
