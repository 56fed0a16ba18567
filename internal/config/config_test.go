package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadWithoutFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "doxygen", cfg.Doxygen.Tool)
	assert.Equal(t, "Doxyfile", cfg.Doxygen.ConfigFile)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.False(t, cfg.History.Enabled)
	assert.Empty(t, cfg.Notify.NATSURL)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, filepath.Join(dir, ".docgen", "history.db"), cfg.HistoryPath())
	assert.Equal(t, 2*time.Second, cfg.DebounceDuration())
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, foundation.HasCategory(err, foundation.CategoryConfig))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DOCGEN_TEST_NATS", "nats://127.0.0.1:4222")
	writeFile(t, filepath.Join(dir, DefaultFileName), `version: "1"
doxygen:
  tool: /opt/doxygen/bin/doxygen
  config_file: api.doxy
  env:
    PROJECT_BRIEF: "Audio over IP"
logging:
  level: DEBUG
  format: json
history:
  enabled: true
  path: /var/lib/docgen/history.db
notify:
  nats_url: ${DOCGEN_TEST_NATS}
watch:
  paths: [../include, ../src]
  debounce: 500ms
  schedule: 1h
  metrics_addr: 127.0.0.1:9464
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "/opt/doxygen/bin/doxygen", cfg.Doxygen.Tool)
	assert.Equal(t, "api.doxy", cfg.Doxygen.ConfigFile)
	assert.Equal(t, map[string]string{"PROJECT_BRIEF": "Audio over IP"}, cfg.Doxygen.Env)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/var/lib/docgen/history.db", cfg.HistoryPath())
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Notify.NATSURL)
	assert.Equal(t, "docgen.builds", cfg.Notify.Subject)
	assert.Equal(t, []string{filepath.Join(dir, "..", "include"), filepath.Join(dir, "..", "src")}, cfg.WatchPaths())
	assert.Equal(t, 500*time.Millisecond, cfg.DebounceDuration())
	assert.Equal(t, filepath.Join(dir, DefaultFileName), cfg.Source)
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultFileName), "version: \"2.0\"\n")

	_, err := Load(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported configuration version")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultFileName), "version: [\n")

	_, err := Load(dir, "")
	require.Error(t, err)
	assert.True(t, foundation.HasCategory(err, foundation.CategoryConfig))
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default(t.TempDir())
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"
	cfg.Watch.Debounce = "soon"
	cfg.Watch.Schedule = "every tuesday"
	cfg.Notify.NATSURL = "nats://localhost:4222"
	cfg.Notify.Subject = " "
	cfg.Doxygen.Env = map[string]string{"A=B": "x"}

	err := Validate(cfg)
	require.Error(t, err)
	assert.True(t, foundation.HasCategory(err, foundation.CategoryValidation))
	for _, want := range []string{"logging.level", "logging.format", "watch.debounce", "watch.schedule", "notify.subject", "doxygen.env"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestParseSchedule(t *testing.T) {
	cases := []struct {
		in   string
		kind ScheduleKind
		d    time.Duration
	}{
		{"1h", ScheduleInterval, time.Hour},
		{"90s", ScheduleInterval, 90 * time.Second},
		{"0 3 * * *", ScheduleCron, 0},
		{"@daily", ScheduleCron, 0},
		{"-5m", ScheduleInvalid, 0},
		{"* * *", ScheduleInvalid, 0},
	}
	for _, tc := range cases {
		d, kind := ParseSchedule(tc.in)
		assert.Equal(t, tc.kind, kind, tc.in)
		assert.Equal(t, tc.d, d, tc.in)
	}
}

func TestInitWritesLoadableExample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	require.NoError(t, Init(path, false))
	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "0 3 * * *", cfg.Watch.Schedule)

	err = Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, Init(path, true))
}
