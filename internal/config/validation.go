package config

import (
	"fmt"
	"strings"
	"time"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// Validate checks a configuration after defaults have been applied.
func Validate(cfg *Config) error {
	var problems []string

	switch cfg.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		problems = append(problems, fmt.Sprintf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	switch cfg.Logging.Format {
	case LogFormatText, LogFormatJSON:
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unknown format %q", cfg.Logging.Format))
	}
	if strings.ContainsAny(cfg.Doxygen.ConfigFile, "\x00\n") {
		problems = append(problems, "doxygen.config_file: contains control characters")
	}
	for key := range cfg.Doxygen.Env {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			problems = append(problems, fmt.Sprintf("doxygen.env: invalid variable name %q", key))
		}
	}
	if d, err := time.ParseDuration(cfg.Watch.Debounce); err != nil || d <= 0 {
		problems = append(problems, fmt.Sprintf("watch.debounce: %q is not a positive duration", cfg.Watch.Debounce))
	}
	if s := cfg.Watch.Schedule; s != "" {
		if _, kind := ParseSchedule(s); kind == ScheduleInvalid {
			problems = append(problems, fmt.Sprintf("watch.schedule: %q is neither a duration nor a cron expression", s))
		}
	}
	if cfg.Notify.NATSURL != "" && strings.TrimSpace(cfg.Notify.Subject) == "" {
		problems = append(problems, "notify.subject: required when notify.nats_url is set")
	}

	if len(problems) == 0 {
		return nil
	}
	return foundation.ValidationError("invalid configuration: "+strings.Join(problems, "; ")).
		WithContext("path", cfg.Source).
		Build()
}

// ScheduleKind classifies a watch.schedule value.
type ScheduleKind int

const (
	ScheduleInvalid ScheduleKind = iota
	ScheduleInterval
	ScheduleCron
)

// ParseSchedule reports whether s is an interval (returned as a duration) or a
// cron expression. Cron expressions are only checked for field count here;
// the scheduler rejects malformed fields when the job is created.
func ParseSchedule(s string) (time.Duration, ScheduleKind) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, ScheduleInvalid
		}
		return d, ScheduleInterval
	}
	if strings.HasPrefix(s, "@") {
		return 0, ScheduleCron
	}
	if n := len(strings.Fields(s)); n == 5 {
		return 0, ScheduleCron
	}
	return 0, ScheduleInvalid
}
