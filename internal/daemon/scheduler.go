package daemon

import (
	"log/slog"
	"strings"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/docgen/internal/config"
	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// Scheduler wraps a gocron scheduler holding the single rebuild job.
type Scheduler struct {
	scheduler gocron.Scheduler
	jobID     string
}

// NewScheduler creates a scheduler that calls task on schedule, which is
// either a Go duration or a cron expression.
func NewScheduler(schedule string, task func()) (*Scheduler, error) {
	var def gocron.JobDefinition
	d, kind := config.ParseSchedule(schedule)
	switch kind {
	case config.ScheduleInterval:
		def = gocron.DurationJob(d)
	case config.ScheduleCron:
		def = gocron.CronJob(strings.TrimSpace(schedule), false)
	default:
		return nil, foundation.ValidationError("invalid watch schedule").
			WithContext("schedule", schedule).
			Build()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, foundation.WrapError(err, foundation.CategoryDaemon, "failed to create scheduler").Build()
	}
	job, err := s.NewJob(def,
		gocron.NewTask(task),
		gocron.WithName("scheduled-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, foundation.WrapError(err, foundation.CategoryValidation, "invalid watch schedule").
			WithContext("schedule", schedule).
			Build()
	}
	return &Scheduler{scheduler: s, jobID: job.ID().String()}, nil
}

// JobID returns the gocron ID of the rebuild job.
func (s *Scheduler) JobID() string { return s.jobID }

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", slog.String("job_id", s.jobID))
	s.scheduler.Start()
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
