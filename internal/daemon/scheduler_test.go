package daemon

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

func TestNewSchedulerRejectsInvalidSchedule(t *testing.T) {
	for _, schedule := range []string{"", "soon", "-5m", "* * *"} {
		_, err := NewScheduler(schedule, func() {})
		require.Error(t, err, schedule)
		assert.True(t, foundation.HasCategory(err, foundation.CategoryValidation), schedule)
	}
}

func TestNewSchedulerRejectsMalformedCron(t *testing.T) {
	_, err := NewScheduler("99 * * * *", func() {})
	require.Error(t, err)
}

func TestSchedulerAcceptsCron(t *testing.T) {
	s, err := NewScheduler("0 3 * * *", func() {})
	require.NoError(t, err)
	assert.NotEmpty(t, s.JobID())
	require.NoError(t, s.Stop())
}

func TestSchedulerRunsIntervalJob(t *testing.T) {
	var runs atomic.Int32
	s, err := NewScheduler("50ms", func() { runs.Add(1) })
	require.NoError(t, err)
	s.Start()
	t.Cleanup(func() { _ = s.Stop() })

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}
