package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) RefreshReports(_ context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestRunOnceCallsRefresher(t *testing.T) {
	r := &countingRefresher{}
	job := NewReportRefresher(r, nil)

	job.RunOnce()

	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	r := &countingRefresher{err: errors.New("boom")}
	job := NewReportRefresher(r, nil)

	assert.NotPanics(t, job.RunOnce)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	job := NewReportRefresher(&countingRefresher{}, nil)

	err := job.Start("not a cron spec")
	require.Error(t, err)
}

func TestScheduledRefreshRuns(t *testing.T) {
	r := &countingRefresher{}
	job := NewReportRefresher(r, nil)

	require.NoError(t, job.Start("* * * * * *"))
	t.Cleanup(job.Stop)

	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestUpdateScheduleReplacesAndPauses(t *testing.T) {
	r := &countingRefresher{}
	job := NewReportRefresher(r, nil)
	t.Cleanup(job.Stop)

	require.NoError(t, job.UpdateSchedule("0 0 3 * * *"))
	assert.True(t, job.Scheduled())

	require.Error(t, job.UpdateSchedule("every tuesday"))
	assert.True(t, job.Scheduled(), "an invalid spec keeps the current job")

	require.NoError(t, job.UpdateSchedule(""))
	assert.False(t, job.Scheduled())

	require.NoError(t, job.UpdateSchedule("* * * * * *"))
	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}
