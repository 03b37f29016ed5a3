package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rgm/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32 // fail this many times before succeeding
	calls    atomic.Int32
	block    chan struct{}
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }

func (j *fakeJob) Run(ctx context.Context) error {
	n := j.calls.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if n <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(logger.NewNop()).WithRetry(2, time.Millisecond)
}

func TestScheduler_AddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&fakeJob{name: "b", schedule: "0 0 3 * * *"}))
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@every 1h"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "a", schedule: "@every 1h"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "bad", schedule: "not a cron"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Error(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
}

func TestScheduler_RetryThenSucceed(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempts)

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.NotNil(t, stats.LastSuccess)
}

func TestScheduler_FailAfterRetries(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "broken", schedule: "@daily", failures: 100}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJobSync("broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "transient", result.Error)

	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	assert.Len(t, history.GetFailedResults(), 1)
	assert.Equal(t, 0.0, history.GetSuccessRate())

	_, err = s.RunJobSync("missing")
	assert.Error(t, err)
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "slow", schedule: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("slow"))
	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)

	second, err := s.RunJobSync("slow")
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	close(job.block)
	require.Eventually(t, func() bool {
		h, _ := s.GetJobHistory("slow")
		return len(h.Results) == 1
	}, time.Second, time.Millisecond)
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: "long", schedule: "@daily", block: make(chan struct{})}
	require.NoError(t, s.AddJob(job))
	s.Start()

	done := make(chan JobResult, 1)
	go func() {
		r, _ := s.RunJobSync("long")
		done <- r
	}()
	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Stop()
	select {
	case r := <-done:
		assert.False(t, r.Success)
		assert.Equal(t, 1, r.Attempts)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
}

func TestJobHistory_KeepsLast100(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < 120; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, 100)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)
}
