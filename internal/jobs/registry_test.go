package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/agent"
	"github.com/v0xg/cuagent/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type runnerFunc func(ctx context.Context, prompt string) (agent.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, prompt string) (agent.Outcome, error) {
	return f(ctx, prompt)
}

func finishWith(out agent.Outcome, err error) Runner {
	return runnerFunc(func(ctx context.Context, prompt string) (agent.Outcome, error) {
		return out, err
	})
}

// blockUntilCancel runs until its context is cancelled
var blockUntilCancel = runnerFunc(func(ctx context.Context, prompt string) (agent.Outcome, error) {
	<-ctx.Done()
	return agent.Outcome{}, ctx.Err()
})

func newRegistry(t *testing.T, runner Runner) *Registry {
	t.Helper()
	r := NewRegistry(runner, nil, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, r.Shutdown(ctx))
	})
	return r
}

func waitFor(t *testing.T, r *Registry, id string) Job {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := r.Wait(ctx, id)
	require.NoError(t, err)
	return job
}

func TestStart_ReturnsImmediately(t *testing.T) {
	r := newRegistry(t, blockUntilCancel)

	id, err := r.Start("search for cats")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	job, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, "search for cats", job.Prompt)
	assert.Empty(t, job.Reason)
	assert.Nil(t, job.FinishedAt)
}

func TestStart_DistinctIDs(t *testing.T) {
	r := newRegistry(t, finishWith(agent.Outcome{Reason: agent.ReasonModelDone, Cycles: 1}, nil))

	seen := map[string]bool{}
	for range 20 {
		id, err := r.Start("task")
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, r.List(), 20)
}

func TestCompleted(t *testing.T) {
	r := newRegistry(t, finishWith(agent.Outcome{Reason: agent.ReasonModelDone, Cycles: 2}, nil))

	id, err := r.Start("task")
	require.NoError(t, err)

	job := waitFor(t, r, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, agent.ReasonModelDone, job.Reason)
	assert.Equal(t, 2, job.Cycles)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.FinishedAt)
}

func TestExhaustedIsCompleted(t *testing.T) {
	r := newRegistry(t, finishWith(agent.Outcome{Reason: agent.ReasonExhausted, Cycles: 10}, nil))

	id, err := r.Start("task")
	require.NoError(t, err)

	job := waitFor(t, r, id)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, agent.ReasonExhausted, job.Reason)
}

func TestFailed(t *testing.T) {
	r := newRegistry(t, finishWith(agent.Outcome{}, errors.New("gemini decision request failed: quota")))

	id, err := r.Start("task")
	require.NoError(t, err)

	job := waitFor(t, r, id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "gemini decision request failed: quota", job.Error)
	assert.Empty(t, job.Reason)
}

func TestStatus_Unknown(t *testing.T) {
	r := newRegistry(t, blockUntilCancel)

	_, err := r.Status("nope")
	assert.ErrorIs(t, err, ErrUnknownJob)

	_, err = r.Wait(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownJob)

	assert.ErrorIs(t, r.Cancel("nope"), ErrUnknownJob)
}

func TestStatus_MonotonicAndIdempotent(t *testing.T) {
	release := make(chan struct{})
	r := newRegistry(t, runnerFunc(func(ctx context.Context, prompt string) (agent.Outcome, error) {
		<-release
		return agent.Outcome{Reason: agent.ReasonModelDone, Cycles: 1}, nil
	}))

	id, err := r.Start("task")
	require.NoError(t, err)

	first, err := r.Status(id)
	require.NoError(t, err)
	second, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, StatusRunning, first.Status)

	close(release)
	final := waitFor(t, r, id)

	// Cancelling after completion must not rewrite the status.
	require.NoError(t, r.Cancel(id))
	for range 3 {
		job, err := r.Status(id)
		require.NoError(t, err)
		assert.Equal(t, final, job)
	}
}

func TestCancel(t *testing.T) {
	r := newRegistry(t, blockUntilCancel)

	id, err := r.Start("task")
	require.NoError(t, err)
	require.NoError(t, r.Cancel(id))

	job := waitFor(t, r, id)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, context.Canceled.Error(), job.Error)
}

func TestStartAndWait(t *testing.T) {
	r := newRegistry(t, finishWith(agent.Outcome{Reason: agent.ReasonModelDone, Cycles: 3}, nil))

	job, err := r.StartAndWait(context.Background(), "task")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 3, job.Cycles)
}

func TestStartAndWait_ContextEnds(t *testing.T) {
	r := newRegistry(t, blockUntilCancel)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.StartAndWait(ctx, "task")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The job itself keeps running until cancelled.
	jobs := r.List()
	require.Len(t, jobs, 1)
	assert.Equal(t, StatusRunning, jobs[0].Status)
}

func TestWaitPolling(t *testing.T) {
	release := make(chan struct{})
	r := newRegistry(t, runnerFunc(func(ctx context.Context, prompt string) (agent.Outcome, error) {
		<-release
		return agent.Outcome{Reason: agent.ReasonModelDone, Cycles: 1}, nil
	}))
	r.PollInterval = 10 * time.Millisecond

	id, err := r.Start("task")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	job, err := r.WaitPolling(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, job.Status)
}

func TestConcurrentJobs(t *testing.T) {
	r := newRegistry(t, runnerFunc(func(ctx context.Context, prompt string) (agent.Outcome, error) {
		time.Sleep(10 * time.Millisecond)
		return agent.Outcome{Reason: agent.ReasonModelDone, Cycles: len(prompt)}, nil
	}))

	var wg sync.WaitGroup
	for _, prompt := range []string{"a", "bb", "ccc", "dddd"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := r.StartAndWait(context.Background(), prompt)
			if assert.NoError(t, err) {
				assert.Equal(t, len(prompt), job.Cycles)
			}
		}()
	}
	wg.Wait()

	jobs := r.List()
	require.Len(t, jobs, 4)
	for i := 1; i < len(jobs); i++ {
		assert.False(t, jobs[i].StartedAt.Before(jobs[i-1].StartedAt))
	}
}

func TestShutdown_CancelsRunning(t *testing.T) {
	r := NewRegistry(blockUntilCancel, nil, zap.NewNop())

	id, err := r.Start("task")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	job, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestPanicFailsOnlyThatJob(t *testing.T) {
	r := newRegistry(t, runnerFunc(func(ctx context.Context, prompt string) (agent.Outcome, error) {
		if prompt == "boom" {
			panic("nil page")
		}
		return agent.Outcome{Reason: agent.ReasonModelDone, Cycles: 1}, nil
	}))

	bad, err := r.Start("boom")
	require.NoError(t, err)
	job := waitFor(t, r, bad)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Contains(t, job.Error, "job panicked: nil page")
	assert.NotNil(t, job.FinishedAt)

	good, err := r.Start("fine")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, waitFor(t, r, good).Status)
}

func TestShutdown_RejectsNewJobs(t *testing.T) {
	r := NewRegistry(finishWith(agent.Outcome{Reason: agent.ReasonModelDone}, nil), nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))

	_, err := r.Start("late")
	assert.ErrorIs(t, err, ErrShuttingDown)
	assert.Empty(t, r.List())
	require.NoError(t, r.Shutdown(ctx), "shutdown twice")
}

func TestShutdown_ConcurrentStart(t *testing.T) {
	r := NewRegistry(blockUntilCancel, nil, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Start("task")
			if err != nil {
				assert.ErrorIs(t, err, ErrShuttingDown)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
	wg.Wait()

	for _, job := range r.List() {
		assert.Equal(t, StatusFailed, job.Status, "every accepted job was cancelled")
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(finishWith(agent.Outcome{Reason: agent.ReasonModelDone, Cycles: 1}, nil),
		metrics.NewCollector("test", reg, zap.NewNop()), zap.NewNop())

	_, err := r.StartAndWait(context.Background(), "task")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				values[f.GetName()] += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				values[f.GetName()] += g.GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, values["test_jobs_started_total"])
	assert.Equal(t, 1.0, values["test_jobs_finished_total"])
	assert.Equal(t, 0.0, values["test_jobs_running"])
}
