package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/agent"
	"github.com/v0xg/cuagent/internal/metrics"
)

// DefaultPollInterval is how often WaitPolling re-reads a job's status
const DefaultPollInterval = time.Second

var (
	// ErrUnknownJob is returned for ids that were never registered
	ErrUnknownJob = errors.New("unknown job")
	// ErrShuttingDown is returned by Start once Shutdown has begun
	ErrShuttingDown = errors.New("registry shutting down")
)

// Runner executes one task to completion
type Runner interface {
	Run(ctx context.Context, prompt string) (agent.Outcome, error)
}

type entry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{} // closed once the job is terminal
}

// Registry starts jobs in the background and answers status queries
type Registry struct {
	runner  Runner
	metrics *metrics.Collector
	logger  *zap.Logger

	// PollInterval is used by WaitPolling
	PollInterval time.Duration

	mu     sync.RWMutex
	jobs   map[string]*entry
	closed bool
	wg     sync.WaitGroup
}

// NewRegistry creates a registry. m may be nil.
func NewRegistry(runner Runner, m *metrics.Collector, logger *zap.Logger) *Registry {
	return &Registry{
		runner:       runner,
		metrics:      m,
		logger:       logger.Named("jobs"),
		PollInterval: DefaultPollInterval,
		jobs:         make(map[string]*entry),
	}
}

// Start registers a running job and launches it. It returns without waiting for the run.
func (r *Registry) Start(prompt string) (string, error) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		job: Job{
			ID:        id,
			Prompt:    prompt,
			Status:    StatusRunning,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		cancel()
		return "", ErrShuttingDown
	}
	if _, exists := r.jobs[id]; exists {
		r.mu.Unlock()
		cancel()
		return "", fmt.Errorf("job id collision: %s", id)
	}
	r.jobs[id] = e
	r.wg.Add(1)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordJobStarted()
	}
	r.logger.Info("Job started", zap.String("job_id", id), zap.String("prompt", prompt))

	go r.run(ctx, e)
	return id, nil
}

func (r *Registry) run(ctx context.Context, e *entry) {
	defer r.wg.Done()
	defer e.cancel()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Job panicked", zap.String("job_id", e.job.ID), zap.Any("panic", p), zap.Stack("stack"))
			r.finish(e, agent.Outcome{}, fmt.Errorf("job panicked: %v", p))
		}
	}()

	out, err := r.runner.Run(ctx, e.job.Prompt)
	r.finish(e, out, err)
}

// finish moves a job to its terminal status exactly once
func (r *Registry) finish(e *entry, out agent.Outcome, err error) {
	r.mu.Lock()
	if e.job.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	e.job.Cycles = out.Cycles
	e.job.FinishedAt = &now
	if err != nil {
		e.job.Status = StatusFailed
		e.job.Error = err.Error()
	} else {
		e.job.Status = StatusCompleted
		e.job.Reason = out.Reason
	}
	job := e.job
	r.mu.Unlock()
	defer close(e.done)

	if r.metrics != nil {
		r.metrics.RecordJobFinished(string(job.Status), string(job.Reason), job.Cycles)
	}
	fields := []zap.Field{
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("cycles", job.Cycles),
		zap.Duration("elapsed", now.Sub(job.StartedAt)),
	}
	if err != nil {
		r.logger.Warn("Job failed", append(fields, zap.Error(err))...)
		return
	}
	r.logger.Info("Job completed", append(fields, zap.String("reason", string(job.Reason)))...)
}

// Status returns a snapshot of the job
func (r *Registry) Status(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return e.job, nil
}

// Wait blocks until the job is terminal or ctx is done
func (r *Registry) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}

	select {
	case <-e.done:
		return r.Status(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// StartAndWait starts a job and returns its final snapshot
func (r *Registry) StartAndWait(ctx context.Context, prompt string) (Job, error) {
	id, err := r.Start(prompt)
	if err != nil {
		return Job{}, err
	}
	return r.Wait(ctx, id)
}

// WaitPolling waits by re-reading Status every PollInterval.
// It suits callers that can only see the job through Status.
func (r *Registry) WaitPolling(ctx context.Context, id string) (Job, error) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := r.Status(id)
		if err != nil {
			return Job{}, err
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
}

// Cancel asks a running job to stop. The job ends failed with a context error.
// Cancelling a finished job has no effect.
func (r *Registry) Cancel(id string) error {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	e.cancel()
	r.logger.Info("Job cancel requested", zap.String("job_id", id))
	return nil
}

// List returns snapshots of all jobs, oldest first
func (r *Registry) List() []Job {
	r.mu.RLock()
	jobs := make([]Job, 0, len(r.jobs))
	for _, e := range r.jobs {
		jobs = append(jobs, e.job)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs
}

// Shutdown rejects new jobs, cancels every running one and waits for them to finish or ctx to end.
// It may be called more than once.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for _, e := range r.jobs {
		e.cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
