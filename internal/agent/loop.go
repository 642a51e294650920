// Package agent drives one task through repeated observe, decide and act cycles.
package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/ai"
	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
	"github.com/v0xg/cuagent/internal/metrics"
)

const (
	// DefaultStartURL is opened once before the first observation
	DefaultStartURL = "https://www.google.com"
	// DefaultMaxCycles bounds the number of decisions per job
	DefaultMaxCycles = 10
)

// Recorder receives every observation and executed action of a run
type Recorder interface {
	Observe(state browser.EnvState)
	Record(result executor.Result)
}

// Options configures a loop
type Options struct {
	StartURL        string
	MaxCycles       int
	DecisionTimeout time.Duration // per Decide call, unbounded when zero
	Settle          time.Duration // passed to the observer
	Executor        executor.Options

	Recorder Recorder           // optional
	Metrics  *metrics.Collector // optional
}

// Loop runs tasks against surfaces leased from a pool
type Loop struct {
	pool     browser.Pool
	provider ai.Provider
	opts     Options
	logger   *zap.Logger
}

// New creates a loop
func New(pool browser.Pool, provider ai.Provider, opts Options, logger *zap.Logger) *Loop {
	if opts.StartURL == "" {
		opts.StartURL = DefaultStartURL
	}
	if opts.MaxCycles <= 0 {
		opts.MaxCycles = DefaultMaxCycles
	}
	return &Loop{
		pool:     pool,
		provider: provider,
		opts:     opts,
		logger:   logger.Named("agent"),
	}
}

// run is the state of a single Run call
type run struct {
	*Loop
	logger   *zap.Logger
	state    State
	observer *browser.Observer
	exec     *executor.Executor
	conv     ai.Conversation
	vocab    []executor.Tool
}

// Run performs task until the model stops asking for actions or the cycle bound is hit.
// Errors from seeding, observation, decision or cancellation end the run.
func (l *Loop) Run(ctx context.Context, task string) (Outcome, error) {
	lease, err := l.pool.Acquire(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("acquire surface: %w", err)
	}
	defer lease.Release()

	surface := lease.Surface()
	r := &run{
		Loop:     l,
		logger:   l.logger.With(zap.String("task", task)),
		observer: browser.NewObserver(surface, l.opts.Settle, l.logger),
		exec:     executor.New(surface, l.opts.Executor, l.logger),
		conv:     l.provider.NewConversation(task),
		vocab:    executor.Vocabulary(),
	}

	out, err := r.loop(ctx, surface)
	if err != nil {
		r.transition(StateFailed)
		r.logger.Warn("Task failed", zap.Int("cycles", out.Cycles), zap.Error(err))
		return out, err
	}
	r.transition(StateTerminated)
	r.logger.Info("Task finished",
		zap.String("reason", string(out.Reason)),
		zap.Int("cycles", out.Cycles))
	return out, nil
}

func (r *run) loop(ctx context.Context, surface browser.Surface) (Outcome, error) {
	var out Outcome

	r.transition(StateSeeding)
	if err := surface.Navigate(ctx, browser.NormalizeURL(r.opts.StartURL)); err != nil {
		return out, fmt.Errorf("open start page: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		r.transition(StateObserving)
		obs, err := r.observer.CurrentState(ctx)
		if err != nil {
			return out, fmt.Errorf("observe: %w", err)
		}
		if r.opts.Recorder != nil {
			r.opts.Recorder.Observe(obs)
		}

		r.transition(StateDeciding)
		actions, err := r.decide(ctx, obs)
		if err != nil {
			return out, err
		}
		out.Cycles++

		if len(actions) == 0 {
			out.Reason = ReasonModelDone
			return out, nil
		}

		r.transition(StateExecuting)
		r.logger.Info("Executing actions",
			zap.Int("cycle", out.Cycles),
			zap.Int("count", len(actions)))
		for _, res := range r.exec.ExecuteAll(ctx, actions) {
			r.record(res)
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if out.Cycles >= r.opts.MaxCycles {
			out.Reason = ReasonExhausted
			return out, nil
		}
	}
}

func (r *run) decide(ctx context.Context, obs browser.EnvState) ([]executor.Action, error) {
	if r.opts.DecisionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.DecisionTimeout)
		defer cancel()
	}

	start := time.Now()
	actions, err := r.conv.Decide(ctx, obs, r.vocab)
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordDecision(r.provider.Name(), time.Since(start), err)
	}
	return actions, err
}

func (r *run) record(res executor.Result) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.RecordAction(string(res.Action.Kind()), res.Duration, res.Err)
	}
	if r.opts.Recorder != nil {
		r.opts.Recorder.Record(res)
	}
}

func (r *run) transition(to State) {
	r.logger.Debug("State transition",
		zap.Stringer("from", r.state),
		zap.Stringer("to", to))
	r.state = to
}
