package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/browser"
)

// DefaultWait is how long a wait action pauses
const DefaultWait = 2000 * time.Millisecond

var (
	// ErrUnrecognizedAction marks a decision outside the declared vocabulary
	ErrUnrecognizedAction = errors.New("unrecognized action")
	// ErrOutOfRange marks pointer coordinates that cannot be on the page
	ErrOutOfRange = errors.New("coordinates out of range")
)

// ActionError is a failure of a single action. It never ends a job.
type ActionError struct {
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", Describe(e.Action), e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Options configures execution behavior
type Options struct {
	WaitDuration time.Duration // Pause for wait actions, DefaultWait when zero
}

// Result is the outcome of one action
type Result struct {
	Action   Action
	Err      error // *ActionError or a context error, nil on success
	Duration time.Duration
}

// Executor performs actions against a surface
type Executor struct {
	surface browser.Surface
	opts    Options
	logger  *zap.Logger
}

// New creates an executor for surface
func New(surface browser.Surface, opts Options, logger *zap.Logger) *Executor {
	if opts.WaitDuration <= 0 {
		opts.WaitDuration = DefaultWait
	}
	return &Executor{
		surface: surface,
		opts:    opts,
		logger:  logger.Named("executor"),
	}
}

// ExecuteAll runs actions strictly in order. A failed action is logged and the next
// one is still attempted; only cancellation of ctx stops the batch early.
func (e *Executor) ExecuteAll(ctx context.Context, actions []Action) []Result {
	results := make([]Result, 0, len(actions))
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			e.logger.Debug("Batch cancelled", zap.Int("remaining", len(actions)-i))
			break
		}
		results = append(results, e.Execute(ctx, a))
	}
	return results
}

// Execute performs one action. Failures are caught, logged with the offending
// action and returned in the Result; they are never propagated as panics or job errors.
func (e *Executor) Execute(ctx context.Context, a Action) Result {
	start := time.Now()
	err := e.apply(ctx, a)
	res := Result{Action: a, Duration: time.Since(start)}

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			res.Err = err
			return res
		}
		res.Err = &ActionError{Action: a, Err: err}
		e.logger.Warn("Action failed",
			zap.String("kind", string(a.Kind())),
			zap.String("action", Describe(a)),
			zap.Error(err))
		return res
	}

	e.logger.Debug("Action done",
		zap.String("action", Describe(a)),
		zap.Duration("duration", res.Duration))
	return res
}

func (e *Executor) apply(ctx context.Context, a Action) error {
	switch a := a.(type) {
	case Click:
		if err := checkPoint(a.X, a.Y); err != nil {
			return err
		}
		button, ok := browser.ParseButton(string(a.Button))
		if !ok {
			return fmt.Errorf("unknown mouse button %q", a.Button)
		}
		return e.surface.Click(ctx, a.X, a.Y, button)
	case Scroll:
		if err := checkPoint(a.X, a.Y); err != nil {
			return err
		}
		if err := e.surface.MoveMouse(ctx, a.X, a.Y); err != nil {
			return err
		}
		return e.surface.Scroll(ctx, a.ScrollX, a.ScrollY)
	case Keypress:
		if len(a.Keys) == 0 {
			return errors.New("no keys given")
		}
		for _, k := range a.Keys {
			if err := e.surface.Press(ctx, KeyName(k)); err != nil {
				return fmt.Errorf("press %s: %w", k, err)
			}
		}
		return nil
	case Type:
		return e.surface.Type(ctx, a.Text)
	case Wait:
		t := time.NewTimer(e.opts.WaitDuration)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	case Screenshot:
		return nil
	case Navigate:
		if strings.TrimSpace(a.URL) == "" {
			return errors.New("empty url")
		}
		return e.surface.Navigate(ctx, browser.NormalizeURL(a.URL))
	case Unrecognized:
		return ErrUnrecognizedAction
	default:
		return fmt.Errorf("%w: %T", ErrUnrecognizedAction, a)
	}
}

func checkPoint(x, y float64) error {
	if x < 0 || y < 0 || math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("%w: (%g, %g)", ErrOutOfRange, x, y)
	}
	return nil
}

// KeyName maps the logical ENTER and SPACE aliases to surface key names.
// Every other name passes through unchanged.
func KeyName(k string) string {
	switch strings.ToUpper(k) {
	case "ENTER":
		return "Enter"
	case "SPACE":
		return "Space"
	default:
		return k
	}
}
