package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// MinSettle is the shortest pause allowed between load-state settling and capture
const MinSettle = 500 * time.Millisecond

// Observer produces EnvState snapshots of a surface
type Observer struct {
	surface Surface
	settle  time.Duration
	logger  *zap.Logger
}

// NewObserver wraps a surface. Settle delays below MinSettle are raised to MinSettle.
func NewObserver(surface Surface, settle time.Duration, logger *zap.Logger) *Observer {
	if settle < MinSettle {
		settle = MinSettle
	}
	return &Observer{
		surface: surface,
		settle:  settle,
		logger:  logger.Named("observer"),
	}
}

// Surface returns the observed surface
func (o *Observer) Surface() Surface {
	return o.surface
}

// CurrentState waits for the page to settle and captures a fresh snapshot.
// It never mutates the page and never reuses a previous capture.
func (o *Observer) CurrentState(ctx context.Context) (EnvState, error) {
	if err := o.surface.WaitLoad(ctx); err != nil {
		if errors.Is(err, ErrNotInitialized) {
			return EnvState{}, err
		}
		// A page that never fires load is still worth looking at.
		o.logger.Debug("Load state did not settle", zap.Error(err))
	}

	if err := sleep(ctx, o.settle); err != nil {
		return EnvState{}, err
	}

	shot, err := o.surface.Screenshot(ctx)
	if err != nil {
		return EnvState{}, fmt.Errorf("capture screenshot: %w", err)
	}
	url, err := o.surface.URL(ctx)
	if err != nil {
		return EnvState{}, fmt.Errorf("read url: %w", err)
	}

	return EnvState{Screenshot: shot, URL: url, CapturedAt: time.Now()}, nil
}

// ClickAt clicks at (x, y) with the left button and re-observes
func (o *Observer) ClickAt(ctx context.Context, x, y float64) (EnvState, error) {
	err := o.surface.Click(ctx, x, y, ButtonLeft)
	return o.reobserve(ctx, err)
}

// TypeTextAt clicks at (x, y) to focus, types text, optionally presses Enter, and re-observes
func (o *Observer) TypeTextAt(ctx context.Context, x, y float64, text string, pressEnter bool) (EnvState, error) {
	err := o.surface.Click(ctx, x, y, ButtonLeft)
	if err == nil {
		err = o.surface.Type(ctx, text)
	}
	if err == nil && pressEnter {
		err = o.surface.Press(ctx, "Enter")
	}
	return o.reobserve(ctx, err)
}

// Navigate loads url (https:// is added when no scheme is given) and re-observes
func (o *Observer) Navigate(ctx context.Context, url string) (EnvState, error) {
	err := o.surface.Navigate(ctx, NormalizeURL(url))
	return o.reobserve(ctx, err)
}

// reobserve always captures a new state, even when the mutation failed
func (o *Observer) reobserve(ctx context.Context, mutationErr error) (EnvState, error) {
	state, err := o.CurrentState(ctx)
	return state, errors.Join(mutationErr, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
