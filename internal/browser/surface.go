package browser

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Surface is a controllable page that actions are performed against.
// All methods block until the underlying browser acknowledges the call.
type Surface interface {
	Start(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	URL(ctx context.Context) (string, error)
	WaitLoad(ctx context.Context) error
	Click(ctx context.Context, x, y float64, button Button) error
	MoveMouse(ctx context.Context, x, y float64) error
	Type(ctx context.Context, text string) error
	Press(ctx context.Context, key string) error
	Scroll(ctx context.Context, dx, dy float64) error
	Navigate(ctx context.Context, url string) error
	Close() error
}

// Backend names a Surface implementation
type Backend string

const (
	BackendRod        Backend = "rod"
	BackendChromedp   Backend = "chromedp"
	BackendPlaywright Backend = "playwright"
)

// Options configures a browser launch
type Options struct {
	Width      int
	Height     int
	Headless   bool
	ProfileDir string        // Chrome/Chromium profile directory for authenticated sessions
	Timeout    time.Duration // Per-operation timeout for navigation and load waits
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 720
	}
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	return o
}

// NewSurface creates an unstarted surface for the named backend
func NewSurface(backend Backend, opts Options, logger *zap.Logger) (Surface, error) {
	opts = opts.withDefaults()
	switch backend {
	case BackendRod, "":
		return NewRodSurface(opts, logger), nil
	case BackendChromedp:
		return NewChromedpSurface(opts, logger), nil
	case BackendPlaywright:
		return NewPlaywrightSurface(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser backend: %s (supported: rod, chromedp, playwright)", backend)
	}
}
