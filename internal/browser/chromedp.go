package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// ChromedpSurface drives a Chromium tab over the DevTools protocol with chromedp
type ChromedpSurface struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewChromedpSurface creates an unstarted chromedp-backed surface
func NewChromedpSurface(opts Options, logger *zap.Logger) *ChromedpSurface {
	return &ChromedpSurface{
		opts:   opts.withDefaults(),
		logger: logger.Named("browser.chromedp"),
	}
}

func (s *ChromedpSurface) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tabCtx != nil {
		return nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.WindowSize(s.opts.Width, s.opts.Height),
	)
	if s.opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(s.opts.ProfileDir))
	}

	// The tab outlives the Start call, so it hangs off a background context.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	if err := s.run(ctx, tabCtx, chromedp.EmulateViewport(int64(s.opts.Width), int64(s.opts.Height))); err != nil {
		cancelTab()
		cancelAlloc()
		return fmt.Errorf("launch browser: %w", err)
	}

	s.tabCtx = tabCtx
	s.cancelTab = cancelTab
	s.cancelAlloc = cancelAlloc
	s.logger.Info("Browser started",
		zap.Int("width", s.opts.Width),
		zap.Int("height", s.opts.Height),
		zap.Bool("headless", s.opts.Headless))
	return nil
}

// run executes actions on the tab while honoring cancellation of the caller's ctx.
// Cancelling a child of the tab context aborts the actions without closing the tab.
func (s *ChromedpSurface) run(ctx, tabCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *ChromedpSurface) do(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	tabCtx := s.tabCtx
	s.mu.Unlock()
	if tabCtx == nil {
		return ErrNotInitialized
	}
	return s.run(ctx, tabCtx, actions...)
}

func (s *ChromedpSurface) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.do(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *ChromedpSurface) URL(ctx context.Context) (string, error) {
	var u string
	if err := s.do(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (s *ChromedpSurface) WaitLoad(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.do(tctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *ChromedpSurface) Click(ctx context.Context, x, y float64, button Button) error {
	return s.do(ctx, chromedp.MouseClickXY(x, y, chromedp.ButtonType(cdpButton(button))))
}

func (s *ChromedpSurface) MoveMouse(ctx context.Context, x, y float64) error {
	return s.do(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
	}))
}

func (s *ChromedpSurface) Type(ctx context.Context, text string) error {
	return s.do(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.InsertText(text).Do(ctx)
	}))
}

func (s *ChromedpSurface) Press(ctx context.Context, key string) error {
	k, ok := cdpKey(key)
	if !ok {
		return fmt.Errorf("unsupported key: %q", key)
	}
	return s.do(ctx, chromedp.KeyEvent(k))
}

func (s *ChromedpSurface) Scroll(ctx context.Context, dx, dy float64) error {
	script := fmt.Sprintf("window.scrollBy(%f, %f)", dx, dy)
	return s.do(ctx, chromedp.Evaluate(script, nil))
}

func (s *ChromedpSurface) Navigate(ctx context.Context, url string) error {
	tctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.do(tctx, chromedp.Navigate(url))
}

func (s *ChromedpSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelTab != nil {
		s.cancelTab()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	s.tabCtx, s.cancelTab, s.cancelAlloc = nil, nil, nil
	return nil
}

func cdpButton(b Button) input.MouseButton {
	switch b {
	case ButtonMiddle:
		return input.Middle
	case ButtonRight:
		return input.Right
	default:
		return input.Left
	}
}

var cdpKeys = map[string]string{
	"enter":      kb.Enter,
	"return":     kb.Enter,
	"space":      " ",
	"tab":        kb.Tab,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"up":         kb.ArrowUp,
	"down":       kb.ArrowDown,
	"left":       kb.ArrowLeft,
	"right":      kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"shift":      kb.Shift,
	"control":    kb.Control,
	"ctrl":       kb.Control,
	"alt":        kb.Alt,
	"meta":       kb.Meta,
}

func cdpKey(name string) (string, bool) {
	if k, ok := cdpKeys[strings.ToLower(name)]; ok {
		return k, true
	}
	if len([]rune(name)) == 1 {
		return name, true
	}
	return "", false
}
