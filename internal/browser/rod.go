package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// RodSurface drives a Chromium page through go-rod
type RodSurface struct {
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	mouse    proto.Point
}

// NewRodSurface creates an unstarted rod-backed surface
func NewRodSurface(opts Options, logger *zap.Logger) *RodSurface {
	return &RodSurface{
		opts:   opts.withDefaults(),
		logger: logger.Named("browser.rod"),
	}
}

// Start launches the browser and opens a blank page with the configured viewport
func (s *RodSurface) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		return nil
	}

	l := launcher.New().Headless(s.opts.Headless)
	if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	if s.opts.ProfileDir != "" {
		l = l.UserDataDir(s.opts.ProfileDir)
	}

	u, err := l.Context(ctx).Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("open page: %w", err)
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.opts.Width,
		Height:            s.opts.Height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("set viewport: %w", err)
	}

	s.launcher = l
	s.browser = browser
	s.page = page
	s.logger.Info("Browser started",
		zap.Int("width", s.opts.Width),
		zap.Int("height", s.opts.Height),
		zap.Bool("headless", s.opts.Headless))
	return nil
}

func (s *RodSurface) current(ctx context.Context) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, ErrNotInitialized
	}
	return s.page.Context(ctx), nil
}

func (s *RodSurface) Screenshot(ctx context.Context) ([]byte, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *RodSurface) URL(ctx context.Context) (string, error) {
	page, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	info, err := page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// WaitLoad waits for the load event, then for the network to go quiet.
// The idle wait is bounded so persistent connections (WebSockets, polling) don't hang it.
func (s *RodSurface) WaitLoad(ctx context.Context) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	if err := page.Timeout(s.opts.Timeout).WaitLoad(); err != nil {
		return err
	}
	page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
	return nil
}

// Input is dispatched on the context-bound page. page.Mouse and page.Keyboard
// keep the page they were created with and ignore ctx.

func (s *RodSurface) Click(ctx context.Context, x, y float64, button Button) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	if err := s.moveTo(page, x, y); err != nil {
		return err
	}
	for _, t := range []proto.InputDispatchMouseEventType{
		proto.InputDispatchMouseEventTypeMousePressed,
		proto.InputDispatchMouseEventTypeMouseReleased,
	} {
		err := proto.InputDispatchMouseEvent{
			Type:       t,
			X:          x,
			Y:          y,
			Button:     rodButton(button),
			ClickCount: 1,
		}.Call(page)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *RodSurface) MoveMouse(ctx context.Context, x, y float64) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return s.moveTo(page, x, y)
}

func (s *RodSurface) moveTo(page *rod.Page, x, y float64) error {
	err := proto.InputDispatchMouseEvent{
		Type: proto.InputDispatchMouseEventTypeMouseMoved,
		X:    x,
		Y:    y,
	}.Call(page)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mouse = proto.Point{X: x, Y: y}
	s.mu.Unlock()
	return nil
}

func (s *RodSurface) Type(ctx context.Context, text string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return page.InsertText(text)
}

func (s *RodSurface) Press(ctx context.Context, key string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	if k, ok := rodKey(key); ok {
		if err := k.Encode(proto.InputDispatchKeyEventTypeKeyDown, 0).Call(page); err != nil {
			return err
		}
		return k.Encode(proto.InputDispatchKeyEventTypeKeyUp, 0).Call(page)
	}
	// Characters outside the key map are entered as text.
	if utf8.RuneCountInString(key) == 1 {
		return page.InsertText(key)
	}
	return fmt.Errorf("unsupported key: %q", key)
}

// Scroll sends one wheel event at the last mouse position
func (s *RodSurface) Scroll(ctx context.Context, dx, dy float64) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	at := s.mouse
	s.mu.Unlock()
	return proto.InputDispatchMouseEvent{
		Type:   proto.InputDispatchMouseEventTypeMouseWheel,
		X:      at.X,
		Y:      at.Y,
		DeltaX: dx,
		DeltaY: dy,
	}.Call(page)
}

func (s *RodSurface) Navigate(ctx context.Context, url string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return page.Timeout(s.opts.Timeout).Navigate(url)
}

// Close cleans up browser resources
func (s *RodSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.page != nil {
		err = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		if cerr := s.browser.Close(); err == nil {
			err = cerr
		}
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	return err
}

func rodButton(b Button) proto.InputMouseButton {
	switch b {
	case ButtonMiddle:
		return proto.InputMouseButtonMiddle
	case ButtonRight:
		return proto.InputMouseButtonRight
	default:
		return proto.InputMouseButtonLeft
	}
}

var rodKeys = map[string]input.Key{
	"enter":      input.Enter,
	"return":     input.Enter,
	"space":      input.Space,
	"tab":        input.Tab,
	"backspace":  input.Backspace,
	"delete":     input.Delete,
	"escape":     input.Escape,
	"esc":        input.Escape,
	"arrowup":    input.ArrowUp,
	"arrowdown":  input.ArrowDown,
	"arrowleft":  input.ArrowLeft,
	"arrowright": input.ArrowRight,
	"up":         input.ArrowUp,
	"down":       input.ArrowDown,
	"left":       input.ArrowLeft,
	"right":      input.ArrowRight,
	"home":       input.Home,
	"end":        input.End,
	"pageup":     input.PageUp,
	"pagedown":   input.PageDown,
	"shift":      input.ShiftLeft,
	"control":    input.ControlLeft,
	"ctrl":       input.ControlLeft,
	"alt":        input.AltLeft,
	"meta":       input.MetaLeft,
}

// rodKey resolves a Playwright-style key name ("Enter", "ArrowDown", "a") to a rod key
func rodKey(name string) (input.Key, bool) {
	if k, ok := rodKeys[strings.ToLower(name)]; ok {
		return k, true
	}
	if len(name) == 1 && name[0] >= 0x20 && name[0] < 0x7f {
		return input.Key(rune(name[0])), true
	}
	return 0, false
}
