package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// PlaywrightSurface drives a Chromium page through the Playwright driver.
// Key names are passed to Playwright unchanged.
type PlaywrightSurface struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// NewPlaywrightSurface creates an unstarted playwright-backed surface
func NewPlaywrightSurface(opts Options, logger *zap.Logger) *PlaywrightSurface {
	return &PlaywrightSurface{
		opts:   opts.withDefaults(),
		logger: logger.Named("browser.playwright"),
	}
}

func (s *PlaywrightSurface) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: s.opts.Width, Height: s.opts.Height},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("open page: %w", err)
	}

	s.pw, s.browser, s.context, s.page = pw, browser, bctx, page
	s.logger.Info("Browser started",
		zap.Int("width", s.opts.Width),
		zap.Int("height", s.opts.Height),
		zap.Bool("headless", s.opts.Headless))
	return nil
}

func (s *PlaywrightSurface) current(ctx context.Context) (playwright.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, ErrNotInitialized
	}
	return s.page, nil
}

func (s *PlaywrightSurface) timeoutMs() *float64 {
	return playwright.Float(float64(s.opts.Timeout.Milliseconds()))
}

func (s *PlaywrightSurface) Screenshot(ctx context.Context) ([]byte, error) {
	page, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return page.Screenshot(playwright.PageScreenshotOptions{
		Type:     playwright.ScreenshotTypePng,
		FullPage: playwright.Bool(false),
	})
}

func (s *PlaywrightSurface) URL(ctx context.Context) (string, error) {
	page, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	return page.URL(), nil
}

func (s *PlaywrightSurface) WaitLoad(ctx context.Context) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateLoad,
		Timeout: s.timeoutMs(),
	})
}

func (s *PlaywrightSurface) Click(ctx context.Context, x, y float64, button Button) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	b := playwright.MouseButtonLeft
	switch button {
	case ButtonMiddle:
		b = playwright.MouseButtonMiddle
	case ButtonRight:
		b = playwright.MouseButtonRight
	}
	return page.Mouse().Click(x, y, playwright.MouseClickOptions{Button: b})
}

func (s *PlaywrightSurface) MoveMouse(ctx context.Context, x, y float64) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return page.Mouse().Move(x, y)
}

func (s *PlaywrightSurface) Type(ctx context.Context, text string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return page.Keyboard().Type(text)
}

func (s *PlaywrightSurface) Press(ctx context.Context, key string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return page.Keyboard().Press(key)
}

func (s *PlaywrightSurface) Scroll(ctx context.Context, dx, dy float64) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	return page.Mouse().Wheel(dx, dy)
}

func (s *PlaywrightSurface) Navigate(ctx context.Context, url string) error {
	page, err := s.current(ctx)
	if err != nil {
		return err
	}
	_, err = page.Goto(url, playwright.PageGotoOptions{Timeout: s.timeoutMs()})
	return err
}

func (s *PlaywrightSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.context != nil {
		err = s.context.Close()
	}
	if s.browser != nil {
		if cerr := s.browser.Close(); err == nil {
			err = cerr
		}
	}
	if s.pw != nil {
		if cerr := s.pw.Stop(); err == nil {
			err = cerr
		}
	}
	s.pw, s.browser, s.context, s.page = nil, nil, nil, nil
	return err
}
