// Package browsertest provides an in-memory browser.Surface for tests.
package browsertest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/v0xg/cuagent/internal/browser"
)

// Surface is a scriptable fake. Calls are recorded in order as short strings,
// e.g. "click 10 20 left", "navigate https://example.com".
type Surface struct {
	mu      sync.Mutex
	started bool
	url     string
	calls   []string

	// Errors maps an operation name ("click", "type", "press", "scroll",
	// "move", "navigate", "screenshot", "url", "waitload", "start") to the error it returns.
	Errors map[string]error
	// ClickErr, when set, decides per call whether a click fails.
	ClickErr func(x, y float64) error
	// Image is the frame returned by Screenshot; a small gray PNG when nil.
	Image image.Image
}

// New returns a fake that has not been started
func New() *Surface {
	return &Surface{Errors: map[string]error{}}
}

// NewStarted returns a fake that behaves as if Start already succeeded
func NewStarted() *Surface {
	s := New()
	s.started = true
	s.url = "about:blank"
	return s
}

// Calls returns a copy of the recorded calls
func (s *Surface) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Count returns how many recorded calls start with op
func (s *Surface) Count(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if len(c) >= len(op) && c[:len(op)] == op {
			n++
		}
	}
	return n
}

func (s *Surface) record(op, format string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op != "start" && op != "close" && !s.started {
		return browser.ErrNotInitialized
	}
	call := op
	if format != "" {
		call += " " + fmt.Sprintf(format, args...)
	}
	s.calls = append(s.calls, call)
	return s.Errors[op]
}

func (s *Surface) Start(ctx context.Context) error {
	if err := s.record("start", ""); err != nil {
		return err
	}
	s.mu.Lock()
	s.started = true
	if s.url == "" {
		s.url = "about:blank"
	}
	s.mu.Unlock()
	return nil
}

func (s *Surface) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.record("screenshot", ""); err != nil {
		return nil, err
	}
	img := s.Image
	if img == nil {
		gray := image.NewRGBA(image.Rect(0, 0, 32, 18))
		for y := 0; y < 18; y++ {
			for x := 0; x < 32; x++ {
				gray.Set(x, y, color.RGBA{200, 200, 200, 255})
			}
		}
		img = gray
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Surface) URL(ctx context.Context) (string, error) {
	if err := s.record("url", ""); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *Surface) WaitLoad(ctx context.Context) error {
	return s.record("waitload", "")
}

func (s *Surface) Click(ctx context.Context, x, y float64, button browser.Button) error {
	if err := s.record("click", "%g %g %s", x, y, button); err != nil {
		return err
	}
	if s.ClickErr != nil {
		return s.ClickErr(x, y)
	}
	return nil
}

func (s *Surface) MoveMouse(ctx context.Context, x, y float64) error {
	return s.record("move", "%g %g", x, y)
}

func (s *Surface) Type(ctx context.Context, text string) error {
	return s.record("type", "%s", text)
}

func (s *Surface) Press(ctx context.Context, key string) error {
	return s.record("press", "%s", key)
}

func (s *Surface) Scroll(ctx context.Context, dx, dy float64) error {
	return s.record("scroll", "%g %g", dx, dy)
}

func (s *Surface) Navigate(ctx context.Context, url string) error {
	if err := s.record("navigate", "%s", url); err != nil {
		return err
	}
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()
	return nil
}

func (s *Surface) Close() error {
	_ = s.record("close", "")
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
	return nil
}

var _ browser.Surface = (*Surface)(nil)
