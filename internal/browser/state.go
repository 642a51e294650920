package browser

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// ErrNotInitialized is returned by every surface operation attempted before Start
var ErrNotInitialized = errors.New("browser not initialized")

// EnvState is a point-in-time observation of the browsing surface
type EnvState struct {
	Screenshot []byte    // PNG bytes of the visible viewport
	URL        string    // Location at capture time
	CapturedAt time.Time
}

// Base64 returns the screenshot in standard base64 encoding
func (s EnvState) Base64() string {
	return base64.StdEncoding.EncodeToString(s.Screenshot)
}

// Button is a pointer button
type Button string

const (
	ButtonLeft   Button = "left"
	ButtonMiddle Button = "middle"
	ButtonRight  Button = "right"
)

// ParseButton maps a model-supplied button name to a Button, defaulting to left
func ParseButton(name string) (Button, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "left":
		return ButtonLeft, true
	case "middle", "wheel":
		return ButtonMiddle, true
	case "right":
		return ButtonRight, true
	default:
		return ButtonLeft, false
	}
}

// NormalizeURL prefixes https:// when the raw location carries no scheme
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return u
	}
	lower := strings.ToLower(u)
	if strings.Contains(lower, "://") ||
		strings.HasPrefix(lower, "about:") ||
		strings.HasPrefix(lower, "data:") {
		return u
	}
	return "https://" + u
}
