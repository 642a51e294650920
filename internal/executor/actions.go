package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/cuagent/internal/browser"
)

// Kind is the wire name of an action
type Kind string

const (
	KindClick      Kind = "click"
	KindScroll     Kind = "scroll"
	KindKeypress   Kind = "keypress"
	KindType       Kind = "type"
	KindWait       Kind = "wait"
	KindScreenshot Kind = "screenshot"
	KindNavigate   Kind = "navigate"
)

// ErrMalformedArguments is returned by Decode when a known kind carries arguments
// that cannot be decoded into its shape
var ErrMalformedArguments = errors.New("malformed action arguments")

// Action is one model-chosen operation. The set of implementations is closed.
type Action interface {
	Kind() Kind
	action()
}

// Click moves the pointer to (X, Y) and presses/releases Button
type Click struct {
	X      float64        `json:"x"`
	Y      float64        `json:"y"`
	Button browser.Button `json:"button,omitempty"`
}

// Scroll moves the pointer to (X, Y), then scrolls the page by (ScrollX, ScrollY)
type Scroll struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	ScrollX float64 `json:"scroll_x"`
	ScrollY float64 `json:"scroll_y"`
}

// Keypress presses each key in order
type Keypress struct {
	Keys []string `json:"keys"`
}

// Type enters literal text through the keyboard
type Type struct {
	Text string `json:"text"`
}

// Wait pauses before the next observation
type Wait struct{}

// Screenshot does nothing; the model just wants to look again
type Screenshot struct{}

// Navigate loads URL
type Navigate struct {
	URL string `json:"url"`
}

// Unrecognized is a decision outside the declared vocabulary
type Unrecognized struct {
	Name string
	Args json.RawMessage
}

func (Click) Kind() Kind          { return KindClick }
func (Scroll) Kind() Kind         { return KindScroll }
func (Keypress) Kind() Kind       { return KindKeypress }
func (Type) Kind() Kind           { return KindType }
func (Wait) Kind() Kind           { return KindWait }
func (Screenshot) Kind() Kind     { return KindScreenshot }
func (Navigate) Kind() Kind       { return KindNavigate }
func (u Unrecognized) Kind() Kind { return Kind(u.Name) }

func (Click) action()        {}
func (Scroll) action()       {}
func (Keypress) action()     {}
func (Type) action()         {}
func (Wait) action()         {}
func (Screenshot) action()   {}
func (Navigate) action()     {}
func (Unrecognized) action() {}

// Decode builds the action for a tool call. Unknown kinds decode to Unrecognized;
// arguments that do not fit a known kind yield ErrMalformedArguments.
func Decode(kind string, args json.RawMessage) (Action, error) {
	args = bytes.TrimSpace(args)
	if len(args) == 0 || bytes.Equal(args, []byte("null")) {
		args = json.RawMessage("{}")
	}

	switch Kind(kind) {
	case KindClick:
		var raw struct {
			X      float64 `json:"x"`
			Y      float64 `json:"y"`
			Button string  `json:"button"`
		}
		if err := unmarshalArgs(kind, args, &raw); err != nil {
			return nil, err
		}
		// An unknown button name is caught at execution, not here.
		return Click{X: raw.X, Y: raw.Y, Button: browser.Button(strings.ToLower(raw.Button))}, nil
	case KindScroll:
		var a Scroll
		if err := unmarshalArgs(kind, args, &a); err != nil {
			return nil, err
		}
		return a, nil
	case KindKeypress:
		var a Keypress
		if err := unmarshalArgs(kind, args, &a); err != nil {
			return nil, err
		}
		return a, nil
	case KindType:
		var a Type
		if err := unmarshalArgs(kind, args, &a); err != nil {
			return nil, err
		}
		return a, nil
	case KindWait:
		return Wait{}, nil
	case KindScreenshot:
		return Screenshot{}, nil
	case KindNavigate:
		var a Navigate
		if err := unmarshalArgs(kind, args, &a); err != nil {
			return nil, err
		}
		return a, nil
	default:
		return Unrecognized{Name: kind, Args: append(json.RawMessage(nil), args...)}, nil
	}
}

// DecodeMap is Decode for SDKs that hand back already-parsed arguments
func DecodeMap(kind string, args map[string]any) (Action, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedArguments, kind, err)
	}
	return Decode(kind, raw)
}

func unmarshalArgs(kind string, args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedArguments, kind, err)
	}
	return nil
}

// Describe renders an action for logs
func Describe(a Action) string {
	switch a := a.(type) {
	case Click:
		button := a.Button
		if button == "" {
			button = browser.ButtonLeft
		}
		return fmt.Sprintf("click (%g, %g) %s", a.X, a.Y, button)
	case Scroll:
		return fmt.Sprintf("scroll at (%g, %g) by (%g, %g)", a.X, a.Y, a.ScrollX, a.ScrollY)
	case Keypress:
		return fmt.Sprintf("keypress %s", strings.Join(a.Keys, "+"))
	case Type:
		return fmt.Sprintf("type %q", a.Text)
	case Wait:
		return "wait"
	case Screenshot:
		return "screenshot"
	case Navigate:
		return fmt.Sprintf("navigate %s", a.URL)
	case Unrecognized:
		return fmt.Sprintf("unrecognized %q %s", a.Name, string(a.Args))
	default:
		return fmt.Sprintf("%T", a)
	}
}

// Tool declares one callable action and its JSON-schema parameters
type Tool struct {
	Name        Kind
	Description string
	Parameters  map[string]any // JSON schema object
	Required    []string
}

// Properties returns the schema's property map
func (t Tool) Properties() map[string]any {
	props, _ := t.Parameters["properties"].(map[string]any)
	return props
}

func number(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func object(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Vocabulary is the closed set of actions offered to the decision service
func Vocabulary() []Tool {
	tools := []Tool{
		{
			Name:        KindClick,
			Description: "Click at pixel coordinates taken from the screenshot.",
			Parameters: object(map[string]any{
				"x": number("X coordinate in pixels"),
				"y": number("Y coordinate in pixels"),
				"button": map[string]any{
					"type":        "string",
					"enum":        []string{"left", "middle", "right"},
					"description": "Mouse button, defaults to left",
				},
			}, "x", "y"),
		},
		{
			Name:        KindScroll,
			Description: "Move the pointer to (x, y) and scroll the page by (scroll_x, scroll_y) pixels.",
			Parameters: object(map[string]any{
				"x":        number("X coordinate of the pointer"),
				"y":        number("Y coordinate of the pointer"),
				"scroll_x": number("Horizontal scroll distance in pixels"),
				"scroll_y": number("Vertical scroll distance in pixels, positive scrolls down"),
			}, "x", "y", "scroll_x", "scroll_y"),
		},
		{
			Name:        KindKeypress,
			Description: "Press keys in order. Use ENTER and SPACE for those keys; other names are sent as-is (e.g. Tab, ArrowDown, a).",
			Parameters: object(map[string]any{
				"keys": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Key names, pressed one after another",
				},
			}, "keys"),
		},
		{
			Name:        KindType,
			Description: "Type text with the keyboard into the focused element. Click the field first.",
			Parameters: object(map[string]any{
				"text": map[string]any{"type": "string", "description": "Text to type"},
			}, "text"),
		},
		{
			Name:        KindWait,
			Description: "Wait two seconds for the page to change before looking again.",
			Parameters:  object(map[string]any{}),
		},
		{
			Name:        KindScreenshot,
			Description: "Take no action and look at the page again.",
			Parameters:  object(map[string]any{}),
		},
		{
			Name:        KindNavigate,
			Description: "Open a URL. The https:// prefix is optional.",
			Parameters: object(map[string]any{
				"url": map[string]any{"type": "string", "description": "URL to navigate to"},
			}, "url"),
		},
	}
	for i := range tools {
		if req, ok := tools[i].Parameters["required"].([]string); ok {
			tools[i].Required = req
		}
	}
	return tools
}
