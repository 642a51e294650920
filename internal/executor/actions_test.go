package executor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		kind string
		args string
		want Action
	}{
		{"click", `{"x": 10.5, "y": 20}`, Click{X: 10.5, Y: 20}},
		{"click", `{"x": 1, "y": 2, "button": "Right"}`, Click{X: 1, Y: 2, Button: "right"}},
		{"scroll", `{"x": 1, "y": 2, "scroll_x": 0, "scroll_y": 400}`, Scroll{X: 1, Y: 2, ScrollY: 400}},
		{"keypress", `{"keys": ["CTRL", "a"]}`, Keypress{Keys: []string{"CTRL", "a"}}},
		{"type", `{"text": "hi"}`, Type{Text: "hi"}},
		{"wait", ``, Wait{}},
		{"screenshot", `null`, Screenshot{}},
		{"navigate", `{"url": "example.com"}`, Navigate{URL: "example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			got, err := Decode(tt.kind, json.RawMessage(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Kind(tt.kind), got.Kind())
		})
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	got, err := Decode("drag_and_drop", json.RawMessage(`{"from": 1}`))
	require.NoError(t, err)
	u, ok := got.(Unrecognized)
	require.True(t, ok)
	assert.Equal(t, "drag_and_drop", u.Name)
	assert.JSONEq(t, `{"from": 1}`, string(u.Args))
}

func TestDecode_MalformedArguments(t *testing.T) {
	_, err := Decode("click", json.RawMessage(`{"x": "left side"}`))
	assert.ErrorIs(t, err, ErrMalformedArguments)

	_, err = Decode("keypress", json.RawMessage(`{"keys": "ENTER"`))
	assert.ErrorIs(t, err, ErrMalformedArguments)
}

func TestDecodeMap(t *testing.T) {
	got, err := DecodeMap("keypress", map[string]any{"keys": []any{"ENTER"}})
	require.NoError(t, err)
	assert.Equal(t, Keypress{Keys: []string{"ENTER"}}, got)
}

func TestVocabulary_CoversEveryKind(t *testing.T) {
	want := map[Kind]bool{
		KindClick: true, KindScroll: true, KindKeypress: true, KindType: true,
		KindWait: true, KindScreenshot: true, KindNavigate: true,
	}
	tools := Vocabulary()
	require.Len(t, tools, len(want))
	for _, tool := range tools {
		assert.True(t, want[tool.Name], "unexpected tool %s", tool.Name)
		assert.Equal(t, "object", tool.Parameters["type"])
		assert.NotEmpty(t, tool.Description)
		for _, r := range tool.Required {
			assert.Contains(t, tool.Properties(), r)
		}
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "click (1, 2) left", Describe(Click{X: 1, Y: 2}))
	assert.Equal(t, "keypress CTRL+a", Describe(Keypress{Keys: []string{"CTRL", "a"}}))
	assert.Equal(t, "navigate bing.com", Describe(Navigate{URL: "bing.com"}))
}
