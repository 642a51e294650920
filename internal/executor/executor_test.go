package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/browser/browsertest"
)

func newTestExecutor(t *testing.T) (*Executor, *browsertest.Surface) {
	t.Helper()
	surface := browsertest.NewStarted()
	return New(surface, Options{WaitDuration: 10 * time.Millisecond}, zap.NewNop()), surface
}

func TestExecute_DispatchesEachKind(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   []string
	}{
		{"click default button", Click{X: 10, Y: 20}, []string{"click 10 20 left"}},
		{"click right", Click{X: 1, Y: 2, Button: "right"}, []string{"click 1 2 right"}},
		{"scroll", Scroll{X: 100, Y: 200, ScrollX: 0, ScrollY: 300}, []string{"move 100 200", "scroll 0 300"}},
		{"keypress aliases", Keypress{Keys: []string{"ENTER", "space", "Tab"}}, []string{"press Enter", "press Space", "press Tab"}},
		{"type", Type{Text: "hello world"}, []string{"type hello world"}},
		{"navigate adds scheme", Navigate{URL: "bing.com/search?q=X"}, []string{"navigate https://bing.com/search?q=X"}},
		{"screenshot is a no-op", Screenshot{}, nil},
		{"wait touches nothing", Wait{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, surface := newTestExecutor(t)
			res := exec.Execute(context.Background(), tt.action)
			require.NoError(t, res.Err)
			assert.Equal(t, tt.want, surface.Calls())
		})
	}
}

func TestExecute_WaitPauses(t *testing.T) {
	surface := browsertest.NewStarted()
	exec := New(surface, Options{WaitDuration: 50 * time.Millisecond}, zap.NewNop())

	res := exec.Execute(context.Background(), Wait{})
	require.NoError(t, res.Err)
	assert.GreaterOrEqual(t, res.Duration, 50*time.Millisecond)
}

func TestNew_DefaultWait(t *testing.T) {
	exec := New(browsertest.NewStarted(), Options{}, zap.NewNop())
	assert.Equal(t, 2000*time.Millisecond, exec.opts.WaitDuration)
}

func TestExecute_WaitHonorsCancellation(t *testing.T) {
	surface := browsertest.NewStarted()
	exec := New(surface, Options{WaitDuration: time.Hour}, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := exec.Execute(ctx, Wait{})
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	var actionErr *ActionError
	assert.False(t, errors.As(res.Err, &actionErr), "cancellation is not an action failure")
}

func TestExecute_UnrecognizedIsIsolated(t *testing.T) {
	exec, surface := newTestExecutor(t)

	res := exec.Execute(context.Background(), Unrecognized{Name: "drag"})

	var actionErr *ActionError
	require.ErrorAs(t, res.Err, &actionErr)
	assert.ErrorIs(t, res.Err, ErrUnrecognizedAction)
	assert.Empty(t, surface.Calls())
}

func TestExecute_InvalidInputsFailTheActionOnly(t *testing.T) {
	exec, _ := newTestExecutor(t)
	ctx := context.Background()

	assert.Error(t, exec.Execute(ctx, Click{X: 1, Y: 1, Button: "thumb"}).Err)
	assert.Error(t, exec.Execute(ctx, Keypress{}).Err)
	assert.Error(t, exec.Execute(ctx, Navigate{URL: " "}).Err)
}

func TestExecute_NegativeCoordinates(t *testing.T) {
	exec, surface := newTestExecutor(t)
	ctx := context.Background()

	res := exec.Execute(ctx, Click{X: -4, Y: 10})
	assert.ErrorIs(t, res.Err, ErrOutOfRange)
	var actionErr *ActionError
	assert.ErrorAs(t, res.Err, &actionErr)

	assert.ErrorIs(t, exec.Execute(ctx, Scroll{X: 3, Y: -1, ScrollY: 100}).Err, ErrOutOfRange)
	assert.Empty(t, surface.Calls(), "nothing reaches the surface")
}

func TestExecuteAll_ContinuesAfterFailure(t *testing.T) {
	exec, surface := newTestExecutor(t)
	surface.ClickErr = func(x, y float64) error {
		if x > 1280 {
			return errors.New("coordinates out of range")
		}
		return nil
	}

	results := exec.ExecuteAll(context.Background(), []Action{
		Click{X: 5000, Y: 5000},
		Type{Text: "after"},
		Unrecognized{Name: "hover"},
		Keypress{Keys: []string{"ENTER"}},
	})

	require.Len(t, results, 4)
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.ErrorIs(t, results[2].Err, ErrUnrecognizedAction)
	assert.NoError(t, results[3].Err)
	assert.Equal(t, []string{"click 5000 5000 left", "type after", "press Enter"}, surface.Calls())
}

func TestExecuteAll_StopsOnCancellation(t *testing.T) {
	exec, surface := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := exec.ExecuteAll(ctx, []Action{Type{Text: "a"}, Type{Text: "b"}})
	assert.Empty(t, results)
	assert.Empty(t, surface.Calls())
}

func TestExecute_SurfaceNotStarted(t *testing.T) {
	exec := New(browsertest.New(), Options{}, zap.NewNop())
	res := exec.Execute(context.Background(), Type{Text: "x"})
	var actionErr *ActionError
	assert.ErrorAs(t, res.Err, &actionErr)
}

func TestKeyName(t *testing.T) {
	assert.Equal(t, "Enter", KeyName("ENTER"))
	assert.Equal(t, "Enter", KeyName("enter"))
	assert.Equal(t, "Space", KeyName("SPACE"))
	assert.Equal(t, "ArrowDown", KeyName("ArrowDown"))
	assert.Equal(t, "a", KeyName("a"))
}
