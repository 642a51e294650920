package gifgen

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/agent"
	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
)

var _ agent.Recorder = (*Recorder)(nil)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func pngState(t *testing.T, img image.Image, url string) browser.EnvState {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return browser.EnvState{Screenshot: buf.Bytes(), URL: url}
}

func TestEncode(t *testing.T) {
	frames := []image.Image{
		solid(160, 90, color.RGBA{255, 255, 255, 255}),
		solid(160, 90, color.RGBA{0, 0, 0, 255}),
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, frames, Options{FPS: 2, MaxWidth: 80}))

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Len(t, g.Image, 2)
	assert.Equal(t, 80, g.Image[0].Bounds().Dx())
	assert.Equal(t, 45, g.Image[0].Bounds().Dy())
	assert.Equal(t, []int{50, 50}, g.Delay)
}

func TestEncode_NeverUpscales(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, []image.Image{solid(40, 20, color.RGBA{1, 2, 3, 255})}, Options{FPS: 0}))

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	assert.Equal(t, 40, g.Image[0].Bounds().Dx())
	assert.Equal(t, []int{100}, g.Delay, "zero fps falls back to one frame per second")
}

func TestGenerate_NoFrames(t *testing.T) {
	_, err := Generate(nil, filepath.Join(t.TempDir(), "empty.gif"), Options{FPS: 2})
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestGeneratePalette(t *testing.T) {
	p := generatePalette(solid(16, 16, color.RGBA{10, 20, 30, 255}))
	assert.Len(t, p, 256)
	assert.Contains(t, []color.Color(p), color.Color(color.RGBA{10, 20, 30, 255}))
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder(true, zap.NewNop())
	white := solid(100, 60, color.RGBA{255, 255, 255, 255})

	rec.Record(executor.Result{Action: executor.Click{X: 1, Y: 1}}) // no frame yet, dropped
	rec.Observe(pngState(t, white, "https://www.google.com"))
	rec.Record(executor.Result{Action: executor.Click{X: 50, Y: 30}})
	rec.Record(executor.Result{Action: executor.Type{Text: "cats"}})
	rec.Observe(pngState(t, white, "https://www.google.com/search?q=cats"))
	rec.Record(executor.Result{Action: executor.Scroll{X: 50, Y: 10, ScrollY: 200}, Err: errors.New("detached")})
	rec.Observe(browser.EnvState{Screenshot: []byte("not a png")})

	frames := rec.Frames()
	require.Len(t, frames, 2, "undecodable screenshots are skipped")
	assert.NotEqual(t, color.RGBA{255, 255, 255, 255}, frames[0].(*image.RGBA).RGBAAt(50, 30), "click marker drawn")

	path := filepath.Join(t.TempDir(), "demo.gif")
	size, err := rec.Save(path, Options{FPS: 2, MaxWidth: 50})
	require.NoError(t, err)
	assert.Positive(t, size)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
}

func TestRecorder_MarkersOff(t *testing.T) {
	rec := NewRecorder(false, zap.NewNop())
	white := solid(20, 20, color.RGBA{255, 255, 255, 255})
	rec.Observe(pngState(t, white, "about:blank"))
	rec.Record(executor.Result{Action: executor.Click{X: 10, Y: 10}})

	frames := rec.Frames()
	require.Len(t, frames, 1)
	r, g, b, _ := frames[0].At(10, 10).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
}
