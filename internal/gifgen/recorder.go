package gifgen

import (
	"bytes"
	"image"
	"image/png"
	"sync"

	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/browser"
	"github.com/v0xg/cuagent/internal/executor"
	"github.com/v0xg/cuagent/internal/overlay"
)

type frame struct {
	img     image.Image
	markers []overlay.Marker
}

// Recorder collects observations of a run and the actions taken on each one
type Recorder struct {
	markers bool
	logger  *zap.Logger

	mu     sync.Mutex
	frames []frame
}

// NewRecorder creates a recorder. When markers is false actions are not drawn.
func NewRecorder(markers bool, logger *zap.Logger) *Recorder {
	return &Recorder{
		markers: markers,
		logger:  logger.Named("recorder"),
	}
}

// Observe appends the observation's screenshot as a new frame
func (r *Recorder) Observe(state browser.EnvState) {
	img, err := png.Decode(bytes.NewReader(state.Screenshot))
	if err != nil {
		r.logger.Warn("Skipping undecodable screenshot", zap.String("url", state.URL), zap.Error(err))
		return
	}
	r.mu.Lock()
	r.frames = append(r.frames, frame{img: img})
	r.mu.Unlock()
}

// Record marks a pointer action on the most recent frame
func (r *Recorder) Record(res executor.Result) {
	if !r.markers {
		return
	}
	var m overlay.Marker
	switch a := res.Action.(type) {
	case executor.Click:
		m = overlay.Marker{X: int(a.X), Y: int(a.Y), Kind: overlay.MarkerClick}
	case executor.Scroll:
		m = overlay.Marker{
			X: int(a.X), Y: int(a.Y), Kind: overlay.MarkerScroll,
			DX: int(a.ScrollX), DY: int(a.ScrollY),
		}
	default:
		return
	}
	m.Failed = res.Err != nil

	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.frames); n > 0 {
		r.frames[n-1].markers = append(r.frames[n-1].markers, m)
	}
}

// Frames returns the recorded frames with markers applied
func (r *Recorder) Frames() []image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]image.Image, len(r.frames))
	for i, f := range r.frames {
		if len(f.markers) == 0 {
			out[i] = f.img
			continue
		}
		out[i] = overlay.Apply(f.img, f.markers)
	}
	return out
}

// Save writes the recording to path and returns its size in bytes
func (r *Recorder) Save(path string, opts Options) (int64, error) {
	frames := r.Frames()
	size, err := Generate(frames, path, opts)
	if err != nil {
		return 0, err
	}
	r.logger.Info("Recording saved",
		zap.String("path", path),
		zap.Int("frames", len(frames)),
		zap.Int64("bytes", size))
	return size, nil
}
