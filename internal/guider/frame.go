package guider

import (
	"fmt"
	"time"
)

// FrameLoader reads the pixel grid for a frame path. The frame index supplies
// one backed by the FITS reader; tests supply synthetic loaders.
type FrameLoader func(path string) (*Image, error)

// FrameSource is one guide-camera frame: header-derived metadata plus a
// lazily loaded pixel buffer. A sequence can span dozens of frames, so the
// buffer is released once a frame's fit has completed; Load reloads it on
// demand (e.g. for stacking).
type FrameSource struct {
	Path      string
	Timestamp time.Time
	ExpTime   float64
	Airmass   float64

	loader FrameLoader
	img    *Image
}

// NewFrameSource creates a frame backed by the given loader.
func NewFrameSource(path string, ts time.Time, expTime, airmass float64, loader FrameLoader) *FrameSource {
	return &FrameSource{
		Path:      path,
		Timestamp: ts,
		ExpTime:   expTime,
		Airmass:   airmass,
		loader:    loader,
	}
}

// Load returns the frame's pixel grid, reading it through the loader on
// first access and caching it until Release.
func (f *FrameSource) Load() (*Image, error) {
	if f.img != nil {
		return f.img, nil
	}
	if f.loader == nil {
		return nil, fmt.Errorf("frame %s: no loader configured", f.Path)
	}
	img, err := f.loader(f.Path)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", f.Path, err)
	}
	f.img = img
	return img, nil
}

// Loaded reports whether the pixel buffer is currently resident.
func (f *FrameSource) Loaded() bool { return f.img != nil }

// Release drops the cached pixel buffer to bound peak memory. Subsequent
// Load calls re-read the frame.
func (f *FrameSource) Release() { f.img = nil }

// Cutout loads the frame and extracts a square cutout of the given size
// centred on frame coordinates (cx, cy).
func (f *FrameSource) Cutout(cx, cy, size float64) (*Cutout, error) {
	img, err := f.Load()
	if err != nil {
		return nil, err
	}
	return CutoutFrom(img, cx, cy, size), nil
}
