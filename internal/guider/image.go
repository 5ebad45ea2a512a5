package guider

// Image is a dense row-major 2-D pixel grid. Pix[y*Width+x] addresses the
// pixel at column x, row y.
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// NewImage allocates a zeroed image of the given dimensions.
func NewImage(width, height int) *Image {
	return &Image{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the pixel value at (x, y). Bounds are the caller's concern.
func (im *Image) At(x, y int) float64 { return im.Pix[y*im.Width+x] }

// Set stores v at (x, y).
func (im *Image) Set(x, y int, v float64) { im.Pix[y*im.Width+x] = v }

// Empty reports whether the image has no pixels.
func (im *Image) Empty() bool { return im == nil || im.Width <= 0 || im.Height <= 0 }

// Cutout is a rectangular sub-region of a frame, together with the origin
// that maps cutout-local coordinates back to frame-global ones.
type Cutout struct {
	Data *Image

	// OriginX, OriginY are the frame-global coordinates of the cutout's
	// (0, 0) pixel.
	OriginX int
	OriginY int
}

// CutoutFrom extracts a square region of the given size centred on
// (cx, cy), clamped to the image bounds. The returned cutout owns a copy of
// the pixel data.
func CutoutFrom(im *Image, cx, cy, size float64) *Cutout {
	half := size / 2
	xmin := clampInt(int(cx-half), 0, im.Width)
	xmax := clampInt(int(cx+half), 0, im.Width)
	ymin := clampInt(int(cy-half), 0, im.Height)
	ymax := clampInt(int(cy+half), 0, im.Height)

	w := xmax - xmin
	h := ymax - ymin
	out := NewImage(maxInt(w, 0), maxInt(h, 0))
	for y := 0; y < h; y++ {
		copy(out.Pix[y*w:(y+1)*w], im.Pix[(ymin+y)*im.Width+xmin:(ymin+y)*im.Width+xmax])
	}
	return &Cutout{Data: out, OriginX: xmin, OriginY: ymin}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
