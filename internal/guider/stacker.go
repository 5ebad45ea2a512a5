package guider

import (
	"fmt"
	"math"
)

// StackFrames aligns the frames on their fitted centroids and co-adds them
// into one composite image. centroids must parallel frames (one per frame).
//
// Frames whose centroid is rejected by clip-by-distance at the given sigma
// are excluded; a nil sigma keeps every frame with a finite centroid. Each
// kept frame is normalised by its own exposure duration, shifted by its
// integer pixel offset, and summed; the result is the sum divided by the
// per-pixel coverage count. Sub-pixel offsets are rounded, not interpolated.
func StackFrames(frames []*FrameSource, centroids []Point, sigma *float64) (*Image, error) {
	if len(frames) != len(centroids) {
		return nil, fmt.Errorf("stack: %d frames but %d centroids", len(frames), len(centroids))
	}

	keep := ClipByDistance(centroids, sigma)
	var kept []*FrameSource
	var keptCentroids []Point
	for i, f := range frames {
		c := centroids[i]
		if !keep[i] || !isFinite(c.X) || !isFinite(c.Y) {
			continue
		}
		kept = append(kept, f)
		keptCentroids = append(keptCentroids, c)
	}
	if len(kept) == 0 {
		return nil, ErrNothingToStack
	}

	minX := math.Inf(1)
	minY := math.Inf(1)
	for _, c := range keptCentroids {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
	}

	// Integer pixel offsets relative to the minimum centroid.
	offX := make([]int, len(kept))
	offY := make([]int, len(kept))
	for i, c := range keptCentroids {
		offX[i] = int(math.Round(c.X - minX))
		offY[i] = int(math.Round(c.Y - minY))
	}

	// Canvas covers the union of all frames at their offsets.
	canvasW, canvasH := 0, 0
	for i, f := range kept {
		img, err := f.Load()
		if err != nil {
			return nil, fmt.Errorf("stack: %w", err)
		}
		if w := offX[i] + img.Width; w > canvasW {
			canvasW = w
		}
		if h := offY[i] + img.Height; h > canvasH {
			canvasH = h
		}
	}

	canvas := NewImage(canvasW, canvasH)
	count := make([]int, canvasW*canvasH)

	for i, f := range kept {
		img, err := f.Load()
		if err != nil {
			return nil, fmt.Errorf("stack: %w", err)
		}
		norm := f.ExpTime
		if !isFinite(norm) || norm <= 0 {
			norm = 1
		}
		for y := 0; y < img.Height; y++ {
			cy := y + offY[i]
			for x := 0; x < img.Width; x++ {
				cx := x + offX[i]
				idx := cy*canvasW + cx
				canvas.Pix[idx] += img.At(x, y) / norm
				count[idx]++
			}
		}
		f.Release()
	}

	for i := range canvas.Pix {
		n := count[i]
		if n < 1 {
			n = 1
		}
		canvas.Pix[i] /= float64(n)
	}
	return canvas, nil
}
