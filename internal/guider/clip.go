package guider

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultClipSigma is the clip threshold used by the per-exposure statistics
// when the caller does not override it.
const DefaultClipSigma = 2.5

// maxClipIterations bounds the iterative rejection loop. The loop almost
// always stabilises after one or two passes.
const maxClipIterations = 5

// Point is a 2-D pixel coordinate.
type Point struct {
	X, Y float64
}

// Sigma returns a pointer to v, for use as an optional clip threshold.
// A nil threshold disables clipping entirely.
func Sigma(v float64) *float64 { return &v }

// ClipByValue performs iterative sigma-clipping on a 1-D sample and returns a
// keep-mask over the input. Non-finite values are never kept. A nil sigma
// keeps everything; samples of size 0 or 1 are trivially kept in full.
func ClipByValue(values []float64, sigma *float64) []bool {
	keep := make([]bool, len(values))
	for i := range keep {
		keep[i] = true
	}
	if sigma == nil || len(values) <= 1 {
		return keep
	}

	for i, v := range values {
		if !isFinite(v) {
			keep[i] = false
		}
	}

	for iter := 0; iter < maxClipIterations; iter++ {
		kept := collect(values, keep)
		if len(kept) <= 1 {
			break
		}
		center := median(kept)
		spread := stat.PopStdDev(kept, nil)
		if spread == 0 || !isFinite(spread) {
			break
		}
		changed := false
		for i, v := range values {
			if keep[i] && math.Abs(v-center) > *sigma*spread {
				keep[i] = false
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return keep
}

// ClipByDistance sigma-clips a 2-D point cloud on each point's Euclidean
// distance from the sample median point, returning a keep-mask over the
// input. Clipping on the joint distance rejects whole outlier points instead
// of clipping x and y independently, which could partially reject a frame.
func ClipByDistance(points []Point, sigma *float64) []bool {
	keep := make([]bool, len(points))
	for i := range keep {
		keep[i] = true
	}
	if sigma == nil || len(points) <= 1 {
		return keep
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	medX := median(finiteOnly(xs))
	medY := median(finiteOnly(ys))

	dists := make([]float64, len(points))
	for i, p := range points {
		dists[i] = math.Hypot(p.X-medX, p.Y-medY)
	}
	return ClipByValue(dists, sigma)
}

// median returns the median of xs, NaN for an empty sample.
func median(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// collect returns the values where the mask is set.
func collect(values []float64, keep []bool) []float64 {
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if keep[i] {
			out = append(out, v)
		}
	}
	return out
}

func finiteOnly(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, v := range xs {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
