package guider

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/stat"
)

// GuessStrategy selects how each frame's fit is seeded within a sequence.
type GuessStrategy int

const (
	// GuessFixed seeds every fit with the exposure's fiducial coordinates.
	// A fixed reference avoids centroid drift accumulating across frames
	// and is the default.
	GuessFixed GuessStrategy = iota

	// GuessChained seeds each fit with the previous accepted fit's
	// centroid, falling back to the fiducial until a fit is accepted.
	// Useful when the source drifts well away from the fiducial, at the
	// cost of outlier sensitivity.
	GuessChained
)

func (s GuessStrategy) String() string {
	switch s {
	case GuessFixed:
		return "fixed"
	case GuessChained:
		return "chained"
	}
	return fmt.Sprintf("GuessStrategy(%d)", int(s))
}

// SequenceOptions configure sequence construction.
type SequenceOptions struct {
	Strategy GuessStrategy

	// CutoutSize is the coarse cutout extracted around the fiducial;
	// 0 means DefaultCutoutSize.
	CutoutSize int

	// FitWindow is the fit sub-window size; 0 means DefaultFitWindow.
	FitWindow int

	// KeepBuffers retains each frame's pixel buffer after its fit instead
	// of releasing it. Stacking reloads frames on demand, so this is only
	// worth setting for small sequences inspected interactively.
	KeepBuffers bool
}

// Stats is a mean/standard-deviation pair over a clipped sample.
type Stats struct {
	Mean   float64
	Std    float64
	N      int
	NTotal int
}

// PointStats aggregates a 2-D sample per axis.
type PointStats struct {
	Mean   Point
	Std    Point
	N      int
	NTotal int
}

// ExposureGuideSequence pairs one exposure with the guide frames captured
// during its time window and one fit per frame (same length, same order).
// A zero-frame sequence is legal; every stats accessor then reports no value.
type ExposureGuideSequence struct {
	Exposure *Exposure
	Window   TimeWindow
	Frames   []*FrameSource
	Fits     []*PointSourceFit
}

// NewExposureGuideSequence selects the frames inside the exposure's time
// window and fits each one. Construction fails when the exposure has no valid
// time window or no finite fiducial coordinates; everything past that point
// degrades gracefully (failed fits are flagged, frames with unreadable pixel
// data are skipped with a log line).
//
// Each frame's pixel buffer is released once its own fit completes, so a
// sequence spanning dozens of frames holds at most one buffer at a time.
func NewExposureGuideSequence(exp *Exposure, frames []*FrameSource, in Instrument, opts SequenceOptions) (*ExposureGuideSequence, error) {
	window, ok := exp.Window()
	if !ok {
		return nil, fmt.Errorf("%s: %w", exp.Filename, ErrNoTimeWindow)
	}
	if !exp.HasFiducial() {
		return nil, fmt.Errorf("%s: %w", exp.Filename, ErrNoFiducial)
	}
	cutoutSize := opts.CutoutSize
	if cutoutSize <= 0 {
		cutoutSize = DefaultCutoutSize
	}

	seq := &ExposureGuideSequence{Exposure: exp, Window: window}
	guessX, guessY := exp.FiducialX, exp.FiducialY

	for _, frame := range window.SelectFrames(frames) {
		cut, err := frame.Cutout(guessX, guessY, float64(cutoutSize))
		if err != nil {
			log.Printf("sequence %s: skipping frame %s: %v", exp.Filename, frame.Path, err)
			continue
		}
		fitOpts := GuessAt(guessX, guessY)
		fitOpts.Window = opts.FitWindow
		fit, err := FitPointSource(cut, frame.ExpTime, fitOpts)
		if !opts.KeepBuffers {
			frame.Release()
		}
		if err != nil {
			log.Printf("sequence %s: skipping frame %s: %v", exp.Filename, frame.Path, err)
			continue
		}
		seq.Frames = append(seq.Frames, frame)
		seq.Fits = append(seq.Fits, fit)

		if opts.Strategy == GuessChained && !fit.HasFailed() {
			c := fit.Centroid()
			guessX, guessY = c.X, c.Y
		}
	}
	return seq, nil
}

// Len returns the number of fitted frames.
func (s *ExposureGuideSequence) Len() int { return len(s.Fits) }

// Centroids returns the fitted per-frame centroids that survive
// clip-by-distance at the given sigma (nil disables clipping). Failed fits
// carry NaN centroids and are rejected by the clip; with clipping disabled
// they pass through.
func (s *ExposureGuideSequence) Centroids(sigma *float64) []Point {
	all := make([]Point, len(s.Fits))
	for i, f := range s.Fits {
		all[i] = f.Centroid()
	}
	keep := ClipByDistance(all, sigma)
	var out []Point
	for i, p := range all {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// CentroidStats returns the per-axis mean and standard deviation of the
// clipped centroids. ok is false when no centroid survives.
func (s *ExposureGuideSequence) CentroidStats(sigma *float64) (PointStats, bool) {
	pts := s.Centroids(sigma)
	// With clipping disabled, failed fits pass through as NaN centroids;
	// keep them out of the aggregation.
	var xs, ys []float64
	for _, p := range pts {
		if isFinite(p.X) && isFinite(p.Y) {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	if len(xs) == 0 {
		return PointStats{NTotal: s.Len()}, false
	}
	return PointStats{
		Mean:   Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)},
		Std:    Point{X: stat.PopStdDev(xs, nil), Y: stat.PopStdDev(ys, nil)},
		N:      len(xs),
		NTotal: s.Len(),
	}, true
}

// FWHMStats returns clipped statistics over the per-frame FWHM in pixels.
// ok is false when no value survives.
func (s *ExposureGuideSequence) FWHMStats(sigma *float64) (Stats, bool) {
	values := make([]float64, len(s.Fits))
	for i, f := range s.Fits {
		values[i] = f.FWHMPix()
	}
	return clippedStats(values, sigma)
}

// FluxRateStats returns clipped statistics over the per-frame total flux
// rate. ok is false when no value survives.
func (s *ExposureGuideSequence) FluxRateStats(sigma *float64) (Stats, bool) {
	values := make([]float64, len(s.Fits))
	for i, f := range s.Fits {
		values[i] = f.TotalFluxRate()
	}
	return clippedStats(values, sigma)
}

// FailedCount returns how many fits in the sequence are flagged as failed.
func (s *ExposureGuideSequence) FailedCount() int {
	n := 0
	for _, f := range s.Fits {
		if f.HasFailed() {
			n++
		}
	}
	return n
}

// StackedImage aligns and co-adds the sequence's frames on their fitted
// centroids. Frames whose centroid is rejected by the clip are excluded.
func (s *ExposureGuideSequence) StackedImage(sigma *float64) (*Image, error) {
	centroids := make([]Point, len(s.Fits))
	for i, f := range s.Fits {
		centroids[i] = f.Centroid()
	}
	return StackFrames(s.Frames, centroids, sigma)
}

// StatsRecord assembles the persistence-boundary record for this sequence
// using the default clip sigma.
func (s *ExposureGuideSequence) StatsRecord(in Instrument) ExposureStats {
	sigma := Sigma(DefaultClipSigma)
	rec := ExposureStats{
		Filename:   s.Exposure.Filename,
		Target:     s.Exposure.Target,
		Dither:     s.Exposure.Dither,
		StartTime:  s.Exposure.StartTime,
		ExpTime:    s.Exposure.ExpTime,
		Airmass:    s.Exposure.Airmass,
		FrameCount: s.Len(),
		FailedFits: s.FailedCount(),

		CentroidMean: Point{X: math.NaN(), Y: math.NaN()},
		CentroidStd:  Point{X: math.NaN(), Y: math.NaN()},
		FWHMMeanPix:  math.NaN(),
		FWHMStdPix:   math.NaN(),
		FluxRateMean: math.NaN(),
		FluxRateStd:  math.NaN(),
	}
	if ps, ok := s.CentroidStats(sigma); ok {
		rec.CentroidMean = ps.Mean
		rec.CentroidStd = ps.Std
	}
	if st, ok := s.FWHMStats(sigma); ok {
		rec.FWHMMeanPix = st.Mean
		rec.FWHMStdPix = st.Std
	}
	if st, ok := s.FluxRateStats(sigma); ok {
		rec.FluxRateMean = st.Mean
		rec.FluxRateStd = st.Std
	}
	rec.FWHMMeanArcsec = rec.FWHMMeanPix * in.PixelScale
	return rec
}

// clippedStats sigma-clips a 1-D sample and aggregates the survivors.
func clippedStats(values []float64, sigma *float64) (Stats, bool) {
	keep := ClipByValue(values, sigma)
	kept := collect(values, keep)
	// Unclipped samples can still carry NaNs from failed fits; they would
	// poison the mean, so a finite-only pass guards the aggregation.
	kept = finiteOnly(kept)
	if len(kept) == 0 {
		return Stats{NTotal: len(values)}, false
	}
	return Stats{
		Mean:   stat.Mean(kept, nil),
		Std:    stat.PopStdDev(kept, nil),
		N:      len(kept),
		NTotal: len(values),
	}, true
}
