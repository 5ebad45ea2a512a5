package guider

import (
	"fmt"
	"math"
)

// Fit tuning defaults. The coarse cutout around the fiducial position is
// wide enough to survive pointing drift; the fit itself runs on a narrower
// window re-extracted around the peak.
const (
	DefaultWidthGuess = 3.0  // initial Gaussian stddev in pixels
	DefaultFitWindow  = 20   // fit sub-window size in pixels (radius 10)
	DefaultCutoutSize = 70   // coarse cutout around the fiducial (radius 35)
	MaxPlausibleFWHM  = 30.0 // pixels; larger fits are flagged as failed
	MaxFitIterations  = 200

	// fwhmPerStddev converts a Gaussian stddev to full width at half
	// maximum: 2*sqrt(2*ln 2).
	fwhmPerStddev = 2.355
)

// FitParams are the fitted model parameters. CenterX/CenterY are in
// frame-global pixel coordinates.
type FitParams struct {
	Amplitude  float64
	CenterX    float64
	CenterY    float64
	StddevX    float64
	StddevY    float64
	Background float64
}

// FitOptions control the sub-window extraction and initial guesses.
type FitOptions struct {
	// GuessX, GuessY seed the fit in frame-global coordinates. NaN means
	// no seed: the brightest finite pixel is used instead. Construct via
	// GuessAt or NoGuess; the zero value seeds at (0, 0).
	GuessX, GuessY float64

	// WidthGuess is the initial stddev; 0 means DefaultWidthGuess.
	WidthGuess float64

	// Window is the fit sub-window size in pixels; 0 means DefaultFitWindow.
	Window int
}

// NoGuess returns FitOptions that locate the peak instead of using a seed.
func NoGuess() FitOptions {
	return FitOptions{GuessX: math.NaN(), GuessY: math.NaN()}
}

// GuessAt returns FitOptions seeded at frame-global coordinates (x, y).
func GuessAt(x, y float64) FitOptions {
	return FitOptions{GuessX: x, GuessY: y}
}

// PointSourceFit is a completed 2-D Gaussian-plus-background fit over a
// cutout. It is immutable after construction; implausible or diverged fits
// are flagged through HasFailed rather than raised.
type PointSourceFit struct {
	Cutout  *Cutout
	Params  FitParams
	ExpTime float64

	// converged records whether the solver met its convergence criteria.
	converged bool
	// localX, localY are the fitted centre in cutout-local coordinates,
	// kept for residual evaluation.
	localX, localY float64
}

// FitPointSource fits the point-source model to a cutout. An empty cutout is
// a construction error (there is nothing to fit); a cutout with no finite
// pixels, or a fit that does not converge, yields a fit with HasFailed=true.
func FitPointSource(c *Cutout, expTime float64, opts FitOptions) (*PointSourceFit, error) {
	if c == nil || c.Data.Empty() {
		return nil, fmt.Errorf("%w: check coordinates and cutout size", ErrEmptyCutout)
	}
	data := c.Data
	width := opts.WidthGuess
	if width <= 0 {
		width = DefaultWidthGuess
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultFitWindow
	}

	// Locate the sub-window centre: explicit guess (rounded to a pixel)
	// or the brightest finite pixel.
	peakX, peakY, found := peakPixel(data)
	haveGuess := isFinite(opts.GuessX) && isFinite(opts.GuessY)
	if haveGuess {
		peakX = int(math.Round(opts.GuessX - float64(c.OriginX)))
		peakY = int(math.Round(opts.GuessY - float64(c.OriginY)))
	} else if !found {
		// Nothing finite anywhere: flag and bail out without fitting.
		return failedFit(c, expTime), nil
	}

	half := window / 2
	if half < 1 {
		half = 1
	}
	xmin := clampInt(peakX-half, 0, data.Width)
	xmax := clampInt(peakX+half+1, 0, data.Width)
	ymin := clampInt(peakY-half, 0, data.Height)
	ymax := clampInt(peakY+half+1, 0, data.Height)
	if xmax <= xmin || ymax <= ymin {
		return nil, fmt.Errorf("%w: fit window outside cutout", ErrEmptyCutout)
	}
	subW := float64(xmax - xmin)
	subH := float64(ymax - ymin)

	// Flatten the finite pixels of the sub-window; non-finite input is
	// masked out of the fit entirely.
	var xs, ys, zs []float64
	var finite []float64
	maxVal := math.Inf(-1)
	for y := ymin; y < ymax; y++ {
		for x := xmin; x < xmax; x++ {
			v := data.At(x, y)
			if !isFinite(v) {
				continue
			}
			xs = append(xs, float64(x-xmin))
			ys = append(ys, float64(y-ymin))
			zs = append(zs, v)
			finite = append(finite, v)
			if v > maxVal {
				maxVal = v
			}
		}
	}
	if len(finite) == 0 {
		return failedFit(c, expTime), nil
	}

	bg := median(finite)
	amp := math.Max(maxVal-bg, 1.0)

	// Initial centre in sub-window coordinates.
	var x0, y0 float64
	if haveGuess {
		x0 = opts.GuessX - float64(c.OriginX) - float64(xmin)
		y0 = opts.GuessY - float64(c.OriginY) - float64(ymin)
	} else {
		lx, ly, _ := peakPixelRegion(data, xmin, ymin, xmax, ymax)
		x0 = float64(lx - xmin)
		y0 = float64(ly - ymin)
	}

	p0 := []float64{amp, x0, y0, width, width, bg}
	lo := []float64{0, 0, 0, 0.5, 0.5, math.Inf(-1)}
	hi := []float64{math.Inf(1), subW, subH, subW / 2, subH / 2, math.Inf(1)}

	p, converged := levmarGaussian(xs, ys, zs, p0, lo, hi, MaxFitIterations)

	localX := p[1] + float64(xmin)
	localY := p[2] + float64(ymin)
	return &PointSourceFit{
		Cutout: c,
		Params: FitParams{
			Amplitude:  p[0],
			CenterX:    localX + float64(c.OriginX),
			CenterY:    localY + float64(c.OriginY),
			StddevX:    p[3],
			StddevY:    p[4],
			Background: p[5],
		},
		ExpTime:   expTime,
		converged: converged,
		localX:    localX,
		localY:    localY,
	}, nil
}

// failedFit builds the NaN-bearing placeholder for cutouts that cannot be
// fitted at all (no finite pixels).
func failedFit(c *Cutout, expTime float64) *PointSourceFit {
	nan := math.NaN()
	return &PointSourceFit{
		Cutout: c,
		Params: FitParams{
			Amplitude: nan, CenterX: nan, CenterY: nan,
			StddevX: nan, StddevY: nan, Background: nan,
		},
		ExpTime: expTime,
		localX:  nan,
		localY:  nan,
	}
}

// Converged reports whether the solver met its convergence criteria. A
// non-converged fit is not necessarily useless; HasFailed is the
// plausibility gate.
func (f *PointSourceFit) Converged() bool { return f.converged }

// HasFailed reports whether the fit is physically implausible: an oversized
// FWHM or a non-finite centre. This flags saturated, diverged, or
// pathological fits without raising.
func (f *PointSourceFit) HasFailed() bool {
	return f.FWHMPix() > MaxPlausibleFWHM ||
		!isFinite(f.Params.CenterX) || !isFinite(f.Params.CenterY)
}

// Centroid returns the fitted centre in frame-global coordinates.
func (f *PointSourceFit) Centroid() Point {
	return Point{X: f.Params.CenterX, Y: f.Params.CenterY}
}

// FWHMPix is the fitted full width at half maximum in pixels, using the
// smaller of the two axis widths.
func (f *PointSourceFit) FWHMPix() float64 {
	return fwhmPerStddev * math.Min(f.Params.StddevX, f.Params.StddevY)
}

// FWHMArcsec converts FWHMPix using the instrument pixel scale.
func (f *PointSourceFit) FWHMArcsec(pixelScale float64) float64 {
	return f.FWHMPix() * pixelScale
}

// TotalFluxRate is the integral of the fitted Gaussian divided by the
// exposure time:
//
//	flux = 2*pi*sx*sy*A, rate = flux / exptime
func (f *PointSourceFit) TotalFluxRate() float64 {
	flux := 2 * math.Pi * f.Params.StddevX * f.Params.StddevY * f.Params.Amplitude
	return flux / f.ExpTime
}

// Residuals returns cutout minus model over the full cutout grid. Pixels
// that were non-finite in the input stay NaN in the residual image. Used for
// diagnostics only.
func (f *PointSourceFit) Residuals() *Image {
	data := f.Cutout.Data
	out := NewImage(data.Width, data.Height)
	p := []float64{
		f.Params.Amplitude, f.localX, f.localY,
		f.Params.StddevX, f.Params.StddevY, f.Params.Background,
	}
	for y := 0; y < data.Height; y++ {
		for x := 0; x < data.Width; x++ {
			v := data.At(x, y)
			if !isFinite(v) {
				out.Set(x, y, math.NaN())
				continue
			}
			out.Set(x, y, v-gaussianEval(float64(x), float64(y), p))
		}
	}
	return out
}

// peakPixel returns the coordinates of the brightest finite pixel.
func peakPixel(im *Image) (x, y int, found bool) {
	return peakPixelRegion(im, 0, 0, im.Width, im.Height)
}

func peakPixelRegion(im *Image, xmin, ymin, xmax, ymax int) (px, py int, found bool) {
	best := math.Inf(-1)
	for y := ymin; y < ymax; y++ {
		for x := xmin; x < xmax; x++ {
			v := im.At(x, y)
			if isFinite(v) && v > best {
				best = v
				px, py = x, y
				found = true
			}
		}
	}
	return px, py, found
}
