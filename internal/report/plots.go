// Package report renders diagnostic plots and night summaries from
// processing results.
package report

import (
	"fmt"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

// CentroidScatterPNG plots per-frame fitted centroids of one sequence, with
// the exposure's fiducial position marked for reference.
func CentroidScatterPNG(seq *guider.ExposureGuideSequence, sigma *float64, path string) error {
	pts := seq.Centroids(sigma)
	if len(pts) == 0 {
		return fmt.Errorf("%s: no centroids to plot", seq.Exposure.Filename)
	}
	xys := make(plotter.XYs, 0, len(pts))
	for _, pt := range pts {
		xys = append(xys, plotter.XY{X: pt.X, Y: pt.Y})
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Guide centroids %s", seq.Exposure.LongName())
	p.X.Label.Text = "x (pix)"
	p.Y.Label.Text = "y (pix)"

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(scatter, plotter.NewGrid())
	p.Legend.Add("centroids", scatter)

	fid, err := plotter.NewScatter(plotter.XYs{{X: seq.Exposure.FiducialX, Y: seq.Exposure.FiducialY}})
	if err != nil {
		return err
	}
	fid.GlyphStyle.Radius = vg.Points(4)
	p.Add(fid)
	p.Legend.Add("fiducial", fid)

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// SeriesPNG plots a per-exposure aggregate over the night, one point per
// exposure in time order. NaN aggregates leave gaps.
func SeriesPNG(stats []guider.ExposureStats, value func(guider.ExposureStats) float64, title, yLabel, path string) error {
	xys := make(plotter.XYs, 0, len(stats))
	for i, st := range stats {
		v := value(st)
		if math.IsNaN(v) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(i), Y: v})
	}
	if len(xys) == 0 {
		return fmt.Errorf("%s: no values to plot", title)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "exposure"
	p.Y.Label.Text = yLabel

	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	points.GlyphStyle.Radius = vg.Points(2)
	p.Add(line, points, plotter.NewGrid())

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}

// FWHMSeriesPNG and FluxSeriesPNG are the two standard night series.
func FWHMSeriesPNG(stats []guider.ExposureStats, path string) error {
	return SeriesPNG(stats, func(st guider.ExposureStats) float64 { return st.FWHMMeanArcsec },
		"Guide-star FWHM", "FWHM (arcsec)", path)
}

func FluxSeriesPNG(stats []guider.ExposureStats, path string) error {
	return SeriesPNG(stats, func(st guider.ExposureStats) float64 { return st.FluxRateMean },
		"Guide-star flux rate", "flux rate (counts/s)", path)
}

// StackedImagePNG renders a stacked frame as a heatmap.
func StackedImagePNG(img *guider.Image, title, path string) error {
	if img.Empty() {
		return fmt.Errorf("%s: empty image", title)
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (pix)"
	p.Y.Label.Text = "y (pix)"

	pal := moreland.ExtendedBlackBody().Palette(255)
	p.Add(plotter.NewHeatMap(imageGrid{img}, pal))

	size := vg.Length(6) * vg.Inch
	return p.Save(size, size*vg.Length(img.Height)/vg.Length(img.Width), path)
}

// imageGrid adapts a pixel grid to the heatmap's data interface. NaN pixels
// render as the palette minimum.
type imageGrid struct {
	img *guider.Image
}

func (g imageGrid) Dims() (c, r int) { return g.img.Width, g.img.Height }
func (g imageGrid) X(c int) float64  { return float64(c) }
func (g imageGrid) Y(r int) float64  { return float64(r) }

func (g imageGrid) Z(c, r int) float64 {
	v := g.img.At(c, r)
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// EnsureDir creates the plot output directory.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
