package report

import (
	"fmt"
	"math"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

// NightSummaryHTML renders an interactive summary page for one processing
// run: image quality and flux over the night, per-exposure frame counts, and
// the dither-chunk breakdown.
func NightSummaryHTML(stats []guider.ExposureStats, chunks []guider.ChunkRecord, path string) error {
	if len(stats) == 0 {
		return fmt.Errorf("no exposure stats to report")
	}

	labels := make([]string, len(stats))
	for i, st := range stats {
		labels[i] = st.Filename
	}

	page := components.NewPage()
	page.SetPageTitle("vw-explorer night summary")
	page.AddCharts(
		seriesLine(labels, stats, "Guide-star FWHM", "arcsec",
			func(st guider.ExposureStats) float64 { return st.FWHMMeanArcsec }),
		seriesLine(labels, stats, "Guide-star flux rate", "counts/s",
			func(st guider.ExposureStats) float64 { return st.FluxRateMean }),
		frameCountBar(labels, stats),
		chunkBar(chunks),
	)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("render summary: %w", err)
	}
	return f.Close()
}

func seriesLine(labels []string, stats []guider.ExposureStats, title, unit string, value func(guider.ExposureStats) float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: unit}),
	)
	data := make([]opts.LineData, len(stats))
	for i, st := range stats {
		v := value(st)
		if math.IsNaN(v) {
			// echarts treats nil values as gaps.
			data[i] = opts.LineData{Value: nil}
			continue
		}
		data[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(labels).AddSeries(title, data)
	return line
}

func frameCountBar(labels []string, stats []guider.ExposureStats) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Guide frames per exposure"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	frames := make([]opts.BarData, len(stats))
	failed := make([]opts.BarData, len(stats))
	for i, st := range stats {
		frames[i] = opts.BarData{Value: st.FrameCount}
		failed[i] = opts.BarData{Value: st.FailedFits}
	}
	bar.SetXAxis(labels).
		AddSeries("frames", frames).
		AddSeries("failed fits", failed)
	return bar
}

func chunkBar(chunks []guider.ChunkRecord) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Dither chunks", Subtitle: "exposures per contiguous dither run"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	labels := make([]string, len(chunks))
	counts := make([]opts.BarData, len(chunks))
	for i, c := range chunks {
		labels[i] = fmt.Sprintf("%s#%d", c.Target, c.Index)
		counts[i] = opts.BarData{Value: c.ExposureCount}
	}
	bar.SetXAxis(labels).AddSeries("exposures", counts)
	return bar
}
