// vwexplorer reduces a night of guide-camera data: it indexes the guide
// frames, fits the guide star on every frame of every logged exposure,
// aggregates image quality and flux statistics, groups exposures into dither
// chunks, and renders stacks and summary reports.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FBalzerMPE/vw-explorer/internal/config"
	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

var (
	configPath string
	guiderDir  string
	outputDir  string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:   "vwexplorer",
	Short: "Guide-camera reduction pipeline",
	Long: `vwexplorer turns a night's guide-camera frames and the observer log
into per-exposure guide-star statistics, dither chunks, stacked images,
and summary reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "vw-explorer.toml", "configuration file")
	pf.StringVar(&guiderDir, "guider-dir", "", "override the guide-frame directory")
	pf.StringVar(&outputDir, "output-dir", "", "override the output directory")
	pf.StringVar(&dbPath, "db", "", "override the results database path")
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if guiderDir != "" {
		cfg.GuiderDir = guiderDir
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}
	return cfg, nil
}

// signalContext returns a context cancelled by SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// skyExposures drops calibration frames; they have no guide star to fit.
func skyExposures(exposures []*guider.Exposure, in guider.Instrument) []*guider.Exposure {
	var out []*guider.Exposure
	for _, e := range exposures {
		if e.IsSky(in) {
			out = append(out, e)
		}
	}
	return out
}
