// Package config loads the run configuration from a TOML file. Every field
// has a sensible default, so the tool works without a config file; the file
// overrides whatever it sets.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

// Config is the full run configuration.
type Config struct {
	// GuiderDir holds the guide-camera FITS frames (and the frame index).
	GuiderDir string `toml:"guider_dir"`

	// OutputDir receives plots and reports.
	OutputDir string `toml:"output_dir"`

	// Database is the sqlite results database path.
	Database string `toml:"database"`

	// Workers bounds exposure-level parallelism; 0 means one worker.
	Workers int `toml:"workers"`

	// ClipSigma is the outlier rejection threshold in standard deviations;
	// 0 or negative disables clipping.
	ClipSigma float64 `toml:"clip_sigma"`

	Instrument Instrument `toml:"instrument"`
}

// Instrument mirrors guider.Instrument in TOML-friendly form; the dither
// offset table is an array of tables so the pattern can be re-tuned without
// touching code.
type Instrument struct {
	PixelScale       float64        `toml:"pixel_scale"`
	OverheadSeconds  float64        `toml:"overhead_seconds"`
	CalibrationNames []string       `toml:"calibration_names"`
	DitherOffsets    []DitherOffset `toml:"dither_offsets"`
}

// DitherOffset is one dither position's fiducial pixel offset.
type DitherOffset struct {
	Position int     `toml:"position"`
	X        float64 `toml:"x"`
	Y        float64 `toml:"y"`
}

// Default returns the built-in configuration.
func Default() Config {
	in := guider.DefaultInstrument()
	var offsets []DitherOffset
	for pos := 1; ; pos++ {
		off, ok := in.DitherOffsets[pos]
		if !ok {
			break
		}
		offsets = append(offsets, DitherOffset{Position: pos, X: off.X, Y: off.Y})
	}
	return Config{
		GuiderDir: "guider",
		OutputDir: "output",
		Database:  "vw-explorer.db",
		Workers:   4,
		ClipSigma: guider.DefaultClipSigma,
		Instrument: Instrument{
			PixelScale:       in.PixelScale,
			OverheadSeconds:  in.OverheadSeconds,
			CalibrationNames: in.CalibrationNames,
			DitherOffsets:    offsets,
		},
	}
}

// Load reads path over the defaults. A missing file just yields the
// defaults; a malformed one is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Write saves the configuration, creating parent directories as needed.
func Write(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// GuiderInstrument converts the TOML form into the pipeline's instrument
// configuration.
func (c Config) GuiderInstrument() guider.Instrument {
	offsets := make(map[int]guider.Point, len(c.Instrument.DitherOffsets))
	for _, off := range c.Instrument.DitherOffsets {
		offsets[off.Position] = guider.Point{X: off.X, Y: off.Y}
	}
	return guider.Instrument{
		PixelScale:       c.Instrument.PixelScale,
		OverheadSeconds:  c.Instrument.OverheadSeconds,
		DitherOffsets:    offsets,
		CalibrationNames: c.Instrument.CalibrationNames,
	}
}

// ClipSigmaPtr returns the clip threshold in the pipeline's optional form,
// nil when clipping is disabled.
func (c Config) ClipSigmaPtr() *float64 {
	if c.ClipSigma <= 0 {
		return nil
	}
	return guider.Sigma(c.ClipSigma)
}
