package guider

import "strings"

// Instrument holds the instrument-specific constants the pipeline needs.
// These were historically module-level constants; they are carried explicitly
// so the numerical core stays pure and testable.
type Instrument struct {
	// PixelScale is the guide camera plate scale in arcseconds per pixel.
	PixelScale float64

	// OverheadSeconds is the approximate readout/slew overhead between
	// consecutive exposures logged on a single observer-log line.
	OverheadSeconds float64

	// DitherOffsets maps a dither position (1-based) to the fiducial
	// pixel offset applied at that position. Positions outside the map
	// get no offset; the table is tuned to the instrument's current
	// dither pattern.
	DitherOffsets map[int]Point

	// CalibrationNames lists target-name substrings that mark an exposure
	// as a calibration frame (no guide star to fit).
	CalibrationNames []string
}

// DefaultInstrument returns the constants for the VW guide camera.
func DefaultInstrument() Instrument {
	return Instrument{
		PixelScale:      0.533,
		OverheadSeconds: 90,
		DitherOffsets: map[int]Point{
			1: {0.0, 0.0},
			2: {5.3, 2.8},
			3: {0.0, 5.6},
			4: {-1.5, 2.8},
			5: {3.8, 0.0},
			6: {3.8, 5.8},
		},
		CalibrationNames: []string{
			"biases", "autofocus", "domeflats", "arcs",
			"test", "skyflats", "twilight", "twilights",
		},
	}
}

// FiducialForDither applies the dither-position offset to base fiducial
// coordinates. Unknown positions return the base coordinates unchanged.
func (in Instrument) FiducialForDither(dither int, x, y float64) (float64, float64) {
	off, ok := in.DitherOffsets[dither]
	if !ok {
		return x, y
	}
	return x + off.X, y + off.Y
}

// IsCalibrationTarget reports whether the target name denotes a calibration
// frame (bias, flat, arc, ...).
func (in Instrument) IsCalibrationTarget(target string) bool {
	t := strings.ToLower(target)
	for _, name := range in.CalibrationNames {
		if strings.Contains(t, name) {
			return true
		}
	}
	return false
}
