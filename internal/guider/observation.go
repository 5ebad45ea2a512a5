package guider

import (
	"fmt"
	"time"
)

// Exposure is one logged telescope integration: the science-frame filename
// plus the metadata parsed from the observer log. Numeric fields that the log
// leaves blank are NaN.
type Exposure struct {
	// Filename is the science-frame identifier, e.g. "vw004123".
	Filename string
	Target   string

	// Dither is the 1-based dither position within the target's pattern.
	Dither int

	StartTime time.Time
	// ExpTime is the exposure duration in seconds; NaN when unknown.
	ExpTime float64

	// FiducialX, FiducialY are the expected guide-star pixel coordinates,
	// already adjusted for the dither offset; NaN when not logged.
	FiducialX float64
	FiducialY float64

	Airmass float64
	Focus   float64
	// FWHMNoted is the seeing estimate the observer wrote down, if any.
	FWHMNoted float64

	Comments string
}

// Window derives the exposure's active time window. ok is false when the
// exposure duration is unknown or non-positive.
func (e *Exposure) Window() (TimeWindow, bool) {
	w, err := NewTimeWindow(e.StartTime, e.ExpTime)
	if err != nil {
		return TimeWindow{}, false
	}
	return w, true
}

// HasFiducial reports whether both fiducial coordinates are finite.
func (e *Exposure) HasFiducial() bool {
	return isFinite(e.FiducialX) && isFinite(e.FiducialY)
}

// Fiducial returns the fiducial coordinates as a point.
func (e *Exposure) Fiducial() Point {
	return Point{X: e.FiducialX, Y: e.FiducialY}
}

// IsSky reports whether this is an on-sky science exposure, i.e. not a
// calibration frame for the given instrument.
func (e *Exposure) IsSky(in Instrument) bool {
	return !in.IsCalibrationTarget(e.Target)
}

// LongName is the human-readable identifier used in logs and reports,
// e.g. "vw004123 (M52, dither 2)".
func (e *Exposure) LongName() string {
	return fmt.Sprintf("%s (%s, dither %d)", e.Filename, e.Target, e.Dither)
}
