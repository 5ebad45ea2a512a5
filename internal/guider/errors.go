package guider

import "errors"

// Sentinel errors for construction-fatal conditions. Everything past
// construction degrades gracefully (failed fits are flagged, not raised).
var (
	// ErrNoTimeWindow indicates an exposure with an unknown or non-positive
	// exposure time, which cannot span a time window.
	ErrNoTimeWindow = errors.New("exposure has no valid time window")

	// ErrNoFiducial indicates an exposure without finite fiducial guide
	// coordinates, which cannot seed a guide-star fit.
	ErrNoFiducial = errors.New("exposure has no valid fiducial coordinates")

	// ErrEmptyCutout indicates a cutout with no pixels was passed to the fit.
	ErrEmptyCutout = errors.New("empty cutout")

	// ErrNoExposures indicates dither chunking was requested for a target
	// with no exposures.
	ErrNoExposures = errors.New("no exposures for target")

	// ErrNothingToStack indicates no frames survived centroid clipping.
	ErrNothingToStack = errors.New("no frames left to stack")

	// ErrMultipleTargets indicates a dither chunk was built from exposures
	// of more than one target.
	ErrMultipleTargets = errors.New("dither chunk spans multiple targets")
)
