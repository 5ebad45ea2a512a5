package guider

import "time"

// ExposureStats is the per-exposure aggregate record handed to persistence
// and plotting. Aggregates that have no surviving sample are NaN.
type ExposureStats struct {
	Filename  string
	Target    string
	Dither    int
	StartTime time.Time
	ExpTime   float64
	Airmass   float64

	FrameCount int
	FailedFits int

	CentroidMean Point
	CentroidStd  Point

	FWHMMeanPix    float64
	FWHMStdPix     float64
	FWHMMeanArcsec float64

	FluxRateMean float64
	FluxRateStd  float64
}

// ChunkRecord is the per-chunk aggregate record handed to persistence.
type ChunkRecord struct {
	Target        string
	Index         int
	ExposureCount int
	Start         time.Time
	End           time.Time
	MeanFiducial  Point
	Filenames     []string
}
