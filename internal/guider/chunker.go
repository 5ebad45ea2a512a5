package guider

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DitherChunk is one maximal run of a target's exposures with strictly
// consecutive dither indices. Index is 0-based within the target's chunk
// list.
type DitherChunk struct {
	Target    string
	Index     int
	Exposures []*Exposure
}

// ChunkExposuresForTarget groups a target's time-ordered exposures into
// contiguous dither runs with a single linear pass. Only an exact +1 dither
// increment continues a chunk; any repeat, reset, or jump starts a new one.
// The chunks partition the input exactly, preserving order.
//
// Zero exposures is an error (there is nothing to anchor the first chunk),
// and so is a mixed-target input.
func ChunkExposuresForTarget(target string, exposures []*Exposure) ([]*DitherChunk, error) {
	if len(exposures) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoExposures, target)
	}
	for _, e := range exposures {
		if e.Target != target {
			return nil, fmt.Errorf("%w: got %q, want %q", ErrMultipleTargets, e.Target, target)
		}
	}

	var chunks []*DitherChunk
	current := &DitherChunk{Target: target, Exposures: []*Exposure{exposures[0]}}
	for _, e := range exposures[1:] {
		prev := current.Exposures[len(current.Exposures)-1]
		if e.Dither == prev.Dither+1 {
			current.Exposures = append(current.Exposures, e)
			continue
		}
		chunks = append(chunks, current)
		current = &DitherChunk{Target: target, Exposures: []*Exposure{e}}
	}
	chunks = append(chunks, current)

	for i, c := range chunks {
		c.Index = i
	}
	return chunks, nil
}

// ChunkAllTargets chunks every target found in the exposure list. Exposures
// are grouped by target preserving their relative order, and targets are
// emitted in order of first appearance.
func ChunkAllTargets(exposures []*Exposure) ([]*DitherChunk, error) {
	byTarget := make(map[string][]*Exposure)
	var order []string
	for _, e := range exposures {
		if _, seen := byTarget[e.Target]; !seen {
			order = append(order, e.Target)
		}
		byTarget[e.Target] = append(byTarget[e.Target], e)
	}

	var all []*DitherChunk
	for _, target := range order {
		chunks, err := ChunkExposuresForTarget(target, byTarget[target])
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// Len returns the number of exposures in the chunk.
func (c *DitherChunk) Len() int { return len(c.Exposures) }

// Name is the chunk's identifier, e.g. "M52_C0".
func (c *DitherChunk) Name() string {
	return fmt.Sprintf("%s_C%d", c.Target, c.Index)
}

// TimeRange returns the earliest start and the latest window end across the
// chunk's exposures. Exposures without a valid window contribute their start
// time only.
func (c *DitherChunk) TimeRange() (start, end time.Time) {
	for i, e := range c.Exposures {
		if i == 0 || e.StartTime.Before(start) {
			start = e.StartTime
		}
		stop := e.StartTime
		if w, ok := e.Window(); ok {
			stop = w.End
		}
		if i == 0 || stop.After(end) {
			end = stop
		}
	}
	return start, end
}

// MeanFiducial returns the mean fiducial position over exposures with finite
// fiducials. ok is false when none has one.
func (c *DitherChunk) MeanFiducial() (Point, bool) {
	var xs, ys []float64
	for _, e := range c.Exposures {
		if e.HasFiducial() {
			xs = append(xs, e.FiducialX)
			ys = append(ys, e.FiducialY)
		}
	}
	if len(xs) == 0 {
		return Point{X: math.NaN(), Y: math.NaN()}, false
	}
	return Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}, true
}

// Filenames returns the member exposure identifiers in order.
func (c *DitherChunk) Filenames() []string {
	names := make([]string, len(c.Exposures))
	for i, e := range c.Exposures {
		names[i] = e.Filename
	}
	return names
}

// Record assembles the persistence-boundary record for the chunk.
func (c *DitherChunk) Record() ChunkRecord {
	start, end := c.TimeRange()
	fid, _ := c.MeanFiducial()
	return ChunkRecord{
		Target:        c.Target,
		Index:         c.Index,
		ExposureCount: c.Len(),
		Start:         start,
		End:           end,
		MeanFiducial:  fid,
		Filenames:     c.Filenames(),
	}
}

// SortExposuresByStart orders exposures ascending by start time in place,
// the order chunking expects.
func SortExposuresByStart(exposures []*Exposure) {
	sort.SliceStable(exposures, func(i, j int) bool {
		return exposures[i].StartTime.Before(exposures[j].StartTime)
	})
}
