package guider

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// TimeWindow is the active interval of one exposure. It is derived from the
// logged start time and exposure duration and is immutable once created.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// NewTimeWindow builds a window from a start time and an exposure duration in
// seconds. A non-finite or non-positive duration returns ErrNoTimeWindow;
// callers treat this as "no window", not as a failure.
func NewTimeWindow(start time.Time, expSeconds float64) (TimeWindow, error) {
	if math.IsNaN(expSeconds) || math.IsInf(expSeconds, 0) || expSeconds <= 0 {
		return TimeWindow{}, fmt.Errorf("%w: exposure time %v s", ErrNoTimeWindow, expSeconds)
	}
	d := time.Duration(expSeconds * float64(time.Second))
	return TimeWindow{Start: start, End: start.Add(d)}, nil
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Mid returns the midpoint of the window.
func (w TimeWindow) Mid() time.Time { return w.Start.Add(w.Duration() / 2) }

// Contains reports whether t lies inside the window, inclusive on both ends.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// SelectFrames returns the frames whose capture timestamps fall inside the
// window, in ascending timestamp order. The input is not modified.
func (w TimeWindow) SelectFrames(frames []*FrameSource) []*FrameSource {
	var selected []*FrameSource
	for _, f := range frames {
		if w.Contains(f.Timestamp) {
			selected = append(selected, f)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Timestamp.Before(selected[j].Timestamp)
	})
	return selected
}

func (w TimeWindow) String() string {
	if w.Start.Truncate(24 * time.Hour).Equal(w.End.Truncate(24 * time.Hour)) {
		return fmt.Sprintf("%s to %s (duration: %s)",
			w.Start.Format("2006-01-02 15:04:05"), w.End.Format("15:04:05"), w.Duration())
	}
	return fmt.Sprintf("%s to %s (duration: %s)",
		w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339), w.Duration())
}
