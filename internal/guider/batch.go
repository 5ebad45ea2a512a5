package guider

import (
	"context"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// BatchOptions configure a batch processing run.
type BatchOptions struct {
	// Workers bounds the number of exposures fitted concurrently;
	// values below 1 mean 1.
	Workers int

	// Sequence options applied to every exposure.
	Sequence SequenceOptions
}

// BatchResult summarises one batch run. A skipped exposure is one whose
// sequence could not be constructed (no time window, no fiducial); it never
// aborts the batch.
type BatchResult struct {
	Stats     []ExposureStats
	Processed int
	Skipped   int
}

// ProcessExposures fits every exposure against the frame index in parallel,
// one worker per exposure up to the configured limit. Each worker exclusively
// owns its exposure's frame buffers, so no synchronisation is needed beyond
// collecting results. Per-exposure failures are logged and counted, not
// raised; the only errors returned are context cancellation.
//
// frames must be the fully built index: it is read concurrently and must not
// be mutated while the batch runs.
func ProcessExposures(ctx context.Context, exposures []*Exposure, frames []*FrameSource, in Instrument, opts BatchOptions) (*BatchResult, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	result := &BatchResult{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, exp := range exposures {
		exp := exp
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			seq, err := NewExposureGuideSequence(exp, frames, in, opts.Sequence)
			if err != nil {
				log.Printf("batch: skipping %s: %v", exp.LongName(), err)
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				return nil
			}
			rec := seq.StatsRecord(in)
			mu.Lock()
			result.Stats = append(result.Stats, rec)
			result.Processed++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Workers finish in arbitrary order; restore log order for callers.
	sortStatsByStart(result.Stats)
	return result, nil
}

func sortStatsByStart(stats []ExposureStats) {
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].StartTime.Before(stats[j].StartTime)
	})
}
