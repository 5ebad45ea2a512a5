package guider

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func chunkExposure(target string, dither int, start time.Time) *Exposure {
	return &Exposure{
		Filename:  target + "_exp",
		Target:    target,
		Dither:    dither,
		StartTime: start,
		ExpTime:   120,
		FiducialX: 35,
		FiducialY: 35,
	}
}

func TestChunkerSplitsOnDitherReset(t *testing.T) {
	start := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	var exposures []*Exposure
	for i, d := range []int{1, 2, 3, 1, 2} {
		exposures = append(exposures, chunkExposure("M52", d, start.Add(time.Duration(i)*4*time.Minute)))
	}

	chunks, err := ChunkExposuresForTarget("M52", exposures)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if chunks[0].Index != 0 || chunks[1].Index != 1 {
		t.Errorf("chunk indices = %d, %d", chunks[0].Index, chunks[1].Index)
	}
	if diff := cmp.Diff(exposures[:3], chunks[0].Exposures); diff != "" {
		t.Errorf("chunk 0 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(exposures[3:], chunks[1].Exposures); diff != "" {
		t.Errorf("chunk 1 mismatch (-want +got):\n%s", diff)
	}
}

func TestChunkerPartitionProperty(t *testing.T) {
	start := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	patterns := [][]int{
		{1},
		{1, 2, 3, 4, 5, 6},
		{1, 1, 1},
		{3, 4, 2, 3, 4, 5, 1},
		{6, 1, 2, 2, 3},
	}
	for _, dithers := range patterns {
		var exposures []*Exposure
		for i, d := range dithers {
			exposures = append(exposures, chunkExposure("T", d, start.Add(time.Duration(i)*time.Minute)))
		}
		chunks, err := ChunkExposuresForTarget("T", exposures)
		if err != nil {
			t.Fatalf("dithers %v: %v", dithers, err)
		}

		var flat []*Exposure
		for _, c := range chunks {
			for i := 1; i < len(c.Exposures); i++ {
				if c.Exposures[i].Dither != c.Exposures[i-1].Dither+1 {
					t.Errorf("dithers %v: chunk %d not strictly consecutive", dithers, c.Index)
				}
			}
			flat = append(flat, c.Exposures...)
		}
		if diff := cmp.Diff(exposures, flat); diff != "" {
			t.Errorf("dithers %v: chunks do not partition input (-want +got):\n%s", dithers, diff)
		}
	}
}

func TestChunkerErrors(t *testing.T) {
	if _, err := ChunkExposuresForTarget("M52", nil); !errors.Is(err, ErrNoExposures) {
		t.Errorf("empty input: err = %v, want ErrNoExposures", err)
	}

	start := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	mixed := []*Exposure{
		chunkExposure("M52", 1, start),
		chunkExposure("NGC7789", 2, start.Add(4*time.Minute)),
	}
	if _, err := ChunkExposuresForTarget("M52", mixed); !errors.Is(err, ErrMultipleTargets) {
		t.Errorf("mixed input: err = %v, want ErrMultipleTargets", err)
	}
}

func TestChunkAllTargets(t *testing.T) {
	start := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	exposures := []*Exposure{
		chunkExposure("M52", 1, start),
		chunkExposure("M52", 2, start.Add(4*time.Minute)),
		chunkExposure("NGC7789", 1, start.Add(8*time.Minute)),
		chunkExposure("M52", 1, start.Add(12*time.Minute)),
	}
	chunks, err := ChunkAllTargets(exposures)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, c := range chunks {
		names = append(names, c.Name())
	}
	want := []string{"M52_C0", "M52_C1", "NGC7789_C0"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("chunk names (-want +got):\n%s", diff)
	}
}

func TestChunkRecord(t *testing.T) {
	start := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	a := chunkExposure("M52", 1, start)
	a.FiducialX, a.FiducialY = 30, 40
	b := chunkExposure("M52", 2, start.Add(4*time.Minute))
	b.FiducialX, b.FiducialY = 34, 44
	c := chunkExposure("M52", 3, start.Add(8*time.Minute))
	c.FiducialX, c.FiducialY = math.NaN(), math.NaN()

	chunks, err := ChunkExposuresForTarget("M52", []*Exposure{a, b, c})
	if err != nil {
		t.Fatal(err)
	}
	rec := chunks[0].Record()
	if rec.ExposureCount != 3 {
		t.Errorf("ExposureCount = %d, want 3", rec.ExposureCount)
	}
	if !rec.Start.Equal(start) {
		t.Errorf("Start = %v, want %v", rec.Start, start)
	}
	if wantEnd := c.StartTime.Add(2 * time.Minute); !rec.End.Equal(wantEnd) {
		t.Errorf("End = %v, want %v", rec.End, wantEnd)
	}
	if rec.MeanFiducial.X != 32 || rec.MeanFiducial.Y != 42 {
		t.Errorf("MeanFiducial = %+v, want (32, 42)", rec.MeanFiducial)
	}
	if len(rec.Filenames) != 3 {
		t.Errorf("Filenames = %v", rec.Filenames)
	}
}
