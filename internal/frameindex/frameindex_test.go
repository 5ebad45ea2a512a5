package frameindex

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/FBalzerMPE/vw-explorer/internal/fits"
)

func writeFrame(t *testing.T, path string, ts time.Time, expTime float64) {
	t.Helper()
	f := &fits.File{Width: 4, Height: 4, Data: make([]float64, 16)}
	f.Header.Set("DATE-OBS", ts.Format("2006-01-02"), "")
	f.Header.Set("UT", ts.Format("15:04:05.00"), "")
	f.Header.Set("EXPTIME", strconv.FormatFloat(expTime, 'f', 1, 64), "")
	f.Header.Set("AIRMASS", "1.2", "")
	if err := fits.WriteFile(path, f); err != nil {
		t.Fatal(err)
	}
}

func TestBuildIndexesFramesAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	writeFrame(t, filepath.Join(dir, "g2.fits"), base.Add(time.Minute), 5)
	writeFrame(t, filepath.Join(dir, "g1.fits"), base, 5)

	sub := filepath.Join(dir, "extra")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFrame(t, filepath.Join(sub, "g3.fits"), base.Add(2*time.Minute), 5)

	ix, err := Build(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.Entries) != 3 {
		t.Fatalf("indexed %d frames, want 3", len(ix.Entries))
	}
	for i := 1; i < len(ix.Entries); i++ {
		if ix.Entries[i].Timestamp.Before(ix.Entries[i-1].Timestamp) {
			t.Error("entries not sorted by timestamp")
		}
	}
	if got := filepath.Base(ix.Entries[0].Path); got != "g1.fits" {
		t.Errorf("first entry %s, want g1.fits", got)
	}
	if ix.Entries[0].ExpTime != 5 || ix.Entries[0].Airmass != 1.2 {
		t.Errorf("metadata = %v / %v", ix.Entries[0].ExpTime, ix.Entries[0].Airmass)
	}
}

func TestBuildIsIncremental(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	writeFrame(t, filepath.Join(dir, "g1.fits"), base, 5)

	if _, err := Build(dir, Options{}); err != nil {
		t.Fatal(err)
	}

	// Corrupt the already-indexed frame: an incremental rebuild must keep
	// its cached entry untouched rather than re-reading the header.
	if err := os.WriteFile(filepath.Join(dir, "g1.fits"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeFrame(t, filepath.Join(dir, "g2.fits"), base.Add(time.Minute), 5)

	ix, err := Build(dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.Entries) != 2 {
		t.Fatalf("indexed %d frames, want 2", len(ix.Entries))
	}
	if !ix.Entries[0].Timestamp.Equal(base) {
		t.Errorf("cached entry timestamp = %v, want %v", ix.Entries[0].Timestamp, base)
	}
}

func TestBuildRemoveMissing(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2023, 9, 14, 22, 0, 0, 0, time.UTC)
	gone := filepath.Join(dir, "g1.fits")
	writeFrame(t, gone, base, 5)
	writeFrame(t, filepath.Join(dir, "g2.fits"), base.Add(time.Minute), 5)

	if _, err := Build(dir, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	ix, err := Build(dir, Options{RemoveMissing: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.Entries) != 1 {
		t.Fatalf("indexed %d frames, want 1", len(ix.Entries))
	}
	if got := filepath.Base(ix.Entries[0].Path); got != "g2.fits" {
		t.Errorf("surviving entry %s, want g2.fits", got)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2023, 9, 14, 22, 41, 3, 520000000, time.UTC)
	writeFrame(t, filepath.Join(dir, "g1.fits"), base, 5)

	if _, err := Build(dir, Options{}); err != nil {
		t.Fatal(err)
	}
	ix, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ix.Entries) != 1 {
		t.Fatalf("loaded %d entries, want 1", len(ix.Entries))
	}
	if !ix.Entries[0].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", ix.Entries[0].Timestamp, base)
	}

	frames := ix.FrameSources()
	if len(frames) != 1 {
		t.Fatalf("got %d frame sources", len(frames))
	}
	img, err := frames[0].Load()
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 4 || img.Height != 4 {
		t.Errorf("frame %dx%d, want 4x4", img.Width, img.Height)
	}
}

func TestLoadMissingCache(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected an error for a directory without an index")
	}
}

func TestFormatFloatNaN(t *testing.T) {
	if got := formatFloat(math.NaN()); got != "" {
		t.Errorf("formatFloat(NaN) = %q, want empty", got)
	}
	if got := parseFloat(""); !math.IsNaN(got) {
		t.Errorf("parseFloat(\"\") = %v, want NaN", got)
	}
}
