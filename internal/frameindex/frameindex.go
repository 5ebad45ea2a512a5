// Package frameindex maintains the timestamp index of guide-camera FITS
// frames. Scanning a night's directory means opening thousands of headers, so
// the index is cached as a CSV next to the frames and rebuilt incrementally:
// only files not yet present in the cache get their headers read.
package frameindex

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/FBalzerMPE/vw-explorer/internal/fits"
	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

// IndexFilename is the cache file kept inside the frame directory.
const IndexFilename = "guider_index.csv"

const timeLayout = "2006-01-02T15:04:05.999999999"

// Entry is one indexed frame.
type Entry struct {
	Path      string
	Timestamp time.Time
	ExpTime   float64
	Airmass   float64
}

// Index is the full frame index of one directory, sorted by timestamp.
type Index struct {
	Dir     string
	Entries []Entry
}

// Options control index building.
type Options struct {
	// ForceReload ignores the cached CSV and re-reads every header.
	ForceReload bool

	// RemoveMissing drops cached entries whose files no longer exist.
	RemoveMissing bool
}

// Build scans dir and its immediate subdirectories for *.fits files, merges
// them with the cached index, and writes the cache back. Files whose headers
// cannot be read fall back to their modification time with a log line; they
// are never fatal.
func Build(dir string, opts Options) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	cachePath := filepath.Join(dir, IndexFilename)

	var cached []Entry
	if !opts.ForceReload {
		cached, err = readCache(cachePath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("frameindex: ignoring unreadable cache %s: %v", cachePath, err)
		}
	}
	if opts.RemoveMissing {
		kept := cached[:0]
		for _, e := range cached {
			if _, err := os.Stat(e.Path); err == nil {
				kept = append(kept, e)
			}
		}
		if len(kept) < len(cached) {
			log.Printf("frameindex: dropped %d entries for missing files", len(cached)-len(kept))
		}
		cached = kept
	}

	known := make(map[string]bool, len(cached))
	for _, e := range cached {
		known[e.Path] = true
	}

	paths, err := scanFrames(dir)
	if err != nil {
		return nil, err
	}
	var fresh []string
	for _, p := range paths {
		if !known[p] {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) > 500 {
		log.Printf("frameindex: %d new files to index in %s, this may take a while", len(fresh), dir)
	}

	entries := cached
	for _, p := range fresh {
		entries = append(entries, indexFrame(p))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	ix := &Index{Dir: dir, Entries: entries}
	if len(fresh) > 0 || opts.RemoveMissing || opts.ForceReload {
		if err := writeCache(cachePath, entries); err != nil {
			return nil, err
		}
	}
	return ix, nil
}

// Load reads the cached index without scanning the directory.
func Load(dir string) (*Index, error) {
	entries, err := readCache(filepath.Join(dir, IndexFilename))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return &Index{Dir: dir, Entries: entries}, nil
}

// FrameSources adapts the index to the fitting pipeline. Pixel data is read
// through the FITS loader on demand.
func (ix *Index) FrameSources() []*guider.FrameSource {
	frames := make([]*guider.FrameSource, len(ix.Entries))
	for i, e := range ix.Entries {
		frames[i] = guider.NewFrameSource(e.Path, e.Timestamp, e.ExpTime, e.Airmass, LoadImage)
	}
	return frames
}

// LoadImage reads a FITS frame into the pipeline's image type.
func LoadImage(path string) (*guider.Image, error) {
	f, err := fits.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &guider.Image{Width: f.Width, Height: f.Height, Pix: f.Data}, nil
}

// indexFrame reads one frame's header; unreadable headers fall back to the
// file modification time.
func indexFrame(path string) Entry {
	e := Entry{Path: path, ExpTime: math.NaN(), Airmass: math.NaN()}
	h, err := fits.ReadHeaderFile(path)
	if err == nil {
		e.ExpTime = h.Float("EXPTIME")
		e.Airmass = h.Float("AIRMASS")
		if ts, terr := h.ObsTime(); terr == nil {
			e.Timestamp = ts
			return e
		}
		err = errors.New("header has no usable DATE-OBS/UT")
	}
	log.Printf("frameindex: %s: %v, using file modification time", path, err)
	if info, serr := os.Stat(path); serr == nil {
		e.Timestamp = info.ModTime().UTC()
	}
	return e
}

// scanFrames lists *.fits in dir and its immediate subdirectories, in
// modification-time order per directory.
func scanFrames(dir string) ([]string, error) {
	var paths []string
	addDir := func(d string) error {
		matches, err := filepath.Glob(filepath.Join(d, "*.fits"))
		if err != nil {
			return err
		}
		sort.Slice(matches, func(i, j int) bool {
			return mtime(matches[i]).Before(mtime(matches[j]))
		})
		paths = append(paths, matches...)
		return nil
	}
	if err := addDir(dir); err != nil {
		return nil, err
	}
	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.IsDir() {
			if err := addDir(filepath.Join(dir, c.Name())); err != nil {
				return nil, err
			}
		}
	}
	return paths, nil
}

func mtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func readCache(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "timestamp" {
			continue
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("%s: malformed row %d", path, i+1)
		}
		ts, err := time.Parse(timeLayout, row[0])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		e := Entry{Timestamp: ts, Path: row[1], ExpTime: math.NaN(), Airmass: math.NaN()}
		if len(row) > 2 {
			e.ExpTime = parseFloat(row[2])
		}
		if len(row) > 3 {
			e.Airmass = parseFloat(row[3])
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func writeCache(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "fname", "exptime", "airmass"}); err != nil {
		f.Close()
		return err
	}
	for _, e := range entries {
		row := []string{
			e.Timestamp.Format(timeLayout),
			e.Path,
			formatFloat(e.ExpTime),
			formatFloat(e.Airmass),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func formatFloat(v float64) string {
	if v != v {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

