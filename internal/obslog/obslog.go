// Package obslog parses the observer's night log into exposures. A log line
// is whitespace-separated:
//
//	vw004123-125  22:41  M52_D1  120  3.2  1.1  512.3,488.0  1.15  notes...
//
// with the columns files, UT start, target(+dither), exposure time, focus,
// noted FWHM, fiducial coordinates, airmass, and free-text comments. Date
// context comes from "# date: YYYY-MM-DD" lines; every other non-vw line is
// ignored.
package obslog

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

const datePrefix = "# date: "

// minColumns is every column except the free-text comment tail.
const minColumns = 8

var (
	ErrNoDateLines    = errors.New("logfile has no \"# date:\" lines")
	ErrNoObservations = errors.New("no observations parsed from logfile")
)

// ParseFile parses a night log. Malformed exposure lines are logged and
// skipped; missing date context, duplicate filenames, or an empty result are
// errors. The returned exposures are sorted by start time.
func ParseFile(path string, in guider.Instrument) ([]*guider.Exposure, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var exposures []*guider.Exposure
	var day time.Time
	var lastDay time.Time
	haveDate := false

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		switch {
		case strings.HasPrefix(line, datePrefix):
			parsed, err := time.Parse("2006-01-02", strings.TrimSpace(strings.TrimPrefix(line, datePrefix)))
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad date line: %w", path, lineNo, err)
			}
			// The log is written newest-night-first; anything else
			// points at a mislabelled date line.
			if haveDate {
				delta := int(parsed.Sub(lastDay).Hours() / 24)
				if delta < -2 || delta > 1 {
					return nil, fmt.Errorf("%s line %d: date %s differs from previous %s by %d days",
						path, lineNo, parsed.Format("2006-01-02"), lastDay.Format("2006-01-02"), delta)
				}
			}
			day = parsed
			lastDay = parsed
			haveDate = true

		case strings.HasPrefix(line, "vw"):
			if !haveDate {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNo, ErrNoDateLines)
			}
			entries, err := ParseLine(line, day, in)
			if err != nil {
				log.Printf("obslog: %s line %d: skipping: %v", path, lineNo, err)
				continue
			}
			if len(entries) > 20 {
				log.Printf("obslog: %s line %d: yielded %d observations, check the log there", path, lineNo, len(entries))
			}
			exposures = append(exposures, entries...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !haveDate {
		return nil, fmt.Errorf("%s: %w", path, ErrNoDateLines)
	}
	if len(exposures) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoObservations)
	}

	seen := make(map[string]bool, len(exposures))
	for _, e := range exposures {
		if seen[e.Filename] {
			return nil, fmt.Errorf("%s: duplicate filename %s", path, e.Filename)
		}
		seen[e.Filename] = true
	}

	sort.SliceStable(exposures, func(i, j int) bool {
		return exposures[i].StartTime.Before(exposures[j].StartTime)
	})
	return exposures, nil
}

// ParseLine expands one log line into exposures, one per file in the line's
// filename range. Consecutive files advance the dither position by one, shift
// the fiducial by the instrument's dither offset, and space start times by
// the exposure time plus readout/slew overhead.
func ParseLine(line string, day time.Time, in guider.Instrument) ([]*guider.Exposure, error) {
	parts := strings.Fields(line)
	if len(parts) < minColumns {
		return nil, fmt.Errorf("only %d columns, expected at least %d", len(parts), minColumns)
	}

	files, err := ParseFilenames(parts[0])
	if err != nil {
		return nil, err
	}
	startClock, err := parseUT(parts[1])
	if err != nil {
		return nil, err
	}
	target, baseDither, err := parseTargetDither(parts[2])
	if err != nil {
		return nil, err
	}
	expTime, err := parseOptionalFloat(parts[3])
	if err != nil {
		return nil, fmt.Errorf("exptime: %w", err)
	}
	focus, err := parseOptionalFloat(parts[4])
	if err != nil {
		return nil, fmt.Errorf("focus: %w", err)
	}
	fwhm, err := parseOptionalFloat(parts[5])
	if err != nil {
		return nil, fmt.Errorf("fwhm: %w", err)
	}
	fidX, fidY, err := parseFiducial(parts[6])
	if err != nil {
		return nil, err
	}
	airmass, err := parseOptionalFloat(parts[7])
	if err != nil {
		return nil, fmt.Errorf("airmass: %w", err)
	}
	comments := strings.Join(parts[minColumns:], " ")
	if comments == "-" {
		comments = ""
	}

	base := time.Date(day.Year(), day.Month(), day.Day(),
		startClock.hour, startClock.minute, startClock.second, 0, time.UTC)

	exposures := make([]*guider.Exposure, 0, len(files))
	for i, fname := range files {
		dither := baseDither + i
		x, y := fidX, fidY
		if dither != baseDither && !in.IsCalibrationTarget(target) {
			x, y = in.FiducialForDither(dither, fidX, fidY)
		}
		start := base
		if !math.IsNaN(expTime) {
			// Spacing is approximate: the log only records the first
			// file's start.
			start = base.Add(time.Duration(float64(i) * (expTime + in.OverheadSeconds) * float64(time.Second)))
		}
		exposures = append(exposures, &guider.Exposure{
			Filename:  fname,
			Target:    target,
			Dither:    dither,
			StartTime: start,
			ExpTime:   expTime,
			FiducialX: x,
			FiducialY: y,
			Airmass:   airmass,
			Focus:     focus,
			FWHMNoted: fwhm,
			Comments:  comments,
		})
	}
	return exposures, nil
}

// ParseFilenames expands a filename field into individual "vw%06d" names.
// A trailing "-NNN" denotes a range where NNN replaces the last digits:
//
//	"vw004123-125" -> vw004123 vw004124 vw004125
//	"vw001432-34"  -> vw001432 vw001433 vw001434
//	"4200"         -> vw004200
func ParseFilenames(s string) ([]string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".fits", "")
	s = strings.ReplaceAll(s, "vw", "")

	if !strings.Contains(s, "-") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid filename %q", s)
		}
		return []string{fmt.Sprintf("vw%06d", n)}, nil
	}

	halves := strings.Split(s, "-")
	if len(halves) != 2 {
		return nil, fmt.Errorf("invalid filename range %q", s)
	}
	start, err := strconv.Atoi(halves[0])
	if err != nil {
		return nil, fmt.Errorf("invalid filename range %q", s)
	}
	tail := strings.TrimSpace(halves[1])
	tailN, err := strconv.Atoi(tail)
	if err != nil {
		return nil, fmt.Errorf("invalid filename range %q", s)
	}
	// The range end replaces only the trailing digits of the start:
	// 004123-125 ends at 004125.
	startStr := strconv.Itoa(start)
	if len(tail) > len(startStr) {
		return nil, fmt.Errorf("invalid filename range %q", s)
	}
	end, err := strconv.Atoi(startStr[:len(startStr)-len(tail)] + strconv.Itoa(tailN))
	if err != nil {
		return nil, fmt.Errorf("invalid filename range %q", s)
	}
	if start >= end {
		return nil, fmt.Errorf("invalid file range %q", s)
	}
	names := make([]string, 0, end-start+1)
	for n := start; n <= end; n++ {
		names = append(names, fmt.Sprintf("vw%06d", n))
	}
	return names, nil
}

type clock struct {
	hour, minute, second int
}

// parseUT accepts HH:MM or HH:MM:SS.
func parseUT(s string) (clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) == 2 {
		parts = append(parts, "0")
	}
	if len(parts) != 3 {
		return clock{}, fmt.Errorf("UT time %q must be HH:MM or HH:MM:SS", s)
	}
	var c clock
	var err error
	if c.hour, err = strconv.Atoi(parts[0]); err != nil || c.hour < 0 || c.hour > 23 {
		return clock{}, fmt.Errorf("UT time %q has an invalid hour", s)
	}
	if c.minute, err = strconv.Atoi(parts[1]); err != nil || c.minute < 0 || c.minute > 59 {
		return clock{}, fmt.Errorf("UT time %q has an invalid minute", s)
	}
	if c.second, err = strconv.Atoi(parts[2]); err != nil || c.second < 0 || c.second > 59 {
		return clock{}, fmt.Errorf("UT time %q has an invalid second", s)
	}
	return c, nil
}

// parseTargetDither splits "M52_D2" or "M52_3" into name and dither position;
// a bare name means dither 1.
func parseTargetDither(s string) (string, int, error) {
	idx := strings.LastIndex(s, "_")
	if idx < 0 {
		return s, 1, nil
	}
	name := s[:idx]
	suffix := strings.TrimPrefix(strings.ToLower(s[idx+1:]), "d")
	dither, err := strconv.Atoi(suffix)
	if err != nil {
		return "", 0, fmt.Errorf("could not parse dither position from %q", s)
	}
	if dither <= 0 {
		return "", 0, fmt.Errorf("dither position must be positive, not %d (from %q)", dither, s)
	}
	return name, dither, nil
}

// parseOptionalFloat treats "", "-" and "auto" as not-logged. A multiplier
// suffix like "120x6" yields the base value.
func parseOptionalFloat(s string) (float64, error) {
	if s == "" || s == "-" || strings.EqualFold(s, "auto") {
		return math.NaN(), nil
	}
	base, _, _ := strings.Cut(s, "x")
	v, err := strconv.ParseFloat(base, 64)
	if err != nil {
		return 0, fmt.Errorf("could not convert %q to float", s)
	}
	return v, nil
}

// parseFiducial parses "x,y" pixel coordinates; "-" or "" means unknown.
func parseFiducial(s string) (x, y float64, err error) {
	if s == "" || s == "-" {
		return math.NaN(), math.NaN(), nil
	}
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("fiducial coordinates %q must be in x,y format", s)
	}
	if x, err = strconv.ParseFloat(xs, 64); err != nil {
		return 0, 0, fmt.Errorf("fiducial coordinates %q must be numeric", s)
	}
	if y, err = strconv.ParseFloat(ys, 64); err != nil {
		return 0, 0, fmt.Errorf("fiducial coordinates %q must be numeric", s)
	}
	return x, y, nil
}
