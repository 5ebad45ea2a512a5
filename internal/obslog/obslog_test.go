package obslog

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/FBalzerMPE/vw-explorer/internal/guider"
)

func TestParseFilenames(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"vw004200", []string{"vw004200"}},
		{"4200", []string{"vw004200"}},
		{"vw004123-125", []string{"vw004123", "vw004124", "vw004125"}},
		{"vw001432-34", []string{"vw001432", "vw001433", "vw001434"}},
		{"vw004200.fits", []string{"vw004200"}},
	}
	for _, c := range cases {
		got, err := ParseFilenames(c.in)
		if err != nil {
			t.Errorf("ParseFilenames(%q): %v", c.in, err)
			continue
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("ParseFilenames(%q) (-want +got):\n%s", c.in, diff)
		}
	}

	for _, bad := range []string{"notafile", "vw004125-123", "vw1-2-3"} {
		if _, err := ParseFilenames(bad); err == nil {
			t.Errorf("ParseFilenames(%q) accepted", bad)
		}
	}
}

func TestParseTargetDither(t *testing.T) {
	cases := []struct {
		in     string
		target string
		dither int
	}{
		{"M52", "M52", 1},
		{"M52_D2", "M52", 2},
		{"M52_3", "M52", 3},
		{"NGC_7789_D4", "NGC_7789", 4},
	}
	for _, c := range cases {
		target, dither, err := parseTargetDither(c.in)
		if err != nil {
			t.Errorf("parseTargetDither(%q): %v", c.in, err)
			continue
		}
		if target != c.target || dither != c.dither {
			t.Errorf("parseTargetDither(%q) = (%q, %d), want (%q, %d)",
				c.in, target, dither, c.target, c.dither)
		}
	}
	if _, _, err := parseTargetDither("M52_D0"); err == nil {
		t.Error("dither 0 accepted")
	}
}

func TestParseOptionalFloat(t *testing.T) {
	for _, s := range []string{"", "-", "auto", "Auto"} {
		v, err := parseOptionalFloat(s)
		if err != nil || !math.IsNaN(v) {
			t.Errorf("parseOptionalFloat(%q) = %v, %v; want NaN", s, v, err)
		}
	}
	if v, err := parseOptionalFloat("120x6"); err != nil || v != 120 {
		t.Errorf("parseOptionalFloat(120x6) = %v, %v; want 120", v, err)
	}
	if v, err := parseOptionalFloat("3.25"); err != nil || v != 3.25 {
		t.Errorf("parseOptionalFloat(3.25) = %v, %v", v, err)
	}
	if _, err := parseOptionalFloat("wat"); err == nil {
		t.Error("garbage float accepted")
	}
}

func TestParseLineExpandsRange(t *testing.T) {
	in := guider.DefaultInstrument()
	day := time.Date(2023, 9, 14, 0, 0, 0, 0, time.UTC)
	line := "vw004123-125  22:41  M52_D1  120  3.2  1.1  512.3,488.0  1.15  clear skies"

	exposures, err := ParseLine(line, day, in)
	if err != nil {
		t.Fatal(err)
	}
	if len(exposures) != 3 {
		t.Fatalf("got %d exposures, want 3", len(exposures))
	}

	first := exposures[0]
	if first.Filename != "vw004123" || first.Target != "M52" || first.Dither != 1 {
		t.Errorf("first = %+v", first)
	}
	wantStart := time.Date(2023, 9, 14, 22, 41, 0, 0, time.UTC)
	if !first.StartTime.Equal(wantStart) {
		t.Errorf("first start = %v, want %v", first.StartTime, wantStart)
	}
	if first.FiducialX != 512.3 || first.FiducialY != 488.0 {
		t.Errorf("first fiducial = (%v, %v)", first.FiducialX, first.FiducialY)
	}
	if first.Comments != "clear skies" {
		t.Errorf("comments = %q", first.Comments)
	}

	// Later files: dither advances, start shifts by exptime+overhead, and
	// the fiducial picks up the dither offset.
	second := exposures[1]
	if second.Dither != 2 {
		t.Errorf("second dither = %d, want 2", second.Dither)
	}
	if want := wantStart.Add(210 * time.Second); !second.StartTime.Equal(want) {
		t.Errorf("second start = %v, want %v", second.StartTime, want)
	}
	if math.Abs(second.FiducialX-517.6) > 1e-9 || math.Abs(second.FiducialY-490.8) > 1e-9 {
		t.Errorf("second fiducial = (%v, %v), want (517.6, 490.8)", second.FiducialX, second.FiducialY)
	}
	third := exposures[2]
	if third.Dither != 3 || !third.StartTime.Equal(wantStart.Add(420*time.Second)) {
		t.Errorf("third = dither %d at %v", third.Dither, third.StartTime)
	}
}

func TestParseLineUnknownFields(t *testing.T) {
	in := guider.DefaultInstrument()
	day := time.Date(2023, 9, 14, 0, 0, 0, 0, time.UTC)
	line := "vw004200  03:05  biases  -  -  -  -  -  -"

	exposures, err := ParseLine(line, day, in)
	if err != nil {
		t.Fatal(err)
	}
	e := exposures[0]
	if !math.IsNaN(e.ExpTime) || !math.IsNaN(e.FiducialX) || !math.IsNaN(e.Airmass) {
		t.Errorf("unknown fields not NaN: %+v", e)
	}
	if e.Comments != "" {
		t.Errorf("comments = %q, want empty for \"-\"", e.Comments)
	}
	if _, ok := e.Window(); ok {
		t.Error("exposure without exptime has a window")
	}
}

func TestParseLineRejectsShortLines(t *testing.T) {
	in := guider.DefaultInstrument()
	day := time.Date(2023, 9, 14, 0, 0, 0, 0, time.UTC)
	if _, err := ParseLine("vw004200 22:41 M52", day, in); err == nil {
		t.Error("short line accepted")
	}
}

func TestParseFile(t *testing.T) {
	content := `Observer: FB
# date: 2023-09-15
vw004130  23:10  NGC7789_D1  60  3.1  1.0  500.0,480.0  1.05  -
# date: 2023-09-14
some stray note line
vw004123-124  22:41  M52_D1  120  3.2  1.1  512.3,488.0  1.15  windy
vw004125  22:50  badline_D0  120  3.2  1.1  -  1.2  -
`
	path := filepath.Join(t.TempDir(), "night.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	exposures, err := ParseFile(path, guider.DefaultInstrument())
	if err != nil {
		t.Fatal(err)
	}
	// The malformed dither line is skipped, the rest survive sorted by time.
	if len(exposures) != 3 {
		t.Fatalf("got %d exposures, want 3", len(exposures))
	}
	var names []string
	for _, e := range exposures {
		names = append(names, e.Filename)
	}
	want := []string{"vw004123", "vw004124", "vw004130"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
}

func TestParseFileErrors(t *testing.T) {
	dir := t.TempDir()

	noDates := filepath.Join(dir, "nodates.log")
	os.WriteFile(noDates, []byte("vw004123  22:41  M52  120  3.2  1.1  -  1.15  -\n"), 0o644)
	if _, err := ParseFile(noDates, guider.DefaultInstrument()); !errors.Is(err, ErrNoDateLines) {
		t.Errorf("no dates: err = %v", err)
	}

	empty := filepath.Join(dir, "empty.log")
	os.WriteFile(empty, []byte("# date: 2023-09-14\n"), 0o644)
	if _, err := ParseFile(empty, guider.DefaultInstrument()); !errors.Is(err, ErrNoObservations) {
		t.Errorf("empty: err = %v", err)
	}

	dup := filepath.Join(dir, "dup.log")
	os.WriteFile(dup, []byte(`# date: 2023-09-14
vw004123  22:41  M52  120  3.2  1.1  -  1.15  -
vw004123  23:41  M52  120  3.2  1.1  -  1.15  -
`), 0o644)
	if _, err := ParseFile(dup, guider.DefaultInstrument()); err == nil {
		t.Error("duplicate filenames accepted")
	}
}
