package fits

import (
	"bytes"
	"encoding/binary"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func card(s string) string {
	return s + strings.Repeat(" ", 80-len(s))
}

// rawFITS assembles a file from header card texts and raw big-endian data.
func rawFITS(cards []string, data []byte) []byte {
	var b bytes.Buffer
	for _, c := range cards {
		b.WriteString(card(c))
	}
	b.WriteString(card("END"))
	for b.Len()%2880 != 0 {
		b.WriteString(card(""))
	}
	b.Write(data)
	for b.Len()%2880 != 0 {
		b.WriteByte(0)
	}
	return b.Bytes()
}

func TestReadInt16WithScaling(t *testing.T) {
	data := make([]byte, 6*2)
	for i, v := range []int16{0, 1, 2, 3, -100, 32000} {
		binary.BigEndian.PutUint16(data[i*2:], uint16(v))
	}
	raw := rawFITS([]string{
		"SIMPLE  =                    T",
		"BITPIX  =                   16",
		"NAXIS   =                    2",
		"NAXIS1  =                    3",
		"NAXIS2  =                    2",
		"BSCALE  =                  2.0",
		"BZERO   =                 10.0",
		"BLANK   =                 -100",
	}, data)

	f, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if f.Width != 3 || f.Height != 2 {
		t.Fatalf("shape %dx%d, want 3x2", f.Width, f.Height)
	}
	want := []float64{10, 12, 14, 16, math.NaN(), 10 + 2*32000}
	for i, w := range want {
		got := f.Data[i]
		if math.IsNaN(w) {
			if !math.IsNaN(got) {
				t.Errorf("pixel %d = %v, want NaN (BLANK)", i, got)
			}
			continue
		}
		if got != w {
			t.Errorf("pixel %d = %v, want %v", i, got, w)
		}
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("definitely not a fits file")))
	if err == nil {
		t.Error("garbage input accepted")
	}
}

func TestHeaderStringValuesAndObsTime(t *testing.T) {
	raw := rawFITS([]string{
		"SIMPLE  =                    T",
		"BITPIX  =                    8",
		"NAXIS   =                    2",
		"NAXIS1  =                    1",
		"NAXIS2  =                    1",
		"DATE-OBS= '2023-09-14'         / start of observation",
		"UT      = '22:41:03.52'",
		"OBJECT  = 'O''Neill''s star'",
		"EXPTIME =                  5.0",
	}, []byte{7})

	f, err := Read(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if obj, _ := f.Header.Get("OBJECT"); obj != "O'Neill's star" {
		t.Errorf("OBJECT = %q", obj)
	}
	if v := f.Header.Float("EXPTIME"); v != 5 {
		t.Errorf("EXPTIME = %v, want 5", v)
	}
	if v := f.Header.Float("AIRMASS"); !math.IsNaN(v) {
		t.Errorf("missing AIRMASS = %v, want NaN", v)
	}

	ts, err := f.Header.ObsTime()
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2023, 9, 14, 22, 41, 3, 520000000, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("ObsTime = %v, want %v", ts, want)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	orig := &File{Width: 4, Height: 3, Data: make([]float64, 12)}
	for i := range orig.Data {
		orig.Data[i] = float64(i) * 1.5
	}
	orig.Data[5] = math.NaN()
	orig.Header.Set("DATE-OBS", "2023-09-14", "")
	orig.Header.Set("UT", "22:41:03.52", "")
	orig.Header.Set("EXPTIME", "5.0", "exposure seconds")

	path := filepath.Join(t.TempDir(), "frame.fits")
	if err := WriteFile(path, orig); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Width != 4 || got.Height != 3 {
		t.Fatalf("shape %dx%d, want 4x3", got.Width, got.Height)
	}
	for i := range orig.Data {
		if math.IsNaN(orig.Data[i]) {
			if !math.IsNaN(got.Data[i]) {
				t.Errorf("pixel %d = %v, want NaN", i, got.Data[i])
			}
			continue
		}
		if got.Data[i] != orig.Data[i] {
			t.Errorf("pixel %d = %v, want %v", i, got.Data[i], orig.Data[i])
		}
	}
	if v := got.Header.Float("EXPTIME"); v != 5 {
		t.Errorf("EXPTIME = %v, want 5", v)
	}

	h, err := ReadHeaderFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.ObsTime(); err != nil {
		t.Errorf("ObsTime on header-only read: %v", err)
	}
}
