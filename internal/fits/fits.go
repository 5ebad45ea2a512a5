// Package fits reads and writes simple FITS image files: a primary HDU with
// an 80-byte-card header and a 2-D data array. This covers everything the
// guide camera produces; extensions, tables, and compressed images are out of
// scope.
package fits

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// FITS files are organised in fixed 2880-byte records of 36 cards, each card
// 80 bytes.
const (
	recordSize     = 2880
	cardSize       = 80
	cardsPerRecord = recordSize / cardSize
)

var (
	ErrNotFITS    = errors.New("not a FITS file")
	ErrNoEnd      = errors.New("header END card not found")
	ErrBadBitpix  = errors.New("unsupported BITPIX")
	ErrNotAnImage = errors.New("primary HDU is not a 2-D image")
)

// Card is one header keyword record.
type Card struct {
	Key     string
	Value   string // raw value, unquoted for strings
	Comment string
}

// Header is the ordered card list of one HDU.
type Header struct {
	Cards []Card
}

// Get returns the value of the first card with the given key.
func (h *Header) Get(key string) (string, bool) {
	for _, c := range h.Cards {
		if c.Key == key {
			return c.Value, true
		}
	}
	return "", false
}

// Float returns the value of key as a float, NaN when absent or unparsable.
func (h *Header) Float(key string) float64 {
	v, ok := h.Get(key)
	if !ok {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Int returns the value of key as an int; ok is false when absent or
// unparsable.
func (h *Header) Int(key string) (int, bool) {
	v, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set appends or replaces a card.
func (h *Header) Set(key, value, comment string) {
	for i, c := range h.Cards {
		if c.Key == key {
			h.Cards[i].Value = value
			h.Cards[i].Comment = comment
			return
		}
	}
	h.Cards = append(h.Cards, Card{Key: key, Value: value, Comment: comment})
}

// ObsTime derives the frame capture time from the DATE-OBS and UT cards,
// e.g. DATE-OBS='2023-09-14' UT='22:41:03.52'. Fractional seconds are
// optional.
func (h *Header) ObsTime() (time.Time, error) {
	date, ok := h.Get("DATE-OBS")
	if !ok {
		return time.Time{}, errors.New("no DATE-OBS card")
	}
	ut, ok := h.Get("UT")
	if !ok {
		// Some writers embed the time in DATE-OBS directly.
		if t, err := parseTimestamp(date); err == nil {
			return t, nil
		}
		return time.Time{}, errors.New("no UT card")
	}
	return parseTimestamp(date + "T" + ut)
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// File is one decoded primary image HDU.
type File struct {
	Header Header

	// Width and Height are NAXIS1 and NAXIS2.
	Width  int
	Height int

	// Data holds the physical pixel values row-major, Data[y*Width+x],
	// with BSCALE/BZERO already applied and BLANK pixels as NaN.
	Data []float64
}

// ReadFile decodes the primary HDU of the named file.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	file, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// ReadHeaderFile decodes only the primary header of the named file; the data
// records are never read. Used by the frame index, which only needs
// timestamps.
func ReadHeaderFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := readHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// Read decodes a primary image HDU from r.
func Read(r io.Reader) (*File, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	bitpix, ok := h.Int("BITPIX")
	if !ok {
		return nil, errors.New("no BITPIX card")
	}
	naxis, _ := h.Int("NAXIS")
	if naxis != 2 {
		return nil, fmt.Errorf("%w: NAXIS=%d", ErrNotAnImage, naxis)
	}
	width, ok := h.Int("NAXIS1")
	if !ok || width <= 0 {
		return nil, fmt.Errorf("%w: bad NAXIS1", ErrNotAnImage)
	}
	height, ok := h.Int("NAXIS2")
	if !ok || height <= 0 {
		return nil, fmt.Errorf("%w: bad NAXIS2", ErrNotAnImage)
	}

	bscale := h.Float("BSCALE")
	if math.IsNaN(bscale) {
		bscale = 1
	}
	bzero := h.Float("BZERO")
	if math.IsNaN(bzero) {
		bzero = 0
	}
	blank := math.NaN()
	hasBlank := false
	if v, ok := h.Int("BLANK"); ok {
		blank = float64(v)
		hasBlank = true
	}

	n := width * height
	bytesPer := abs(bitpix) / 8
	raw := make([]byte, padTo(n*bytesPer, recordSize))
	// Truncated data records are tolerated as long as the pixels are there
	// (matches the permissive ignore_missing_end readers in the wild).
	if _, err := io.ReadAtLeast(r, raw, n*bytesPer); err != nil {
		return nil, fmt.Errorf("short data section: %w", err)
	}

	data := make([]float64, n)
	for i := 0; i < n; i++ {
		var v float64
		off := i * bytesPer
		switch bitpix {
		case 8:
			v = float64(raw[off])
		case 16:
			v = float64(int16(binary.BigEndian.Uint16(raw[off:])))
		case 32:
			v = float64(int32(binary.BigEndian.Uint32(raw[off:])))
		case 64:
			v = float64(int64(binary.BigEndian.Uint64(raw[off:])))
		case -32:
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(raw[off:])))
		case -64:
			v = math.Float64frombits(binary.BigEndian.Uint64(raw[off:]))
		default:
			return nil, fmt.Errorf("%w: %d", ErrBadBitpix, bitpix)
		}
		if hasBlank && bitpix > 0 && v == blank {
			data[i] = math.NaN()
			continue
		}
		data[i] = bzero + bscale*v
	}
	return &File{Header: *h, Width: width, Height: height, Data: data}, nil
}

// readHeader consumes whole 2880-byte records until the END card.
func readHeader(r io.Reader) (*Header, error) {
	h := &Header{}
	record := make([]byte, recordSize)
	first := true
	for {
		if _, err := io.ReadFull(r, record); err != nil {
			if first {
				return nil, fmt.Errorf("%w: %v", ErrNotFITS, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrNoEnd, err)
		}
		if first {
			if !strings.HasPrefix(string(record[:cardSize]), "SIMPLE ") {
				return nil, ErrNotFITS
			}
			first = false
		}
		for i := 0; i < cardsPerRecord; i++ {
			card := record[i*cardSize : (i+1)*cardSize]
			key := strings.TrimRight(string(card[:8]), " ")
			if key == "END" {
				return h, nil
			}
			if key == "" || key == "COMMENT" || key == "HISTORY" {
				continue
			}
			if len(card) < 10 || card[8] != '=' {
				continue
			}
			value, comment := splitValue(string(card[10:]))
			h.Cards = append(h.Cards, Card{Key: key, Value: value, Comment: comment})
		}
	}
}

// splitValue separates a card's value field from its trailing comment,
// honouring quoted strings with '' escapes.
func splitValue(s string) (value, comment string) {
	trimmed := strings.TrimLeft(s, " ")
	if strings.HasPrefix(trimmed, "'") {
		var b strings.Builder
		i := 1
		for i < len(trimmed) {
			if trimmed[i] == '\'' {
				if i+1 < len(trimmed) && trimmed[i+1] == '\'' {
					b.WriteByte('\'')
					i += 2
					continue
				}
				i++
				break
			}
			b.WriteByte(trimmed[i])
			i++
		}
		rest := trimmed[i:]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			comment = strings.TrimSpace(rest[idx+1:])
		}
		return strings.TrimRight(b.String(), " "), comment
	}
	if idx := strings.Index(s, "/"); idx >= 0 {
		return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:])
	}
	return strings.TrimSpace(s), ""
}

func padTo(n, block int) int {
	if rem := n % block; rem != 0 {
		return n + block - rem
	}
	return n
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
