package fits

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
)

// WriteFile encodes f as a BITPIX=-64 primary image HDU at the named path.
func WriteFile(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(out, f); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return out.Close()
}

// Write encodes f as a BITPIX=-64 primary image HDU. The structural cards
// are emitted first; any further cards from f.Header follow in order, with
// structural duplicates skipped.
func Write(w io.Writer, f *File) error {
	if f.Width <= 0 || f.Height <= 0 || len(f.Data) != f.Width*f.Height {
		return fmt.Errorf("%w: %dx%d with %d pixels", ErrNotAnImage, f.Width, f.Height, len(f.Data))
	}

	structural := map[string]bool{
		"SIMPLE": true, "BITPIX": true, "NAXIS": true,
		"NAXIS1": true, "NAXIS2": true, "END": true,
	}
	var cards []string
	cards = append(cards,
		formatCard("SIMPLE", "T", "conforms to FITS standard"),
		formatCard("BITPIX", "-64", "64-bit IEEE floats"),
		formatCard("NAXIS", "2", "number of data axes"),
		formatCard("NAXIS1", fmt.Sprintf("%d", f.Width), ""),
		formatCard("NAXIS2", fmt.Sprintf("%d", f.Height), ""),
	)
	for _, c := range f.Header.Cards {
		if structural[c.Key] {
			continue
		}
		cards = append(cards, formatCard(c.Key, quoteIfNeeded(c.Value), c.Comment))
	}
	cards = append(cards, padCard("END"))

	var header strings.Builder
	for _, c := range cards {
		header.WriteString(c)
	}
	for header.Len()%recordSize != 0 {
		header.WriteString(strings.Repeat(" ", cardSize))
	}
	if _, err := io.WriteString(w, header.String()); err != nil {
		return err
	}

	buf := make([]byte, padTo(len(f.Data)*8, recordSize))
	for i, v := range f.Data {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	_, err := w.Write(buf)
	return err
}

// formatCard lays out "KEY     = value / comment" in the fixed 80-byte card
// format, value right-aligned to column 30 as the standard asks for
// non-string values.
func formatCard(key, value, comment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s= ", key)
	if strings.HasPrefix(value, "'") {
		b.WriteString(value)
	} else {
		fmt.Fprintf(&b, "%20s", value)
	}
	if comment != "" {
		b.WriteString(" / ")
		b.WriteString(comment)
	}
	return padCard(b.String())
}

func padCard(s string) string {
	if len(s) > cardSize {
		return s[:cardSize]
	}
	return s + strings.Repeat(" ", cardSize-len(s))
}

// quoteIfNeeded wraps non-numeric values in FITS string quotes.
func quoteIfNeeded(v string) string {
	if v == "" {
		return "''"
	}
	if v == "T" || v == "F" {
		return v
	}
	numeric := true
	for _, r := range v {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			numeric = false
			break
		}
	}
	if numeric {
		return v
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}
