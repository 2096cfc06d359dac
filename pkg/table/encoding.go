package table

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// detectSampleSize bounds how many bytes are inspected for detection
const detectSampleSize = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding guesses the character set of raw text. Valid UTF-8 is
// taken as is; anything else is sampled by chardet.
func DetectEncoding(raw []byte) (string, error) {
	if bytes.HasPrefix(raw, utf8BOM) || utf8.Valid(raw) {
		return "UTF-8", nil
	}

	sample := raw
	if len(sample) > detectSampleSize {
		sample = sample[:detectSampleSize]
	}

	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil {
		return "", fmt.Errorf("failed to detect encoding: %w", err)
	}
	return result.Charset, nil
}

// lookupEncoding resolves an encoding name to a decoder. Latin-1 names map to
// true ISO-8859-1 rather than the windows-1252 superset htmlindex returns.
func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1", "l1":
		return charmap.ISO8859_1, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	return enc, nil
}

// decodingReader wraps r so it yields UTF-8 text
func decodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
