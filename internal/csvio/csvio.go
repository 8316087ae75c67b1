// Package csvio reads register CSV files with encoding fallback and writes
// the pipeline's CSV and JSON artifacts.
package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrEmptyFile is returned when a file has no header row.
	ErrEmptyFile = errors.New("empty file")

	// ErrUnreadableFile is returned when a file cannot be read or parsed.
	ErrUnreadableFile = errors.New("unreadable file")
)

// Encoding names reported in EncodingInfo.
const (
	EncodingUTF8BOM = "utf-8-sig"
	EncodingUTF8    = "utf-8"
	EncodingLatin1  = "latin-1"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodingInfo describes how a file was decoded.
type EncodingInfo struct {
	Detected   string  `json:"detected"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes,omitempty"`
}

// Table is a parsed CSV file. Rows keep their original widths; call
// Normalize before positional access that assumes header width.
type Table struct {
	Header   []string
	Rows     [][]string
	Encoding EncodingInfo
}

// Decode converts raw bytes to text, trying UTF-8 with BOM, then UTF-8,
// then Latin-1. Latin-1 decoding never fails, so Decode always succeeds.
func Decode(data []byte) (string, EncodingInfo) {
	if bytes.HasPrefix(data, utf8BOM) && utf8.Valid(data) {
		out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
		if err == nil {
			return string(out), EncodingInfo{Detected: EncodingUTF8BOM, Confidence: 1.0}
		}
	}
	if utf8.Valid(data) {
		return string(data), EncodingInfo{Detected: EncodingUTF8, Confidence: 0.99}
	}

	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
	return string(out), EncodingInfo{
		Detected:   EncodingLatin1,
		Confidence: 0.5,
		Notes:      "input is not valid UTF-8; decoded as ISO-8859-1",
	}
}

// Parse decodes data and splits it into header and rows.
func Parse(data []byte, comma rune) (*Table, error) {
	text, info := Decode(data)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyFile
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableFile, err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}

	return &Table{
		Header:   records[0],
		Rows:     records[1:],
		Encoding: info,
	}, nil
}

// ReadFile reads and parses the CSV file at path.
func ReadFile(path string, comma rune) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableFile, err)
	}
	return Parse(data, comma)
}

// Width is the header width.
func (t *Table) Width() int {
	return len(t.Header)
}

// Index returns the position of column, matching trimmed header names.
// Returns -1 if absent.
func (t *Table) Index(column string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == column {
			return i
		}
	}
	return -1
}

// Value returns the cell at row/col, or "" when the row is short.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Cell returns the trimmed value of the named column at row, or "" when
// the column is absent.
func (t *Table) Cell(row int, column string) string {
	return strings.TrimSpace(t.Value(row, t.Index(column)))
}

// Set writes a cell, padding the row if needed.
func (t *Table) Set(row, col int, value string) {
	for len(t.Rows[row]) <= col {
		t.Rows[row] = append(t.Rows[row], "")
	}
	t.Rows[row][col] = value
}

// Normalize pads short rows and truncates long rows to header width.
func (t *Table) Normalize() {
	w := t.Width()
	for i, row := range t.Rows {
		switch {
		case len(row) < w:
			padded := make([]string, w)
			copy(padded, row)
			t.Rows[i] = padded
		case len(row) > w:
			t.Rows[i] = row[:w]
		}
	}
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := &Table{
		Header:   append([]string(nil), t.Header...),
		Rows:     make([][]string, len(t.Rows)),
		Encoding: t.Encoding,
	}
	for i, row := range t.Rows {
		c.Rows[i] = append([]string(nil), row...)
	}
	return c
}
