package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrColumnNotFound is returned when a named column is missing
var ErrColumnNotFound = errors.New("column not found")

// Table is an in-memory delimited-text table. Every row has exactly
// len(Header) fields.
type Table struct {
	Header []string
	Rows   [][]string
}

// LoadOptions controls how a table is read
type LoadOptions struct {
	// Encoding of the file; empty means detect from the raw bytes
	Encoding string
	// Delimiter defaults to ','
	Delimiter rune
	// Columns restricts the loaded columns, in file order; empty loads all
	Columns []string
}

// New creates an empty table with the given header
func New(header []string) *Table {
	return &Table{Header: append([]string(nil), header...)}
}

// Load reads a delimited-text file into a Table, decoding it to UTF-8
func Load(path string, opts LoadOptions) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if opts.Encoding == "" {
		opts.Encoding, err = DetectEncoding(raw)
		if err != nil {
			return nil, err
		}
	}

	t, err := Read(bytes.NewReader(raw), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s with encoding %s: %w", path, opts.Encoding, err)
	}
	return t, nil
}

// Read parses a delimited-text stream in the given encoding
func Read(r io.Reader, opts LoadOptions) (*Table, error) {
	decoded, err := decodingReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header row")
	}

	t := &Table{Header: records[0], Rows: make([][]string, 0, len(records)-1)}
	for _, record := range records[1:] {
		t.Rows = append(t.Rows, normalizeRow(record, len(t.Header)))
	}

	if len(opts.Columns) > 0 {
		return t.Select(opts.Columns)
	}
	return t, nil
}

func normalizeRow(record []string, width int) []string {
	if len(record) == width {
		return record
	}
	row := make([]string, width)
	copy(row, record)
	return row
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name in the header, or -1
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether name is in the header
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// InsertColumnAfter adds a column immediately right of after, filling every
// row with fill. It is a no-op when name already exists.
func (t *Table) InsertColumnAfter(after, name, fill string) error {
	if t.HasColumn(name) {
		return nil
	}
	idx := t.ColumnIndex(after)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, after)
	}
	pos := idx + 1

	t.Header = insertAt(t.Header, pos, name)
	for i, row := range t.Rows {
		t.Rows[i] = insertAt(row, pos, fill)
	}
	return nil
}

func insertAt(s []string, pos int, v string) []string {
	s = append(s, "")
	copy(s[pos+1:], s[pos:])
	s[pos] = v
	return s
}

// Get returns the value at row for the named column
func (t *Table) Get(row int, column string) (string, error) {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	if row < 0 || row >= len(t.Rows) {
		return "", fmt.Errorf("row %d out of range [0,%d)", row, len(t.Rows))
	}
	return t.Rows[row][idx], nil
}

// Set writes value at row for the named column
func (t *Table) Set(row int, column, value string) error {
	idx := t.ColumnIndex(column)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}
	if row < 0 || row >= len(t.Rows) {
		return fmt.Errorf("row %d out of range [0,%d)", row, len(t.Rows))
	}
	t.Rows[row][idx] = value
	return nil
}

// Column returns a copy of every value in the named column
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	values := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[idx]
	}
	return values, nil
}

// Select returns a new table holding only the named columns, in the order
// given
func (t *Table) Select(columns []string) (*Table, error) {
	indices := make([]int, len(columns))
	for i, name := range columns {
		idx := t.ColumnIndex(name)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
		}
		indices[i] = idx
	}

	out := &Table{Header: append([]string(nil), columns...), Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		selected := make([]string, len(indices))
		for i, idx := range indices {
			selected[i] = row[idx]
		}
		out.Rows[r] = selected
	}
	return out, nil
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	out := &Table{Header: append([]string(nil), t.Header...), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Write encodes the table as UTF-8 comma-separated text
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.Rows); err != nil {
		return err
	}
	return writer.Error()
}

// Export writes t to dir/filename atomically, appending .csv when missing.
// It returns the final path.
func Export(t *Table, dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if !strings.HasSuffix(filename, ".csv") {
		filename += ".csv"
	}
	path := filepath.Join(dir, filename)

	if err := WriteFile(t, path); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile writes t to path through a synced temp file and rename
func WriteFile(t *Table, path string) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if err := t.Write(file); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write csv: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// EncodeSources serializes source URLs as a JSON array, "[]" when empty
func EncodeSources(sources []string) string {
	if len(sources) == 0 {
		return "[]"
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodeSources parses a cell written by EncodeSources. An empty cell yields
// an empty list.
func DecodeSources(cell string) ([]string, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return []string{}, nil
	}
	var sources []string
	if err := json.Unmarshal([]byte(cell), &sources); err != nil {
		return nil, fmt.Errorf("invalid sources cell: %w", err)
	}
	if sources == nil {
		sources = []string{}
	}
	return sources, nil
}
