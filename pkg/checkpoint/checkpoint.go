package checkpoint

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"fortidsminder/pkg/logger"
	"fortidsminder/pkg/table"
)

const (
	DefaultDirectory = "data/checkpoints"
	DefaultPrefix    = "chunk_"
)

// chunkHeader is the column layout of every chunk file
var chunkHeader = []string{"row", "label", "definition", "sources"}

// Row is one processed table row as stored in a chunk file
type Row struct {
	// Index is the row position in the source table
	Index      int
	Label      string
	Definition string
	Sources    []string
}

// Chunk is a completed, fixed-size partition of rows
type Chunk struct {
	ID   int
	Rows []Row
}

// Manager owns the chunk files and manifest in one checkpoint directory
type Manager struct {
	dir    string
	prefix string
	logger logger.Logger
}

// NewManager creates a checkpoint manager, creating dir if needed
func NewManager(dir, prefix string) (*Manager, error) {
	if dir == "" {
		dir = DefaultDirectory
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &Manager{
		dir:    dir,
		prefix: prefix,
		logger: logger.GetLogger(),
	}, nil
}

// Dir returns the checkpoint directory
func (m *Manager) Dir() string {
	return m.dir
}

// ChunkPath returns the file path for chunk id
func (m *Manager) ChunkPath(id int) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s%d.csv", m.prefix, id))
}

// SaveChunk writes a chunk file atomically
func (m *Manager) SaveChunk(chunk Chunk) error {
	t := table.New(chunkHeader)
	for _, row := range chunk.Rows {
		t.Rows = append(t.Rows, []string{
			strconv.Itoa(row.Index),
			row.Label,
			row.Definition,
			table.EncodeSources(row.Sources),
		})
	}

	path := m.ChunkPath(chunk.ID)
	if err := table.WriteFile(t, path); err != nil {
		return fmt.Errorf("failed to save chunk %d: %w", chunk.ID, err)
	}

	m.logger.DebugWithFields("Chunk saved", map[string]interface{}{
		"chunk_id": chunk.ID,
		"rows":     len(chunk.Rows),
		"path":     path,
	})
	return nil
}

// LoadChunk reads a single chunk file
func (m *Manager) LoadChunk(id int) (Chunk, error) {
	raw, err := os.ReadFile(m.ChunkPath(id))
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to read chunk %d: %w", id, err)
	}

	t, err := table.Read(bytes.NewReader(raw), table.LoadOptions{Encoding: "utf-8"})
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to parse chunk %d: %w", id, err)
	}
	if len(t.Header) < len(chunkHeader) {
		return Chunk{}, fmt.Errorf("chunk %d has %d columns, want %d", id, len(t.Header), len(chunkHeader))
	}

	chunk := Chunk{ID: id, Rows: make([]Row, 0, t.Len())}
	for i, record := range t.Rows {
		index, err := strconv.Atoi(record[0])
		if err != nil {
			return Chunk{}, fmt.Errorf("chunk %d line %d: invalid row index %q", id, i+2, record[0])
		}
		sources, err := table.DecodeSources(record[3])
		if err != nil {
			return Chunk{}, fmt.Errorf("chunk %d line %d: %w", id, i+2, err)
		}
		chunk.Rows = append(chunk.Rows, Row{
			Index:      index,
			Label:      record[1],
			Definition: record[2],
			Sources:    sources,
		})
	}
	return chunk, nil
}

// ChunkIDs returns the ids of all chunk files on disk in ascending order.
// Files not matching <prefix><id>.csv are ignored.
func (m *Manager) ChunkIDs() ([]int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list checkpoint directory: %w", err)
	}

	var ids []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if id, ok := m.parseChunkName(entry.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (m *Manager) parseChunkName(name string) (int, bool) {
	if !strings.HasPrefix(name, m.prefix) || !strings.HasSuffix(name, ".csv") {
		return 0, false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, m.prefix), ".csv")
	if digits == "" {
		return 0, false
	}
	id, err := strconv.Atoi(digits)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

// LoadChunks reads every chunk file, sorted by id
func (m *Manager) LoadChunks() ([]Chunk, error) {
	ids, err := m.ChunkIDs()
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := m.LoadChunk(id)
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, chunk)
	}

	m.logger.InfoWithFields("Chunks loaded", map[string]interface{}{
		"count": len(chunks),
		"dir":   m.dir,
	})
	return chunks, nil
}

// Clear removes all chunk files and the manifest
func (m *Manager) Clear() error {
	ids, err := m.ChunkIDs()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		if err := os.Remove(m.ChunkPath(id)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(m.manifestPath()); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to clear checkpoints: %w", errors.Join(errs...))
	}

	m.logger.InfoWithFields("Checkpoints cleared", map[string]interface{}{
		"chunks": len(ids),
		"dir":    m.dir,
	})
	return nil
}
