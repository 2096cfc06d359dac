package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	manifestVersion  = 1
	manifestFileName = "manifest.json"
)

// ErrIncompatibleManifest is returned when a resume would mix chunk layouts
var ErrIncompatibleManifest = errors.New("checkpoint manifest does not match this run")

// Manifest describes the run that owns a checkpoint directory
type Manifest struct {
	Version         int       `json:"version"`
	RunID           string    `json:"run_id"`
	Source          string    `json:"source"`
	LabelColumn     string    `json:"label_column"`
	ChunkSize       int       `json:"chunk_size"`
	TotalRows       int       `json:"total_rows"`
	CompletedChunks []int     `json:"completed_chunks"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Compatible checks that chunk files written under this manifest line up
// with a run using chunkSize over totalRows rows
func (mf *Manifest) Compatible(chunkSize, totalRows int) error {
	if mf.ChunkSize != chunkSize {
		return fmt.Errorf("%w: chunk size %d, manifest has %d", ErrIncompatibleManifest, chunkSize, mf.ChunkSize)
	}
	if mf.TotalRows != totalRows {
		return fmt.Errorf("%w: %d rows, manifest has %d", ErrIncompatibleManifest, totalRows, mf.TotalRows)
	}
	return nil
}

// IsCompleted reports whether chunk id is recorded as written
func (mf *Manifest) IsCompleted(id int) bool {
	i := sort.SearchInts(mf.CompletedChunks, id)
	return i < len(mf.CompletedChunks) && mf.CompletedChunks[i] == id
}

func (m *Manager) manifestPath() string {
	return filepath.Join(m.dir, manifestFileName)
}

// CreateManifest starts a new run record with a fresh run id
func (m *Manager) CreateManifest(source, labelColumn string, chunkSize, totalRows int) (*Manifest, error) {
	now := time.Now()
	mf := &Manifest{
		Version:         manifestVersion,
		RunID:           uuid.NewString(),
		Source:          source,
		LabelColumn:     labelColumn,
		ChunkSize:       chunkSize,
		TotalRows:       totalRows,
		CompletedChunks: []int{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.SaveManifest(mf); err != nil {
		return nil, fmt.Errorf("failed to save initial manifest: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint run created", map[string]interface{}{
		"run_id":     mf.RunID,
		"chunk_size": chunkSize,
		"total_rows": totalRows,
		"path":       m.manifestPath(),
	})
	return mf, nil
}

// LoadManifest returns the stored manifest, or nil when none exists
func (m *Manager) LoadManifest() (*Manifest, error) {
	file, err := os.Open(m.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var mf Manifest
	if err := json.NewDecoder(file).Decode(&mf); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	sort.Ints(mf.CompletedChunks)

	m.logger.InfoWithFields("Checkpoint manifest loaded", map[string]interface{}{
		"run_id":           mf.RunID,
		"completed_chunks": len(mf.CompletedChunks),
		"updated_at":       mf.UpdatedAt,
	})
	return &mf, nil
}

// SaveManifest writes the manifest atomically
func (m *Manager) SaveManifest(mf *Manifest) error {
	mf.UpdatedAt = time.Now()

	tempPath := m.manifestPath() + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(mf); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync manifest file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close manifest file: %w", err)
	}

	if err := os.Rename(tempPath, m.manifestPath()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}
	return nil
}

// MarkChunk records chunk id as written and persists the manifest
func (m *Manager) MarkChunk(mf *Manifest, id int) error {
	if !mf.IsCompleted(id) {
		mf.CompletedChunks = append(mf.CompletedChunks, id)
		sort.Ints(mf.CompletedChunks)
	}
	return m.SaveManifest(mf)
}
