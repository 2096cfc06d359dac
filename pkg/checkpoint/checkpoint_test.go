package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"fortidsminder/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.SetLogger(logger.NewNopLogger())
	os.Exit(m.Run())
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(filepath.Join(t.TempDir(), "checkpoints"), "chunk_")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return mgr
}

func TestChunkFiles(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		mgr := newTestManager(t)

		chunk := Chunk{ID: 3, Rows: []Row{
			{Index: 12, Label: "Rundhøj", Definition: "En rund gravhøj fra oldtiden.", Sources: []string{"https://natmus.dk"}},
			{Index: 13, Label: "Dysse, lang", Definition: "ERROR timeout: COULD NOT GENERATE DEFINITION", Sources: nil},
		}}
		if err := mgr.SaveChunk(chunk); err != nil {
			t.Fatalf("Failed to save chunk: %v", err)
		}

		if _, err := os.Stat(filepath.Join(mgr.Dir(), "chunk_3.csv")); err != nil {
			t.Fatalf("Expected chunk_3.csv on disk: %v", err)
		}

		loaded, err := mgr.LoadChunk(3)
		if err != nil {
			t.Fatalf("Failed to load chunk: %v", err)
		}
		if len(loaded.Rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(loaded.Rows))
		}
		if loaded.Rows[0].Index != 12 || loaded.Rows[0].Label != "Rundhøj" {
			t.Errorf("Unexpected first row: %+v", loaded.Rows[0])
		}
		if !reflect.DeepEqual(loaded.Rows[0].Sources, []string{"https://natmus.dk"}) {
			t.Errorf("Unexpected sources: %v", loaded.Rows[0].Sources)
		}
		if len(loaded.Rows[1].Sources) != 0 {
			t.Errorf("Expected empty sources, got %v", loaded.Rows[1].Sources)
		}
		if loaded.Rows[1].Label != "Dysse, lang" {
			t.Errorf("Expected quoted label to survive, got %q", loaded.Rows[1].Label)
		}
	})

	t.Run("LoadChunksSortedByNumericID", func(t *testing.T) {
		mgr := newTestManager(t)

		for _, id := range []int{10, 2, 0, 1} {
			if err := mgr.SaveChunk(Chunk{ID: id, Rows: []Row{{Index: id, Label: "x"}}}); err != nil {
				t.Fatalf("Failed to save chunk %d: %v", id, err)
			}
		}

		chunks, err := mgr.LoadChunks()
		if err != nil {
			t.Fatalf("Failed to load chunks: %v", err)
		}

		var ids []int
		for _, c := range chunks {
			ids = append(ids, c.ID)
		}
		if !reflect.DeepEqual(ids, []int{0, 1, 2, 10}) {
			t.Errorf("Expected numeric order, got %v", ids)
		}
	})

	t.Run("ForeignFilesIgnored", func(t *testing.T) {
		mgr := newTestManager(t)
		if err := mgr.SaveChunk(Chunk{ID: 0}); err != nil {
			t.Fatal(err)
		}
		for _, name := range []string{"notes.txt", "chunk_.csv", "chunk_abc.csv", "other_1.csv", "chunk_1.csv.tmp"} {
			if err := os.WriteFile(filepath.Join(mgr.Dir(), name), []byte("junk"), 0644); err != nil {
				t.Fatal(err)
			}
		}

		ids, err := mgr.ChunkIDs()
		if err != nil {
			t.Fatalf("ChunkIDs failed: %v", err)
		}
		if !reflect.DeepEqual(ids, []int{0}) {
			t.Errorf("Expected only chunk 0, got %v", ids)
		}
	})

	t.Run("CorruptChunk", func(t *testing.T) {
		mgr := newTestManager(t)
		content := "row,label,definition,sources\nx,Dysse,def,[]\n"
		if err := os.WriteFile(mgr.ChunkPath(0), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.LoadChunk(0); err == nil {
			t.Error("Expected error for invalid row index")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		mgr := newTestManager(t)
		for id := 0; id < 3; id++ {
			if err := mgr.SaveChunk(Chunk{ID: id}); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := mgr.CreateManifest("in.csv", "anlaegsbetydning", 4, 12); err != nil {
			t.Fatal(err)
		}
		keep := filepath.Join(mgr.Dir(), "keep.txt")
		if err := os.WriteFile(keep, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		if err := mgr.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}

		ids, _ := mgr.ChunkIDs()
		if len(ids) != 0 {
			t.Errorf("Expected no chunks after clear, got %v", ids)
		}
		if mf, _ := mgr.LoadManifest(); mf != nil {
			t.Error("Expected manifest to be removed")
		}
		if _, err := os.Stat(keep); err != nil {
			t.Error("Clear must not remove foreign files")
		}
	})
}

func TestDefaults(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	mgr, err := NewManager("", "")
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	if mgr.Dir() != DefaultDirectory {
		t.Errorf("Expected %s, got %s", DefaultDirectory, mgr.Dir())
	}
	if filepath.Base(mgr.ChunkPath(7)) != "chunk_7.csv" {
		t.Errorf("Unexpected chunk path %s", mgr.ChunkPath(7))
	}
	if _, err := os.Stat(filepath.Join(dir, "data", "checkpoints")); err != nil {
		t.Errorf("Expected default directory to be created: %v", err)
	}
}

func TestManifest(t *testing.T) {
	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr := newTestManager(t)

		if mf, err := mgr.LoadManifest(); err != nil || mf != nil {
			t.Fatalf("Expected no manifest, got %v, %v", mf, err)
		}

		mf, err := mgr.CreateManifest("data/in.csv", "anlaegsbetydning", 4, 10)
		if err != nil {
			t.Fatalf("Failed to create manifest: %v", err)
		}
		if mf.RunID == "" {
			t.Error("Expected a run id")
		}

		if err := mgr.MarkChunk(mf, 2); err != nil {
			t.Fatal(err)
		}
		if err := mgr.MarkChunk(mf, 0); err != nil {
			t.Fatal(err)
		}
		if err := mgr.MarkChunk(mf, 2); err != nil {
			t.Fatal(err)
		}

		loaded, err := mgr.LoadManifest()
		if err != nil {
			t.Fatalf("Failed to load manifest: %v", err)
		}
		if loaded.RunID != mf.RunID {
			t.Errorf("Run id mismatch: %s vs %s", loaded.RunID, mf.RunID)
		}
		if !reflect.DeepEqual(loaded.CompletedChunks, []int{0, 2}) {
			t.Errorf("Expected completed [0 2], got %v", loaded.CompletedChunks)
		}
		if !loaded.IsCompleted(2) || loaded.IsCompleted(1) {
			t.Error("IsCompleted mismatch")
		}
	})

	t.Run("Compatible", func(t *testing.T) {
		mf := &Manifest{ChunkSize: 4, TotalRows: 10}
		if err := mf.Compatible(4, 10); err != nil {
			t.Errorf("Expected compatible, got %v", err)
		}
		if err := mf.Compatible(5, 10); !errors.Is(err, ErrIncompatibleManifest) {
			t.Errorf("Expected ErrIncompatibleManifest for chunk size, got %v", err)
		}
		if err := mf.Compatible(4, 11); !errors.Is(err, ErrIncompatibleManifest) {
			t.Errorf("Expected ErrIncompatibleManifest for row count, got %v", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		mgr := newTestManager(t)
		if err := os.WriteFile(filepath.Join(mgr.Dir(), "manifest.json"), []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.LoadManifest(); err == nil {
			t.Error("Expected decode error")
		}
	})
}
