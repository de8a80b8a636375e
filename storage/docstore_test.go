package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"paper-tracker/models"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "data", "papers"))
	if err != nil {
		t.Fatalf("create file store: %v", err)
	}
	return store
}

func TestFileStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "papers")
	if _, err := NewFileStore(dir); err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory created, stat err: %v", err)
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.PaperDocument{
		PaperID:     "2306.02437",
		Title:       "Diffusion Policies",
		AbstractEN:  "We study diffusion models.",
		AbstractKO:  "한국어 요약",
		SearchStage: 2,
		Authors:     []string{"A. Researcher"},
	}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := store.Load(ctx, "2306.02437")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected document, got nil")
	}
	if loaded.Title != doc.Title || loaded.AbstractKO != doc.AbstractKO || loaded.SearchStage != 2 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if len(loaded.Authors) != 1 {
		t.Fatalf("expected authors preserved, got %v", loaded.Authors)
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)

	doc, err := store.Load(context.Background(), "2401.99999")
	if err != nil {
		t.Fatalf("expected no error for missing document, got %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil document, got %+v", doc)
	}
}

func TestFileStoreDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &models.PaperDocument{PaperID: "2306.02437"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Delete(ctx, "2306.02437"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if doc, _ := store.Load(ctx, "2306.02437"); doc != nil {
		t.Fatal("expected document gone after delete")
	}

	// Deleting a missing document is not an error.
	if err := store.Delete(ctx, "2306.02437"); err != nil {
		t.Fatalf("expected nil for missing document, got %v", err)
	}
}

func TestFileStoreSanitizesOldStyleIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Save(ctx, &models.PaperDocument{PaperID: "hep-th/9901001"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// The slash must not become a subdirectory.
	if _, err := os.Stat(filepath.Join(store.Dir, "hep-th_9901001.json")); err != nil {
		t.Fatalf("expected sanitized filename, stat err: %v", err)
	}

	doc, err := store.Load(ctx, "hep-th/9901001")
	if err != nil || doc == nil {
		t.Fatalf("expected document loadable under original ID, got %v, %v", doc, err)
	}
}
