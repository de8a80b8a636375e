// Package storage persists per-paper JSON documents. The relational row
// holds only queryable summary fields; everything long-form lives here,
// keyed by the sanitized paper ID.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"paper-tracker/models"
	"paper-tracker/providers"
)

// DocStore is the document persistence boundary used by the pipeline.
// Load returns (nil, nil) for a missing document; Delete of a missing
// document is not an error.
type DocStore interface {
	Save(ctx context.Context, doc *models.PaperDocument) error
	Load(ctx context.Context, paperID string) (*models.PaperDocument, error)
	Delete(ctx context.Context, paperID string) error
}

// FileStore keeps one JSON file per paper in a local directory.
type FileStore struct {
	Dir string
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create papers dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(paperID string) string {
	return filepath.Join(s.Dir, providers.SanitizeID(paperID)+".json")
}

// Save writes the document, replacing any previous version.
func (s *FileStore) Save(_ context.Context, doc *models.PaperDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(doc.PaperID), data, 0o644)
}

// Load reads the document, (nil, nil) when absent.
func (s *FileStore) Load(_ context.Context, paperID string) (*models.PaperDocument, error) {
	data, err := os.ReadFile(s.path(paperID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var doc models.PaperDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", paperID, err)
	}
	return &doc, nil
}

// Delete removes the document, ignoring absence.
func (s *FileStore) Delete(_ context.Context, paperID string) error {
	err := os.Remove(s.path(paperID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ DocStore = (*FileStore)(nil)
