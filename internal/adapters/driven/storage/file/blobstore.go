// Package file stores raw uploads on the local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore keeps one file per document under a directory.
// Writes go to a temp file first and are renamed into place.
type BlobStore struct {
	dir string
}

// NewBlobStore creates the directory if needed.
func NewBlobStore(dir string) (*BlobStore, error) {
	if dir == "" {
		return nil, errors.New("blob directory is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *BlobStore) Dir() string {
	return s.dir
}

// Put stores content under id, replacing any previous content.
func (s *BlobStore) Put(_ context.Context, id string, content []byte) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after rename

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storing blob: %w", err)
	}
	return nil
}

// Get returns the content stored under id.
func (s *BlobStore) Get(_ context.Context, id string) ([]byte, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &domain.NotFoundError{Kind: "upload", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// Delete removes the content stored under id.
func (s *BlobStore) Delete(_ context.Context, id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

func (s *BlobStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", domain.NewValidationError("id", fmt.Sprintf("invalid blob id %q", id))
	}
	return filepath.Join(s.dir, id+".bin"), nil
}
