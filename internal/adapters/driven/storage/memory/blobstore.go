package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure BlobStore implements the interface.
var _ driven.BlobStore = (*BlobStore)(nil)

// BlobStore is an in-memory implementation of driven.BlobStore.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of content.
func (s *BlobStore) Put(_ context.Context, id string, content []byte) error {
	data := make([]byte, len(content))
	copy(data, content)
	s.mu.Lock()
	s.blobs[id] = data
	s.mu.Unlock()
	return nil
}

// Get returns the content stored under id.
func (s *BlobStore) Get(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, &domain.NotFoundError{Kind: "upload", ID: id}
	}
	return data, nil
}

// Delete removes the content.
func (s *BlobStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.blobs, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored blobs.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
