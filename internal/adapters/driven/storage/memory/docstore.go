package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore keeps document metadata in a map. Status changes are
// compare-and-swap under one mutex, matching the SQLite store's conditional
// updates.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
	now  func() time.Time
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]domain.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	s.docs[doc.ID] = *doc
	s.mu.Unlock()
	return nil
}

func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.NewDocumentNotFound(id)
	}
	return &doc, nil
}

// ListDocuments returns every document, newest upload first.
func (s *DocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	return s.collect(func(domain.Document) bool { return true }, true), nil
}

// ListByStatus returns documents in status, oldest upload first so that
// resumed work keeps arrival order.
func (s *DocumentStore) ListByStatus(_ context.Context, status domain.DocumentStatus) ([]domain.Document, error) {
	return s.collect(func(d domain.Document) bool { return d.Status == status }, false), nil
}

func (s *DocumentStore) TransitionStatus(_ context.Context, id string, from, to domain.DocumentStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, domain.NewValidationError("status",
			fmt.Sprintf("cannot transition from %s to %s", from, to))
	}
	return s.swap(id, from, func(d *domain.Document) { d.Status = to }), nil
}

// CompleteDocument records the outcome of a document that is still processing.
func (s *DocumentStore) CompleteDocument(
	_ context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string,
) (bool, error) {
	if !domain.StatusProcessing.CanTransition(status) {
		return false, domain.NewValidationError("status",
			fmt.Sprintf("%s is not a completion status", status))
	}
	return s.swap(id, domain.StatusProcessing, func(d *domain.Document) {
		finished := s.now()
		d.Status = status
		d.ChunkCount = chunkCount
		d.Error = errMsg
		d.ProcessedAt = &finished
	}), nil
}

func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.docs, id)
	s.mu.Unlock()
	return nil
}

// swap applies fn when document id is in status want and reports whether it did.
func (s *DocumentStore) swap(id string, want domain.DocumentStatus, fn func(*domain.Document)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Status != want {
		return false
	}
	fn(&doc)
	s.docs[id] = doc
	return true
}

// collect returns matching documents ordered by upload time, ties by id.
func (s *DocumentStore) collect(keep func(domain.Document) bool, newestFirst bool) []domain.Document {
	s.mu.RLock()
	out := make([]domain.Document, 0, len(s.docs))
	for _, d := range s.docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.UploadedAt.Equal(b.UploadedAt) {
			return a.ID < b.ID
		}
		return a.UploadedAt.After(b.UploadedAt) == newestFirst
	})
	return out
}
