// Package memory provides a brute-force in-process VectorIndex for tests and
// single-run sessions.
package memory

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	chunk    domain.Chunk
	filename string
	norm     float64
}

// Index keeps every vector in memory, grouped by document.
// Slices are replaced rather than mutated so searches can run on a snapshot.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	docs       map[string][]entry
}

// New creates an empty index of the given dimension.
func New(dimensions int) *Index {
	return &Index{
		dimensions: dimensions,
		docs:       make(map[string][]entry),
	}
}

// Upsert replaces chunks with matching IDs and appends the rest.
func (i *Index) Upsert(_ context.Context, payload domain.ChunkPayload, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	incoming := make(map[string][]entry)
	for _, c := range chunks {
		if len(c.Embedding) != i.dimensions {
			return &domain.IndexServiceError{
				Op:  "upsert",
				Err: fmt.Errorf("chunk %s has %d dimensions, index expects %d", c.ID, len(c.Embedding), i.dimensions),
			}
		}
		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)
		c.Embedding = vec
		incoming[c.DocumentID] = append(incoming[c.DocumentID], entry{
			chunk:    c,
			filename: payload.Filename,
			norm:     norm(vec),
		})
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for docID, add := range incoming {
		replaced := make(map[string]bool, len(add))
		for _, e := range add {
			replaced[e.chunk.ID] = true
		}
		old := i.docs[docID]
		next := make([]entry, 0, len(old)+len(add))
		for _, e := range old {
			if !replaced[e.chunk.ID] {
				next = append(next, e)
			}
		}
		i.docs[docID] = append(next, add...)
	}
	return nil
}

// Search scores every candidate vector and returns the top k.
func (i *Index) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]domain.VectorHit, error) {
	if k <= 0 {
		return nil, domain.NewValidationError("k", "must be positive")
	}
	if len(query) != i.dimensions {
		return nil, &domain.IndexServiceError{
			Op:  "search",
			Err: fmt.Errorf("query has %d dimensions, index expects %d", len(query), i.dimensions),
		}
	}

	snapshot := i.snapshot(documentIDs)
	qnorm := norm(query)

	var hits []domain.VectorHit
	for _, entries := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, e := range entries {
			hit := domain.VectorHit{
				Chunk:    e.chunk,
				Filename: e.filename,
				Score:    cosine(query, e.chunk.Embedding, qnorm, e.norm),
			}
			hit.Chunk.Embedding = nil
			hits = append(hits, hit)
		}
	}

	domain.SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (i *Index) snapshot(documentIDs []string) [][]entry {
	i.mu.RLock()
	defer i.mu.RUnlock()

	var out [][]entry
	if len(documentIDs) == 0 {
		for _, entries := range i.docs {
			out = append(out, entries)
		}
		return out
	}

	seen := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if entries, ok := i.docs[id]; ok {
			out = append(out, entries)
		}
	}
	return out
}

// DeleteByDocument drops every chunk of the document.
func (i *Index) DeleteByDocument(_ context.Context, documentID string) error {
	i.mu.Lock()
	delete(i.docs, documentID)
	i.mu.Unlock()
	return nil
}

// Count returns the number of stored chunks.
func (i *Index) Count(context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	n := 0
	for _, entries := range i.docs {
		n += len(entries)
	}
	return n, nil
}

// Ping always succeeds.
func (i *Index) Ping(context.Context) error { return nil }

// Close is a no-op.
func (i *Index) Close() error { return nil }

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for j := range a {
		dot += float64(a[j]) * float64(b[j])
	}
	return dot / (na * nb)
}
