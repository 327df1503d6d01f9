package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// VectorIndex stores chunk vectors with their payload and answers
// filtered nearest-neighbour queries.
//
// Implementations wrap every backend failure in *domain.IndexServiceError.
// An empty result set is a valid answer, not an error.
type VectorIndex interface {
	// Upsert inserts or replaces the given chunks of one document, keyed by chunk ID.
	// Every chunk must carry an embedding of the index dimension.
	Upsert(ctx context.Context, payload domain.ChunkPayload, chunks []domain.Chunk) error

	// Search returns up to k hits ordered by descending score, ties by ascending chunk ID.
	// A non-empty documentIDs restricts the search to those documents.
	Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]domain.VectorHit, error)

	// DeleteByDocument removes every chunk of a document.
	// Deleting an unknown document is not an error.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
