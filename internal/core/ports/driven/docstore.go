package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentStore persists document metadata independently of the vector index.
// Backed by SQLite for durable storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound (wrapped) for unknown IDs.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns all documents, newest upload first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// ListByStatus returns documents in the given status, oldest upload first.
	ListByStatus(ctx context.Context, status domain.DocumentStatus) ([]domain.Document, error)

	// TransitionStatus moves a document from one status to another only if it
	// is currently in the from status. It reports whether the swap happened.
	TransitionStatus(ctx context.Context, id string, from, to domain.DocumentStatus) (bool, error)

	// CompleteDocument records the outcome of a processing attempt. It only
	// applies while the document is processing and reports whether it applied.
	CompleteDocument(ctx context.Context, id string, status domain.DocumentStatus, chunkCount int, errMsg string) (bool, error)

	// DeleteDocument removes a document. Deleting an unknown ID is not an error.
	DeleteDocument(ctx context.Context, id string) error
}

// BlobStore holds the raw bytes of uploaded files.
type BlobStore interface {
	// Put stores content under the document ID.
	Put(ctx context.Context, id string, content []byte) error

	// Get returns the content stored under the document ID.
	// Returns domain.ErrNotFound (wrapped) when absent.
	Get(ctx context.Context, id string) ([]byte, error)

	// Delete removes the content. Deleting a missing blob is not an error.
	Delete(ctx context.Context, id string) error
}
