package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// DocumentService manages uploaded documents and their lifecycle.
type DocumentService interface {
	// Ingest validates and stores an upload, schedules background processing
	// and returns immediately with the document in pending status.
	Ingest(ctx context.Context, raw domain.RawDocument) (*domain.Document, error)

	// Status returns the polling view of a document.
	Status(ctx context.Context, documentID string) (*domain.StatusReport, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)

	// Delete removes the document, its raw bytes and its indexed chunks.
	Delete(ctx context.Context, documentID string) error
}
