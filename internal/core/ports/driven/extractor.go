package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// Extractor turns raw file bytes of one format into ordered text segments.
// Each extractor handles a single format (e.g., PDF, XLSX).
type Extractor interface {
	// Format returns the format this extractor handles.
	Format() domain.Format

	// Extract returns the readable content in document order.
	// Corrupt, empty or unreadable input fails with *domain.ExtractionError.
	Extract(ctx context.Context, content []byte) ([]domain.Segment, error)
}

// ExtractorRegistry dispatches extraction by format tag.
type ExtractorRegistry interface {
	// Extract runs the extractor registered for format.
	// Unknown formats fail with *domain.UnsupportedFormatError.
	Extract(ctx context.Context, format domain.Format, content []byte) ([]domain.Segment, error)

	// Register adds or replaces the extractor for its format.
	Register(extractor Extractor)

	// SupportedFormats returns all formats that can be extracted.
	SupportedFormats() []domain.Format
}

// Chunker splits extracted segments into overlapping token windows.
type Chunker interface {
	// Chunk returns the ordered chunks of one document. Chunk IDs are
	// deterministic for (documentID, ordinal).
	Chunk(ctx context.Context, documentID string, segments []domain.Segment) ([]domain.Chunk, error)
}
