// Package mcp provides an MCP (Model Context Protocol) server adapter for docqa.
// It lets AI assistants ingest documents and ask grounded questions about them.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var (
	// ErrMissingDocumentService is returned when the document service is not provided.
	ErrMissingDocumentService = errors.New("mcp: document service is required")

	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("mcp: query service is required")
)

// toolError rewrites core errors into messages an assistant can act on.
func toolError(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fmt.Errorf("invalid request: %w", err)
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("not found: %w", err)
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return fmt.Errorf("%w (supported: pdf, docx, xlsx)", err)
	case errors.Is(err, domain.ErrGenerationTimeout):
		return fmt.Errorf("the language model did not answer in time: %w", err)
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrIndexUnavailable),
		errors.Is(err, domain.ErrGenerationUnavailable):
		return fmt.Errorf("a backing service is unavailable: %w", err)
	default:
		return err
	}
}
