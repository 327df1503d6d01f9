package mcp

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Documents accepts uploads and reports their lifecycle.
	Documents driving.DocumentService

	// Query answers questions from ready documents.
	Query driving.QueryService

	// Health probes dependencies. Optional.
	Health driving.HealthService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Documents == nil {
		return ErrMissingDocumentService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
