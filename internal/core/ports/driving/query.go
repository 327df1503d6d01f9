package driving

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// QueryService answers questions from indexed document content.
type QueryService interface {
	// Answer retrieves relevant chunks and generates a grounded answer.
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error)
}

// HealthService probes the external collaborators.
type HealthService interface {
	// Check returns one entry per dependency.
	Check(ctx context.Context) domain.HealthReport
}
