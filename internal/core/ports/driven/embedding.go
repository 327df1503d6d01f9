package driven

import "context"

// EmbeddingService maps text to vectors. Chunks and questions must be
// embedded by the same model or similarity scores are meaningless, so one
// instance serves both the ingestion and query paths.
// Backends: Ollama and OpenAI-compatible servers.
type EmbeddingService interface {
	// Embed returns the vector for a single question.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order. Failures are
	// reported as *domain.EmbeddingServiceError.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every returned vector. The vector index
	// is created with this size.
	Dimensions() int

	ModelName() string

	// Ping checks the backend is reachable and the model is available.
	Ping(ctx context.Context) error

	Close() error
}
