package driven

import "context"

// LLMService turns an assembled answer prompt into text.
// Backends: Ollama, OpenAI-compatible chat servers, Anthropic.
type LLMService interface {
	// Generate returns the completion for prompt. It must stop when ctx is
	// done and report failures as *domain.GenerationServiceError.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	ModelName() string

	// Ping checks the backend is reachable and the model is usable without
	// generating anything.
	Ping(ctx context.Context) error

	Close() error
}

// GenerateOptions are the sampling settings for one call.
type GenerateOptions struct {
	// System is sent as the system instruction where the backend has one,
	// otherwise prepended to the prompt.
	System string

	// MaxTokens caps the completion length. Zero lets the backend decide.
	MaxTokens int

	// Temperature is passed through unchanged.
	Temperature float64

	// Stop ends generation at any of these sequences.
	Stop []string
}
