// Package ai creates embedding and generation service adapters from configuration.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docqa/internal/config"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Services holds the AI adapters used by the pipeline.
type Services struct {
	Embedding driven.EmbeddingService
	LLM       driven.LLMService
}

// Close releases all resources held by Services.
func (s *Services) Close() {
	if s.Embedding != nil {
		s.Embedding.Close()
	}
	if s.LLM != nil {
		s.LLM.Close()
	}
}

// New creates both services from configuration without contacting them.
func New(cfg *config.Config) (*Services, error) {
	embedding, err := CreateEmbeddingService(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	llm, err := CreateLLMService(cfg.LLM)
	if err != nil {
		embedding.Close()
		return nil, err
	}
	return &Services{Embedding: embedding, LLM: llm}, nil
}

// CreateEmbeddingService creates the embedding service for the configured provider.
func CreateEmbeddingService(cfg config.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			RateLimit:  cfg.RateLimit,
		})

	case config.ProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			RateLimit:  cfg.RateLimit,
		})

	case config.ProviderAnthropic:
		return nil, fmt.Errorf("anthropic does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// CreateLLMService creates the generation service for the configured provider.
func CreateLLMService(cfg config.LLMConfig) (driven.LLMService, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})

	case config.ProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})

	case config.ProviderAnthropic:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// Validate pings both services, returning the first failure.
func (s *Services) Validate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := s.Embedding.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}
	if err := s.LLM.Ping(ctx); err != nil {
		return fmt.Errorf("%w: service unreachable (%w)", domain.ErrGenerationUnavailable, err)
	}
	return nil
}
