// Package openai embeds chunks and questions through an OpenAI-compatible
// /embeddings endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/docqa/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/docqa/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultModel     = "text-embedding-3-small"
	DefaultTimeout   = 60 * time.Second
	DefaultBatchSize = 64

	fallbackDimensions = 1536
)

// Native vector sizes of the hosted models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config holds configuration for the OpenAI embedding service. APIKey is required.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions overrides the model's native size. Only text-embedding-3
	// models can shorten their vectors, so only they receive it.
	Dimensions int

	BatchSize int
	RateLimit float64
}

// EmbeddingService calls /embeddings through langchaingo.
type EmbeddingService struct {
	embedder   *embeddings.EmbedderImpl
	api        *apiclient.Client
	model      string
	dimensions int
}

// NewEmbeddingService creates an OpenAI embedder.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	dims := cfg.Dimensions
	if dims == 0 {
		if native, ok := modelDimensions[cfg.Model]; ok {
			dims = native
		} else {
			dims = fallbackDimensions
		}
	}

	client := ratelimit.NewClient(cfg.RateLimit, cfg.Timeout)
	opts := []openai.Option{
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
		openai.WithHTTPClient(client),
	}
	if strings.HasPrefix(cfg.Model, "text-embedding-3-") {
		opts = append(opts, openai.WithEmbeddingDimensions(dims))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("openai: creating embedder: %w", err)
	}

	return &EmbeddingService{
		embedder: embedder,
		api: apiclient.New(apiclient.Options{
			Service:    "openai",
			BaseURL:    cfg.BaseURL,
			Header:     http.Header{"Authorization": []string{"Bearer " + cfg.APIKey}},
			HTTPClient: client,
		}),
		model:      cfg.Model,
		dimensions: dims,
	}, nil
}

// Embed embeds a single question.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts BatchSize at a time. Vectors are taken in reply
// order, which the API keeps aligned with the input.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err == nil {
		err = s.check(vectors, len(texts))
	}
	if err != nil {
		return nil, &domain.EmbeddingServiceError{Op: "embed", Err: err}
	}
	return vectors, nil
}

func (s *EmbeddingService) check(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("openai returned %d embeddings for %d inputs", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) != s.dimensions {
			return fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(v), s.dimensions)
		}
	}
	return nil
}

func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping fetches the model entry, which checks both the key and the model name.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/models/"+s.model, nil); err != nil {
		return &domain.EmbeddingServiceError{Op: "ping", Err: err}
	}
	return nil
}

func (s *EmbeddingService) Close() error {
	return nil
}
