// Package ollama embeds chunks and questions with a local Ollama server.
package ollama

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/docqa/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/docqa/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*EmbeddingService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultModel      = "bge-m3"
	DefaultTimeout    = 60 * time.Second
	DefaultDimensions = 1024 // bge-m3
	DefaultBatchSize  = 32
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration

	// Dimensions is the vector size the model produces. Replies of any
	// other size are rejected.
	Dimensions int

	// BatchSize caps the texts handed to the embedder at once.
	BatchSize int

	RateLimit float64
}

// EmbeddingService calls /api/embed through langchaingo, one text per request.
type EmbeddingService struct {
	embedder   *embeddings.EmbedderImpl
	api        *apiclient.Client
	model      string
	dimensions int
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewEmbeddingService creates an Ollama embedder, filling unset fields with defaults.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	// langchaingo exits the process on an unparseable server URL.
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL: %w", err)
	}

	client := ratelimit.NewClient(cfg.RateLimit, cfg.Timeout)
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: creating embedder: %w", err)
	}

	return &EmbeddingService{
		embedder:   embedder,
		api:        apiclient.New(apiclient.Options{Service: "ollama", BaseURL: cfg.BaseURL, HTTPClient: client}),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
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

// EmbedBatch embeds texts BatchSize at a time, preserving input order.
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
		return fmt.Errorf("ollama returned %d embeddings for %d inputs", len(vectors), want)
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

// Ping lists local models and fails when the embedding model has not been pulled.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	var tags tagsResponse
	if err := s.api.Get(ctx, "/api/tags", &tags); err != nil {
		return &domain.EmbeddingServiceError{Op: "ping", Err: err}
	}
	for _, m := range tags.Models {
		if m.Name == s.model || (!strings.Contains(s.model, ":") && m.Name == s.model+":latest") {
			return nil
		}
	}
	return &domain.EmbeddingServiceError{
		Op:  "ping",
		Err: fmt.Errorf("model %q is not pulled, run: ollama pull %s", s.model, s.model),
	}
}

func (s *EmbeddingService) Close() error {
	return nil
}
