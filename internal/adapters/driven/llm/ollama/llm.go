// Package ollama generates answers with a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/custodia-labs/docqa/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/docqa/internal/adapters/driven/llm"
	"github.com/custodia-labs/docqa/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "http://localhost:11434"
	DefaultLLMModel   = "llama3.1:8b-instruct-q4_0"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the Ollama LLM service.
type LLMConfig struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	RateLimit float64
}

// LLMService calls /api/chat through langchaingo.
type LLMService struct {
	llm   *ollama.LLM
	api   *apiclient.Client
	model string
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewLLMService creates an Ollama generator, filling unset fields with defaults.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	// langchaingo exits the process on an unparseable server URL.
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL: %w", err)
	}

	client := ratelimit.NewClient(cfg.RateLimit, cfg.Timeout)
	model, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
		ollama.WithHTTPClient(client),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return &LLMService{
		llm:   model,
		api:   apiclient.New(apiclient.Options{Service: "ollama", BaseURL: cfg.BaseURL, HTTPClient: client}),
		model: cfg.Model,
	}, nil
}

// Generate returns the model's completion for prompt.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	resp, err := llm.Generate(ctx, s.llm, prompt, opts)
	if err != nil {
		return "", &domain.GenerationServiceError{Err: err}
	}
	// langchaingo only keeps the reply once the final done:true line arrives.
	text := resp.Choices[0].Content
	if text == "" {
		return "", &domain.GenerationServiceError{Err: errors.New("ollama returned an empty or unfinished response")}
	}
	return text, nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping lists local models and fails when the configured one has not been pulled.
func (s *LLMService) Ping(ctx context.Context) error {
	var tags tagsResponse
	if err := s.api.Get(ctx, "/api/tags", &tags); err != nil {
		return &domain.GenerationServiceError{Err: err}
	}
	for _, m := range tags.Models {
		if modelMatches(m.Name, s.model) {
			return nil
		}
	}
	return &domain.GenerationServiceError{
		Err: fmt.Errorf("model %q is not pulled, run: ollama pull %s", s.model, s.model),
	}
}

func (s *LLMService) Close() error {
	return nil
}

// modelMatches treats an untagged name as the :latest tag.
func modelMatches(listed, want string) bool {
	if listed == want {
		return true
	}
	return !strings.Contains(want, ":") && listed == want+":latest"
}
