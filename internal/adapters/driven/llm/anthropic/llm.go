// Package anthropic generates answers with the Anthropic Messages API.
// Anthropic has no embedding endpoint, so it is only selectable for generation.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/custodia-labs/docqa/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/docqa/internal/adapters/driven/llm"
	"github.com/custodia-labs/docqa/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	apiVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic LLM service. APIKey is required.
// BaseURL is the API root; the /v1 prefix is added here.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	RateLimit float64
}

// LLMService sends the prompt as one user message.
type LLMService struct {
	llm   *anthropic.LLM
	api   *apiclient.Client
	model string
}

// NewLLMService creates an Anthropic generator.
func NewLLMService(cfg Config) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
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

	client := ratelimit.NewClient(cfg.RateLimit, cfg.Timeout)
	model, err := anthropic.New(
		anthropic.WithBaseURL(cfg.BaseURL+"/v1"),
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
		anthropic.WithHTTPClient(client),
	)
	if err != nil {
		return nil, err
	}
	return &LLMService{
		llm: model,
		api: apiclient.New(apiclient.Options{
			Service: "anthropic",
			BaseURL: cfg.BaseURL,
			Header: http.Header{
				"X-Api-Key":         []string{cfg.APIKey},
				"Anthropic-Version": []string{apiVersion},
			},
			HTTPClient: client,
		}),
		model: cfg.Model,
	}, nil
}

// Generate joins the text blocks of the reply.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	if opts.MaxTokens <= 0 {
		// The API rejects requests without max_tokens.
		opts.MaxTokens = DefaultMaxTokens
	}

	resp, err := llm.Generate(ctx, s.llm, prompt, opts)
	if err != nil {
		return "", &domain.GenerationServiceError{Err: err}
	}

	var text strings.Builder
	for _, block := range resp.Choices {
		if block != nil {
			text.WriteString(block.Content)
		}
	}
	if text.Len() == 0 {
		return "", &domain.GenerationServiceError{
			Err: fmt.Errorf("anthropic: no text content returned (stop reason %q)", resp.Choices[0].StopReason),
		}
	}
	return text.String(), nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping fetches the model entry, which checks both the key and the model name.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/v1/models/"+s.model, nil); err != nil {
		return &domain.GenerationServiceError{Err: err}
	}
	return nil
}

func (s *LLMService) Close() error {
	return nil
}
