// Package openai generates answers through an OpenAI-compatible
// /chat/completions endpoint (OpenAI, Azure, vLLM, LM Studio).
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/custodia-labs/docqa/internal/adapters/driven/apiclient"
	"github.com/custodia-labs/docqa/internal/adapters/driven/llm"
	"github.com/custodia-labs/docqa/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

var _ driven.LLMService = (*LLMService)(nil)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o-mini"
	DefaultLLMTimeout = 120 * time.Second
)

// LLMConfig holds configuration for the OpenAI LLM service. APIKey is required.
type LLMConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Timeout   time.Duration
	RateLimit float64
}

// LLMService sends the prompt as a single user turn.
type LLMService struct {
	llm   *openai.LLM
	api   *apiclient.Client
	model string

	// Compatible servers predate max_completion_tokens and only read max_tokens.
	legacyMaxTokens bool
}

// NewLLMService creates an OpenAI generator.
func NewLLMService(cfg LLMConfig) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}

	client := ratelimit.NewClient(cfg.RateLimit, cfg.Timeout)
	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(client),
	)
	if err != nil {
		return nil, err
	}
	return &LLMService{
		llm: model,
		api: apiclient.New(apiclient.Options{
			Service:    "openai",
			BaseURL:    cfg.BaseURL,
			Header:     http.Header{"Authorization": []string{"Bearer " + cfg.APIKey}},
			HTTPClient: client,
		}),
		model:           cfg.Model,
		legacyMaxTokens: cfg.BaseURL != DefaultBaseURL,
	}, nil
}

// Generate returns the first choice's content.
func (s *LLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	var extra []llms.CallOption
	if s.legacyMaxTokens {
		extra = append(extra, openai.WithLegacyMaxTokensField())
	}

	resp, err := llm.Generate(ctx, s.llm, prompt, opts, extra...)
	if err != nil {
		return "", &domain.GenerationServiceError{Err: err}
	}
	choice := resp.Choices[0]
	if choice.StopReason == "content_filter" {
		return "", &domain.GenerationServiceError{Err: errors.New("openai: answer withheld by content filter")}
	}
	return choice.Content, nil
}

func (s *LLMService) ModelName() string {
	return s.model
}

// Ping fetches the model entry, which checks both the key and the model name.
func (s *LLMService) Ping(ctx context.Context) error {
	if err := s.api.Get(ctx, "/models/"+s.model, nil); err != nil {
		return &domain.GenerationServiceError{Err: err}
	}
	return nil
}

func (s *LLMService) Close() error {
	return nil
}
