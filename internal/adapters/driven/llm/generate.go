// Package llm holds the langchaingo call shared by the generation adapters.
package llm

import (
	"context"
	"errors"

	"github.com/tmc/langchaingo/llms"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// ErrNoChoices is returned when a backend replies without any completion.
var ErrNoChoices = errors.New("no response choices returned")

// Generate sends prompt as a single human turn, preceded by the system
// message when one is set. extra is appended after the options derived
// from opts, so backend specific call options can override them.
func Generate(ctx context.Context, model llms.Model, prompt string, opts driven.GenerateOptions, extra ...llms.CallOption) (*llms.ContentResponse, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if opts.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, opts.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	resp, err := model.GenerateContent(ctx, messages, append(CallOptions(opts), extra...)...)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, ErrNoChoices
	}
	return resp, nil
}

// CallOptions maps the port's sampling settings onto langchaingo options.
// Unset limits are left to the backend.
func CallOptions(opts driven.GenerateOptions) []llms.CallOption {
	out := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxTokens > 0 {
		out = append(out, llms.WithMaxTokens(opts.MaxTokens))
	}
	if len(opts.Stop) > 0 {
		out = append(out, llms.WithStopWords(opts.Stop))
	}
	return out
}
