// Package apiclient probes embedding and generation backends for reachability
// and model availability. Requests themselves go through langchaingo, which
// has no call for listing or describing models.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	maxResponseBytes = 16 << 20
	maxErrorMessage  = 512
)

// Options configures a Client.
type Options struct {
	// Service names the backend in error messages, e.g. "ollama".
	Service string

	BaseURL string

	// Header is added to every request.
	Header http.Header

	// HTTPClient sends the requests. Sharing the adapter's rate limited
	// client keeps probes inside the same budget. Nil means a default client.
	HTTPClient *http.Client
}

// Client sends GET requests to one backend.
type Client struct {
	service string
	baseURL string
	header  http.Header
	http    *http.Client
}

// New creates a client. A trailing slash on BaseURL is ignored.
func New(opts Options) *Client {
	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Client{
		service: opts.Service,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		header:  header,
		http:    client,
	}
}

// Service returns the backend name.
func (c *Client) Service() string {
	return c.service
}

// Get fetches path and decodes the reply into out, which may be nil.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Service: c.service, Code: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Service string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Code, e.Message)
}

// errorMessage pulls the message out of the error envelopes used by Ollama
// ({"error":"..."}) and OpenAI/Anthropic ({"error":{"message":"..."}}),
// falling back to the raw body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var text string
		if json.Unmarshal(envelope.Error, &text) == nil && text != "" {
			return truncate(text)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return truncate(nested.Message)
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	return truncate(msg)
}

func truncate(s string) string {
	if len(s) <= maxErrorMessage {
		return s
	}
	return s[:maxErrorMessage] + "..."
}
