package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Options struct {
		NumPredict  int      `json:"num_predict"`
		Temperature float64  `json:"temperature"`
		Stop        []string `json:"stop"`
	} `json:"options"`
}

func newService(t *testing.T, cfg LLMConfig) *LLMService {
	t.Helper()
	svc, err := NewLLMService(cfg)
	require.NoError(t, err)
	return svc
}

func TestGenerate_SendsOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "the prompt", req.Messages[1].Content)
		assert.Equal(t, 500, req.Options.NumPredict)
		assert.InDelta(t, 0.7, req.Options.Temperature, 1e-6)
		assert.Equal(t, []string{"\n\n"}, req.Options.Stop)

		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"the "},"done":false}` + "\n"))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"answer"},"done":true}` + "\n"))
	}))
	defer srv.Close()

	svc := newService(t, LLMConfig{BaseURL: srv.URL, Model: "llama3"})

	out, err := svc.Generate(context.Background(), "the prompt", driven.GenerateOptions{
		System:      "be brief",
		MaxTokens:   500,
		Temperature: 0.7,
		Stop:        []string{"\n\n"},
	})

	require.NoError(t, err)
	assert.Equal(t, "the answer", out)
	assert.Equal(t, "llama3", svc.ModelName())
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"out of memory"}`))
			},
			want: "out of memory",
		},
		{
			name: "error in body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error":"context window exceeded"}`))
			},
			want: "context window exceeded",
		},
		{
			name: "not done",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"partial"},"done":false}`))
			},
			want: "unfinished",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newService(t, LLMConfig{BaseURL: srv.URL}).Generate(context.Background(), "p", driven.GenerateOptions{})

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestGenerate_DeadlineExceeded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	svc := newService(t, LLMConfig{BaseURL: srv.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Generate(ctx, "p", driven.GenerateOptions{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3:latest"},{"name":"qwen2.5:7b"}]}`))
	}))
	defer srv.Close()

	assert.NoError(t, newService(t, LLMConfig{BaseURL: srv.URL, Model: "llama3"}).Ping(context.Background()))
	assert.NoError(t, newService(t, LLMConfig{BaseURL: srv.URL, Model: "qwen2.5:7b"}).Ping(context.Background()))

	err := newService(t, LLMConfig{BaseURL: srv.URL, Model: "mistral"}).Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrGenerationUnavailable)
	assert.Contains(t, err.Error(), "ollama pull mistral")

	assert.ErrorIs(t,
		newService(t, LLMConfig{BaseURL: "http://127.0.0.1:1"}).Ping(context.Background()),
		domain.ErrGenerationUnavailable)
}

func TestModelMatches(t *testing.T) {
	assert.True(t, modelMatches("bge-m3:latest", "bge-m3"))
	assert.True(t, modelMatches("llama3:8b", "llama3:8b"))
	assert.False(t, modelMatches("llama3:8b", "llama3"))
	assert.False(t, modelMatches("llama3:latest", "llama3:8b"))
}
