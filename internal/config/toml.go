package config

import (
	"github.com/pelletier/go-toml/v2"
)

// Render returns the configuration as a TOML document.
// Durations are written in their string form so the output loads back.
func Render(cfg *Config) ([]byte, error) {
	view := map[string]any{
		"data_dir": cfg.DataDir,
		"log": map[string]any{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
		"chunking": map[string]any{
			"size":     cfg.Chunking.Size,
			"overlap":  cfg.Chunking.Overlap,
			"encoding": cfg.Chunking.Encoding,
		},
		"embedding": map[string]any{
			"provider":   cfg.Embedding.Provider,
			"base_url":   cfg.Embedding.BaseURL,
			"model":      cfg.Embedding.Model,
			"api_key":    redact(cfg.Embedding.APIKey),
			"dimensions": cfg.Embedding.Dimensions,
			"batch_size": cfg.Embedding.BatchSize,
			"timeout":    cfg.Embedding.Timeout.String(),
			"rate_limit": cfg.Embedding.RateLimit,
		},
		"llm": map[string]any{
			"provider":    cfg.LLM.Provider,
			"base_url":    cfg.LLM.BaseURL,
			"model":       cfg.LLM.Model,
			"api_key":     redact(cfg.LLM.APIKey),
			"temperature": cfg.LLM.Temperature,
			"max_tokens":  cfg.LLM.MaxTokens,
			"timeout":     cfg.LLM.Timeout.String(),
			"rate_limit":  cfg.LLM.RateLimit,
		},
		"vector": map[string]any{
			"backend":    cfg.Vector.Backend,
			"collection": cfg.Vector.Collection,
			"qdrant": map[string]any{
				"host":    cfg.Vector.Qdrant.Host,
				"port":    cfg.Vector.Qdrant.Port,
				"api_key": redact(cfg.Vector.Qdrant.APIKey),
				"use_tls": cfg.Vector.Qdrant.UseTLS,
			},
			"chromem": map[string]any{
				"path":     cfg.Vector.Chromem.Path,
				"compress": cfg.Vector.Chromem.Compress,
			},
		},
		"ingest": map[string]any{
			"workers":          cfg.Ingest.Workers,
			"queue_size":       cfg.Ingest.QueueSize,
			"max_file_size_mb": cfg.Ingest.MaxFileSizeMB,
		},
		"query": map[string]any{
			"top_k":   cfg.Query.TopK,
			"timeout": cfg.Query.Timeout.String(),
		},
		"http": map[string]any{
			"host": cfg.HTTP.Host,
			"port": cfg.HTTP.Port,
		},
	}
	return toml.Marshal(view)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
