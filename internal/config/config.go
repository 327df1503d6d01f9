// Package config loads docqa configuration.
//
// Values come from, in order of increasing precedence: built-in defaults,
// the TOML file (~/.docqa/config.toml) and DOCQA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Vector index backends.
const (
	BackendChromem = "chromem"
	BackendQdrant  = "qdrant"
	BackendMemory  = "memory"
)

// AI providers for embeddings and generation.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic" // generation only
)

// Config is the root application configuration.
type Config struct {
	DataDir   string          `koanf:"data_dir" toml:"data_dir"`
	Log       LogConfig       `koanf:"log" toml:"log"`
	Chunking  ChunkingConfig  `koanf:"chunking" toml:"chunking"`
	Embedding EmbeddingConfig `koanf:"embedding" toml:"embedding"`
	LLM       LLMConfig       `koanf:"llm" toml:"llm"`
	Vector    VectorConfig    `koanf:"vector" toml:"vector"`
	Ingest    IngestConfig    `koanf:"ingest" toml:"ingest"`
	Query     QueryConfig     `koanf:"query" toml:"query"`
	HTTP      HTTPConfig      `koanf:"http" toml:"http"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level"`
	Format string `koanf:"format" toml:"format"`
}

// ChunkingConfig sets token window size and overlap.
type ChunkingConfig struct {
	Size     int    `koanf:"size" toml:"size"`
	Overlap  int    `koanf:"overlap" toml:"overlap"`
	Encoding string `koanf:"encoding" toml:"encoding"`
}

// EmbeddingConfig selects the embedding service.
type EmbeddingConfig struct {
	Provider   string        `koanf:"provider" toml:"provider"`
	BaseURL    string        `koanf:"base_url" toml:"base_url"`
	Model      string        `koanf:"model" toml:"model"`
	APIKey     string        `koanf:"api_key" toml:"api_key,omitempty"`
	Dimensions int           `koanf:"dimensions" toml:"dimensions"`
	BatchSize  int           `koanf:"batch_size" toml:"batch_size"`
	Timeout    time.Duration `koanf:"timeout" toml:"timeout"`
	RateLimit  float64       `koanf:"rate_limit" toml:"rate_limit"`
}

// LLMConfig selects the generation service.
type LLMConfig struct {
	Provider    string        `koanf:"provider" toml:"provider"`
	BaseURL     string        `koanf:"base_url" toml:"base_url"`
	Model       string        `koanf:"model" toml:"model"`
	APIKey      string        `koanf:"api_key" toml:"api_key,omitempty"`
	Temperature float64       `koanf:"temperature" toml:"temperature"`
	MaxTokens   int           `koanf:"max_tokens" toml:"max_tokens"`
	Timeout     time.Duration `koanf:"timeout" toml:"timeout"`
	RateLimit   float64       `koanf:"rate_limit" toml:"rate_limit"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Backend    string        `koanf:"backend" toml:"backend"`
	Collection string        `koanf:"collection" toml:"collection"`
	Qdrant     QdrantConfig  `koanf:"qdrant" toml:"qdrant"`
	Chromem    ChromemConfig `koanf:"chromem" toml:"chromem"`
}

// QdrantConfig holds gRPC connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host" toml:"host"`
	Port   int    `koanf:"port" toml:"port"`
	APIKey string `koanf:"api_key" toml:"api_key,omitempty"`
	UseTLS bool   `koanf:"use_tls" toml:"use_tls"`
}

// ChromemConfig configures the embedded store.
type ChromemConfig struct {
	Path     string `koanf:"path" toml:"path"`
	Compress bool   `koanf:"compress" toml:"compress"`
}

// IngestConfig configures upload validation and the worker pool.
type IngestConfig struct {
	Workers       int   `koanf:"workers" toml:"workers"`
	QueueSize     int   `koanf:"queue_size" toml:"queue_size"`
	MaxFileSizeMB int64 `koanf:"max_file_size_mb" toml:"max_file_size_mb"`
}

// QueryConfig configures retrieval and generation limits.
type QueryConfig struct {
	TopK    int           `koanf:"top_k" toml:"top_k"`
	Timeout time.Duration `koanf:"timeout" toml:"timeout"`
}

// HTTPConfig configures the serve command listener.
type HTTPConfig struct {
	Host string `koanf:"host" toml:"host"`
	Port int    `koanf:"port" toml:"port"`
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (c IngestConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// DatabasePath returns the SQLite metadata database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "metadata.db")
}

// UploadDir returns the raw upload directory.
func (c *Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// PromptDir returns the directory of user editable prompts.
func (c *Config) PromptDir() string {
	return filepath.Join(c.DataDir, "prompts")
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaults()
	applyDerived(cfg)
	return cfg
}

// defaults returns the static defaults that a file or environment may override.
func defaults() *Config {
	return &Config{
		DataDir: defaultDir(),
		Log:     LogConfig{Level: "warn", Format: "console"},
		Chunking: ChunkingConfig{
			Size:     1000,
			Overlap:  100,
			Encoding: "cl100k_base",
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOllama,
			Model:      "bge-m3",
			Dimensions: 1024,
			BatchSize:  32,
			Timeout:    60 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			Model:       "llama3.1:8b-instruct-q4_0",
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     120 * time.Second,
		},
		Vector: VectorConfig{
			Backend:    BackendChromem,
			Collection: "documents",
			Qdrant:     QdrantConfig{Host: "localhost", Port: 6334},
		},
		Ingest: IngestConfig{Workers: 2, QueueSize: 64, MaxFileSizeMB: 100},
		Query:  QueryConfig{TopK: 5},
		HTTP:   HTTPConfig{Host: "localhost", Port: 8080},
	}
}

// applyDerived fills values that depend on other settings.
func applyDerived(cfg *Config) {
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaultBaseURL(cfg.Embedding.Provider)
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultBaseURL(cfg.LLM.Provider)
	}
	if cfg.Vector.Chromem.Path == "" {
		cfg.Vector.Chromem.Path = filepath.Join(cfg.DataDir, "vectors")
	}
	if cfg.Query.Timeout == 0 {
		cfg.Query.Timeout = cfg.LLM.Timeout
	}
}

func defaultBaseURL(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com"
	default:
		return "http://localhost:11434"
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	var errs []error

	if c.Chunking.Size <= 0 {
		errs = append(errs, errors.New("chunking.size must be positive"))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap must be in [0, %d)", c.Chunking.Size))
	}

	switch c.Embedding.Provider {
	case ProviderOllama, ProviderOpenAI:
	case ProviderAnthropic:
		errs = append(errs, errors.New("embedding.provider anthropic does not offer embeddings"))
	default:
		errs = append(errs, fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider))
	}
	if c.Embedding.Provider == ProviderOpenAI && c.Embedding.APIKey == "" {
		errs = append(errs, errors.New("embedding.api_key is required for openai"))
	}
	if c.Embedding.Dimensions <= 0 {
		errs = append(errs, errors.New("embedding.dimensions must be positive"))
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderAnthropic:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.Provider != ProviderOllama && c.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.api_key is required for %s", c.LLM.Provider))
	}

	switch c.Vector.Backend {
	case BackendChromem, BackendQdrant, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("vector.backend %q is not supported", c.Vector.Backend))
	}
	if c.Vector.Qdrant.Port < 1 || c.Vector.Qdrant.Port > 65535 {
		errs = append(errs, errors.New("vector.qdrant.port must be between 1 and 65535"))
	}

	if c.Ingest.Workers < 1 {
		errs = append(errs, errors.New("ingest.workers must be at least 1"))
	}
	if c.Ingest.MaxFileSizeMB < 1 {
		errs = append(errs, errors.New("ingest.max_file_size_mb must be at least 1"))
	}

	if c.Query.TopK < 1 || c.Query.TopK > 50 {
		errs = append(errs, errors.New("query.top_k must be between 1 and 50"))
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, errors.New("http.port must be between 1 and 65535"))
	}

	return errors.Join(errs...)
}
