// Package app wires configuration into the adapters and core services.
//
// Every driving adapter (cli, http, mcp) obtains its services from an App so
// that the storage, vector and AI backends are selected in one place.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	configfile "github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector"
	"github.com/custodia-labs/docqa/internal/chunker"
	"github.com/custodia-labs/docqa/internal/config"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/extractors"
	"github.com/custodia-labs/docqa/internal/logger"
)

// App holds the assembled services and the resources they depend on.
type App struct {
	Config *config.Config

	Documents    *services.DocumentService
	Query        *services.QueryService
	Health       *services.HealthService
	Orchestrator *services.Orchestrator

	store   *sqlite.Store
	index   driven.VectorIndex
	ai      *ai.Services
	prompts driven.PromptStore
}

// New opens every backend named by cfg. The ingest workers are not started.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if a.store, err = sqlite.NewStore(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}
	blobs, err := file.NewBlobStore(cfg.UploadDir())
	if err != nil {
		return nil, fmt.Errorf("opening upload store: %w", err)
	}
	prompts, err := configfile.NewPromptStore(cfg.PromptDir())
	if err != nil {
		return nil, fmt.Errorf("opening prompt store: %w", err)
	}
	a.prompts = prompts
	if a.ai, err = ai.New(cfg); err != nil {
		return nil, err
	}
	if a.index, err = vector.New(ctx, cfg, logger.L()); err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	tokenizer, err := chunker.NewTiktoken(cfg.Chunking.Encoding)
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunking.Size),
		chunker.WithOverlap(cfg.Chunking.Overlap),
		chunker.WithTokenizer(tokenizer),
	)
	if err != nil {
		return nil, err
	}

	registry := extractors.Default()
	docs := a.store.DocumentStore()

	a.Orchestrator = services.NewOrchestrator(docs, blobs, registry, chunks, a.ai.Embedding, a.index,
		services.OrchestratorConfig{
			Workers:        cfg.Ingest.Workers,
			QueueSize:      cfg.Ingest.QueueSize,
			EmbedBatchSize: cfg.Embedding.BatchSize,
		})
	a.Documents = services.NewDocumentService(docs, blobs, a.index, a.Orchestrator,
		registry.SupportedFormats(), cfg.Ingest.MaxFileSizeBytes())
	a.Query = services.NewQueryService(docs, a.ai.Embedding, a.index, a.ai.LLM, prompts,
		services.QueryConfig{
			DefaultTopK: cfg.Query.TopK,
			Timeout:     cfg.Query.Timeout,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
	a.Health = services.NewHealthService(
		services.Probe{Name: "embedding", Ping: a.ai.Embedding.Ping},
		services.Probe{Name: "generation", Ping: a.ai.LLM.Ping},
		services.Probe{Name: "vector index", Ping: a.index.Ping},
		services.Probe{Name: "metadata store", Ping: a.store.Ping},
	)

	logger.Debug("app: backend=%s embedding=%s/%s llm=%s/%s data=%s",
		cfg.Vector.Backend, cfg.Embedding.Provider, cfg.Embedding.Model,
		cfg.LLM.Provider, cfg.LLM.Model, cfg.DataDir)
	return a, nil
}

// ReloadPrompts makes the next query read prompt templates from disk again.
func (a *App) ReloadPrompts() {
	a.prompts.Reload()
}

// Close stops the workers and releases every backend.
func (a *App) Close() error {
	if a.Orchestrator != nil {
		a.Orchestrator.Stop()
	}
	var errs []error
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.ai != nil {
		a.ai.Close()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// Validate checks that the embedding and generation services answer.
func (a *App) Validate(ctx context.Context) error {
	return a.ai.Validate(ctx)
}
