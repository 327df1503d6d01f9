// Package vector creates the configured VectorIndex backend.
package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/chromem"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/docqa/internal/config"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// New opens the backend named by cfg.Vector.Backend, sized to the embedding dimension.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (driven.VectorIndex, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dims := cfg.Embedding.Dimensions
	logger = logger.With(zap.String("backend", cfg.Vector.Backend))

	switch cfg.Vector.Backend {
	case config.BackendChromem:
		idx, err := chromem.New(chromem.Config{
			Path:       cfg.Vector.Chromem.Path,
			Compress:   cfg.Vector.Chromem.Compress,
			Collection: cfg.Vector.Collection,
			Dimensions: dims,
		}, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case config.BackendQdrant:
		idx, err := qdrant.New(ctx, qdrant.Config{
			Host:       cfg.Vector.Qdrant.Host,
			Port:       cfg.Vector.Qdrant.Port,
			APIKey:     cfg.Vector.Qdrant.APIKey,
			UseTLS:     cfg.Vector.Qdrant.UseTLS,
			Collection: cfg.Vector.Collection,
			Dimensions: dims,
		}, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case config.BackendMemory:
		return memory.New(dims), nil
	default:
		return nil, fmt.Errorf("unsupported vector backend: %s", cfg.Vector.Backend)
	}
}
