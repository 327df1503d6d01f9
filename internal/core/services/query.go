package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryConfig controls retrieval and generation.
type QueryConfig struct {
	// DefaultTopK is used when a request does not set TopK.
	DefaultTopK int

	// Timeout bounds a single generation call.
	Timeout time.Duration

	// Temperature and MaxTokens are passed to the generator.
	Temperature float64
	MaxTokens   int
}

func (c *QueryConfig) applyDefaults() {
	if c.DefaultTopK <= 0 || c.DefaultTopK > domain.MaxTopK {
		c.DefaultTopK = domain.DefaultTopK
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 500
	}
}

// QueryService answers questions from the chunks of ready documents.
type QueryService struct {
	docs     driven.DocumentStore
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	llm      driven.LLMService
	prompts  driven.PromptStore
	cfg      QueryConfig
}

// NewQueryService creates a query service.
func NewQueryService(
	docs driven.DocumentStore,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	llm driven.LLMService,
	prompts driven.PromptStore,
	cfg QueryConfig,
) *QueryService {
	cfg.applyDefaults()
	return &QueryService{
		docs:     docs,
		embedder: embedder,
		index:    index,
		llm:      llm,
		prompts:  prompts,
		cfg:      cfg,
	}
}

// Answer retrieves the closest chunks of ready documents and generates an
// answer grounded in them. When nothing relevant is found the generator is
// not called.
func (s *QueryService) Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	ctx, span := tracer.Start(ctx, "query.answer")
	defer span.End()

	answer, outcome, err := s.answer(ctx, req)
	QueriesTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("query.sources", len(answer.Sources)))
	return answer, nil
}

func (s *QueryService) answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, outcomeInvalid, domain.NewValidationError("question", "must not be empty")
	}

	k := req.TopK
	if k == 0 {
		k = s.cfg.DefaultTopK
	}
	if k < 0 || k > domain.MaxTopK {
		return nil, outcomeInvalid, domain.NewValidationError("top_k",
			fmt.Sprintf("must be between 1 and %d", domain.MaxTopK))
	}

	ready, filter, err := s.resolveFilter(ctx, req.DocumentIDs)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, outcomeInvalid, err
		}
		return nil, outcomeError, err
	}
	if len(filter) == 0 {
		logger.Debug("None of the requested documents are ready")
		return noContentAnswer(), outcomeNoContent, nil
	}

	logger.Section("Query")
	logger.Debug("Embedding question (%d chars), top %d over %d documents", len(question), k, len(filter))

	vector, err := s.embedQuestion(ctx, question)
	if err != nil {
		return nil, outcomeError, err
	}

	hits, err := s.search(ctx, vector, k, filter)
	if err != nil {
		return nil, outcomeError, err
	}

	// A document may have been deleted between resolving the filter and the search.
	kept := hits[:0]
	for _, hit := range hits {
		if _, ok := ready[hit.Chunk.DocumentID]; ok {
			kept = append(kept, hit)
		}
	}
	hits = kept
	if len(hits) == 0 {
		return noContentAnswer(), outcomeNoContent, nil
	}

	sources := make([]domain.Citation, len(hits))
	for i, hit := range hits {
		name := hit.Filename
		if name == "" {
			name = ready[hit.Chunk.DocumentID].Filename
		}
		sources[i] = domain.Citation{
			DocumentID:   hit.Chunk.DocumentID,
			DocumentName: name,
			ChunkID:      hit.Chunk.ID,
			Position:     hit.Chunk.Position,
			Score:        hit.Score,
			Text:         hit.Chunk.Content,
		}
	}

	prompt, err := s.buildPrompt(question, sources)
	if err != nil {
		return nil, outcomeError, err
	}

	text, err := s.generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrGenerationTimeout) {
			return nil, outcomeTimeout, err
		}
		return nil, outcomeError, err
	}

	return &domain.Answer{
		Text:    strings.TrimSpace(text),
		Sources: sources,
		Model:   s.llm.ModelName(),
	}, outcomeAnswered, nil
}

// resolveFilter returns the ready documents keyed by ID and the document IDs
// the search is restricted to.
func (s *QueryService) resolveFilter(
	ctx context.Context, requested []string,
) (map[string]domain.Document, []string, error) {
	docs, err := s.docs.ListByStatus(ctx, domain.StatusReady)
	if err != nil {
		return nil, nil, fmt.Errorf("list ready documents: %w", err)
	}
	ready := make(map[string]domain.Document, len(docs))
	for _, doc := range docs {
		ready[doc.ID] = doc
	}

	if len(requested) == 0 {
		if len(ready) == 0 {
			return nil, nil, domain.NewValidationError("documents", "no documents are ready to be queried")
		}
		filter := make([]string, 0, len(docs))
		for _, doc := range docs {
			filter = append(filter, doc.ID)
		}
		return ready, filter, nil
	}

	seen := make(map[string]struct{}, len(requested))
	var filter []string
	for _, id := range requested {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := ready[id]; ok {
			filter = append(filter, id)
		}
	}
	return ready, filter, nil
}

func (s *QueryService) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "query.embed")
	defer span.End()

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		span.RecordError(err)
		return nil, embeddingError("embed question", err)
	}
	return vector, nil
}

func (s *QueryService) search(ctx context.Context, vector []float32, k int, filter []string) ([]domain.VectorHit, error) {
	ctx, span := tracer.Start(ctx, "query.search", trace.WithAttributes(attribute.Int("query.k", k)))
	defer span.End()

	hits, err := s.index.Search(ctx, vector, k, filter)
	if err != nil {
		IndexErrors.WithLabelValues("search").Inc()
		span.RecordError(err)
		if !errors.Is(err, domain.ErrIndexUnavailable) && !errors.Is(err, domain.ErrInvalidInput) {
			err = &domain.IndexServiceError{Op: "search", Err: err}
		}
		return nil, err
	}
	logger.Debug("Vector search returned %d hits", len(hits))
	return hits, nil
}

// buildPrompt fills the answer template with numbered context blocks.
func (s *QueryService) buildPrompt(question string, sources []domain.Citation) (string, error) {
	template, err := s.prompts.Load(driven.PromptAnswer)
	if err != nil {
		return "", fmt.Errorf("load answer prompt: %w", err)
	}
	return fmt.Sprintf(template, FormatContext(sources), question), nil
}

// FormatContext renders citations as numbered context blocks in order.
func FormatContext(sources []domain.Citation) string {
	blocks := make([]string, len(sources))
	for i, src := range sources {
		label := "Document: " + src.DocumentName
		switch {
		case src.Position.Page > 0:
			label += fmt.Sprintf(", Page %d", src.Position.Page)
		case src.Position.Sheet != "":
			label += ", Sheet: " + src.Position.Sheet
		}
		blocks[i] = fmt.Sprintf("[Context %d] (%s)\n%s", i+1, label, src.Text)
	}
	return strings.Join(blocks, "\n\n")
}

const answerSystem = "Answer only from the supplied document excerpts and cite the document they came from."

// generate calls the generator under the configured timeout.
func (s *QueryService) generate(ctx context.Context, prompt string) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	genCtx, span := tracer.Start(genCtx, "query.generate",
		trace.WithAttributes(attribute.String("llm.model", s.llm.ModelName())))
	defer span.End()

	start := time.Now()
	text, err := s.llm.Generate(genCtx, prompt, driven.GenerateOptions{
		System:      answerSystem,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	GenerationDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		return text, nil
	}
	span.RecordError(err)

	// The caller went away; that is not a generation timeout.
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if isTimeout(genCtx, err) {
		logger.Warn("Generation timed out after %s", s.cfg.Timeout)
		return "", fmt.Errorf("%w after %s", domain.ErrGenerationTimeout, s.cfg.Timeout)
	}
	if errors.Is(err, domain.ErrGenerationUnavailable) {
		return "", err
	}
	return "", &domain.GenerationServiceError{Err: err}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func noContentAnswer() *domain.Answer {
	return &domain.Answer{Text: domain.NoRelevantContentAnswer, Sources: []domain.Citation{}}
}
