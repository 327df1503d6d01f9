package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	vectormemory "github.com/custodia-labs/docqa/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

const testDims = 4

// --- Extractors ---

// pageExtractors treats each line of content as one page.
type pageExtractors struct {
	err error
}

func (p *pageExtractors) Extract(_ context.Context, format domain.Format, content []byte) ([]domain.Segment, error) {
	if p.err != nil {
		return nil, p.err
	}
	var segments []domain.Segment
	for i, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pos := domain.Position{Page: i + 1}
		if format == domain.FormatXLSX {
			pos = domain.Position{Sheet: fmt.Sprintf("Sheet%d", i+1)}
		}
		segments = append(segments, domain.Segment{Text: line, Position: pos})
	}
	if len(segments) == 0 {
		return nil, &domain.ExtractionError{Format: string(format), Reason: "no readable text"}
	}
	return segments, nil
}

func (p *pageExtractors) Register(driven.Extractor) {}

func (p *pageExtractors) SupportedFormats() []domain.Format { return domain.Formats }

// segmentChunker emits one chunk per segment.
type segmentChunker struct{}

func (segmentChunker) Chunk(_ context.Context, documentID string, segments []domain.Segment) ([]domain.Chunk, error) {
	chunks := make([]domain.Chunk, len(segments))
	for i, s := range segments {
		chunks[i] = domain.Chunk{
			ID:         fmt.Sprintf("%s-%03d", documentID, i),
			DocumentID: documentID,
			Ordinal:    i,
			Content:    s.Text,
			TokenStart: i * 10,
			TokenCount: 10,
			Position:   s.Position,
			EndPage:    s.Position.Page,
		}
	}
	return chunks, nil
}

// --- Embedding ---

// keywordEmbedder maps text onto fixed axes by keyword so tests control similarity.
type keywordEmbedder struct {
	mu      sync.Mutex
	err     error
	batches [][]string
	// onBatch runs before each batch returns.
	onBatch func()
}

var keywordAxes = []string{"revenue", "safety", "deadline", "budget"}

func keywordVector(text string) []float32 {
	v := make([]float32, testDims)
	lower := strings.ToLower(text)
	for i, kw := range keywordAxes {
		if strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	// Keep every vector non-zero.
	v[testDims-1] += 0.01
	return v
}

func (e *keywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return keywordVector(text), nil
}

func (e *keywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.batches = append(e.batches, texts)
	hook := e.onBatch
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = keywordVector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) batchCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batches)
}

func (e *keywordEmbedder) Dimensions() int              { return testDims }
func (e *keywordEmbedder) ModelName() string            { return "keyword-embed" }
func (e *keywordEmbedder) Ping(_ context.Context) error { return nil }
func (e *keywordEmbedder) Close() error                 { return nil }

// --- Vector index ---

// hookIndex wraps a real index to inject failures and side effects.
type hookIndex struct {
	driven.VectorIndex
	upsertErr   error
	afterUpsert func()

	mu      sync.Mutex
	deletes []string
}

func (h *hookIndex) Upsert(ctx context.Context, payload domain.ChunkPayload, chunks []domain.Chunk) error {
	if h.upsertErr != nil {
		return h.upsertErr
	}
	if err := h.VectorIndex.Upsert(ctx, payload, chunks); err != nil {
		return err
	}
	if h.afterUpsert != nil {
		h.afterUpsert()
	}
	return nil
}

func (h *hookIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	h.mu.Lock()
	h.deletes = append(h.deletes, documentID)
	h.mu.Unlock()
	return h.VectorIndex.DeleteByDocument(ctx, documentID)
}

func (h *hookIndex) deleted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.deletes...)
}

// --- Generation ---

type stubLLM struct {
	mu      sync.Mutex
	text    string
	err     error
	block   bool
	prompts []string
	opts    []driven.GenerateOptions
}

func (l *stubLLM) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	l.prompts = append(l.prompts, prompt)
	l.opts = append(l.opts, opts)
	l.mu.Unlock()

	if l.block {
		<-ctx.Done()
		return "", fmt.Errorf("generate: %w", ctx.Err())
	}
	if l.err != nil {
		return "", l.err
	}
	return l.text, nil
}

func (l *stubLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

func (l *stubLLM) ModelName() string            { return "stub-llm" }
func (l *stubLLM) Ping(_ context.Context) error { return nil }
func (l *stubLLM) Close() error                 { return nil }

type stubPrompts struct {
	err error
}

func (p stubPrompts) Load(string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return "CONTEXT:\n%s\nQUESTION: %s", nil
}

func (stubPrompts) Reload() {}

// --- Scheduler ---

type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (r *recordingScheduler) Submit(id string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

// --- Fixtures ---

type pipeline struct {
	docs     *memory.DocumentStore
	blobs    *memory.BlobStore
	index    *hookIndex
	embedder *keywordEmbedder
	orch     *Orchestrator
}

func newPipeline(t *testing.T, cfg OrchestratorConfig) *pipeline {
	t.Helper()
	p := &pipeline{
		docs:     memory.NewDocumentStore(),
		blobs:    memory.NewBlobStore(),
		index:    &hookIndex{VectorIndex: vectormemory.New(testDims)},
		embedder: &keywordEmbedder{},
	}
	p.orch = NewOrchestrator(p.docs, p.blobs, &pageExtractors{}, segmentChunker{}, p.embedder, p.index, cfg)
	return p
}

// seed stores a pending document with its bytes.
func (p *pipeline) seed(t *testing.T, id, filename, content string) {
	t.Helper()
	format, err := domain.FormatFromFilename(filename)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, p.blobs.Put(ctx, id, []byte(content)))
	require.NoError(t, p.docs.SaveDocument(ctx, &domain.Document{
		ID:         id,
		Filename:   filename,
		Format:     format,
		Status:     domain.StatusPending,
		SizeBytes:  int64(len(content)),
		UploadedAt: time.Now().UTC(),
	}))
}

func (p *pipeline) status(t *testing.T, id string) domain.DocumentStatus {
	t.Helper()
	doc, err := p.docs.GetDocument(context.Background(), id)
	require.NoError(t, err)
	return doc.Status
}

func (p *pipeline) chunkCount(t *testing.T) int {
	t.Helper()
	n, err := p.index.Count(context.Background())
	require.NoError(t, err)
	return n
}

var errBoom = errors.New("boom")
