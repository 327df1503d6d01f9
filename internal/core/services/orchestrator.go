package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.IngestOrchestrator = (*Orchestrator)(nil)

// Scheduling errors.
var (
	ErrQueueFull          = errors.New("ingest queue is full")
	ErrOrchestratorClosed = errors.New("ingest orchestrator is not running")
)

// interruptedMessage is recorded on documents found mid-processing at startup.
const interruptedMessage = "processing interrupted before completion"

// errDocumentGone aborts an attempt whose document was deleted underneath it.
var errDocumentGone = errors.New("document deleted during processing")

// OrchestratorConfig sizes the worker pool.
type OrchestratorConfig struct {
	// Workers is the number of concurrent processing goroutines.
	Workers int

	// QueueSize bounds the number of submitted documents waiting for a worker.
	QueueSize int

	// EmbedBatchSize is the number of chunks sent per EmbedBatch call.
	EmbedBatchSize int
}

func (c *OrchestratorConfig) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = 32
	}
}

// Orchestrator moves documents through pending, processing, and ready or failed
// on a bounded pool of workers.
type Orchestrator struct {
	docs       driven.DocumentStore
	blobs      driven.BlobStore
	extractors driven.ExtractorRegistry
	chunker    driven.Chunker
	embedder   driven.EmbeddingService
	index      driven.VectorIndex
	cfg        OrchestratorConfig

	queue chan string
	quit  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewOrchestrator creates an orchestrator. Call Start before submitting work.
func NewOrchestrator(
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	extractors driven.ExtractorRegistry,
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	cfg OrchestratorConfig,
) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		docs:       docs,
		blobs:      blobs,
		extractors: extractors,
		chunker:    chunker,
		embedder:   embedder,
		index:      index,
		cfg:        cfg,
		queue:      make(chan string, cfg.QueueSize),
		quit:       make(chan struct{}),
	}
}

// Start launches the worker pool. Calling it twice has no effect.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.stopped {
		return
	}
	o.started = true

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx, i)
	}
	logger.Debug("Ingest orchestrator started with %d workers", o.cfg.Workers)
}

// Submit queues a pending document. It returns ErrQueueFull instead of blocking.
func (o *Orchestrator) Submit(documentID string) error {
	o.mu.Lock()
	running := o.started && !o.stopped
	o.mu.Unlock()
	if !running {
		return ErrOrchestratorClosed
	}

	select {
	case o.queue <- documentID:
		QueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Resume fails documents left processing by a previous run and re-queues
// pending ones. It returns the number of documents queued.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	interrupted, err := o.docs.ListByStatus(ctx, domain.StatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("list processing documents: %w", err)
	}
	for _, doc := range interrupted {
		if err := o.index.DeleteByDocument(ctx, doc.ID); err != nil {
			logger.Warn("Failed to clear chunks of interrupted document %s: %v", doc.ID, err)
		}
		if _, err := o.docs.CompleteDocument(ctx, doc.ID, domain.StatusFailed, 0, interruptedMessage); err != nil {
			return 0, fmt.Errorf("fail interrupted document %s: %w", doc.ID, err)
		}
		DocumentsProcessed.WithLabelValues(outcomeFailed).Inc()
		logger.Warn("Document %s (%s) was interrupted and marked failed", doc.ID, doc.Filename)
	}

	pending, err := o.docs.ListByStatus(ctx, domain.StatusPending)
	if err != nil {
		return 0, fmt.Errorf("list pending documents: %w", err)
	}
	queued := 0
	for _, doc := range pending {
		if err := o.Submit(doc.ID); err != nil {
			// Left pending; the next Resume picks it up.
			logger.Warn("Could not re-queue document %s: %v", doc.ID, err)
			continue
		}
		queued++
	}
	if queued > 0 {
		logger.Info("Resumed %d pending documents", queued)
	}
	return queued, nil
}

// Stop waits for in-flight attempts and shuts the pool down. Documents still
// queued stay pending and are picked up by the next Resume.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.quit)
	o.mu.Unlock()

	o.wg.Wait()
	logger.Debug("Ingest orchestrator stopped")
}

func (o *Orchestrator) worker(ctx context.Context, n int) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.quit:
			return
		case id := <-o.queue:
			QueueDepth.Dec()
			select {
			case <-o.quit:
				return
			default:
			}
			if err := o.Process(ctx, id); err != nil && !errors.Is(err, domain.ErrAlreadyProcessing) {
				logger.Debug("Worker %d: document %s: %v", n, id, err)
			}
		}
	}
}

// Process runs one attempt for a document synchronously. The attempt only
// proceeds if it wins the pending to processing claim; losers get
// domain.ErrAlreadyProcessing. A failed attempt is recorded on the document
// and also returned.
func (o *Orchestrator) Process(ctx context.Context, documentID string) error {
	claimed, err := o.docs.TransitionStatus(ctx, documentID, domain.StatusPending, domain.StatusProcessing)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		return domain.ErrAlreadyProcessing
	}

	ctx, span := tracer.Start(ctx, "ingest.process",
		trace.WithAttributes(attribute.String("document.id", documentID)))
	defer span.End()

	logger.Section("Processing " + documentID)
	start := time.Now()

	count, err := o.run(ctx, documentID)
	if errors.Is(err, errDocumentGone) {
		logger.Debug("Document %s was deleted during processing, discarding attempt", documentID)
		DocumentsProcessed.WithLabelValues(outcomeDiscarded).Inc()
		return nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.fail(ctx, documentID, err)
		return err
	}

	ok, err := o.docs.CompleteDocument(ctx, documentID, domain.StatusReady, count, "")
	if err != nil {
		err = fmt.Errorf("mark ready: %w", err)
		span.RecordError(err)
		o.fail(ctx, documentID, err)
		return err
	}
	if !ok {
		// Deleted after the upsert; remove what this attempt wrote.
		o.clearChunks(ctx, documentID)
		DocumentsProcessed.WithLabelValues(outcomeDiscarded).Inc()
		logger.Debug("Document %s was deleted before completion, chunks removed", documentID)
		return nil
	}

	ChunksIndexed.Add(float64(count))
	DocumentsProcessed.WithLabelValues(outcomeReady).Inc()
	span.SetAttributes(attribute.Int("document.chunks", count))
	logger.Info("Document %s ready: %d chunks in %s", documentID, count, time.Since(start).Round(time.Millisecond))
	return nil
}

// run executes the stages and returns the number of indexed chunks.
func (o *Orchestrator) run(ctx context.Context, documentID string) (int, error) {
	doc, err := o.docs.GetDocument(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, errDocumentGone
	}
	if err != nil {
		return 0, fmt.Errorf("load metadata: %w", err)
	}

	var content []byte
	err = o.stage(ctx, "load", func(ctx context.Context) error {
		content, err = o.blobs.Get(ctx, documentID)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) {
		if gone, _ := o.gone(ctx, documentID); gone {
			return 0, errDocumentGone
		}
	}
	if err != nil {
		return 0, fmt.Errorf("load upload: %w", err)
	}

	var segments []domain.Segment
	err = o.stage(ctx, "extract", func(ctx context.Context) error {
		segments, err = o.extractors.Extract(ctx, doc.Format, content)
		return err
	})
	if err != nil {
		return 0, err
	}
	logger.Debug("Extracted %d segments from %s", len(segments), doc.Filename)

	var chunks []domain.Chunk
	err = o.stage(ctx, "chunk", func(ctx context.Context) error {
		chunks, err = o.chunker.Chunk(ctx, documentID, segments)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("chunk: %w", err)
	}
	if len(chunks) == 0 {
		return 0, &domain.ExtractionError{Format: string(doc.Format), Reason: "no text to index"}
	}
	logger.Debug("Split %s into %d chunks", doc.Filename, len(chunks))

	if err := o.stage(ctx, "embed", func(ctx context.Context) error {
		return o.embed(ctx, chunks)
	}); err != nil {
		return 0, err
	}

	// Pre-commit check: never index a document that was deleted meanwhile.
	if gone, err := o.gone(ctx, documentID); err != nil {
		return 0, fmt.Errorf("re-check document: %w", err)
	} else if gone {
		return 0, errDocumentGone
	}

	payload := domain.ChunkPayload{Filename: doc.Filename, Format: doc.Format}
	if err := o.stage(ctx, "index", func(ctx context.Context) error {
		return o.index.Upsert(ctx, payload, chunks)
	}); err != nil {
		IndexErrors.WithLabelValues("upsert").Inc()
		return 0, err
	}

	return len(chunks), nil
}

// embed fills chunk embeddings in batches.
func (o *Orchestrator) embed(ctx context.Context, chunks []domain.Chunk) error {
	for start := 0; start < len(chunks); start += o.cfg.EmbedBatchSize {
		end := min(start+o.cfg.EmbedBatchSize, len(chunks))

		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Content
		}

		vectors, err := o.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return embeddingError("embed chunks", err)
		}
		if len(vectors) != len(texts) {
			return &domain.EmbeddingServiceError{
				Op:  "embed chunks",
				Err: fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)),
			}
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// gone reports whether the document record disappeared or left processing.
func (o *Orchestrator) gone(ctx context.Context, documentID string) (bool, error) {
	doc, err := o.docs.GetDocument(ctx, documentID)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return doc.Status != domain.StatusProcessing, nil
}

// fail records the error on the document and removes partial chunks.
func (o *Orchestrator) fail(ctx context.Context, documentID string, cause error) {
	o.clearChunks(ctx, documentID)

	// The attempt context may be cancelled; still record the outcome.
	ctx = context.WithoutCancel(ctx)
	if _, err := o.docs.CompleteDocument(ctx, documentID, domain.StatusFailed, 0, cause.Error()); err != nil {
		logger.Error("Failed to mark document %s failed: %v", documentID, err)
	}
	DocumentsProcessed.WithLabelValues(outcomeFailed).Inc()
	logger.Warn("Document %s failed: %v", documentID, cause)
}

func (o *Orchestrator) clearChunks(ctx context.Context, documentID string) {
	if err := o.index.DeleteByDocument(context.WithoutCancel(ctx), documentID); err != nil {
		IndexErrors.WithLabelValues("delete").Inc()
		logger.Warn("Failed to remove chunks of document %s: %v", documentID, err)
	}
}

// stage times fn under a child span.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "ingest."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// embeddingError keeps typed embedding failures and wraps anything else.
func embeddingError(op string, err error) error {
	if errors.Is(err, domain.ErrEmbeddingUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return &domain.EmbeddingServiceError{Op: op, Err: err}
}
