// Package chromem provides an embedded, file-persisted VectorIndex using chromem-go.
//
// chromem-go only supports equality metadata filters, so a search restricted
// to several documents queries each document and merges the results.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

var tracer = otel.Tracer("docqa.vector.chromem")

// DefaultCollection is the collection chunks are stored in.
const DefaultCollection = "documents"

// Metadata keys stored with every chunk.
const (
	keyDocumentID = "document_id"
	keyFilename   = "filename"
	keyFileType   = "file_type"
	keyChunkIndex = "chunk_index"
	keyTokenStart = "token_start"
	keyTokenCount = "token_count"
	keyPage       = "page_number"
	keyEndPage    = "end_page"
	keySheet      = "sheet_name"
)

// metaDimensions records the vector size in the collection metadata.
const metaDimensions = "dimensions"

// errNoEmbedder is returned if chromem ever asks to embed text itself.
var errNoEmbedder = errors.New("chromem: chunks must be embedded before indexing")

// Config holds embedded store settings.
type Config struct {
	// Path is the persistence directory; empty keeps everything in memory.
	Path string

	// Compress gzips the persisted files.
	Compress bool

	Collection string

	// Dimensions is the required vector size.
	Dimensions int
}

// Index stores chunk vectors in a chromem-go collection.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimensions int
	logger     *zap.Logger
}

// New opens or creates the store at cfg.Path.
func New(cfg Config, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("chromem: vector dimensions must be positive")
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}

	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o700); err != nil {
			return nil, fmt.Errorf("create vector directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, &domain.IndexServiceError{Op: "open", Err: err}
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection,
		map[string]string{metaDimensions: strconv.Itoa(cfg.Dimensions)}, refuseEmbedding)
	if err != nil {
		return nil, &domain.IndexServiceError{Op: "open collection", Err: err}
	}
	if err := checkDimensions(collection, cfg.Dimensions); err != nil {
		return nil, &domain.IndexServiceError{Op: "open collection", Err: err}
	}

	logger.Info("chromem index ready",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Int("chunks", collection.Count()),
	)

	return &Index{
		db:         db,
		collection: collection,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// checkDimensions fails when stored vectors have another size than dims,
// which happens after switching embedding models. chromem does not expose
// collection metadata, so a stored vector is the record that is compared.
func checkDimensions(c *chromem.Collection, dims int) error {
	if c.Count() == 0 {
		return nil
	}
	probe := make([]float32, dims)
	probe[0] = 1
	results, err := c.QueryEmbedding(context.Background(), probe, 1, nil, nil)
	if err != nil {
		return fmt.Errorf("collection %q holds vectors of another size than %d (%w); use another collection or reindex",
			c.Name, dims, err)
	}
	if len(results) > 0 && len(results[0].Embedding) != dims {
		return fmt.Errorf("collection %q holds %d-dimensional vectors but the embedding model produces %d; use another collection or reindex",
			c.Name, len(results[0].Embedding), dims)
	}
	return nil
}

func refuseEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

// Upsert adds the chunks. chromem replaces documents with the same ID.
func (i *Index) Upsert(ctx context.Context, payload domain.ChunkPayload, chunks []domain.Chunk) error {
	ctx, span := tracer.Start(ctx, "Index.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != i.dimensions {
			err := fmt.Errorf("chunk %s has %d dimensions, index expects %d", c.ID, len(c.Embedding), i.dimensions)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return &domain.IndexServiceError{Op: "upsert", Err: err}
		}
		// chromem retains the slice it is given.
		vec := make([]float32, len(c.Embedding))
		copy(vec, c.Embedding)

		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Metadata:  buildMetadata(payload, c),
			Embedding: vec,
		})
	}

	if err := i.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &domain.IndexServiceError{Op: "upsert", Err: err}
	}

	span.SetStatus(codes.Ok, "success")
	i.logger.Debug("upserted chunks",
		zap.String("document_id", chunks[0].DocumentID),
		zap.Int("count", len(chunks)),
	)
	return nil
}

// Search returns the k nearest chunks, optionally restricted to documentIDs.
func (i *Index) Search(ctx context.Context, query []float32, k int, documentIDs []string) ([]domain.VectorHit, error) {
	ctx, span := tracer.Start(ctx, "Index.Search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("k", k),
		attribute.Int("document_filter", len(documentIDs)),
	)

	if k <= 0 {
		return nil, domain.NewValidationError("k", "must be positive")
	}
	if len(query) != i.dimensions {
		err := fmt.Errorf("query has %d dimensions, index expects %d", len(query), i.dimensions)
		span.RecordError(err)
		return nil, &domain.IndexServiceError{Op: "search", Err: err}
	}

	var filters []map[string]string
	if len(documentIDs) == 0 {
		filters = []map[string]string{nil}
	} else {
		for _, id := range dedupe(documentIDs) {
			filters = append(filters, map[string]string{keyDocumentID: id})
		}
	}

	var hits []domain.VectorHit
	for _, where := range filters {
		results, err := i.query(ctx, query, k, where)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, &domain.IndexServiceError{Op: "search", Err: err}
		}
		for _, r := range results {
			hits = append(hits, toHit(r))
		}
	}

	domain.SortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}

	span.SetAttributes(attribute.Int("results", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

func (i *Index) query(ctx context.Context, query []float32, k int, where map[string]string) ([]chromem.Result, error) {
	// chromem rejects nResults above the collection size.
	n := min(k, i.collection.Count())
	if n == 0 {
		return nil, nil
	}
	return i.collection.QueryEmbedding(ctx, query, n, where, nil)
}

// DeleteByDocument removes every chunk of the document.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "Index.DeleteByDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	if err := i.collection.Delete(ctx, map[string]string{keyDocumentID: documentID}, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &domain.IndexServiceError{Op: "delete", Err: err}
	}
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the number of stored chunks.
func (i *Index) Count(context.Context) (int, error) {
	return i.collection.Count(), nil
}

// Ping always succeeds for the embedded store.
func (i *Index) Ping(context.Context) error {
	return nil
}

// Close is a no-op; chromem persists on every write.
func (i *Index) Close() error {
	return nil
}

func buildMetadata(payload domain.ChunkPayload, c domain.Chunk) map[string]string {
	md := map[string]string{
		keyDocumentID: c.DocumentID,
		keyFilename:   payload.Filename,
		keyFileType:   string(payload.Format),
		keyChunkIndex: strconv.Itoa(c.Ordinal),
		keyTokenStart: strconv.Itoa(c.TokenStart),
		keyTokenCount: strconv.Itoa(c.TokenCount),
	}
	if c.Position.Page > 0 {
		md[keyPage] = strconv.Itoa(c.Position.Page)
	}
	if c.EndPage > 0 {
		md[keyEndPage] = strconv.Itoa(c.EndPage)
	}
	if c.Position.Sheet != "" {
		md[keySheet] = c.Position.Sheet
	}
	return md
}

func toHit(r chromem.Result) domain.VectorHit {
	num := func(k string) int {
		n, _ := strconv.Atoi(r.Metadata[k])
		return n
	}
	return domain.VectorHit{
		Chunk: domain.Chunk{
			ID:         r.ID,
			DocumentID: r.Metadata[keyDocumentID],
			Ordinal:    num(keyChunkIndex),
			Content:    r.Content,
			TokenStart: num(keyTokenStart),
			TokenCount: num(keyTokenCount),
			Position: domain.Position{
				Page:  num(keyPage),
				Sheet: r.Metadata[keySheet],
			},
			EndPage: num(keyEndPage),
		},
		Filename: r.Metadata[keyFilename],
		Score:    float64(r.Similarity),
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
