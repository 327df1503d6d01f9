// Package qdrant provides a VectorIndex backed by a Qdrant server over gRPC.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

var tracer = otel.Tracer("docqa.vector.qdrant")

// Default configuration values.
const (
	DefaultHost         = "localhost"
	DefaultPort         = 6334
	DefaultCollection   = "documents"
	DefaultBatchSize    = 100
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second

	maxMessageSize = 50 * 1024 * 1024
)

// Payload keys stored with every point.
const (
	keyText       = "text"
	keyDocumentID = "document_id"
	keyFilename   = "filename"
	keyFileType   = "file_type"
	keyChunkID    = "chunk_id"
	keyChunkIndex = "chunk_index"
	keyTokenStart = "token_start"
	keyTokenCount = "token_count"
	keyPage       = "page_number"
	keyEndPage    = "end_page"
	keySheet      = "sheet_name"
)

// Config holds connection and collection settings.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string

	// Dimensions is the vector size used when the collection is created.
	Dimensions int

	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Dimensions <= 0 {
		return errors.New("qdrant: vector dimensions must be positive")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("qdrant: invalid port %d", c.Port)
	}
	return nil
}

// client is the subset of *qdrant.Client the index uses.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	Close() error
}

// Index stores chunk vectors in one Qdrant collection.
type Index struct {
	client client
	config Config
	logger *zap.Logger
}

// New connects to Qdrant and ensures the collection exists.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Index, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(maxMessageSize),
				grpc.MaxCallSendMsgSize(maxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, &domain.IndexServiceError{Op: "connect", Err: err}
	}

	idx := newIndex(c, cfg, logger)
	if err := idx.ensureCollection(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	idx.logger.Info("qdrant index ready",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("collection", cfg.Collection),
	)
	return idx, nil
}

func newIndex(c client, cfg Config, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{client: c, config: cfg, logger: logger}
}

func (i *Index) ensureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Index.ensureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", i.config.Collection))

	var exists bool
	err := i.retry(ctx, "collection_exists", func() error {
		var err error
		exists, err = i.client.CollectionExists(ctx, i.config.Collection)
		return err
	})
	if err != nil {
		return i.fail(span, "ensure collection", err)
	}
	if exists {
		return i.checkCollection(ctx, span)
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(i.config.Dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return i.fail(span, "create collection", err)
	}

	// document_id is filtered on by every search and delete.
	_, err = i.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: i.config.Collection,
		Wait:           qdrant.PtrOf(true),
		FieldName:      keyDocumentID,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return i.fail(span, "create payload index", err)
	}

	i.logger.Info("created qdrant collection",
		zap.String("collection", i.config.Collection),
		zap.Int("dimensions", i.config.Dimensions),
	)
	span.SetStatus(codes.Ok, "created")
	return nil
}

// checkCollection fails when an existing collection was created for vectors
// of another size, which happens after switching embedding models.
func (i *Index) checkCollection(ctx context.Context, span trace.Span) error {
	var info *qdrant.CollectionInfo
	err := i.retry(ctx, "collection_info", func() error {
		var err error
		info, err = i.client.GetCollectionInfo(ctx, i.config.Collection)
		return err
	})
	if err != nil {
		return i.fail(span, "ensure collection", err)
	}

	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return i.fail(span, "ensure collection",
			fmt.Errorf("collection %q uses named vectors, expected a single unnamed vector", i.config.Collection))
	}
	if size := params.GetSize(); size != uint64(i.config.Dimensions) {
		return i.fail(span, "ensure collection",
			fmt.Errorf("collection %q holds %d-dimensional vectors but the embedding model produces %d; "+
				"use another collection or reindex", i.config.Collection, size, i.config.Dimensions))
	}
	return nil
}

// Upsert writes the chunks in batches, replacing points with the same chunk ID.
func (i *Index) Upsert(ctx context.Context, payload domain.ChunkPayload, chunks []domain.Chunk) error {
	ctx, span := tracer.Start(ctx, "Index.Upsert")
	defer span.End()
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) != i.config.Dimensions {
			return i.fail(span, "upsert", fmt.Errorf("chunk %s has %d dimensions, index expects %d",
				c.ID, len(c.Embedding), i.config.Dimensions))
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectorsDense(c.Embedding),
			Payload: buildPayload(payload, c),
		})
	}

	for start := 0; start < len(points); start += i.config.BatchSize {
		end := min(start+i.config.BatchSize, len(points))
		batch := points[start:end]

		err := i.retry(ctx, "upsert", func() error {
			_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: i.config.Collection,
				Wait:           qdrant.PtrOf(true),
				Points:         batch,
			})
			return err
		})
		if err != nil {
			return i.fail(span, "upsert", err)
		}
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
	if len(query) != i.config.Dimensions {
		return nil, i.fail(span, "search", fmt.Errorf("query has %d dimensions, index expects %d",
			len(query), i.config.Dimensions))
	}

	req := &qdrant.QueryPoints{
		CollectionName: i.config.Collection,
		Query:          qdrant.NewQueryDense(query),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(documentIDs) > 0 {
		req.Filter = documentFilter(documentIDs...)
	}

	var points []*qdrant.ScoredPoint
	err := i.retry(ctx, "search", func() error {
		var err error
		points, err = i.client.Query(ctx, req)
		return err
	})
	if err != nil {
		return nil, i.fail(span, "search", err)
	}

	hits := make([]domain.VectorHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, toHit(p))
	}
	domain.SortHits(hits)

	span.SetAttributes(attribute.Int("results", len(hits)))
	span.SetStatus(codes.Ok, "success")
	return hits, nil
}

// DeleteByDocument removes every point whose document_id matches.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	ctx, span := tracer.Start(ctx, "Index.DeleteByDocument")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	err := i.retry(ctx, "delete", func() error {
		_, err := i.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: i.config.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
		})
		return err
	})
	if err != nil {
		return i.fail(span, "delete", err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the exact number of points in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n uint64
	err := i.retry(ctx, "count", func() error {
		var err error
		n, err = i.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: i.config.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		return 0, &domain.IndexServiceError{Op: "count", Err: err}
	}
	return int(n), nil
}

// Ping runs the Qdrant health check.
func (i *Index) Ping(ctx context.Context) error {
	if _, err := i.client.HealthCheck(ctx); err != nil {
		return &domain.IndexServiceError{Op: "ping", Err: err}
	}
	return nil
}

// Close closes the gRPC connection.
func (i *Index) Close() error {
	return i.client.Close()
}

// retry runs op, retrying transient gRPC failures with exponential backoff.
func (i *Index) retry(ctx context.Context, name string, op func() error) error {
	backoff := i.config.RetryBackoff
	var err error
	for attempt := 0; attempt <= i.config.MaxRetries; attempt++ {
		if attempt > 0 {
			i.logger.Debug("retrying qdrant operation",
				zap.String("operation", name),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = op()
		if err == nil || !IsTransientError(err) {
			return err
		}
	}
	return fmt.Errorf("%s failed after %d retries: %w", name, i.config.MaxRetries, err)
}

func (i *Index) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return &domain.IndexServiceError{Op: op, Err: err}
}

// IsTransientError reports whether a gRPC error is worth retrying.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

func documentFilter(documentIDs ...string) *qdrant.Filter {
	cond := qdrant.NewMatchKeyword(keyDocumentID, documentIDs[0])
	if len(documentIDs) > 1 {
		cond = qdrant.NewMatchKeywords(keyDocumentID, documentIDs...)
	}
	return &qdrant.Filter{Must: []*qdrant.Condition{cond}}
}

func buildPayload(payload domain.ChunkPayload, c domain.Chunk) map[string]*qdrant.Value {
	out := map[string]*qdrant.Value{
		keyText:       qdrant.NewValueString(c.Content),
		keyDocumentID: qdrant.NewValueString(c.DocumentID),
		keyFilename:   qdrant.NewValueString(payload.Filename),
		keyFileType:   qdrant.NewValueString(string(payload.Format)),
		keyChunkID:    qdrant.NewValueString(c.ID),
		keyChunkIndex: qdrant.NewValueInt(int64(c.Ordinal)),
		keyTokenStart: qdrant.NewValueInt(int64(c.TokenStart)),
		keyTokenCount: qdrant.NewValueInt(int64(c.TokenCount)),
	}
	if c.Position.Page > 0 {
		out[keyPage] = qdrant.NewValueInt(int64(c.Position.Page))
	}
	if c.EndPage > 0 {
		out[keyEndPage] = qdrant.NewValueInt(int64(c.EndPage))
	}
	if c.Position.Sheet != "" {
		out[keySheet] = qdrant.NewValueString(c.Position.Sheet)
	}
	return out
}

func toHit(p *qdrant.ScoredPoint) domain.VectorHit {
	pl := p.GetPayload()
	str := func(k string) string { return pl[k].GetStringValue() }
	num := func(k string) int { return int(pl[k].GetIntegerValue()) }

	id := str(keyChunkID)
	if id == "" {
		id = p.GetId().GetUuid()
	}

	return domain.VectorHit{
		Chunk: domain.Chunk{
			ID:         id,
			DocumentID: str(keyDocumentID),
			Ordinal:    num(keyChunkIndex),
			Content:    str(keyText),
			TokenStart: num(keyTokenStart),
			TokenCount: num(keyTokenCount),
			Position: domain.Position{
				Page:  num(keyPage),
				Sheet: str(keySheet),
			},
			EndPage: num(keyEndPage),
		},
		Filename: str(keyFilename),
		Score:    float64(p.GetScore()),
	}
}
