package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("docqa.services")

// Outcome label values.
const (
	outcomeReady     = "ready"
	outcomeFailed    = "failed"
	outcomeDiscarded = "discarded"
	outcomeAnswered  = "answered"
	outcomeNoContent = "no_content"
	outcomeInvalid   = "invalid"
	outcomeTimeout   = "timeout"
	outcomeError     = "error"
)

var (
	// DocumentsProcessed counts finished processing attempts.
	// Labels: outcome (ready, failed, discarded)
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "documents_processed_total",
			Help:      "Total number of processing attempts by outcome",
		},
		[]string{"outcome"},
	)

	// StageDuration tracks how long each ingestion stage takes.
	// Labels: stage (load, extract, chunk, embed, index)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "stage_duration_seconds",
			Help:      "Duration of ingestion stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// ChunksIndexed counts chunks written to the vector index.
	ChunksIndexed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "chunks_indexed_total",
			Help:      "Total number of chunks written to the vector index",
		},
	)

	// QueueDepth is the number of documents waiting for a worker.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docqa",
			Subsystem: "ingest",
			Name:      "queue_depth",
			Help:      "Documents waiting for a worker",
		},
	)

	// QueriesTotal counts answered questions.
	// Labels: outcome (answered, no_content, invalid, timeout, error)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "query",
			Name:      "queries_total",
			Help:      "Total number of queries by outcome",
		},
		[]string{"outcome"},
	)

	// GenerationDuration tracks generation latency.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docqa",
			Subsystem: "query",
			Name:      "generation_duration_seconds",
			Help:      "Duration of answer generation in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	// IndexErrors counts failed vector index operations.
	// Labels: op (upsert, search, delete)
	IndexErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docqa",
			Subsystem: "vector",
			Name:      "operation_errors_total",
			Help:      "Total number of failed vector index operations",
		},
		[]string{"op"},
	)
)
