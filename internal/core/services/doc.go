// Package services implements the driving port interfaces.
//
// The Orchestrator owns the document lifecycle: it claims pending documents,
// runs extraction, chunking, embedding and indexing on a worker pool, and
// records the outcome. DocumentService accepts uploads, QueryService answers
// questions from ready documents, and HealthService probes dependencies.
package services
