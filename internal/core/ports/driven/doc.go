// Package driven declares what the core needs from the outside world:
// format extractors, the chunker, embedding and generation backends, the
// vector index, document metadata and blob storage, and prompt templates.
//
// Adapters under internal/adapters/driven and internal/extractors implement
// these interfaces. This package imports nothing but domain.
package driven
