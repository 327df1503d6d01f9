package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedFormat indicates a document format with no registered extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtraction indicates document content could not be read.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmbeddingUnavailable indicates the embedding service failed or is unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable indicates the vector index failed or is unreachable.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrGenerationUnavailable indicates the generation service failed or is unreachable.
	ErrGenerationUnavailable = errors.New("generation service unavailable")

	// ErrGenerationTimeout indicates the generation service did not answer in time.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrAlreadyProcessing indicates another attempt already claimed the document.
	ErrAlreadyProcessing = errors.New("document already processing")
)

// UnsupportedFormatError is returned when no extractor handles a format.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Format)
}

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

// ExtractionError wraps a failure to read document content.
type ExtractionError struct {
	Format string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("extract %s: %s", e.Format, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrExtraction}
	}
	return []error{ErrExtraction, e.Err}
}

// EmbeddingServiceError wraps a failure of the embedding service.
type EmbeddingServiceError struct {
	Op  string
	Err error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() []error {
	return []error{ErrEmbeddingUnavailable, e.Err}
}

// IndexServiceError wraps a failure of the vector index backend.
type IndexServiceError struct {
	Op  string
	Err error
}

func (e *IndexServiceError) Error() string {
	return fmt.Sprintf("vector index %s: %v", e.Op, e.Err)
}

func (e *IndexServiceError) Unwrap() []error {
	return []error{ErrIndexUnavailable, e.Err}
}

// GenerationServiceError wraps a failure of the text generation service.
type GenerationServiceError struct {
	Err error
}

func (e *GenerationServiceError) Error() string {
	return fmt.Sprintf("generation: %v", e.Err)
}

func (e *GenerationServiceError) Unwrap() []error {
	return []error{ErrGenerationUnavailable, e.Err}
}

// NotFoundError is returned for an unknown entity id.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ValidationError reports rejected input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NewDocumentNotFound builds a NotFoundError for a document id.
func NewDocumentNotFound(id string) error {
	return &NotFoundError{Kind: "document", ID: id}
}
