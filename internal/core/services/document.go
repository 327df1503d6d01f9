package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// Scheduler queues documents for background processing.
type Scheduler interface {
	Submit(documentID string) error
}

// DocumentService accepts uploads and manages their lifecycle records.
type DocumentService struct {
	docs      driven.DocumentStore
	blobs     driven.BlobStore
	index     driven.VectorIndex
	scheduler Scheduler
	formats   []domain.Format
	maxSize   int64
	now       func() time.Time
}

// NewDocumentService creates a document service. Formats lists the accepted
// upload formats; maxSize is the upload limit in bytes, zero for none.
func NewDocumentService(
	docs driven.DocumentStore,
	blobs driven.BlobStore,
	index driven.VectorIndex,
	scheduler Scheduler,
	formats []domain.Format,
	maxSize int64,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		blobs:     blobs,
		index:     index,
		scheduler: scheduler,
		formats:   formats,
		maxSize:   maxSize,
		now:       time.Now,
	}
}

// Ingest validates and stores an upload and schedules it. The returned document
// is pending, or failed when the scheduler rejected it.
func (s *DocumentService) Ingest(ctx context.Context, raw domain.RawDocument) (*domain.Document, error) {
	format, err := s.validate(raw)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		Filename:   filepath.Base(raw.Filename),
		Format:     format,
		Status:     domain.StatusPending,
		SizeBytes:  int64(len(raw.Content)),
		UploadedAt: s.now().UTC(),
	}

	// Bytes first, so a worker never sees metadata without content.
	if err := s.blobs.Put(ctx, doc.ID, raw.Content); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := s.docs.SaveDocument(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, doc.ID); delErr != nil {
			logger.Warn("Failed to remove orphaned upload %s: %v", doc.ID, delErr)
		}
		return nil, fmt.Errorf("save document: %w", err)
	}

	if err := s.scheduler.Submit(doc.ID); err != nil {
		logger.Warn("Could not schedule document %s: %v", doc.ID, err)
		doc.Status = domain.StatusFailed
		doc.Error = "scheduling: " + err.Error()
		if saveErr := s.docs.SaveDocument(ctx, doc); saveErr != nil {
			return nil, fmt.Errorf("save document: %w", saveErr)
		}
		DocumentsProcessed.WithLabelValues(outcomeFailed).Inc()
		return doc, nil
	}

	logger.Debug("Accepted %s as %s (%d bytes)", doc.Filename, doc.ID, doc.SizeBytes)
	return doc, nil
}

// validate checks the upload and resolves its format.
func (s *DocumentService) validate(raw domain.RawDocument) (domain.Format, error) {
	if strings.TrimSpace(raw.Filename) == "" {
		return "", domain.NewValidationError("filename", "must not be empty")
	}
	if len(raw.Content) == 0 {
		return "", domain.NewValidationError("file", "is empty")
	}
	if s.maxSize > 0 && int64(len(raw.Content)) > s.maxSize {
		return "", domain.NewValidationError("file",
			fmt.Sprintf("is %d bytes, larger than the %d byte limit", len(raw.Content), s.maxSize))
	}

	var (
		format domain.Format
		err    error
	)
	if raw.Format != "" {
		format, err = domain.ParseFormat(string(raw.Format))
	} else {
		format, err = domain.FormatFromFilename(raw.Filename)
	}
	if err != nil {
		return "", err
	}
	if len(s.formats) > 0 && !slices.Contains(s.formats, format) {
		return "", &domain.UnsupportedFormatError{Format: string(format)}
	}
	return format, nil
}

// Status returns the polling view of a document.
func (s *DocumentService) Status(ctx context.Context, documentID string) (*domain.StatusReport, error) {
	doc, err := s.docs.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	report := doc.Report()
	return &report, nil
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docs.GetDocument(ctx, documentID)
}

// List returns all documents, newest first.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docs.ListDocuments(ctx)
}

// Delete removes the metadata first, then the raw bytes and indexed chunks.
// A worker still processing the document notices the missing record and
// discards its own writes.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if _, err := s.docs.GetDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete metadata: %w", err)
	}

	var errs []error
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		IndexErrors.WithLabelValues("delete").Inc()
		errs = append(errs, fmt.Errorf("delete chunks: %w", err))
	}
	if err := s.blobs.Delete(ctx, documentID); err != nil {
		errs = append(errs, fmt.Errorf("delete upload: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	logger.Debug("Deleted document %s", documentID)
	return nil
}
