package extractors

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps format tags to extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.Format]driven.Extractor
}

// NewRegistry creates a registry holding the given extractors.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{
		extractors: make(map[domain.Format]driven.Extractor),
	}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the extractor for its format.
func (r *Registry) Register(extractor driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[extractor.Format()] = extractor
}

// SupportedFormats returns the registered formats in sorted order.
func (r *Registry) SupportedFormats() []domain.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()

	formats := make([]domain.Format, 0, len(r.extractors))
	for f := range r.extractors {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}

// Extract runs the extractor registered for format.
// Segments with only whitespace are dropped; a document with no text left
// is an extraction error.
func (r *Registry) Extract(ctx context.Context, format domain.Format, content []byte) ([]domain.Segment, error) {
	r.mu.RLock()
	extractor, ok := r.extractors[format]
	r.mu.RUnlock()
	if !ok {
		return nil, &domain.UnsupportedFormatError{Format: string(format)}
	}

	if len(content) == 0 {
		return nil, &domain.ExtractionError{Format: string(format), Reason: "file is empty"}
	}

	segments, err := extractor.Extract(ctx, content)
	if err != nil {
		return nil, err
	}

	kept := segments[:0]
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) != "" {
			kept = append(kept, seg)
		}
	}
	if len(kept) == 0 {
		return nil, &domain.ExtractionError{Format: string(format), Reason: "no readable text"}
	}
	return kept, nil
}
