// Package pdf extracts page text from PDF files.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/reader"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var pdfMagic = []byte("%PDF-")

// Extractor reads PDF documents one page at a time.
type Extractor struct{}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{}
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatPDF
}

// Extract returns one segment per non-blank page, numbered from 1.
func (e *Extractor) Extract(ctx context.Context, content []byte) (segments []domain.Segment, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(content, "\x00\t\r\n "), pdfMagic) {
		return nil, extractionError("not a PDF file", nil)
	}

	// The parser works on files, so the upload is spooled to disk.
	path, cleanup, err := spool(content)
	if err != nil {
		return nil, extractionError("spool upload", err)
	}
	defer cleanup()

	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = extractionError("malformed document", fmt.Errorf("%v", r))
		}
	}()

	r, err := reader.Open(path)
	if err != nil {
		return nil, extractionError("unreadable or encrypted document", err)
	}
	defer r.Close()

	pageCount, err := r.PageCount()
	if err != nil {
		return nil, extractionError("read page tree", err)
	}
	if pageCount == 0 {
		return nil, extractionError("document has no pages", nil)
	}

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, _, err := tabula.FromReader(r).Pages(page).Text()
		if err != nil {
			return nil, extractionError(fmt.Sprintf("page %d", page), err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:     text,
			Position: domain.Position{Page: page},
		})
	}

	return segments, nil
}

func spool(content []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "docqa-*.pdf")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}

func extractionError(reason string, err error) error {
	return &domain.ExtractionError{Format: string(domain.FormatPDF), Reason: reason, Err: err}
}
