// Package docx extracts paragraph text from Word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// maxDocumentXML bounds the decompressed size of word/document.xml.
const maxDocumentXML = 256 << 20

// Extractor handles DOCX documents.
type Extractor struct{}

// New creates a new DOCX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatDOCX
}

// Extract returns the non-empty paragraphs joined by newlines as a single
// segment on page 1. DOCX carries no reliable page breaks.
func (e *Extractor) Extract(_ context.Context, content []byte) ([]domain.Segment, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, extractionError("not a DOCX archive", err)
	}

	docXML, err := readDocumentXML(reader)
	if err != nil {
		return nil, err
	}

	paragraphs, err := parseDocumentXML(docXML)
	if err != nil {
		return nil, extractionError("malformed word/document.xml", err)
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}

	return []domain.Segment{{
		Text:     strings.Join(paragraphs, "\n"),
		Position: domain.Position{Page: 1},
	}}, nil
}

// readDocumentXML returns the contents of word/document.xml.
func readDocumentXML(reader *zip.Reader) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, extractionError("open word/document.xml", err)
		}
		defer rc.Close()

		content, err := io.ReadAll(io.LimitReader(rc, maxDocumentXML))
		if err != nil {
			return nil, extractionError("read word/document.xml", err)
		}
		return content, nil
	}
	return nil, extractionError("missing word/document.xml", nil)
}

// cell collects the paragraphs of one table cell.
type cell struct {
	parts []string
}

// bodyWalker accumulates body text while streaming word/document.xml.
type bodyWalker struct {
	out   []string
	paras []*strings.Builder // open paragraphs; text boxes nest them
	runs  int                // depth of open runs
	rows  [][]string         // open table rows, innermost last
	cells []*cell            // open table cells, innermost last
}

// parseDocumentXML returns the trimmed non-empty paragraphs and table rows in
// document order. Table rows are rendered as " | " separated cells; a table
// nested in a cell contributes its rows to that cell.
func parseDocumentXML(content []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	w := &bodyWalker{}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return w.out, nil
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			if err := w.start(dec, el); err != nil {
				return nil, err
			}
		case xml.EndElement:
			w.end(el)
		}
	}
}

func (w *bodyWalker) start(dec *xml.Decoder, el xml.StartElement) error {
	switch el.Name.Local {
	case "Fallback":
		// Alternate content repeats the text of its Choice branch.
		return dec.Skip()
	case "p":
		w.paras = append(w.paras, &strings.Builder{})
	case "r":
		w.runs++
	case "t":
		var text string
		if err := dec.DecodeElement(&text, &el); err != nil {
			return err
		}
		w.write(text)
	case "tab":
		// Tab stops in paragraph properties share the element name.
		if w.runs > 0 {
			w.write("\t")
		}
	case "br", "cr":
		if w.runs > 0 {
			w.write("\n")
		}
	case "tr":
		w.rows = append(w.rows, nil)
	case "tc":
		w.cells = append(w.cells, &cell{})
	}
	return nil
}

func (w *bodyWalker) end(el xml.EndElement) {
	switch el.Name.Local {
	case "p":
		n := len(w.paras)
		if n == 0 {
			return
		}
		text := strings.TrimSpace(w.paras[n-1].String())
		w.paras = w.paras[:n-1]
		if text != "" {
			w.emit(text)
		}
	case "r":
		if w.runs > 0 {
			w.runs--
		}
	case "tc":
		if len(w.cells) == 0 || len(w.rows) == 0 {
			return
		}
		c := w.cells[len(w.cells)-1]
		w.cells = w.cells[:len(w.cells)-1]
		row := len(w.rows) - 1
		w.rows[row] = append(w.rows[row], strings.Join(c.parts, " "))
	case "tr":
		if len(w.rows) == 0 {
			return
		}
		cells := w.rows[len(w.rows)-1]
		w.rows = w.rows[:len(w.rows)-1]
		line := strings.Join(cells, " | ")
		if strings.TrimSpace(strings.ReplaceAll(line, "|", "")) != "" {
			w.emit(line)
		}
	}
}

// write adds run text to the innermost open paragraph.
func (w *bodyWalker) write(text string) {
	if n := len(w.paras); n > 0 {
		w.paras[n-1].WriteString(text)
	}
}

// emit appends text to the innermost open cell, or to the body.
func (w *bodyWalker) emit(text string) {
	if n := len(w.cells); n > 0 {
		w.cells[n-1].parts = append(w.cells[n-1].parts, text)
		return
	}
	w.out = append(w.out, text)
}

func extractionError(reason string, err error) error {
	return &domain.ExtractionError{Format: string(domain.FormatDOCX), Reason: reason, Err: err}
}
