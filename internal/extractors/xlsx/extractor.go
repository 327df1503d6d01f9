// Package xlsx extracts worksheet text from XLSX workbooks.
//
// Each non-empty sheet becomes one segment laid out as:
//
//	Sheet: <name>
//	Columns: <header1> | <header2> | ...
//	--------------------------------------------------
//	<row values joined by " | ">
//
// The first row holding any value is taken as the header row.
package xlsx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	tabxlsx "github.com/tsawler/tabula/xlsx"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

var zipMagic = []byte("PK\x03\x04")

const (
	cellSeparator = " | "
	ruleWidth     = 50
)

// Extractor reads XLSX workbooks one sheet at a time.
type Extractor struct{}

// New creates a new XLSX extractor.
func New() *Extractor {
	return &Extractor{}
}

// Format returns the format this extractor handles.
func (e *Extractor) Format() domain.Format {
	return domain.FormatXLSX
}

// Extract returns one segment per sheet that holds at least one value.
func (e *Extractor) Extract(ctx context.Context, content []byte) (segments []domain.Segment, err error) {
	if !bytes.HasPrefix(content, zipMagic) {
		return nil, extractionError("not an XLSX workbook", nil)
	}

	path, cleanup, err := spool(content)
	if err != nil {
		return nil, extractionError("spool upload", err)
	}
	defer cleanup()

	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = extractionError("malformed workbook", fmt.Errorf("%v", r))
		}
	}()

	wb, err := tabxlsx.Open(path)
	if err != nil {
		return nil, extractionError("unreadable workbook", err)
	}
	defer wb.Close()

	for i := 0; i < wb.SheetCount(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sheet, err := wb.Sheet(i)
		if err != nil {
			return nil, extractionError(fmt.Sprintf("sheet %d", i+1), err)
		}

		text := renderSheet(sheet)
		if text == "" {
			continue
		}
		segments = append(segments, domain.Segment{
			Text:     text,
			Position: domain.Position{Sheet: sheet.Name},
		})
	}

	return segments, nil
}

// renderSheet returns "" for a sheet with no values.
func renderSheet(sheet *tabxlsx.Sheet) string {
	var header []string
	var rows []string

	for _, row := range sheet.Rows {
		values := rowValues(row)
		if len(values) == 0 {
			continue
		}
		if header == nil {
			header = values
			continue
		}
		rows = append(rows, strings.Join(values, cellSeparator))
	}

	if header == nil {
		return ""
	}

	lines := make([]string, 0, len(rows)+3)
	lines = append(lines,
		"Sheet: "+sheet.Name,
		"Columns: "+strings.Join(header, cellSeparator),
		strings.Repeat("-", ruleWidth),
	)
	lines = append(lines, rows...)
	return strings.Join(lines, "\n")
}

// rowValues returns trimmed non-empty values. Merged regions contribute
// their value once, from the top-left cell.
func rowValues(row []tabxlsx.Cell) []string {
	var values []string
	for i := range row {
		cell := &row[i]
		if cell.IsMerged && !cell.IsMergeRoot {
			continue
		}
		if cell.IsEmpty() {
			continue
		}
		v := strings.TrimSpace(cell.Value)
		if v == "" {
			continue
		}
		values = append(values, v)
	}
	return values
}

func spool(content []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "docqa-*.xlsx")
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
	return &domain.ExtractionError{Format: string(domain.FormatXLSX), Reason: reason, Err: err}
}
