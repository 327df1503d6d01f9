package pdf

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// buildPDF writes a PDF with one page per entry, each drawing its text with
// Helvetica. Empty strings produce blank pages.
func buildPDF(pages ...string) []byte {
	var objects []string

	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 4+i*2)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		contentObj := 5 + i*2
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentObj))

		stream := ""
		if text != "" {
			stream = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestFormat(t *testing.T) {
	assert.Equal(t, domain.FormatPDF, New().Format())
}

func TestExtract_PerPageSegments(t *testing.T) {
	content := buildPDF("Hello page one", "", "Closing page three")

	segments, err := New().Extract(context.Background(), content)

	require.NoError(t, err)
	require.Len(t, segments, 2, "blank page should be skipped")
	assert.Contains(t, segments[0].Text, "Hello page one")
	assert.Equal(t, domain.Position{Page: 1}, segments[0].Position)
	assert.Contains(t, segments[1].Text, "Closing page three")
	assert.Equal(t, domain.Position{Page: 3}, segments[1].Position)
}

func TestExtract_AllBlank(t *testing.T) {
	segments, err := New().Extract(context.Background(), buildPDF("", ""))

	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestExtract_NotPDF(t *testing.T) {
	_, err := New().Extract(context.Background(), []byte("PK\x03\x04 definitely a zip"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)

	var extractErr *domain.ExtractionError
	require.ErrorAs(t, err, &extractErr)
	assert.Equal(t, "pdf", extractErr.Format)
}

func TestExtract_Corrupt(t *testing.T) {
	content := []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\ngarbage without xref")

	_, err := New().Extract(context.Background(), content)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestExtract_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, buildPDF("text"))

	assert.ErrorIs(t, err, context.Canceled)
}
