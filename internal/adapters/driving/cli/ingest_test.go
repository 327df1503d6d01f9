package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestIngestCmd_RequiresArgs(t *testing.T) {
	_, cleanup := newTestServices()
	defer cleanup()

	_, err := execute(t, "ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIngestCmd_WaitsForReady(t *testing.T) {
	svc, cleanup := newTestServices()
	defer cleanup()
	path := writeTempFile(t, "report.pdf", "%PDF-1.4")

	out, err := execute(t, "ingest", path)

	require.NoError(t, err)
	assert.True(t, svc.orch.started)
	assert.Equal(t, 1, svc.orch.resumed)
	require.Len(t, svc.docs.ingested, 1)
	assert.Equal(t, "report.pdf", svc.docs.ingested[0].Filename)
	assert.Equal(t, "%PDF-1.4", string(svc.docs.ingested[0].Content))
	assert.Contains(t, out, "Queued report.pdf as new-1")
	assert.Contains(t, out, "new-1: ready (1 chunks)")
}

func TestIngestCmd_NoWait(t *testing.T) {
	svc, cleanup := newTestServices()
	defer cleanup()
	a := writeTempFile(t, "a.pdf", "a")
	b := writeTempFile(t, "export", "b")

	out, err := execute(t, "ingest", "--wait=false", "--format", "xlsx", a, b)

	require.NoError(t, err)
	require.Len(t, svc.docs.ingested, 2)
	assert.Equal(t, domain.Format("xlsx"), svc.docs.ingested[1].Format)
	assert.NotContains(t, out, "ready")
}

func TestIngestCmd_ReportsFailures(t *testing.T) {
	svc, cleanup := newTestServices()
	defer cleanup()
	svc.docs.finalStatus = domain.StatusFailed
	path := writeTempFile(t, "report.pdf", "x")

	out, err := execute(t, "ingest", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 documents failed")
	assert.Contains(t, out, "new-1: failed: embedding service unavailable")
}

func TestIngestCmd_MissingFile(t *testing.T) {
	svc, cleanup := newTestServices()
	defer cleanup()

	_, err := execute(t, "ingest", filepath.Join(t.TempDir(), "missing.pdf"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, svc.docs.ingested)
}

func TestIngestCmd_ServiceRejects(t *testing.T) {
	svc, cleanup := newTestServices()
	defer cleanup()
	svc.docs.err = &domain.UnsupportedFormatError{Format: "txt"}
	path := writeTempFile(t, "notes.txt", "x")

	_, err := execute(t, "ingest", path)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
}
