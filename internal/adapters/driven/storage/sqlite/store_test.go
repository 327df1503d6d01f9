package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func newDocument(id string, status domain.DocumentStatus, uploaded time.Time) *domain.Document {
	return &domain.Document{
		ID:         id,
		Filename:   id + ".pdf",
		Format:     domain.FormatPDF,
		Status:     status,
		SizeBytes:  1024,
		UploadedAt: uploaded,
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "metadata.db"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.DocumentStore().SaveDocument(ctx, newDocument("doc-1", domain.StatusPending, time.Now())))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	doc, err := reopened.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1.pdf", doc.Filename)
}

// ==================== Document Store Tests ====================

func TestDocumentStore_SaveAndGet(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	uploaded := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, docs.SaveDocument(ctx, newDocument("doc-1", domain.StatusPending, uploaded)))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.ID)
	assert.Equal(t, domain.FormatPDF, got.Format)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, int64(1024), got.SizeBytes)
	assert.True(t, uploaded.Equal(got.UploadedAt))
	assert.Nil(t, got.ProcessedAt)
}

func TestDocumentStore_SaveUpdates(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	doc := newDocument("doc-1", domain.StatusPending, time.Now())
	require.NoError(t, docs.SaveDocument(ctx, doc))

	doc.Filename = "renamed.pdf"
	require.NoError(t, docs.SaveDocument(ctx, doc))

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed.pdf", got.Filename)
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()

	_, err := docs.GetDocument(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_ListOrdering(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, docs.SaveDocument(ctx, newDocument("old", domain.StatusPending, base)))
	require.NoError(t, docs.SaveDocument(ctx, newDocument("new", domain.StatusPending, base.Add(2*time.Hour))))
	require.NoError(t, docs.SaveDocument(ctx, newDocument("mid", domain.StatusReady, base.Add(time.Hour))))

	all, err := docs.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, "mid", all[1].ID)
	assert.Equal(t, "old", all[2].ID)

	pending, err := docs.ListByStatus(ctx, domain.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "old", pending[0].ID)
	assert.Equal(t, "new", pending[1].ID)
}

func TestDocumentStore_ListEmpty(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()

	all, err := docs.ListDocuments(context.Background())

	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDocumentStore_TransitionStatus(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.SaveDocument(ctx, newDocument("doc-1", domain.StatusPending, time.Now())))

	ok, err := docs.TransitionStatus(ctx, "doc-1", domain.StatusPending, domain.StatusProcessing)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second claim loses.
	ok, err = docs.TransitionStatus(ctx, "doc-1", domain.StatusPending, domain.StatusProcessing)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, got.Status)
}

func TestDocumentStore_TransitionStatus_Invalid(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()

	_, err := docs.TransitionStatus(context.Background(), "doc-1", domain.StatusReady, domain.StatusPending)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_TransitionStatus_Unknown(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()

	ok, err := docs.TransitionStatus(context.Background(), "missing", domain.StatusPending, domain.StatusProcessing)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentStore_TransitionStatus_Concurrent(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.SaveDocument(ctx, newDocument("doc-1", domain.StatusPending, time.Now())))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := docs.TransitionStatus(ctx, "doc-1", domain.StatusPending, domain.StatusProcessing)
			if err == nil && ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestDocumentStore_CompleteDocument(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.SaveDocument(ctx, newDocument("doc-1", domain.StatusProcessing, time.Now())))

	ok, err := docs.CompleteDocument(ctx, "doc-1", domain.StatusReady, 12, "")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, got.Status)
	assert.Equal(t, 12, got.ChunkCount)
	require.NotNil(t, got.ProcessedAt)

	// Ready is terminal.
	ok, err = docs.CompleteDocument(ctx, "doc-1", domain.StatusFailed, 0, "late failure")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentStore_CompleteDocument_Failed(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.SaveDocument(ctx, newDocument("doc-1", domain.StatusProcessing, time.Now())))

	ok, err := docs.CompleteDocument(ctx, "doc-1", domain.StatusFailed, 0, "extract pdf: no readable text")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "extract pdf: no readable text", got.Error)
}

func TestDocumentStore_CompleteDocument_RequiresProcessing(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.SaveDocument(ctx, newDocument("doc-1", domain.StatusPending, time.Now())))

	ok, err := docs.CompleteDocument(ctx, "doc-1", domain.StatusReady, 3, "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = docs.CompleteDocument(ctx, "doc-1", domain.StatusPending, 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_Delete(t *testing.T) {
	docs := setupTestStore(t).DocumentStore()
	ctx := context.Background()
	require.NoError(t, docs.SaveDocument(ctx, newDocument("doc-1", domain.StatusReady, time.Now())))

	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))
	require.NoError(t, docs.DeleteDocument(ctx, "doc-1"))

	_, err := docs.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
