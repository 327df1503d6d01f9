package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestNewBlobStore_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	store, err := NewBlobStore(dir)

	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewBlobStore_RequiresDir(t *testing.T) {
	_, err := NewBlobStore("")
	assert.Error(t, err)
}

func TestBlobStore_PutGetDelete(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "doc-1", []byte("%PDF-1.4 content")))

	data, err := store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 content"), data)

	require.NoError(t, store.Put(ctx, "doc-1", []byte("replaced")))
	data, err = store.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), data)

	require.NoError(t, store.Delete(ctx, "doc-1"))
	require.NoError(t, store.Delete(ctx, "doc-1"))

	_, err = store.Get(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBlobStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBlobStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "doc-1", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc-1.bin", entries[0].Name())
}

func TestBlobStore_RejectsPathIDs(t *testing.T) {
	store, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"", "..", "../escape", "a/b", `a\b`, ".hidden"} {
		t.Run(id, func(t *testing.T) {
			assert.ErrorIs(t, store.Put(ctx, id, []byte("x")), domain.ErrInvalidInput)
			_, err := store.Get(ctx, id)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
