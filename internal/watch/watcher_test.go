package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, domain.Formats, 40*time.Millisecond)
	require.NoError(t, err)
	return w
}

func TestNew_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "nope"), domain.Formats, 0)
		assert.Error(t, err)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a.pdf")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

		_, err := New(path, domain.Formats, 0)
		assert.Error(t, err)
	})
}

func TestWatcher_Accepts(t *testing.T) {
	w := &Watcher{formats: []domain.Format{domain.FormatPDF, domain.FormatXLSX}}

	tests := []struct {
		path     string
		expected bool
	}{
		{path: "/in/report.pdf", expected: true},
		{path: "/in/Budget.XLSX", expected: true},
		{path: "/in/letter.docx", expected: false},
		{path: "/in/notes.txt", expected: false},
		{path: "/in/.hidden.pdf", expected: false},
		{path: "/in/~$lock.xlsx", expected: false},
		{path: "/in/README", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, w.Accepts(tt.path))
		})
	}
}

func TestWatcher_Candidate(t *testing.T) {
	w := &Watcher{formats: domain.Formats}

	tests := []struct {
		name     string
		op       fsnotify.Op
		expected bool
	}{
		{name: "create", op: fsnotify.Create, expected: true},
		{name: "write", op: fsnotify.Write, expected: true},
		{name: "remove", op: fsnotify.Remove, expected: false},
		{name: "rename", op: fsnotify.Rename, expected: false},
		{name: "chmod", op: fsnotify.Chmod, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := w.candidate(fsnotify.Event{Name: "/in/a.pdf", Op: tt.op})
			assert.Equal(t, tt.expected, ok)
		})
	}
}

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	var (
		mu   sync.Mutex
		seen []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(path string) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, filepath.Base(path))
		})
	}()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.pdf"), []byte("%PDF"), 0600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0700))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Nothing else settles afterwards.
	time.Sleep(150 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"report.pdf"}, seen)
}
