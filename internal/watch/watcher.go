// Package watch reports documents dropped into a directory.
//
// Editors and copy tools write files in several steps, so a path is only
// reported once no event has been seen for it during the settle window.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultSettle is the quiet period before a changed file is reported.
const DefaultSettle = 500 * time.Millisecond

// ErrWatcherFailed indicates the filesystem watcher failed to initialise.
var ErrWatcherFailed = errors.New("failed to initialise filesystem watcher")

// Watcher reports files of accepted formats created or rewritten in one directory.
type Watcher struct {
	dir     string
	formats []domain.Format
	settle  time.Duration
	fsw     *fsnotify.Watcher
}

// New watches dir for files whose extension maps to one of formats.
func New(dir string, formats []domain.Format, settle time.Duration) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", dir)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{dir: dir, formats: formats, settle: settle, fsw: fsw}, nil
}

// Run calls handle for every settled file until ctx is cancelled.
// handle runs on the watcher goroutine.
func (w *Watcher) Run(ctx context.Context, handle func(path string)) error {
	defer w.fsw.Close()

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	// Last event time per path still settling.
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if path, ok := w.candidate(event); ok {
				pending[path] = time.Now()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch %s: %v", w.dir, err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.settle {
					continue
				}
				delete(pending, path)
				if isRegular(path) {
					handle(path)
				}
			}
		}
	}
}

// candidate reports whether event concerns a file worth ingesting.
func (w *Watcher) candidate(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	return event.Name, w.Accepts(event.Name)
}

// Accepts reports whether path names a visible file of an accepted format.
func (w *Watcher) Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	format, err := domain.FormatFromFilename(base)
	if err != nil {
		return false
	}
	for _, f := range w.formats {
		if f == format {
			return true
		}
	}
	return false
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
