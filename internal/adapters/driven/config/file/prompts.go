package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// promptTemplate is a built-in prompt and the number of %s verbs callers fill.
type promptTemplate struct {
	text  string
	verbs int
}

var builtinPrompts = map[string]promptTemplate{
	driven.PromptAnswer: {verbs: 2, text: `You are a helpful assistant answering questions about the user's documents. Answer the user's question based on the provided context from the documents.

Context from documents:
%s

User question: %s

Instructions:
- Answer the question based on the provided context
- Be specific and cite which document, page or sheet the information comes from
- If the context doesn't contain enough information to answer fully, say so
- Be concise but thorough

Answer:`},
}

// PromptStore serves prompt templates that users may override by editing
// <dir>/<name>.txt. An override that does not keep the template's
// placeholders is ignored in favour of the built-in text.
//
// The directory is seeded with the built-in templates on first Load, not in
// the constructor.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a store rooted at dir, ~/.docqa/prompts when empty.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".docqa", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the template called name.
func (s *PromptStore) Load(name string) (string, error) {
	builtin, known := builtinPrompts[name]
	if !known {
		return "", fmt.Errorf("unknown prompt %q", name)
	}

	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		logger.Debug("prompt directory unavailable, using built-in %s: %v", name, s.seedErr)
		return builtin.text, nil
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	text := s.readOverride(name, builtin)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = text
	return text, nil
}

// readOverride returns the on-disk template when usable, the built-in otherwise.
func (s *PromptStore) readOverride(name string, builtin promptTemplate) string {
	path := s.path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("reading prompt %s: %v", path, err)
		}
		return builtin.text
	}

	text := strings.TrimSpace(string(data))
	got, err := countVerbs(text)
	if err != nil {
		logger.Warn("prompt %s: %v; using built-in", path, err)
		return builtin.text
	}
	if got != builtin.verbs {
		logger.Warn("prompt %s has %d %%s placeholders, want %d; using built-in", path, got, builtin.verbs)
		return builtin.text
	}
	return text
}

// Reload drops cached templates so edits on disk are picked up.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// seed writes the built-in templates and a README, never replacing user files.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	files := map[string]string{"README.md": readme}
	for name, tmpl := range builtinPrompts {
		files[name+".txt"] = tmpl.text
	}
	for file, content := range files {
		path := filepath.Join(s.dir, file)
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			s.seedErr = fmt.Errorf("write %s: %w", file, err)
			return
		}
	}
}

// countVerbs counts %s verbs. Any % not starting %s or the %% escape is an
// error, since fmt would render it as a %!verb(MISSING) marker.
func countVerbs(text string) (int, error) {
	n := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '%' {
			continue
		}
		if i+1 == len(text) {
			return 0, errors.New("template ends with a lone %")
		}
		switch text[i+1] {
		case 's':
			n++
		case '%':
		default:
			next, _ := utf8.DecodeRuneInString(text[i+1:])
			return 0, fmt.Errorf("unsupported %%%c at byte %d, write %%%% for a literal percent sign", next, i)
		}
		i++
	}
	return n, nil
}

const readme = `# docqa prompts

Templates used when answering questions. Delete a file to restore its default.

## answer.txt

Grounds the answer in the retrieved excerpts. It must contain two %s
placeholders, in order:

1. the numbered context blocks, e.g. "[Context 1] (Document: report.pdf, Page 2)"
2. the user's question

Write %% for a literal percent sign. A template with the wrong number of
placeholders is ignored and the default is used instead.

Edits take effect on the next command. A running 'docqa serve' picks them up
on SIGHUP.
`
