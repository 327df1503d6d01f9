package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// FileStore edits the configuration file one dotted key at a time, as used
// by "docqa config set". Only keys present in the file are visible; defaults
// and environment overrides are not.
type FileStore struct {
	mu   sync.Mutex
	path string
	k    *koanf.Koanf
}

// NewFileStore opens the file at path (DefaultPath when empty), creating its
// directory. A missing file reads as empty.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &FileStore{path: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load rereads the file, discarding unsaved state.
func (s *FileStore) Load() error {
	content, err := readConfigFile(s.path)
	if err != nil {
		return err
	}
	k := koanf.New(".")
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), toml.Parser()); err != nil {
			return fmt.Errorf("parsing %s: %w", s.path, err)
		}
	}

	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.k.Exists(key) {
		return nil, false
	}
	return s.k.Get(key), true
}

// Keys lists the leaf keys in the file, sorted.
func (s *FileStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.k.Keys()
}

// Set stores raw under key with the narrowest type it parses as (bool,
// integer, float, then string) and writes the file.
func (s *FileStore) Set(key, raw string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid key %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.k.Set(key, typedValue(raw)); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return s.write()
}

// Unset removes key and writes the file.
func (s *FileStore) Unset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.k.Delete(key)
	return s.write()
}

func (s *FileStore) Path() string {
	return s.path
}

// write saves the document; the caller holds mu.
func (s *FileStore) write() error {
	data, err := toml.Parser().Marshal(s.k.Raw())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}

func typedValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
