package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DOCQA_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// sections are the top-level tables; nested tables list their children.
var sections = map[string][]string{
	"log":       nil,
	"chunking":  nil,
	"embedding": nil,
	"llm":       nil,
	"vector":    {"qdrant", "chromem"},
	"ingest":    nil,
	"query":     nil,
	"http":      nil,
}

// defaultDir returns ~/.docqa, falling back to ./.docqa when home is unknown.
func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".docqa"
	}
	return filepath.Join(home, ".docqa")
}

// DefaultPath returns the default configuration file location.
func DefaultPath() string {
	return filepath.Join(defaultDir(), "config.toml")
}

// Load reads configuration from the TOML file at path, then applies
// environment overrides.
//
// Environment variables use the DOCQA_ prefix and map onto keys by
// section:
//
//	DOCQA_LLM_MODEL            -> llm.model
//	DOCQA_INGEST_MAX_FILE_SIZE_MB -> ingest.max_file_size_mb
//	DOCQA_VECTOR_QDRANT_HOST   -> vector.qdrant.host
//	DOCQA_DATA_DIR             -> data_dir
//
// A missing file is not an error. If path is empty, DefaultPath is used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	k := koanf.New(".")

	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDerived(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns nil content when the file does not exist.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps DOCQA_SECTION_FIELD onto section.field.
// Unknown sections map to a top-level key.
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))

	for section, children := range sections {
		prefix := section + "_"
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		field := strings.TrimPrefix(key, prefix)
		for _, child := range children {
			if strings.HasPrefix(field, child+"_") {
				return section + "." + child + "." + strings.TrimPrefix(field, child+"_")
			}
		}
		return section + "." + field
	}
	return key
}
