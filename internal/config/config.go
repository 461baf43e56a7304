package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all mnemo configuration.
type Config struct {
	Memory    MemoryConfig    `toml:"memory"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

type MemoryConfig struct {
	Path       string `toml:"path"`        // empty resolves to store.DefaultMemoryPath()
	MaxRecords int    `toml:"max_records"` // prune cap when --max-records is not given
}

type EmbeddingConfig struct {
	Backend    string `toml:"backend"` // "ollama", "hash", "none"
	OllamaURL  string `toml:"ollama_url"`
	Model      string `toml:"model"` // e.g. "nomic-embed-text"
	Dimensions int    `toml:"dimensions"`
	CachePath  string `toml:"cache_path"` // empty disables the embedding cache
}

type SearchConfig struct {
	TopK int `toml:"top_k"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type LogConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

const (
	BackendOllama = "ollama"
	BackendHash   = "hash"
	BackendNone   = "none"

	MinDimensions = 128
	MaxDimensions = 768
)

// Default returns a Config with sensible defaults.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Memory: MemoryConfig{
			Path:       "", // resolved at runtime via store.DefaultMemoryPath()
			MaxRecords: 500,
		},
		Embedding: EmbeddingConfig{
			Backend:    BackendOllama,
			OllamaURL:  "http://localhost:11434",
			Model:      "nomic-embed-text",
			Dimensions: 512,
			CachePath:  filepath.Join(home, ".mnemo", "embeddings.db"),
		},
		Search: SearchConfig{
			TopK: 5,
		},
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultConfigPath returns ~/.mnemo/config.toml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".mnemo", "config.toml")
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overrides file values with MNEMO_* and OLLAMA_HOST.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MNEMO_MEMORY"); v != "" {
		cfg.Memory.Path = v
	}
	if v := os.Getenv("MNEMO_EMBED_BACKEND"); v != "" {
		cfg.Embedding.Backend = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Embedding.OllamaURL = normalizeOllamaHost(v)
	}
	if v := os.Getenv("MNEMO_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
}

// normalizeOllamaHost accepts the bare host:port form Ollama itself uses.
func normalizeOllamaHost(v string) string {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, "://") {
		v = "http://" + v
	}
	return strings.TrimRight(v, "/")
}

// Validate checks values that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	c.Embedding.Backend = strings.ToLower(strings.TrimSpace(c.Embedding.Backend))
	switch c.Embedding.Backend {
	case BackendOllama, BackendHash, BackendNone:
	default:
		return fmt.Errorf("invalid embedding backend %q (want ollama, hash or none)", c.Embedding.Backend)
	}
	if err := ValidateDimensions(c.Embedding.Dimensions); err != nil {
		return err
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("invalid search top_k %d: must be at least 1", c.Search.TopK)
	}
	return nil
}

// ValidateDimensions checks an embedding truncation size.
func ValidateDimensions(n int) error {
	if n < MinDimensions || n > MaxDimensions {
		return fmt.Errorf("invalid embedding dimensions %d: must be between %d and %d", n, MinDimensions, MaxDimensions)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
