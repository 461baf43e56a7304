package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MNEMO_MEMORY", "MNEMO_EMBED_BACKEND", "OLLAMA_HOST", "MNEMO_EMBED_MODEL"} {
		t.Setenv(k, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 500, cfg.Memory.MaxRecords)
	assert.Equal(t, BackendOllama, cfg.Embedding.Backend)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 512, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, "127.0.0.1:37778", cfg.ListenAddr())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[memory]
path = "/tmp/notes.jsonl"
max_records = 50

[embedding]
backend = "Hash"
dimensions = 256

[search]
top_k = 3

[log]
level = "debug"
format = "json"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/notes.jsonl", cfg.Memory.Path)
	assert.Equal(t, 50, cfg.Memory.MaxRecords)
	assert.Equal(t, BackendHash, cfg.Embedding.Backend)
	assert.Equal(t, 256, cfg.Embedding.Dimensions)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model, "unset keys keep defaults")
	assert.Equal(t, 3, cfg.Search.TopK)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[memory]\npath = \"/from/file.jsonl\"\n"), 0644))

	t.Setenv("MNEMO_MEMORY", "/from/env.jsonl")
	t.Setenv("MNEMO_EMBED_BACKEND", "none")
	t.Setenv("OLLAMA_HOST", "10.0.0.5:11434/")
	t.Setenv("MNEMO_EMBED_MODEL", "mxbai-embed-large")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env.jsonl", cfg.Memory.Path)
	assert.Equal(t, BackendNone, cfg.Embedding.Backend)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Embedding.OllamaURL)
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
}

func TestLoadInvalid(t *testing.T) {
	clearEnv(t)
	tests := map[string]string{
		"syntax":     "[memory\npath = 1",
		"backend":    "[embedding]\nbackend = \"openai\"\n",
		"dimensions": "[embedding]\ndimensions = 1024\n",
		"top_k":      "[search]\ntop_k = 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidateDimensions(t *testing.T) {
	assert.NoError(t, ValidateDimensions(128))
	assert.NoError(t, ValidateDimensions(768))
	assert.Error(t, ValidateDimensions(127))
	assert.Error(t, ValidateDimensions(769))
}
