package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

// embedOptions are the embedding flags of commands that encode text.
type embedOptions struct {
	backend     string
	model       string
	ollamaURL   string
	truncateDim int
}

func (o *embedOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.backend, "backend", "", "Embedding backend: ollama, hash or none (default from config)")
	f.StringVar(&o.model, "model", "", "Embedding model name (default from config)")
	f.StringVar(&o.ollamaURL, "ollama-url", "", "Ollama base URL (default from config)")
	f.IntVar(&o.truncateDim, "truncate-dim", 0, "Embedding dimensions to keep, 128-768 (default from config)")
}

// apply overlays set flags onto cfg and re-validates it.
func (o *embedOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.backend != "" {
		cfg.Embedding.Backend = o.backend
	}
	if o.model != "" {
		cfg.Embedding.Model = o.model
	}
	if o.ollamaURL != "" {
		cfg.Embedding.OllamaURL = o.ollamaURL
	}
	if cmd.Flags().Changed("truncate-dim") {
		cfg.Embedding.Dimensions = o.truncateDim
	}
	return cfg.Validate()
}

// openBackend builds the embedding backend described by cfg. An unreachable
// Ollama or an unusable cache degrades with a warning instead of failing.
// The returned func releases the cache.
func openBackend(cfg config.EmbeddingConfig, logger *slog.Logger) (*engine.Backend, func()) {
	noop := func() {}

	var emb engine.Embedder
	switch cfg.Backend {
	case config.BackendHash:
		emb = engine.NewHashEmbedder(cfg.Dimensions)
	case config.BackendOllama:
		if !engine.OllamaAvailable(cfg.OllamaURL, cfg.Model) {
			logger.Warn("ollama not reachable, falling back to lexical search", "url", cfg.OllamaURL, "model", cfg.Model)
			return engine.NewBackend(nil, 0, logger), noop
		}
		emb = engine.NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, cfg.Dimensions)
	default:
		return engine.NewBackend(nil, 0, logger), noop
	}

	release := noop
	if cfg.CachePath != "" && cfg.Backend == config.BackendOllama {
		db, err := store.Open(cfg.CachePath)
		if err != nil {
			logger.Warn("embedding cache unavailable", "path", cfg.CachePath, "err", err)
		} else {
			emb = engine.NewCachedEmbedder(emb, db, logger)
			release = func() { db.Close() }
		}
	}

	logger.Debug("embedding backend ready", "model", emb.Model(), "dimensions", cfg.Dimensions)
	return engine.NewBackend(emb, cfg.Dimensions, logger), release
}
