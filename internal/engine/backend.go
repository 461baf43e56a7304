package engine

import (
	"context"
	"log/slog"

	"github.com/lazypower/mnemo/internal/store"
)

// CachedEmbedder memoizes another Embedder in the SQLite cache, keyed by the
// text digest and the model name. Cache errors are logged and bypassed.
type CachedEmbedder struct {
	Embedder
	db  *store.DB
	log *slog.Logger
}

// NewCachedEmbedder wraps emb with a vector cache.
func NewCachedEmbedder(emb Embedder, db *store.DB, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{Embedder: emb, db: db, log: logger}
}

// Embed returns the cached vector for text, computing and storing it on a miss.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	digest := store.TextDigest(text)
	model := c.Model()

	cached, err := c.db.GetVector(digest, model)
	if err != nil {
		c.log.Warn("embedding cache read failed", "model", model, "err", err)
	} else if cached != nil {
		return cached, nil
	}

	vec, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.db.SaveVector(digest, model, vec); err != nil {
		c.log.Warn("embedding cache write failed", "model", model, "err", err)
	}
	return vec, nil
}

// Backend is what the command layer encodes text with. It never fails:
// when no embedder is configured, or the embedder errors, it yields nil
// vectors and callers fall back to lexical matching.
type Backend struct {
	embedder Embedder
	dims     int
	log      *slog.Logger
}

// NewBackend wraps emb (which may be nil). Vectors longer than dims are
// truncated to dims and re-normalized; dims <= 0 keeps the native size.
func NewBackend(emb Embedder, dims int, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{embedder: emb, dims: dims, log: logger}
}

// Available reports whether an embedder is configured.
func (b *Backend) Available() bool {
	return b != nil && b.embedder != nil
}

// Name identifies the embedder, or "none".
func (b *Backend) Name() string {
	if !b.Available() {
		return "none"
	}
	return b.embedder.Model()
}

// Encode embeds each text. Entries are nil where no vector could be produced.
func (b *Backend) Encode(ctx context.Context, texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	if !b.Available() {
		return out
	}
	for i, text := range texts {
		vec, err := b.embedder.Embed(ctx, text)
		if err != nil {
			b.log.Warn("embedding failed, continuing without vector", "model", b.embedder.Model(), "err", err)
			continue
		}
		out[i] = b.fit(vec)
	}
	return out
}

// EncodeQuery embeds a search query, or returns nil.
func (b *Backend) EncodeQuery(ctx context.Context, text string) []float64 {
	return b.Encode(ctx, []string{text})[0]
}

// fit truncates vec to the configured dimension and normalizes it. Vectors
// that are too short or have zero length are discarded.
func (b *Backend) fit(vec []float64) []float64 {
	if b.dims > 0 {
		if len(vec) < b.dims {
			b.log.Debug("embedding shorter than configured dimension", "got", len(vec), "want", b.dims)
			return nil
		}
		vec = vec[:b.dims]
	}
	if len(vec) == 0 {
		return nil
	}
	out := make([]float64, len(vec))
	copy(out, vec)
	if !normalize(out) {
		return nil
	}
	return out
}
