package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// TextDigest returns the cache key for a piece of text.
func TextDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// SaveVector stores or replaces the cached embedding for (digest, model).
func (db *DB) SaveVector(digest, model string, embedding []float64) error {
	now := time.Now().UnixMilli()
	blob := encodeEmbedding(embedding)

	_, err := db.Exec(`
		INSERT INTO embeddings (digest, model, embedding, dimensions, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(digest, model) DO UPDATE SET embedding = ?, dimensions = ?, created_at = ?
	`, digest, model, blob, len(embedding), now,
		blob, len(embedding), now)
	if err != nil {
		return fmt.Errorf("save vector: %w", err)
	}
	return nil
}

// GetVector returns the cached embedding for (digest, model), or nil if not found.
func (db *DB) GetVector(digest, model string) ([]float64, error) {
	var blob []byte
	err := db.QueryRow(`
		SELECT embedding FROM embeddings WHERE digest = ? AND model = ?
	`, digest, model).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vector: %w", err)
	}
	return decodeEmbedding(blob), nil
}

// CountVectors returns the number of cached embeddings.
func (db *DB) CountVectors() (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM embeddings").Scan(&n); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return n, nil
}
