package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/mnemo/internal/store"
)

type stubEmbedder struct {
	vec   []float64
	err   error
	model string
	calls int
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func (s *stubEmbedder) Model() string {
	if s.model == "" {
		return "stub"
	}
	return s.model
}

func (s *stubEmbedder) Dimensions() int { return len(s.vec) }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBackendNone(t *testing.T) {
	b := NewBackend(nil, 0, nil)
	assert.False(t, b.Available())
	assert.Equal(t, "none", b.Name())
	assert.Equal(t, [][]float64{nil, nil}, b.Encode(context.Background(), []string{"a", "b"}))
	assert.Nil(t, b.EncodeQuery(context.Background(), "a"))

	var nilBackend *Backend
	assert.False(t, nilBackend.Available())
}

func TestBackendTruncatesAndNormalizes(t *testing.T) {
	src := []float64{3, 4, 12}
	b := NewBackend(&stubEmbedder{vec: src}, 2, nil)
	assert.Equal(t, "stub", b.Name())

	got := b.EncodeQuery(context.Background(), "x")
	require.Len(t, got, 2)
	assert.InDelta(t, 0.6, got[0], 1e-9)
	assert.InDelta(t, 0.8, got[1], 1e-9)
	assert.Equal(t, []float64{3, 4, 12}, src, "source vector must not be modified")
}

func TestBackendNativeDimension(t *testing.T) {
	b := NewBackend(&stubEmbedder{vec: []float64{0, 5}}, 0, nil)
	assert.Equal(t, []float64{0, 1}, b.EncodeQuery(context.Background(), "x"))
}

func TestBackendDiscardsUnusableVectors(t *testing.T) {
	ctx := context.Background()

	short := NewBackend(&stubEmbedder{vec: []float64{1, 2}}, 4, nil)
	assert.Nil(t, short.EncodeQuery(ctx, "x"))

	zero := NewBackend(&stubEmbedder{vec: []float64{0, 0, 0}}, 0, nil)
	assert.Nil(t, zero.EncodeQuery(ctx, "x"))

	failing := NewBackend(&stubEmbedder{err: errors.New("connection refused")}, 0, nil)
	assert.Nil(t, failing.EncodeQuery(ctx, "x"))
}

func TestCachedEmbedder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	inner := &stubEmbedder{vec: []float64{0.5, 0.25}, model: "stub:v1"}
	cached := NewCachedEmbedder(inner, db, nil)

	assert.Equal(t, "stub:v1", cached.Model())

	first, err := cached.Embed(ctx, "remember the milk")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "remember the milk")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = cached.Embed(ctx, "something else")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)

	n, err := db.CountVectors()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCachedEmbedderKeyedByModel(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	a := &stubEmbedder{vec: []float64{1, 0}, model: "a"}
	b := &stubEmbedder{vec: []float64{0, 1}, model: "b"}

	va, err := NewCachedEmbedder(a, db, nil).Embed(ctx, "same text")
	require.NoError(t, err)
	vb, err := NewCachedEmbedder(b, db, nil).Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 0}, va)
	assert.Equal(t, []float64{0, 1}, vb)
}

func TestCachedEmbedderBypassesBrokenCache(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	inner := &stubEmbedder{vec: []float64{1, 1}}
	vec, err := NewCachedEmbedder(inner, db, nil).Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, vec)
}

func TestCachedEmbedderPropagatesEmbedError(t *testing.T) {
	inner := &stubEmbedder{err: errors.New("boom")}
	_, err := NewCachedEmbedder(inner, testDB(t), nil).Embed(context.Background(), "x")
	assert.Error(t, err)
}
