package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2Distance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
	}{
		{"identical", Vector{1, 2, 3}, Vector{1, 2, 3}, 0},
		{"axis", Vector{1, 0}, Vector{1, 0.3}, 0.3},
		{"scaled", Vector{2, 0}, Vector{1, 0}, 1},
		{"pythagoras", Vector{0, 0}, Vector{3, 4}, 5},
		{"empty", Vector{}, Vector{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, L2Distance(tt.a, tt.b), 1e-6)
		})
	}
	assert.True(t, math.IsInf(L2Distance(Vector{1}, Vector{1, 0}), 1), "different lengths")
}

func TestNew_Disabled(t *testing.T) {
	e, err := New(Options{})
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Options{Provider: "word2vec"})
	assert.Error(t, err)
}

func TestBlobRoundTrip(t *testing.T) {
	v := Vector{0.25, -1.5, 3, 0}
	got, err := DecodeBlob(EncodeBlob(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	assert.Nil(t, EncodeBlob(nil))
	got, err = DecodeBlob(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = DecodeBlob([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	h := NewHashEmbedder(16)
	ctx := context.Background()

	a, err := h.Embed(ctx, "buy milk")
	require.NoError(t, err)
	b, err := h.Embed(ctx, "buy milk")
	require.NoError(t, err)
	c, err := h.Embed(ctx, "sell bread")
	require.NoError(t, err)

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1.0, L2Distance(a, make(Vector, 16)), 0.0001, "unit length")
}

type countingEmbedder struct {
	calls atomic.Int32
	inner Embedder
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) Dims() int { return c.inner.Dims() }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{inner: NewHashEmbedder(8)}
	cached, err := NewCached(inner, 16)
	require.NoError(t, err)
	defer cached.Close()

	ctx := context.Background()
	first, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 8, cached.Dims())

	// Mutating a returned vector must not poison the cache.
	second[0] = 42
	third, err := cached.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, first[0], third[0])
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req["model"])
		assert.Equal(t, "text", req["prompt"])
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 2, 3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "", 0)
	v, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, Vector{1, 2, 3}, v)
	assert.Equal(t, 768, e.Dims())
}

func TestOpenAIEmbedder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL, "sk-test", "", 0)
	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOllamaEmbedder_Dims(t *testing.T) {
	assert.Equal(t, 384, NewOllamaEmbedder("http://x", "all-minilm", 0).Dims())
	assert.Equal(t, 768, NewOllamaEmbedder("http://x", "custom-model", 0).Dims())
	assert.Equal(t, 512, NewOllamaEmbedder("http://x", "custom-model", 512).Dims())
}

func TestOpenAIEmbedder_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIEmbedder(srv.URL, "", "", 0).Embed(context.Background(), "text")
	assert.ErrorContains(t, err, "no embedding")
}
