package embedding

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoises another embedder's vectors by text.
type CachedEmbedder struct {
	next  Embedder
	cache *ristretto.Cache
}

// NewCached wraps next with a cache holding roughly maxEntries vectors.
func NewCached(next Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{next: next, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	if v, ok := c.cache.Get(text); ok {
		return slices.Clone(v.(Vector)), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, slices.Clone(v), 1)
	// Sets are buffered; wait so the next lookup of the same text hits.
	c.cache.Wait()
	return v, nil
}

func (c *CachedEmbedder) Dims() int { return c.next.Dims() }

// Close releases the cache.
func (c *CachedEmbedder) Close() {
	c.cache.Close()
}
