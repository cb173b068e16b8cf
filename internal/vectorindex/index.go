// Package vectorindex keeps a nearest-neighbour index positionally aligned with the memory cache.
package vectorindex

import (
	"context"
	"errors"
	"cmp"
	"fmt"
	"slices"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Adam-Huang/reflect/internal/embedding"
	"github.com/Adam-Huang/reflect/internal/model"
)

// ErrMisaligned is returned when the index no longer mirrors the cache it was built from.
var ErrMisaligned = errors.New("vector index misaligned with memory cache")

const collectionName = "memories"

// Index holds one slot per cached memory. Slot i always describes cache[i].
// Only slots with an embedding of the index dimension are searchable.
type Index struct {
	db    *chromem.DB
	col   *chromem.Collection
	slots []string // memory id per position
	dims  int
	// raw keeps vectors as stored; chromem normalises its copies.
	raw map[string]embedding.Vector
}

// New returns an empty index.
func New() (*Index, error) {
	idx := &Index{}
	if err := idx.reset(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) reset() error {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	idx.db = db
	idx.col = col
	idx.slots = nil
	idx.dims = 0
	idx.raw = map[string]embedding.Vector{}
	return nil
}

// Rebuild discards the index and recreates it from memories, in order.
func (idx *Index) Rebuild(ctx context.Context, memories []model.Memory) error {
	if err := idx.reset(); err != nil {
		return err
	}
	idx.slots = make([]string, len(memories))
	for i, m := range memories {
		idx.slots[i] = m.ID
		if len(m.Embedding) == 0 {
			continue
		}
		if idx.dims == 0 {
			idx.dims = len(m.Embedding)
		}
		if len(m.Embedding) != idx.dims {
			continue
		}
		doc := chromem.Document{
			ID:        m.ID,
			Content:   m.Summary,
			Embedding: slices.Clone(m.Embedding),
		}
		if err := idx.col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index memory %s: %w", m.ID, err)
		}
		idx.raw[m.ID] = slices.Clone(m.Embedding)
	}
	return nil
}

// Remove drops the slot at pos, shifting later slots down by one.
func (idx *Index) Remove(ctx context.Context, pos int) error {
	if pos < 0 || pos >= len(idx.slots) {
		return fmt.Errorf("remove slot %d of %d: %w", pos, len(idx.slots), ErrMisaligned)
	}
	id := idx.slots[pos]
	idx.slots = slices.Delete(idx.slots, pos, pos+1)
	if _, ok := idx.raw[id]; !ok {
		return nil
	}
	delete(idx.raw, id)
	if err := idx.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("remove memory %s: %w", id, err)
	}
	return nil
}

// Search returns the positions of the k searchable slots nearest to query by
// Euclidean distance, closest first. Equal distances keep storage order.
// k is clamped to the number of searchable slots.
func (idx *Index) Search(ctx context.Context, query []float32, k int) ([]int, error) {
	n := idx.col.Count()
	if k > n {
		k = n
	}
	if k <= 0 {
		return nil, nil
	}
	if len(query) != idx.dims {
		return nil, fmt.Errorf("query has %d dims, index has %d", len(query), idx.dims)
	}

	// chromem ranks by cosine, which ignores magnitude; rank every candidate by L2 instead.
	results, err := idx.col.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	type hit struct {
		pos  int
		dist float64
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		pos := slices.Index(idx.slots, r.ID)
		vec, ok := idx.raw[r.ID]
		if pos < 0 || !ok {
			return nil, fmt.Errorf("memory %s has no slot: %w", r.ID, ErrMisaligned)
		}
		hits = append(hits, hit{pos: pos, dist: embedding.L2Distance(query, vec)})
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	positions := make([]int, 0, k)
	for _, h := range hits[:min(k, len(hits))] {
		positions = append(positions, h.pos)
	}
	return positions, nil
}

// Len returns the number of slots.
func (idx *Index) Len() int { return len(idx.slots) }

// Searchable returns the number of slots holding an indexed embedding.
func (idx *Index) Searchable() int { return idx.col.Count() }

// Dims returns the indexed embedding dimension, or 0 when nothing is indexed.
func (idx *Index) Dims() int { return idx.dims }

// CheckAligned verifies slot i holds memories[i] for every position.
func (idx *Index) CheckAligned(memories []model.Memory) error {
	if len(memories) != len(idx.slots) {
		return fmt.Errorf("%d slots for %d memories: %w", len(idx.slots), len(memories), ErrMisaligned)
	}
	for i, m := range memories {
		if idx.slots[i] != m.ID {
			return fmt.Errorf("slot %d holds %s, cache holds %s: %w", i, idx.slots[i], m.ID, ErrMisaligned)
		}
	}
	return nil
}
