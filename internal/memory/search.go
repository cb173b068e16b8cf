package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/model"
)

// Search modes.
const (
	ModeVector  = "vector"
	ModeKeyword = "keyword"
	ModeLabel   = "label"
	ModeTrigger = "trigger"
)

// DefaultK is the result limit when SearchParams.K is unset.
const DefaultK = 5

// SearchParams holds parameters for SearchMemory.
type SearchParams struct {
	Query      string
	Labels     []string
	K          int
	Mode       string
	ExactMatch bool // keyword mode: case-sensitive match
}

// SearchMemory runs one of the four search modes over the cache.
//
// Results come newest first, except vector mode which returns the k nearest
// ordered from farthest to nearest. Trigger mode returns every match regardless of K.
func (m *Manager) SearchMemory(ctx context.Context, p SearchParams) ([]model.Memory, error) {
	k := p.K
	if k <= 0 {
		k = DefaultK
	}

	var (
		results []model.Memory
		err     error
	)
	switch p.Mode {
	case ModeVector:
		results, err = m.searchVector(ctx, p.Query, k)
	case ModeKeyword:
		results = m.searchKeyword(p.Query, k, p.ExactMatch)
	case ModeLabel:
		if len(p.Labels) == 0 {
			return nil, fmt.Errorf("labels are required for label search: %w", ErrInvalidArgument)
		}
		results = m.searchLabel(p.Labels, k)
	case ModeTrigger:
		results = m.searchTrigger(p.Query)
	default:
		return nil, fmt.Errorf("search mode %q: %w", p.Mode, ErrInvalidArgument)
	}
	if err != nil {
		return nil, err
	}

	m.log.Debug("memory search",
		zap.String("mode", p.Mode),
		zap.String("query", p.Query),
		zap.Int("k", k),
		zap.Int("results", len(results)))
	return results, nil
}

func (m *Manager) searchVector(ctx context.Context, query string, k int) ([]model.Memory, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("vector search needs an embedding provider: %w", ErrInvalidArgument)
	}
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	positions, err := m.index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	results := make([]model.Memory, 0, len(positions))
	for _, pos := range positions {
		results = append(results, m.cache[pos].Clone())
	}
	slices.Reverse(results)
	return results, nil
}

func (m *Manager) searchKeyword(query string, k int, exact bool) []model.Memory {
	if !exact {
		query = strings.ToLower(query)
	}
	return m.newestFirst(k, func(mem *model.Memory) bool {
		if exact {
			return strings.Contains(mem.OriginalText, query) || strings.Contains(mem.Summary, query)
		}
		return strings.Contains(strings.ToLower(mem.OriginalText), query) ||
			strings.Contains(strings.ToLower(mem.Summary), query)
	})
}

func (m *Manager) searchLabel(labels []string, k int) []model.Memory {
	return m.newestFirst(k, func(mem *model.Memory) bool {
		return slices.ContainsFunc(labels, mem.HasLabel)
	})
}

func (m *Manager) searchTrigger(query string) []model.Memory {
	return m.newestFirst(-1, func(mem *model.Memory) bool {
		return mem.Trigger != nil && *mem.Trigger == query
	})
}

// newestFirst walks the cache backwards collecting up to limit matches. A negative limit means all.
func (m *Manager) newestFirst(limit int, match func(*model.Memory) bool) []model.Memory {
	var out []model.Memory
	for i := len(m.cache) - 1; i >= 0; i-- {
		if limit >= 0 && len(out) >= limit {
			break
		}
		if match(&m.cache[i]) {
			out = append(out, m.cache[i].Clone())
		}
	}
	return out
}
