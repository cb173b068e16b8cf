// Package memory is the in-process cache and query façade over the record store.
//
// Every mutation writes through to the store before returning. The manager assumes a
// single writer; callers serialise access.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/embedding"
	"github.com/Adam-Huang/reflect/internal/model"
	"github.com/Adam-Huang/reflect/internal/store"
	"github.com/Adam-Huang/reflect/internal/vectorindex"
)

var (
	// ErrNotFound is returned for unknown memory ids, labels and triggers.
	ErrNotFound = store.ErrNotFound
	// ErrInvalidArgument is returned for bad search modes, missing labels and unrepresentable names.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Manager caches memories, labels and triggers and keeps a vector index aligned with the cache.
type Manager struct {
	store    store.Store
	embedder embedding.Embedder
	index    *vectorindex.Index
	log      *zap.Logger

	cache    []model.Memory
	labels   []model.Label
	triggers []model.Trigger
}

// NewManager loads the cache from st. embedder may be nil, which disables vector search.
func NewManager(ctx context.Context, st store.Store, embedder embedding.Embedder, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx, err := vectorindex.New()
	if err != nil {
		return nil, err
	}
	m := &Manager{store: st, embedder: embedder, index: idx, log: logger}
	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Reload rehydrates the cache from the store and rebuilds the vector index.
func (m *Manager) Reload(ctx context.Context) error {
	memories, err := m.store.Memories(ctx)
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}
	labels, err := m.store.Labels(ctx)
	if err != nil {
		return fmt.Errorf("load labels: %w", err)
	}
	triggers, err := m.store.Triggers(ctx)
	if err != nil {
		return fmt.Errorf("load triggers: %w", err)
	}
	if err := m.index.Rebuild(ctx, memories); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	m.cache = memories
	m.labels = labels
	m.triggers = triggers
	m.log.Debug("memory cache loaded",
		zap.Int("memories", len(memories)),
		zap.Int("labels", len(labels)),
		zap.Int("triggers", len(triggers)),
		zap.Int("indexed", m.index.Searchable()))
	return nil
}

// AddParams holds parameters for AddMemory.
type AddParams struct {
	Text     string
	Summary  string
	Labels   []string
	Trigger  string
	Metadata map[string]any
}

// AddMemory stores a new memory and reloads the cache.
func (m *Manager) AddMemory(ctx context.Context, p AddParams) (*model.Memory, error) {
	if strings.TrimSpace(p.Text) == "" {
		return nil, fmt.Errorf("memory text is empty: %w", ErrInvalidArgument)
	}
	if err := checkLabels(p.Labels); err != nil {
		return nil, err
	}
	summary := p.Summary
	if summary == "" {
		summary = p.Text
	}

	mem := &model.Memory{
		OriginalText: p.Text,
		Summary:      summary,
		Labels:       dedupe(p.Labels),
		Trigger:      model.StringPtr(p.Trigger),
		Metadata:     p.Metadata,
		Embedding:    m.embed(ctx, summary),
	}
	if err := m.store.InsertMemory(ctx, mem); err != nil {
		return nil, err
	}
	m.log.Info("memory added", zap.String("id", mem.ID), zap.Strings("labels", mem.Labels), zap.String("trigger", mem.TriggerName()))

	if err := m.Reload(ctx); err != nil {
		return nil, err
	}
	return mem, nil
}

// UpdateParams holds a partial update. Nil fields are left unchanged.
// An empty Trigger clears it.
type UpdateParams struct {
	Text    *string
	Summary *string
	Labels  *[]string
	Trigger *string
}

// UpdateMemory applies a partial update to the memory with the given id.
func (m *Manager) UpdateMemory(ctx context.Context, id string, p UpdateParams) (*model.Memory, error) {
	pos := m.position(id)
	if pos < 0 {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if p.Labels != nil {
		if err := checkLabels(*p.Labels); err != nil {
			return nil, err
		}
	}

	mem := m.cache[pos].Clone()
	reembed := false
	if p.Text != nil && *p.Text != "" {
		mem.OriginalText = *p.Text
	}
	if p.Summary != nil && *p.Summary != "" && *p.Summary != mem.Summary {
		mem.Summary = *p.Summary
		reembed = true
	}
	if p.Labels != nil {
		mem.Labels = dedupe(*p.Labels)
	}
	if p.Trigger != nil {
		mem.Trigger = model.StringPtr(*p.Trigger)
	}
	if reembed {
		mem.Embedding = m.embed(ctx, mem.Summary)
	}
	mem.UpdatedAt = time.Now().UTC()
	if mem.UpdatedAt.Before(mem.CreatedAt) {
		mem.UpdatedAt = mem.CreatedAt
	}

	if err := m.store.UpdateMemory(ctx, &mem); err != nil {
		return nil, err
	}
	m.cache[pos] = mem
	if reembed {
		if err := m.index.Rebuild(ctx, m.cache); err != nil {
			return nil, fmt.Errorf("rebuild index: %w", err)
		}
	}
	m.log.Info("memory updated", zap.String("id", id))

	out := mem.Clone()
	return &out, nil
}

// DeleteMemory removes a memory from the store, the cache and the vector index.
func (m *Manager) DeleteMemory(ctx context.Context, id string) error {
	pos := m.position(id)
	if pos < 0 {
		return fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err := m.store.DeleteMemory(ctx, id); err != nil {
		return err
	}
	m.cache = slices.Delete(m.cache, pos, pos+1)
	if err := m.index.Remove(ctx, pos); err != nil {
		m.log.Warn("vector index out of step, rebuilding", zap.Error(err))
		if err := m.index.Rebuild(ctx, m.cache); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}
	m.log.Info("memory deleted", zap.String("id", id))
	return nil
}

// Get returns a copy of the memory with the given id.
func (m *Manager) Get(id string) (model.Memory, error) {
	pos := m.position(id)
	if pos < 0 {
		return model.Memory{}, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return m.cache[pos].Clone(), nil
}

// Memories returns a copy of every cached memory in storage order.
func (m *Manager) Memories() []model.Memory {
	out := make([]model.Memory, len(m.cache))
	for i := range m.cache {
		out[i] = m.cache[i].Clone()
	}
	return out
}

// Labels returns the sorted global label names.
func (m *Manager) Labels() []string {
	names := make([]string, len(m.labels))
	for i, l := range m.labels {
		names[i] = l.Name
	}
	slices.Sort(names)
	return names
}

// Triggers returns the sorted global trigger names.
func (m *Manager) Triggers() []string {
	names := make([]string, len(m.triggers))
	for i, t := range m.triggers {
		names[i] = t.Name
	}
	slices.Sort(names)
	return names
}

// LabelInfos returns labels with descriptions, in creation order.
func (m *Manager) LabelInfos() []model.Label { return slices.Clone(m.labels) }

// TriggerInfos returns triggers with descriptions, in creation order.
func (m *Manager) TriggerInfos() []model.Trigger { return slices.Clone(m.triggers) }

// MatchTriggers returns the known triggers that occur in text, longest first.
func (m *Manager) MatchTriggers(text string) []string {
	var found []string
	for _, t := range m.triggers {
		if t.Name != "" && strings.Contains(text, t.Name) {
			found = append(found, t.Name)
		}
	}
	slices.SortFunc(found, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return found
}

// CheckIndex verifies the vector index still mirrors the cache.
func (m *Manager) CheckIndex() error {
	return m.index.CheckAligned(m.cache)
}

func (m *Manager) position(id string) int {
	return slices.IndexFunc(m.cache, func(mem model.Memory) bool { return mem.ID == id })
}

// embed returns nil when no embedder is configured or the provider fails.
func (m *Manager) embed(ctx context.Context, text string) []float32 {
	if m.embedder == nil {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		m.log.Warn("embedding failed, storing without vector", zap.Error(err))
		return nil
	}
	return vec
}

func checkLabels(labels []string) error {
	for _, l := range labels {
		if err := checkName("label", l); err != nil {
			return err
		}
	}
	return nil
}

func checkName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is empty: %w", kind, ErrInvalidArgument)
	}
	if strings.Contains(name, ",") {
		return fmt.Errorf("%s %q contains a comma: %w", kind, name, ErrInvalidArgument)
	}
	return nil
}

func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out
}
