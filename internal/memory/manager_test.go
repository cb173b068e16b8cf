package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Adam-Huang/reflect/internal/embedding"
	"github.com/Adam-Huang/reflect/internal/model"
	"github.com/Adam-Huang/reflect/internal/store"
)

func newTestManager(t *testing.T, emb embedding.Embedder) (*Manager, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	m, err := NewManager(context.Background(), st, emb, zaptest.NewLogger(t))
	require.NoError(t, err)
	return m, st
}

func add(t *testing.T, m *Manager, p AddParams) *model.Memory {
	t.Helper()
	mem, err := m.AddMemory(context.Background(), p)
	require.NoError(t, err)
	return mem
}

func ids(memories []model.Memory) []string {
	out := make([]string, len(memories))
	for i, m := range memories {
		out[i] = m.ID
	}
	return out
}

func TestAddMemory(t *testing.T) {
	m, _ := newTestManager(t, nil)

	mem := add(t, m, AddParams{Text: "the cat sleeps on the mat", Labels: []string{"pets", "pets"}, Trigger: "cat"})
	assert.NotEmpty(t, mem.ID)
	assert.Equal(t, "the cat sleeps on the mat", mem.Summary, "summary defaults to text")
	assert.Equal(t, []string{"pets"}, mem.Labels)
	assert.Equal(t, "cat", mem.TriggerName())
	assert.False(t, mem.UpdatedAt.Before(mem.CreatedAt))
	assert.Nil(t, mem.Embedding)

	got, err := m.Get(mem.ID)
	require.NoError(t, err)
	assert.Equal(t, mem.ID, got.ID)
	assert.Len(t, m.Memories(), 1)
}

func TestAddMemory_Validation(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, err := m.AddMemory(ctx, AddParams{Text: "  "})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.AddMemory(ctx, AddParams{Text: "x", Labels: []string{"a,b"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, m.Memories())
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) (embedding.Vector, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) Dims() int { return 4 }

func TestAddMemory_EmbeddingFailureStoresWithoutVector(t *testing.T) {
	m, _ := newTestManager(t, failingEmbedder{})

	mem := add(t, m, AddParams{Text: "hello"})
	assert.Nil(t, mem.Embedding)
	assert.Len(t, m.Memories(), 1)
}

func TestSearchTrigger_AllMatchesNewestFirstUntruncated(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	var want []string
	for i := 0; i < 7; i++ {
		mem := add(t, m, AddParams{Text: "weekly review note", Trigger: "review"})
		want = append([]string{mem.ID}, want...)
	}
	add(t, m, AddParams{Text: "other", Trigger: "reviews"})

	got, err := m.SearchMemory(ctx, SearchParams{Query: "review", Mode: ModeTrigger, K: 2})
	require.NoError(t, err)
	assert.Equal(t, want, ids(got), "trigger search ignores K and lists each memory once")
}

func TestSearchKeyword(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	a := add(t, m, AddParams{Text: "Buy MILK", Summary: "groceries"})
	b := add(t, m, AddParams{Text: "call mom", Summary: "buy flowers"})
	add(t, m, AddParams{Text: "unrelated"})

	got, err := m.SearchMemory(ctx, SearchParams{Query: "buy", Mode: ModeKeyword})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, ids(got))

	got, err = m.SearchMemory(ctx, SearchParams{Query: "buy", Mode: ModeKeyword, ExactMatch: true})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(got))

	got, err = m.SearchMemory(ctx, SearchParams{Query: "buy", Mode: ModeKeyword, K: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids(got))
}

func TestSearchLabel(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	_, err := m.SearchMemory(ctx, SearchParams{Mode: ModeLabel})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	var xs []string
	for i := 0; i < 4; i++ {
		mem := add(t, m, AddParams{Text: "tagged", Labels: []string{"y", "x"}})
		xs = append([]string{mem.ID}, xs...)
	}
	add(t, m, AddParams{Text: "untagged", Labels: []string{"y"}})

	got, err := m.SearchMemory(ctx, SearchParams{Labels: []string{"x"}, Mode: ModeLabel, K: 3})
	require.NoError(t, err)
	assert.Equal(t, xs[:3], ids(got))
	for _, mem := range got {
		assert.True(t, mem.HasLabel("x"))
	}
}

func TestSearchMemory_UnknownMode(t *testing.T) {
	m, _ := newTestManager(t, nil)
	_, err := m.SearchMemory(context.Background(), SearchParams{Query: "q", Mode: "fuzzy"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSearchVector(t *testing.T) {
	ctx := context.Background()

	t.Run("no embedder", func(t *testing.T) {
		m, _ := newTestManager(t, nil)
		_, err := m.SearchMemory(ctx, SearchParams{Query: "q", Mode: ModeVector})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("nearest last", func(t *testing.T) {
		m, _ := newTestManager(t, embedding.NewHashEmbedder(32))
		add(t, m, AddParams{Text: "one", Summary: "alpha"})
		target := add(t, m, AddParams{Text: "two", Summary: "beta"})
		add(t, m, AddParams{Text: "three", Summary: "gamma"})

		got, err := m.SearchMemory(ctx, SearchParams{Query: "beta", Mode: ModeVector, K: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, target.ID, got[1].ID, "results are reversed, nearest comes last")

		got, err = m.SearchMemory(ctx, SearchParams{Query: "beta", Mode: ModeVector, K: 50})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
}

func TestDeleteMemory_RemovedFromEveryMode(t *testing.T) {
	m, _ := newTestManager(t, embedding.NewHashEmbedder(16))
	ctx := context.Background()

	keep := add(t, m, AddParams{Text: "keep me", Labels: []string{"l"}, Trigger: "t"})
	gone := add(t, m, AddParams{Text: "drop me", Labels: []string{"l"}, Trigger: "t"})

	require.NoError(t, m.DeleteMemory(ctx, gone.ID))
	require.NoError(t, m.CheckIndex())

	for _, p := range []SearchParams{
		{Query: "me", Mode: ModeKeyword},
		{Labels: []string{"l"}, Mode: ModeLabel},
		{Query: "t", Mode: ModeTrigger},
		{Query: "drop me", Mode: ModeVector},
	} {
		got, err := m.SearchMemory(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []string{keep.ID}, ids(got), p.Mode)
	}

	assert.ErrorIs(t, m.DeleteMemory(ctx, gone.ID), ErrNotFound)
	_, err := m.Get(gone.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMemory(t *testing.T) {
	m, st := newTestManager(t, embedding.NewHashEmbedder(8))
	ctx := context.Background()

	mem := add(t, m, AddParams{Text: "old text", Summary: "old summary", Labels: []string{"a"}, Trigger: "t"})

	newSummary := "new summary"
	newLabels := []string{"b", "c"}
	empty := ""
	updated, err := m.UpdateMemory(ctx, mem.ID, UpdateParams{Summary: &newSummary, Labels: &newLabels, Trigger: &empty})
	require.NoError(t, err)
	assert.Equal(t, "old text", updated.OriginalText)
	assert.Equal(t, "new summary", updated.Summary)
	assert.Equal(t, []string{"b", "c"}, updated.Labels)
	assert.Nil(t, updated.Trigger)
	assert.False(t, updated.UpdatedAt.Before(mem.UpdatedAt))
	assert.NotEqual(t, mem.Embedding, updated.Embedding)

	// Write-through: a fresh load sees the update.
	stored, err := st.Memories(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "new summary", stored[0].Summary)
	assert.Nil(t, stored[0].Trigger)

	_, err = m.UpdateMemory(ctx, "missing", UpdateParams{Summary: &newSummary})
	assert.ErrorIs(t, err, ErrNotFound)

	bad := []string{"x,y"}
	_, err = m.UpdateMemory(ctx, mem.ID, UpdateParams{Labels: &bad})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUpdateLabel_RenameCascades(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.AddLabel(ctx, "a", "first"))
	require.NoError(t, m.AddLabel(ctx, "z", "other"))
	one := add(t, m, AddParams{Text: "one", Labels: []string{"z", "a", "q"}})
	two := add(t, m, AddParams{Text: "two", Labels: []string{"a"}})
	add(t, m, AddParams{Text: "three", Labels: []string{"z"}})

	res, err := m.UpdateLabel(ctx, "a", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, "b", res.Name)
	assert.ElementsMatch(t, []string{one.ID, two.ID}, res.Affected)

	got, err := m.Get(one.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "b", "q"}, got.Labels, "rename keeps label position")

	byA, err := m.SearchMemory(ctx, SearchParams{Labels: []string{"a"}, Mode: ModeLabel})
	require.NoError(t, err)
	assert.Empty(t, byA)
	byB, err := m.SearchMemory(ctx, SearchParams{Labels: []string{"b"}, Mode: ModeLabel})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{one.ID, two.ID}, ids(byB))

	assert.Equal(t, []string{"b", "z"}, m.Labels())
	assert.Equal(t, "first", m.LabelInfos()[0].Description)
}

func TestLabelLifecycleErrors(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.AddLabel(ctx, "a", ""))
	require.NoError(t, m.AddLabel(ctx, "b", ""))

	assert.ErrorIs(t, m.AddLabel(ctx, "a", ""), ErrInvalidArgument)
	assert.ErrorIs(t, m.AddLabel(ctx, "with,comma", ""), ErrInvalidArgument)

	_, err := m.UpdateLabel(ctx, "a", "b", nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = m.UpdateLabel(ctx, "missing", "c", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.DeleteLabel(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	desc := "new description"
	res, err := m.UpdateLabel(ctx, "a", "", &desc)
	require.NoError(t, err)
	assert.Equal(t, "a", res.Name)
	assert.Equal(t, "new description", m.LabelInfos()[0].Description)
}

func TestDeleteLabel_Strips(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.AddLabel(ctx, "temp", ""))
	mem := add(t, m, AddParams{Text: "x", Labels: []string{"keep", "temp"}})

	res, err := m.DeleteLabel(ctx, "temp")
	require.NoError(t, err)
	assert.Equal(t, []string{mem.ID}, res.Affected)

	got, err := m.Get(mem.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep"}, got.Labels)
	assert.NotContains(t, m.Labels(), "temp")
}

func TestTriggerLifecycle(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	require.NoError(t, m.AddTrigger(ctx, "standup", "daily meeting"))
	mem := add(t, m, AddParams{Text: "notes", Trigger: "standup"})

	res, err := m.UpdateTrigger(ctx, "standup", "sync", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{mem.ID}, res.Affected)

	got, err := m.SearchMemory(ctx, SearchParams{Query: "sync", Mode: ModeTrigger})
	require.NoError(t, err)
	assert.Equal(t, []string{mem.ID}, ids(got))
	assert.Equal(t, []string{"sync"}, m.Triggers())

	res, err = m.DeleteTrigger(ctx, "sync")
	require.NoError(t, err)
	assert.Equal(t, []string{mem.ID}, res.Affected)

	cleared, err := m.Get(mem.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.Trigger)
	assert.Empty(t, m.Triggers())

	_, err = m.DeleteTrigger(ctx, "sync")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatchTriggers_LongestFirst(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	for _, name := range []string{"plan", "plan trip", "budget", "unused"} {
		require.NoError(t, m.AddTrigger(ctx, name, ""))
	}
	assert.Equal(t, []string{"plan trip", "budget", "plan"}, m.MatchTriggers("help me plan trip budget"))
	assert.Empty(t, m.MatchTriggers("nothing here"))
}

func TestReload_ConvergesWithStore(t *testing.T) {
	m, st := newTestManager(t, nil)
	ctx := context.Background()

	// A write behind the manager's back shows up after Reload.
	require.NoError(t, st.InsertMemory(ctx, &model.Memory{OriginalText: "direct", Summary: "direct", Labels: []string{}}))
	assert.Empty(t, m.Memories())

	require.NoError(t, m.Reload(ctx))
	assert.Len(t, m.Memories(), 1)
	require.NoError(t, m.CheckIndex())
}

// fixedEmbedder returns a preset vector per text.
type fixedEmbedder map[string][]float32

func (f fixedEmbedder) Embed(_ context.Context, text string) (embedding.Vector, error) {
	v, ok := f[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return v, nil
}

func (f fixedEmbedder) Dims() int { return 2 }

func TestSearchVector_EuclideanNotCosine(t *testing.T) {
	emb := fixedEmbedder{"long": {2, 0}, "near": {1, 0.3}, "query": {1, 0}}
	m, _ := newTestManager(t, emb)
	add(t, m, AddParams{Text: "long"})
	near := add(t, m, AddParams{Text: "near"})

	got, err := m.SearchMemory(context.Background(), SearchParams{Query: "query", Mode: ModeVector, K: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{near.ID}, ids(got))
}

func TestCascades_UnregisteredNames(t *testing.T) {
	m, _ := newTestManager(t, nil)
	ctx := context.Background()

	mem := add(t, m, AddParams{Text: "learned", Labels: []string{"x", model.ReflectionLabel}, Trigger: "tt"})

	res, err := m.UpdateLabel(ctx, model.ReflectionLabel, "learned", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{mem.ID}, res.Affected)
	got, err := m.Get(mem.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "learned"}, got.Labels)

	res, err = m.DeleteLabel(ctx, "learned")
	require.NoError(t, err)
	assert.Equal(t, []string{mem.ID}, res.Affected)

	res, err = m.DeleteTrigger(ctx, "tt")
	require.NoError(t, err)
	assert.Equal(t, []string{mem.ID}, res.Affected)

	got, err = m.Get(mem.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Labels)
	assert.Nil(t, got.Trigger)

	// Now nothing references them.
	_, err = m.DeleteLabel(ctx, "learned")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpdateTrigger(ctx, "tt", "other", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
