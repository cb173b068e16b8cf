package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adam-Huang/reflect/internal/model"
)

func TestExportImport_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	require.NoError(t, src.InsertLabel(ctx, model.Label{Name: "work"}))
	require.NoError(t, src.InsertTrigger(ctx, model.Trigger{Name: "standup"}))
	insert(t, src, model.Memory{OriginalText: "a", Summary: "a", Labels: []string{"work"}, Trigger: model.StringPtr("standup")})
	insert(t, src, model.Memory{OriginalText: "b", Summary: "b"})

	dump, err := ExportAll(ctx, src)
	require.NoError(t, err)
	require.Len(t, dump.Memories, 2)

	dst := newTestStore(t)
	res, err := Import(ctx, dst, dump)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Labels: 1, Triggers: 1, Memories: 2}, res)

	res, err = Import(ctx, dst, dump)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Skipped: 4}, res)

	got, err := dst.Memories(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, dump.Memories[0].ID, got[0].ID)
	assert.Equal(t, "standup", got[0].TriggerName())
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestReadLegacyDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "memory_state.json", `{"memory_data": [
		{"original_text": "likes tea", "summary": "likes tea", "created_at": "2024-03-01T10:00:00.123456",
		 "updated_at": "2024-03-02T10:00:00", "labels": ["food", ""], "trigger": "tea", "embedding": [0.5, 1]},
		{"original_text": "no trigger", "summary": "no trigger", "created_at": "2024-03-01T11:00:00",
		 "updated_at": "2024-03-01T11:00:00", "labels": [], "trigger": ""}
	]}`)
	writeFile(t, dir, "labels.json", `["food", ""]`)

	d, err := ReadLegacyDir(dir)
	require.NoError(t, err)

	assert.Equal(t, []model.Label{{Name: "food", Description: "Label for categorizing memories as 'food'"}}, d.Labels)
	assert.Empty(t, d.Triggers, "missing triggers.json is empty")

	require.Len(t, d.Memories, 2)
	first := d.Memories[0]
	assert.Equal(t, []string{"food"}, first.Labels)
	assert.Equal(t, "tea", first.TriggerName())
	assert.Equal(t, []float32{0.5, 1}, first.Embedding)
	want := time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.Local)
	assert.True(t, want.Equal(first.CreatedAt), "naive times are local")
	assert.Nil(t, d.Memories[1].Trigger)
}

func TestReadLegacyDir_Errors(t *testing.T) {
	_, err := ReadLegacyDir(t.TempDir())
	assert.Error(t, err, "memory_state.json is required")

	dir := t.TempDir()
	writeFile(t, dir, "memory_state.json", `{"memory_data": [{"created_at": "yesterday"}]}`)
	_, err = ReadLegacyDir(dir)
	assert.ErrorContains(t, err, "created_at")
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "stats.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.InsertLabel(ctx, model.Label{Name: "work"}))
	require.NoError(t, s.InsertLabel(ctx, model.Label{Name: "home"}))
	require.NoError(t, s.InsertTrigger(ctx, model.Trigger{Name: "t"}))
	insert(t, s, model.Memory{OriginalText: "a", Summary: "a", Labels: []string{"work"}, Embedding: []float32{1}})
	insert(t, s, model.Memory{OriginalText: "b", Summary: "b", Labels: []string{"work", "home"}, Trigger: model.StringPtr("t")})
	insert(t, s, model.Memory{OriginalText: "c", Summary: "c"})

	st, err := s.Stats(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalMemories)
	assert.Equal(t, 1, st.EmbeddedMemories)
	assert.Equal(t, 1, st.TriggeredMemories)
	assert.Equal(t, 1, st.Triggers)
	assert.Equal(t, []LabelStats{{Label: "work", Count: 2}, {Label: "home", Count: 1}}, st.Labels)
}
