package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines_PacksWholeLines(t *testing.T) {
	lines := []string{"aaaa", "bbbb", "cccc", "dd"}
	got := Lines(lines, 10)
	assert.Equal(t, []Chunk{
		{Text: "aaaa\nbbbb", StartLine: 1, EndLine: 2},
		{Text: "cccc\ndd", StartLine: 3, EndLine: 4},
	}, got)
}

func TestLines_CutsOversizedLine(t *testing.T) {
	got := Lines([]string{"ab", strings.Repeat("x", 25), "cd"}, 10)
	require.Len(t, got, 5)
	assert.Equal(t, Chunk{Text: "ab", StartLine: 1, EndLine: 1}, got[0])
	for _, c := range got[1:4] {
		assert.Equal(t, 2, c.StartLine)
		assert.LessOrEqual(t, len(c.Text), 10)
	}
	assert.Equal(t, Chunk{Text: "cd", StartLine: 3, EndLine: 3}, got[4])
}

func TestLines_Empty(t *testing.T) {
	assert.Nil(t, Lines(nil, 10))
}

func TestMarkdown_ShortIsOneChunk(t *testing.T) {
	got := Markdown("  # Note\nbody\n", 100)
	assert.Equal(t, []Chunk{{Text: "# Note\nbody", StartLine: 1, EndLine: 2}}, got)
	assert.Nil(t, Markdown("   ", 100))
}

func TestMarkdown_SplitsOnHeadings(t *testing.T) {
	section := strings.Repeat("filler text ", 5) // 60 bytes
	text := "# One\n" + section + "\n# Two\n" + section + "\n# Three\n" + section

	got := Markdown(text, 100)
	require.Len(t, got, 3)
	assert.True(t, strings.HasPrefix(got[0].Text, "# One"))
	assert.Equal(t, 1, got[0].StartLine)
	assert.Equal(t, 2, got[0].EndLine)
	assert.True(t, strings.HasPrefix(got[1].Text, "# Two"))
	assert.Equal(t, 3, got[1].StartLine)
	assert.Equal(t, 5, got[2].StartLine)
}

func TestMarkdown_MergesSmallBlocks(t *testing.T) {
	text := "one\n\n\ntwo\n\n\nthree\n\n\n" + strings.Repeat("z", 20)
	got := Markdown(text, 30)
	require.Len(t, got, 2)
	assert.Equal(t, "one\n\ntwo\n\nthree", got[0].Text)
	assert.Equal(t, 1, got[0].StartLine)
	assert.Equal(t, 7, got[0].EndLine)
	assert.Equal(t, 10, got[1].StartLine)
}

func TestMarkdown_RespectsMaxSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString(strings.Repeat("w", 30) + "\n")
	}
	for _, c := range Markdown(sb.String(), 200) {
		assert.LessOrEqual(t, len(c.Text), 200)
	}
}
