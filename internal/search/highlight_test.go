package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowmcp/knowmcp/internal/store"
)

func TestBuildHighlights_TitleWins(t *testing.T) {
	item := &store.Item{
		Title:   "Redis Persistence",
		Content: "notes about redis snapshots and append-only files",
	}
	out := buildHighlights("redis", item, nil)
	require.Len(t, out, 1)
	assert.Equal(t, "Redis Persistence", out[0])
}

func TestBuildHighlights_FallsBackToContent(t *testing.T) {
	item := &store.Item{
		Title: "Untitled",
		Content: strings.Repeat("padding words here. ", 20) +
			"the keyword appears deep inside the body. " +
			strings.Repeat("more padding. ", 20),
	}
	out := buildHighlights("keyword", item, nil)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "keyword")
	assert.LessOrEqual(t, len(out[0]), 2*highlightRadius+len("keyword"))
}

func TestBuildHighlights_PrefersMatchedChunks(t *testing.T) {
	item := &store.Item{
		Title:   "Untitled",
		Content: "the body also mentions caching somewhere else entirely",
	}
	matched := []*ChunkResult{{Content: "chunk text about caching layers"}}
	out := buildHighlights("caching", item, matched)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "chunk text")
}

func TestBuildHighlights_MultipleTokensDeduplicated(t *testing.T) {
	item := &store.Item{
		Title:   "Kafka Streams",
		Content: "kafka streams processing notes",
	}
	out := buildHighlights("kafka streams", item, nil)
	// Both tokens resolve to the same title snippet; only one survives
	require.Len(t, out, 1)
	assert.Equal(t, "Kafka Streams", out[0])
}

func TestBuildHighlights_CapsAtThree(t *testing.T) {
	item := &store.Item{
		Title: "alpha " + strings.Repeat("x", 200) +
			" bravo " + strings.Repeat("y", 200) +
			" charlie " + strings.Repeat("z", 200) +
			" delta " + strings.Repeat("w", 200) +
			" echo",
	}
	out := buildHighlights("alpha bravo charlie delta echo", item, nil)
	assert.Len(t, out, maxHighlights)
}

func TestBuildHighlights_NoMatch(t *testing.T) {
	item := &store.Item{Title: "Unrelated", Content: "nothing relevant"}
	assert.Empty(t, buildHighlights("quasar", item, nil))
}

func TestSnippetAround_TrimsToWordBoundaries(t *testing.T) {
	src := strings.Repeat("leading words ", 30) + "TARGET phrase here " +
		strings.Repeat("trailing words ", 30)
	snippet := snippetAround(src, "target")
	require.NotEmpty(t, snippet)
	assert.Contains(t, snippet, "TARGET")
	assert.False(t, strings.HasPrefix(snippet, " "))
	assert.False(t, strings.HasSuffix(snippet, " "))
}

func TestSnippetAround_AbsentToken(t *testing.T) {
	assert.Empty(t, snippetAround("some text", "missing"))
}
