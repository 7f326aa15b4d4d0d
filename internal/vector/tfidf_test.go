package vector

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowmcp/knowmcp/internal/store"
)

func chunk(id, itemID string, index int, content string) *store.Chunk {
	return &store.Chunk{
		ID:         id,
		ItemID:     itemID,
		ChunkIndex: index,
		Content:    content,
	}
}

func TestIndex_UnfittedReturnsNoHits(t *testing.T) {
	x := NewIndex()
	assert.False(t, x.Fitted())
	assert.Nil(t, x.SearchChunks("anything", 10, 0.05))
}

func TestIndex_FitAndSearch(t *testing.T) {
	x := NewIndex()
	err := x.FitChunks([]*store.Chunk{
		chunk("c1", "i1", 0, "postgres replication and failover setup"),
		chunk("c2", "i1", 1, "nightly backup rotation for postgres"),
		chunk("c3", "i2", 0, "sourdough bread starter feeding schedule"),
	})
	require.NoError(t, err)
	require.True(t, x.Fitted())
	assert.Equal(t, 3, x.Size())

	hits := x.SearchChunks("postgres backup", 10, 0.05)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c2", hits[0].ChunkID, "chunk with both terms ranks first")
	for _, h := range hits {
		assert.NotEqual(t, "c3", h.ChunkID, "unrelated chunk should miss the cutoff")
		assert.GreaterOrEqual(t, h.Similarity, 0.05)
	}
}

func TestIndex_SearchOrderIsDeterministic(t *testing.T) {
	x := NewIndex()
	// Identical content yields identical similarity; ties break by id
	require.NoError(t, x.FitChunks([]*store.Chunk{
		chunk("b", "i1", 0, "identical words here"),
		chunk("a", "i2", 0, "identical words here"),
		chunk("c", "i3", 0, "identical words here"),
	}))

	hits := x.SearchChunks("identical words", 10, 0.05)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].ChunkID)
	assert.Equal(t, "b", hits[1].ChunkID)
	assert.Equal(t, "c", hits[2].ChunkID)
}

func TestIndex_TopKLimit(t *testing.T) {
	x := NewIndex()
	var chunks []*store.Chunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("c%02d", i), "i1", i, "shared topic text"))
	}
	require.NoError(t, x.FitChunks(chunks))

	hits := x.SearchChunks("shared topic", 5, 0.05)
	assert.Len(t, hits, 5)
}

func TestIndex_MinSimilarityCutoff(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.FitChunks([]*store.Chunk{
		chunk("c1", "i1", 0, "kubernetes ingress controller"),
		chunk("c2", "i2", 0, "completely unrelated gardening notes"),
	}))

	hits := x.SearchChunks("kubernetes ingress", 10, 0.9)
	for _, h := range hits {
		assert.GreaterOrEqual(t, h.Similarity, 0.9)
	}
}

func TestIndex_QueryOutsideVocabulary(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.FitChunks([]*store.Chunk{
		chunk("c1", "i1", 0, "alpha beta gamma"),
	}))

	assert.Nil(t, x.SearchChunks("zzzz qqqq", 10, 0.05))
}

func TestIndex_UpdateChunksForItem(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.FitChunks([]*store.Chunk{
		chunk("c1", "i1", 0, "old content about trains"),
		chunk("c2", "i2", 0, "stable content about boats"),
	}))

	require.NoError(t, x.UpdateChunksForItem("i1", []*store.Chunk{
		chunk("c3", "i1", 0, "new content about planes"),
	}))
	assert.Equal(t, 2, x.Size())

	hits := x.SearchChunks("trains", 10, 0.05)
	assert.Empty(t, hits, "replaced chunk no longer matches")

	hits = x.SearchChunks("planes", 10, 0.05)
	require.Len(t, hits, 1)
	assert.Equal(t, "c3", hits[0].ChunkID)

	hits = x.SearchChunks("boats", 10, 0.05)
	require.Len(t, hits, 1)
	assert.Equal(t, "c2", hits[0].ChunkID, "other item's chunks survive the update")
}

func TestIndex_RemoveChunksForItem(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.FitChunks([]*store.Chunk{
		chunk("c1", "i1", 0, "doomed chunk"),
		chunk("c2", "i2", 0, "surviving chunk"),
	}))

	require.NoError(t, x.RemoveChunksForItem("i1"))
	assert.Equal(t, 1, x.Size())
	assert.Empty(t, x.SearchChunks("doomed", 10, 0.05))
}

func TestIndex_RemoveLastItemUnfits(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.FitChunks([]*store.Chunk{
		chunk("c1", "i1", 0, "only chunk"),
	}))
	require.NoError(t, x.RemoveChunksForItem("i1"))
	assert.False(t, x.Fitted())
	assert.Nil(t, x.SearchChunks("only", 10, 0.05))
}

func TestIndex_HeadingContributesToMatch(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.FitChunks([]*store.Chunk{
		{ID: "c1", ItemID: "i1", ChunkIndex: 0, Heading: "Deployment Checklist", Content: "run the steps in order"},
		{ID: "c2", ItemID: "i2", ChunkIndex: 0, Heading: "", Content: "grocery list for the week"},
	}))

	hits := x.SearchChunks("deployment", 10, 0.05)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Equal(t, "Deployment Checklist", hits[0].Heading)
}

func TestIndex_FitEmptyCorpus(t *testing.T) {
	x := NewIndex()
	require.NoError(t, x.FitChunks(nil))
	assert.False(t, x.Fitted())
	assert.Equal(t, 0, x.Size())
}
