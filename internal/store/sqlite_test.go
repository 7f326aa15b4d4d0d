package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testItem(id, title string) *Item {
	return &Item{
		ID:         id,
		Title:      title,
		Content:    "content of " + title,
		SourceType: SourceTypeDocument,
	}
}

func TestSQLiteStore_SaveAndGetItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("i1", "First Note")
	item.Metadata = Metadata{"author": "me", "rating": float64(5)}
	item.Categories = []string{"work"}
	item.Tags = []string{"go", "sqlite"}
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.GetItem(ctx, "i1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "First Note", got.Title)
	assert.Equal(t, SourceTypeDocument, got.SourceType)
	assert.Equal(t, "me", got.Metadata["author"])
	assert.Equal(t, float64(5), got.Metadata["rating"])
	assert.Equal(t, []string{"work"}, got.Categories)
	assert.Equal(t, []string{"go", "sqlite"}, got.Tags)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSQLiteStore_SaveItemGeneratesID(t *testing.T) {
	s := newTestStore(t)
	item := testItem("", "Untitled")
	require.NoError(t, s.SaveItem(context.Background(), item))
	assert.NotEmpty(t, item.ID)
}

func TestSQLiteStore_GetMissingItemReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetItem(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_UpdateItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("i1", "Before")
	require.NoError(t, s.SaveItem(ctx, item))
	created := item.CreatedAt

	item.Title = "After"
	found, err := s.UpdateItem(ctx, item)
	require.NoError(t, err)
	assert.True(t, found)

	got, err := s.GetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, "After", got.Title)
	assert.Equal(t, created.Unix(), got.CreatedAt.Unix())
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
}

func TestSQLiteStore_UpdateMissingItem(t *testing.T) {
	s := newTestStore(t)
	found, err := s.UpdateItem(context.Background(), testItem("ghost", "x"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_DeleteItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("i1", "Doomed")))

	found, err := s.DeleteItem(ctx, "i1")
	require.NoError(t, err)
	assert.True(t, found)

	got, err := s.GetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Nil(t, got)

	found, err = s.DeleteItem(ctx, "i1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_DeleteItemCascadesChunksAndLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("i1", "Parent")
	item.Categories = []string{"c"}
	item.Tags = []string{"t"}
	require.NoError(t, s.SaveItem(ctx, item))
	require.NoError(t, s.SaveItem(ctx, testItem("i2", "Other")))

	require.NoError(t, s.SaveChunks(ctx, "i1", []*Chunk{
		{ChunkIndex: 0, Content: "part one", StartPosition: 0, EndPosition: 8},
		{ChunkIndex: 1, Content: "part two", StartPosition: 8, EndPosition: 16},
	}))
	require.NoError(t, s.AddRelationship(ctx, &Relationship{
		SourceID: "i1", TargetID: "i2", Type: "references",
	}))

	found, err := s.DeleteItem(ctx, "i1")
	require.NoError(t, err)
	require.True(t, found)

	chunks, err := s.GetChunksForItem(ctx, "i1")
	require.NoError(t, err)
	assert.Empty(t, chunks, "chunks should cascade")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
	assert.Equal(t, 0, stats.Relationships, "relationships should cascade")

	report, err := s.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestSQLiteStore_QueryItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		item := testItem(fmt.Sprintf("i%d", i), fmt.Sprintf("Note %d", i))
		if i%2 == 0 {
			item.Categories = []string{"even"}
		}
		if i < 2 {
			item.Tags = []string{"early"}
		}
		// Distinct timestamps for stable ordering
		item.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
		item.UpdatedAt = item.CreatedAt
		require.NoError(t, s.SaveItem(ctx, item))
	}

	all, err := s.QueryItems(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "i4", all[0].ID, "newest first")

	even, err := s.QueryItems(ctx, QueryOptions{Category: "even"})
	require.NoError(t, err)
	assert.Len(t, even, 3)

	early, err := s.QueryItems(ctx, QueryOptions{Tag: "early"})
	require.NoError(t, err)
	assert.Len(t, early, 2)

	both, err := s.QueryItems(ctx, QueryOptions{Category: "even", Tag: "early"})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "i0", both[0].ID)

	page, err := s.QueryItems(ctx, QueryOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "i3", page[0].ID)
	assert.Equal(t, "i2", page[1].ID)
}

func TestSQLiteStore_QueryItemsRejectsNegativePagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.QueryItems(ctx, QueryOptions{Limit: -1})
	require.Error(t, err)
	assert.Equal(t, knowerrors.ErrCodeInvalidPagination, knowerrors.GetCode(err))

	_, err = s.QueryItems(ctx, QueryOptions{Limit: 10, Offset: -3})
	require.Error(t, err)
	assert.Equal(t, knowerrors.ErrCodeInvalidPagination, knowerrors.GetCode(err))
}

func TestSQLiteStore_ForeignKeysOnFreshConnections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("i1", "Parent")
	require.NoError(t, s.SaveItem(ctx, item))
	require.NoError(t, s.SaveChunks(ctx, "i1", []*Chunk{
		{ChunkIndex: 0, Content: "body", StartPosition: 0, EndPosition: 4},
	}))

	// Retire the connection that existed at open time. Every statement
	// below runs on a connection dialed fresh from the DSN, which must
	// still enforce foreign keys.
	s.db.SetMaxIdleConns(0)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, item_id, chunk_index, content, start_position, end_position)
		 VALUES ('orphan', 'no-such-item', 0, 'x', 0, 1)`)
	require.Error(t, err, "orphan chunk insert should violate the foreign key")

	found, err := s.DeleteItem(ctx, "i1")
	require.NoError(t, err)
	require.True(t, found)

	chunks, err := s.GetChunksForItem(ctx, "i1")
	require.NoError(t, err)
	assert.Empty(t, chunks, "chunks should cascade on fresh connections")

	report, err := s.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestSQLiteStore_GetAllItemsEager(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testItem("a", "Alpha")
	a.Categories = []string{"work", "infra"}
	a.Tags = []string{"go"}
	require.NoError(t, s.SaveItem(ctx, a))

	b := testItem("b", "Beta")
	require.NoError(t, s.SaveItem(ctx, b))

	items, err := s.GetAllItemsEager(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byID := map[string]*Item{}
	for _, it := range items {
		byID[it.ID] = it
	}
	assert.ElementsMatch(t, []string{"work", "infra"}, byID["a"].Categories)
	assert.Equal(t, []string{"go"}, byID["a"].Tags)
	assert.Empty(t, byID["b"].Categories)
	assert.Empty(t, byID["b"].Tags)
}

func TestSQLiteStore_SaveChunksReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("i1", "Doc")))

	require.NoError(t, s.SaveChunks(ctx, "i1", []*Chunk{
		{ChunkIndex: 0, Content: "old a", StartPosition: 0, EndPosition: 5},
		{ChunkIndex: 1, Content: "old b", StartPosition: 5, EndPosition: 10},
		{ChunkIndex: 2, Content: "old c", StartPosition: 10, EndPosition: 15},
	}))

	require.NoError(t, s.SaveChunks(ctx, "i1", []*Chunk{
		{ChunkIndex: 0, Content: "new a", StartPosition: 0, EndPosition: 5},
	}))

	chunks, err := s.GetChunksForItem(ctx, "i1")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "new a", chunks[0].Content)
	assert.NotEmpty(t, chunks[0].ID, "chunk ids are generated")
}

func TestSQLiteStore_GetChunkByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("i1", "Doc")))
	chunk := &Chunk{ID: "ck1", ChunkIndex: 0, Content: "payload", Heading: "H", StartPosition: 0, EndPosition: 7}
	require.NoError(t, s.SaveChunks(ctx, "i1", []*Chunk{chunk}))

	got, err := s.GetChunkByID(ctx, "ck1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "payload", got.Content)
	assert.Equal(t, "H", got.Heading)
	assert.Equal(t, "i1", got.ItemID)

	missing, err := s.GetChunkByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_GetAdjacentChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("i1", "Doc")))
	var chunks []*Chunk
	for i := 0; i < 4; i++ {
		chunks = append(chunks, &Chunk{
			ChunkIndex: i, Content: fmt.Sprintf("chunk %d", i),
			StartPosition: i * 10, EndPosition: (i + 1) * 10,
		})
	}
	require.NoError(t, s.SaveChunks(ctx, "i1", chunks))

	adj, err := s.GetAdjacentChunks(ctx, "i1", 1)
	require.NoError(t, err)
	require.Len(t, adj, 2)
	assert.Equal(t, 0, adj[0].ChunkIndex)
	assert.Equal(t, 2, adj[1].ChunkIndex)

	// First chunk only has a right neighbor
	adj, err = s.GetAdjacentChunks(ctx, "i1", 0)
	require.NoError(t, err)
	require.Len(t, adj, 1)
	assert.Equal(t, 1, adj[0].ChunkIndex)

	// Last chunk only has a left neighbor
	adj, err = s.GetAdjacentChunks(ctx, "i1", 3)
	require.NoError(t, err)
	require.Len(t, adj, 1)
	assert.Equal(t, 2, adj[0].ChunkIndex)
}

func TestSQLiteStore_AllChunksBatches(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("i1", "Doc")))
	var chunks []*Chunk
	for i := 0; i < 7; i++ {
		chunks = append(chunks, &Chunk{
			ChunkIndex: i, Content: fmt.Sprintf("chunk %d", i),
			StartPosition: i, EndPosition: i + 1,
		})
	}
	require.NoError(t, s.SaveChunks(ctx, "i1", chunks))

	var batches []int
	var total int
	err := s.AllChunks(ctx, 3, func(batch []*Chunk) error {
		batches = append(batches, len(batch))
		total += len(batch)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, []int{3, 3, 1}, batches)
}

func TestSQLiteStore_CategoryAndTagLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("i1", "Doc")))

	require.NoError(t, s.AssignCategory(ctx, "i1", "projects"))
	require.NoError(t, s.AssignCategory(ctx, "i1", "projects"), "reassign is a no-op")
	require.NoError(t, s.AssignTag(ctx, "i1", "urgent"))

	got, err := s.GetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, []string{"projects"}, got.Categories)
	assert.Equal(t, []string{"urgent"}, got.Tags)

	require.NoError(t, s.RemoveCategory(ctx, "i1", "projects"))
	require.NoError(t, s.RemoveTag(ctx, "i1", "urgent"))

	got, err = s.GetItem(ctx, "i1")
	require.NoError(t, err)
	assert.Empty(t, got.Categories)
	assert.Empty(t, got.Tags)

	// Category and tag rows survive unlinking
	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Categories)
	assert.Equal(t, 1, stats.Tags)
}

func TestSQLiteStore_RelationshipUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("a", "A")))
	require.NoError(t, s.SaveItem(ctx, testItem("b", "B")))

	rel := &Relationship{SourceID: "a", TargetID: "b", Type: "references"}
	require.NoError(t, s.AddRelationship(ctx, rel))
	require.NoError(t, s.AddRelationship(ctx, &Relationship{SourceID: "a", TargetID: "b", Type: "references"}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Relationships, "duplicate edge ignored")

	found, err := s.RemoveRelationship(ctx, "a", "b", "references")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.RemoveRelationship(ctx, "a", "b", "references")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_GetRelatedItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.SaveItem(ctx, testItem(id, "Item "+id)))
	}
	// a -> b -> c, d isolated
	require.NoError(t, s.AddRelationship(ctx, &Relationship{SourceID: "a", TargetID: "b", Type: "ref"}))
	require.NoError(t, s.AddRelationship(ctx, &Relationship{SourceID: "b", TargetID: "c", Type: "ref"}))

	depth1, err := s.GetRelatedItems(ctx, "a", 1)
	require.NoError(t, err)
	require.Len(t, depth1, 1)
	assert.Equal(t, "b", depth1[0].ID)

	depth2, err := s.GetRelatedItems(ctx, "a", 2)
	require.NoError(t, err)
	require.Len(t, depth2, 2)
	assert.Equal(t, "b", depth2[0].ID, "closest first")
	assert.Equal(t, "c", depth2[1].ID)

	// Incoming edges count as related too
	related, err := s.GetRelatedItems(ctx, "b", 1)
	require.NoError(t, err)
	require.Len(t, related, 2)
}

func TestSQLiteStore_Stats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("i1", "Doc")
	item.Categories = []string{"c1"}
	item.Tags = []string{"t1", "t2"}
	require.NoError(t, s.SaveItem(ctx, item))
	require.NoError(t, s.SaveChunks(ctx, "i1", []*Chunk{
		{ChunkIndex: 0, Content: "x", StartPosition: 0, EndPosition: 1},
	}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Items)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Categories)
	assert.Equal(t, 2, stats.Tags)
	assert.Equal(t, 0, stats.Relationships)
}

func TestSQLiteStore_CloseIsIdempotent(t *testing.T) {
	s, err := NewSQLiteStore("")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.GetItem(context.Background(), "x")
	assert.Error(t, err)
}
