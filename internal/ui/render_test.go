package ui

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
)

func newTestRenderer() (*Renderer, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewRenderer(Config{Output: &buf, NoColor: true}), &buf
}

func sampleResponse() *search.Response {
	return &search.Response{
		Query: "kafka",
		Total: 1,
		Results: []*search.Result{{
			Item: search.ItemSummary{
				ID:         "i1",
				Title:      "Kafka Notes",
				SourceType: store.SourceTypeDocument,
				Categories: []string{"infra"},
				Tags:       []string{"queues"},
			},
			RelevanceScore: 0.87,
			MatchedChunks: []*search.ChunkResult{
				{ChunkIndex: 2, Heading: "Partitions", Content: "kafka partitions spread load"},
				{ChunkIndex: -1, Content: "a synthetic snippet"},
			},
			Highlights: []string{"kafka partitions spread"},
		}},
	}
}

func TestRenderer_SearchResponse(t *testing.T) {
	r, buf := newTestRenderer()
	r.SearchResponse(sampleResponse())

	out := buf.String()
	assert.Contains(t, out, "Kafka Notes")
	assert.Contains(t, out, "(0.87)")
	assert.Contains(t, out, "[2] Partitions")
	assert.Contains(t, out, "[snippet]")
	assert.Contains(t, out, "infra")
	assert.Contains(t, out, "#queues")
	assert.Contains(t, out, "> kafka partitions spread")
}

func TestRenderer_SearchResponseEmpty(t *testing.T) {
	r, buf := newTestRenderer()
	r.SearchResponse(&search.Response{Query: "nothing"})
	assert.Contains(t, buf.String(), `No results for "nothing"`)
}

func TestRenderer_SearchResponseGrouped(t *testing.T) {
	resp := sampleResponse()
	resp.GroupedByCategory = map[string][]*search.Result{
		"infra": resp.Results,
	}
	resp.CategoryOrder = []string{"infra"}

	r, buf := newTestRenderer()
	r.SearchResponse(resp)

	out := buf.String()
	assert.Contains(t, out, "infra\n")
	assert.Contains(t, out, "Kafka Notes")
}

func TestRenderer_Item(t *testing.T) {
	r, buf := newTestRenderer()
	item := &store.Item{
		ID:         "i1",
		Title:      "Runbook",
		Content:    "step one, step two",
		SourceType: store.SourceTypeDocument,
		SourcePath: "/docs/runbook.md",
		Categories: []string{"ops"},
		UpdatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	chunks := []*store.Chunk{
		{ChunkIndex: 0, Heading: "Intro", StartPosition: 0, EndPosition: 10},
		{ChunkIndex: 1, StartPosition: 10, EndPosition: 18},
	}
	r.Item(item, chunks)

	out := buf.String()
	assert.Contains(t, out, "Runbook")
	assert.Contains(t, out, "/docs/runbook.md")
	assert.Contains(t, out, "2 chunk(s)")
	assert.Contains(t, out, "[0] Intro")
	assert.Contains(t, out, "(no heading)")
}

func TestRenderer_Stats(t *testing.T) {
	r, buf := newTestRenderer()
	r.Stats(&store.StoreStats{Items: 3, Chunks: 12, Categories: 2},
		search.EngineStats{IndexedChunks: 12, VectorChunks: 12, ChunkIndexReady: true})

	out := buf.String()
	assert.Contains(t, out, "items:         3")
	assert.Contains(t, out, "inverted chunks: 12")
	assert.Contains(t, out, "chunk search:    ready")
	assert.Contains(t, out, "item fallback:   empty")
}

func TestRenderer_Integrity(t *testing.T) {
	r, buf := newTestRenderer()
	r.Integrity(&store.IntegrityReport{})
	assert.Contains(t, buf.String(), "clean")

	r2, buf2 := newTestRenderer()
	r2.Integrity(&store.IntegrityReport{OrphanedChunks: 2})
	assert.Contains(t, buf2.String(), "issues found")
	assert.Contains(t, buf2.String(), "orphaned chunks:         2")
}

func TestPreview_TruncatesAndFlattens(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "word\nmore  "
	}
	out := preview(long, 80)
	assert.LessOrEqual(t, len(out), 83)
	assert.NotContains(t, out, "\n")
	assert.Contains(t, out, "...")
}

func TestPreview_ShortUnchanged(t *testing.T) {
	assert.Equal(t, "short text", preview("short  text", 50))
}

func TestRenderer_ItemList(t *testing.T) {
	r, buf := newTestRenderer()
	r.ItemList([]*store.Item{
		{ID: "i1", Title: "First", SourceType: store.SourceTypeDocument,
			UpdatedAt: time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)},
		{ID: "i2", Title: "Second", SourceType: store.SourceTypeCode,
			UpdatedAt: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)},
	})

	out := buf.String()
	assert.Contains(t, out, "i1  First (document, 2026-03-04)")
	assert.Contains(t, out, "i2  Second (code, 2026-03-05)")
}

func TestRenderer_ItemListEmpty(t *testing.T) {
	r, buf := newTestRenderer()
	r.ItemList(nil)
	assert.Contains(t, buf.String(), "No items")
}
