package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowmcp/knowmcp/internal/chunk"
	"github.com/knowmcp/knowmcp/internal/config"
	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
	"github.com/knowmcp/knowmcp/internal/vector"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	inverted, err := store.NewBleveChunkIndex("", store.DefaultIndexConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = inverted.Close() })

	items, err := store.NewBleveItemIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = items.Close() })

	engine, err := search.NewEngine(st, inverted, items, vector.NewIndex(),
		chunk.NewChunker(chunk.DefaultOptions()), search.DefaultEngineConfig(), slog.Default())
	require.NoError(t, err)

	srv, err := NewServer(engine, st, config.NewConfig(), slog.Default())
	require.NoError(t, err)
	return srv
}

func addTestItem(t *testing.T, srv *Server, title, topic string) string {
	t.Helper()
	var sb strings.Builder
	for i := 0; i < 3; i++ {
		fmt.Fprintf(&sb, "# %s part %d\n\n", topic, i)
		for j := 0; j < 4; j++ {
			fmt.Fprintf(&sb, "Detailed discussion of %s, covering aspect %d. ", topic, j)
		}
		sb.WriteString("\n\n")
	}

	_, out, err := srv.addKnowledgeHandler(context.Background(), nil, AddKnowledgeInput{
		Title:   title,
		Content: sb.String(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.ID)
	require.Greater(t, out.Chunks, 0)
	return out.ID
}

func TestNewServer_RequiresEngineAndStore(t *testing.T) {
	st, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer st.Close()

	_, err = NewServer(nil, st, nil, nil)
	require.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	srv := newTestServer(t)
	tools := srv.ListTools()
	require.Len(t, tools, 8)

	names := make(map[string]bool)
	for _, ti := range tools {
		names[ti.Name] = true
		assert.NotEmpty(t, ti.Description)
	}
	for _, want := range []string{"search_knowledge", "suggest_search", "add_knowledge",
		"update_knowledge", "get_knowledge", "list_knowledge", "delete_knowledge",
		"knowledge_stats"} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}

func TestServer_AddAndSearch(t *testing.T) {
	srv := newTestServer(t)
	id := addTestItem(t, srv, "Vault Policies", "vault policies")
	addTestItem(t, srv, "Garden Planning", "tomato seedlings")

	_, out, err := srv.searchKnowledgeHandler(context.Background(), nil,
		SearchKnowledgeInput{Query: "vault"})
	require.NoError(t, err)

	require.Equal(t, 1, out.Total)
	r := out.Results[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "Vault Policies", r.Title)
	assert.NotEmpty(t, r.MatchedChunks)
	assert.Greater(t, r.Score, 0.0)
}

func TestServer_SearchValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input SearchKnowledgeInput
	}{
		{"empty query", SearchKnowledgeInput{Query: "  "}},
		{"max_results too large", SearchKnowledgeInput{Query: "x", MaxResults: 101}},
		{"max_results negative", SearchKnowledgeInput{Query: "x", MaxResults: -1}},
		{"min_relevance too large", SearchKnowledgeInput{Query: "x", MinRelevance: 1.5}},
		{"min_relevance negative", SearchKnowledgeInput{Query: "x", MinRelevance: -0.1}},
		{"bad sort", SearchKnowledgeInput{Query: "x", SortBy: "rank"}},
		{"bad source type", SearchKnowledgeInput{Query: "x", SourceTypes: []string{"email"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := srv.searchKnowledgeHandler(ctx, nil, tc.input)
			require.Error(t, err)
			var me *MCPError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, ErrCodeInvalidParams, me.Code)
		})
	}
}

func TestServer_SearchGrouping(t *testing.T) {
	srv := newTestServer(t)
	addTestItem(t, srv, "Helm Charts", "helm deployments")

	_, out, err := srv.searchKnowledgeHandler(context.Background(), nil,
		SearchKnowledgeInput{Query: "helm", GroupByCategory: true})
	require.NoError(t, err)
	require.NotNil(t, out.Groups)
	assert.Contains(t, out.Groups, search.UncategorizedBucket)
}

func TestServer_Suggest(t *testing.T) {
	srv := newTestServer(t)
	addTestItem(t, srv, "Jenkins Pipelines", "jenkins pipelines")

	_, out, err := srv.suggestSearchHandler(context.Background(), nil,
		SuggestSearchInput{PartialQuery: "jenk"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Suggestions)
	assert.Contains(t, strings.ToLower(out.Suggestions[0]), "jenk")

	_, _, err = srv.suggestSearchHandler(context.Background(), nil,
		SuggestSearchInput{PartialQuery: " "})
	require.Error(t, err)
}

func TestServer_AddValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, _, err := srv.addKnowledgeHandler(ctx, nil, AddKnowledgeInput{Title: "t"})
	require.Error(t, err)

	_, _, err = srv.addKnowledgeHandler(ctx, nil, AddKnowledgeInput{
		Content: "some content", SourceType: "email",
	})
	require.Error(t, err)
}

func TestServer_GetKnowledge(t *testing.T) {
	srv := newTestServer(t)
	id := addTestItem(t, srv, "Systemd Units", "systemd units")

	_, out, err := srv.getKnowledgeHandler(context.Background(), nil,
		GetKnowledgeInput{ID: id, IncludeChunks: true})
	require.NoError(t, err)
	assert.Equal(t, "Systemd Units", out.Title)
	assert.Equal(t, "document", out.SourceType)
	assert.NotEmpty(t, out.Chunks)
	assert.NotEmpty(t, out.CreatedAt)

	_, _, err = srv.getKnowledgeHandler(context.Background(), nil,
		GetKnowledgeInput{ID: "missing"})
	require.Error(t, err)
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeItemNotFound, me.Code)
}

func TestServer_ListKnowledge(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for i, tc := range []struct {
		title    string
		category string
	}{
		{"Ansible Playbooks", "ops"},
		{"Terraform Modules", "ops"},
		{"Focaccia Recipe", "cooking"},
	} {
		_, out, err := srv.addKnowledgeHandler(ctx, nil, AddKnowledgeInput{
			Title:      tc.title,
			Content:    fmt.Sprintf("content body number %d with enough words to chunk", i),
			Categories: []string{tc.category},
		})
		require.NoError(t, err)
		require.NotEmpty(t, out.ID)
	}

	_, all, err := srv.listKnowledgeHandler(ctx, nil, ListKnowledgeInput{})
	require.NoError(t, err)
	require.Equal(t, 3, all.Count)
	require.Len(t, all.Items, 3)
	assert.NotEmpty(t, all.Items[0].ID)
	assert.NotEmpty(t, all.Items[0].UpdatedAt)

	_, ops, err := srv.listKnowledgeHandler(ctx, nil, ListKnowledgeInput{Category: "ops"})
	require.NoError(t, err)
	assert.Equal(t, 2, ops.Count)

	_, page, err := srv.listKnowledgeHandler(ctx, nil, ListKnowledgeInput{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Count)
}

func TestServer_ListKnowledgeValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	for _, input := range []ListKnowledgeInput{
		{Limit: -1},
		{Offset: -1},
		{Limit: MaxResultsCeiling + 1},
	} {
		_, _, err := srv.listKnowledgeHandler(ctx, nil, input)
		require.Error(t, err)
		var me *MCPError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, ErrCodeInvalidParams, me.Code)
	}
}

func TestServer_UpdateKnowledge(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	id := addTestItem(t, srv, "Draft Notes", "postgres tuning")

	_, out, err := srv.updateKnowledgeHandler(ctx, nil, UpdateKnowledgeInput{
		ID:      id,
		Title:   "Final Notes",
		Content: "Completely rewritten discussion of pgbouncer connection pooling and its sizing.",
	})
	require.NoError(t, err)
	assert.Equal(t, id, out.ID)
	assert.Greater(t, out.Chunks, 0)

	_, got, err := srv.getKnowledgeHandler(ctx, nil, GetKnowledgeInput{ID: id})
	require.NoError(t, err)
	assert.Equal(t, "Final Notes", got.Title)
	assert.Contains(t, got.Content, "pgbouncer")

	_, searchOut, err := srv.searchKnowledgeHandler(ctx, nil,
		SearchKnowledgeInput{Query: "pgbouncer"})
	require.NoError(t, err)
	require.Equal(t, 1, searchOut.Total)
	assert.Equal(t, id, searchOut.Results[0].ID)

	_, searchOut, err = srv.searchKnowledgeHandler(ctx, nil,
		SearchKnowledgeInput{Query: "postgres tuning"})
	require.NoError(t, err)
	assert.Equal(t, 0, searchOut.Total, "old content should be unindexed")
}

func TestServer_UpdateKnowledgeReplacesLinks(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	_, added, err := srv.addKnowledgeHandler(ctx, nil, AddKnowledgeInput{
		Title:      "Tagged Item",
		Content:    "a body of text that will get tagged and retagged over its lifetime",
		Categories: []string{"old-cat"},
		Tags:       []string{"keep", "drop"},
	})
	require.NoError(t, err)

	_, _, err = srv.updateKnowledgeHandler(ctx, nil, UpdateKnowledgeInput{
		ID:         added.ID,
		Categories: []string{"new-cat"},
		Tags:       []string{"keep", "added"},
	})
	require.NoError(t, err)

	_, got, err := srv.getKnowledgeHandler(ctx, nil, GetKnowledgeInput{ID: added.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"new-cat"}, got.Categories)
	assert.ElementsMatch(t, []string{"keep", "added"}, got.Tags)
}

func TestServer_UpdateKnowledgeValidation(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	id := addTestItem(t, srv, "Stable Item", "redis eviction")

	_, _, err := srv.updateKnowledgeHandler(ctx, nil, UpdateKnowledgeInput{Title: "x"})
	require.Error(t, err, "missing id")

	_, _, err = srv.updateKnowledgeHandler(ctx, nil, UpdateKnowledgeInput{ID: id})
	require.Error(t, err, "nothing to update")

	_, _, err = srv.updateKnowledgeHandler(ctx, nil, UpdateKnowledgeInput{
		ID: id, SourceType: "email",
	})
	require.Error(t, err, "bad source type")

	_, _, err = srv.updateKnowledgeHandler(ctx, nil, UpdateKnowledgeInput{
		ID: "missing", Title: "x",
	})
	require.Error(t, err)
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeItemNotFound, me.Code)
}

func TestServer_DeleteKnowledge(t *testing.T) {
	srv := newTestServer(t)
	id := addTestItem(t, srv, "Doomed Item", "ephemeral notes")

	_, out, err := srv.deleteKnowledgeHandler(context.Background(), nil,
		DeleteKnowledgeInput{ID: id})
	require.NoError(t, err)
	assert.True(t, out.Deleted)

	_, out, err = srv.deleteKnowledgeHandler(context.Background(), nil,
		DeleteKnowledgeInput{ID: id})
	require.NoError(t, err)
	assert.False(t, out.Deleted)

	_, searchOut, err := srv.searchKnowledgeHandler(context.Background(), nil,
		SearchKnowledgeInput{Query: "ephemeral"})
	require.NoError(t, err)
	assert.Equal(t, 0, searchOut.Total)
}

func TestServer_KnowledgeStats(t *testing.T) {
	srv := newTestServer(t)
	addTestItem(t, srv, "One", "alpha topics")
	addTestItem(t, srv, "Two", "beta topics")

	_, out, err := srv.knowledgeStatsHandler(context.Background(), nil, KnowledgeStatsInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Items)
	assert.Greater(t, out.Chunks, 0)
	assert.Equal(t, uint64(out.Chunks), out.IndexedChunks)
	assert.Equal(t, out.Chunks, out.VectorChunks)
	assert.True(t, out.ChunkIndexReady)
}

func TestMapError_Categories(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{knowerrors.New(knowerrors.ErrCodeQueryEmpty, "empty", nil), ErrCodeInvalidParams},
		{knowerrors.New(knowerrors.ErrCodeIndexSearch, "down", nil), ErrCodeIndexUnavailable},
		{knowerrors.New(knowerrors.ErrCodeStorageQuery, "boom", nil), ErrCodeInternalError},
		{context.DeadlineExceeded, ErrCodeTimeout},
		{context.Canceled, ErrCodeTimeout},
		{fmt.Errorf("plain"), ErrCodeInternalError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, MapError(tc.err).Code, "for %v", tc.err)
	}
	assert.Nil(t, MapError(nil))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	ke := knowerrors.New(knowerrors.ErrCodeInvalidInput, "bad input", nil).
		WithSuggestion("Check the id format.")
	me := MapError(ke)
	assert.Contains(t, me.Message, "bad input")
	assert.Contains(t, me.Message, "Check the id format.")
}
