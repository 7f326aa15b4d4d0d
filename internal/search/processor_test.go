package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowmcp/knowmcp/internal/store"
)

func result(id string, score float64, updated time.Time) *Result {
	return &Result{
		Item:           ItemSummary{ID: id, Title: "Item " + id, UpdatedAt: updated},
		RelevanceScore: score,
	}
}

func TestApplyFilters_NoFiltersPassesAll(t *testing.T) {
	results := []*Result{result("a", 0.5, time.Now()), result("b", 0.4, time.Now())}
	assert.Len(t, applyFilters(results, Options{}), 2)
}

func TestApplyFilters_Category(t *testing.T) {
	a := result("a", 0.5, time.Now())
	a.Item.Categories = []string{"work"}
	b := result("b", 0.4, time.Now())
	b.Item.Categories = []string{"home"}

	out := applyFilters([]*Result{a, b}, Options{IncludeCategories: []string{"work"}})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Item.ID)
}

func TestApplyFilters_TagAndSourceTypeAND(t *testing.T) {
	a := result("a", 0.5, time.Now())
	a.Item.Tags = []string{"go"}
	a.Item.SourceType = store.SourceTypeDocument
	b := result("b", 0.4, time.Now())
	b.Item.Tags = []string{"go"}
	b.Item.SourceType = store.SourceTypeWeb

	out := applyFilters([]*Result{a, b}, Options{
		IncludeTags:        []string{"go"},
		IncludeSourceTypes: []store.SourceType{store.SourceTypeDocument},
	})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Item.ID)
}

func TestDropBelowMinRelevance(t *testing.T) {
	results := []*Result{
		result("a", 0.5, time.Now()),
		result("b", 0.09, time.Now()),
		result("c", 0.1, time.Now()),
	}
	out := dropBelowMinRelevance(results, 0.1)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Item.ID)
	assert.Equal(t, "c", out[1].Item.ID)
}

func TestSortResults_RelevanceWithTieBreaks(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	results := []*Result{
		result("z", 0.5, older),
		result("a", 0.5, older),
		result("m", 0.5, newer),
		result("top", 0.9, older),
	}
	sortResults(results, SortByRelevance)

	assert.Equal(t, "top", results[0].Item.ID)
	assert.Equal(t, "m", results[1].Item.ID, "equal score ties break by updated_at desc")
	assert.Equal(t, "a", results[2].Item.ID, "then id asc")
	assert.Equal(t, "z", results[3].Item.ID)
}

func TestSortResults_Date(t *testing.T) {
	results := []*Result{
		result("old", 0.9, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		result("new", 0.1, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	sortResults(results, SortByDate)
	assert.Equal(t, "new", results[0].Item.ID)
}

func TestSortResults_Title(t *testing.T) {
	a := result("1", 0.1, time.Now())
	a.Item.Title = "Zebra"
	b := result("2", 0.9, time.Now())
	b.Item.Title = "Apple"

	results := []*Result{a, b}
	sortResults(results, SortByTitle)
	assert.Equal(t, "Apple", results[0].Item.Title)
}

func TestGroupByCategory(t *testing.T) {
	a := result("a", 0.9, time.Now())
	a.Item.Categories = []string{"work", "extra"}
	b := result("b", 0.8, time.Now())
	b.Item.Categories = []string{"home"}
	c := result("c", 0.7, time.Now())
	d := result("d", 0.6, time.Now())
	d.Item.Categories = []string{"work"}

	resp := &Response{Results: []*Result{a, b, c, d}}
	groupByCategory(resp)

	require.NotNil(t, resp.GroupedByCategory)
	assert.Equal(t, []string{"work", "home", UncategorizedBucket}, resp.CategoryOrder)
	assert.Len(t, resp.GroupedByCategory["work"], 2)
	assert.Equal(t, "a", resp.GroupedByCategory["work"][0].Item.ID, "order inside bucket preserved")
	assert.Equal(t, "d", resp.GroupedByCategory["work"][1].Item.ID)
	assert.Len(t, resp.GroupedByCategory[UncategorizedBucket], 1)
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultMaxResults, o.MaxResults)
	assert.Equal(t, DefaultMinRelevance, o.MinRelevance)
	assert.Equal(t, SortByRelevance, o.SortBy)

	o = Options{MaxResults: 5, MinRelevance: 0.3, SortBy: SortByTitle}.withDefaults()
	assert.Equal(t, 5, o.MaxResults)
	assert.Equal(t, 0.3, o.MinRelevance)
	assert.Equal(t, SortByTitle, o.SortBy)
}
