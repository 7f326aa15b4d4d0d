// Package search implements the two-phase chunk-aware search core:
// phase 1 retrieves chunks from the inverted and vector indices and
// merges them, phase 2 aggregates chunks into item results with
// adjacent context, and a budget pass bounds the serialized output.
package search

import (
	"time"

	"github.com/knowmcp/knowmcp/internal/store"
)

// SortBy selects the result ordering.
type SortBy string

const (
	SortByRelevance SortBy = "relevance"
	SortByDate      SortBy = "date"
	SortByTitle     SortBy = "title"
)

// Default search parameters.
const (
	DefaultMaxResults   = 50
	DefaultMinRelevance = 0.1

	// KeywordWeight is the keyword share of the combined chunk score;
	// the semantic share is its complement.
	KeywordWeight = 0.6

	// PhaseOneLimit bounds each phase-1 sub-search.
	PhaseOneLimit = 50

	// MinSimilarity is the semantic cutoff passed to the vector index.
	MinSimilarity = 0.05

	// LateChunkThreshold is the content length above which an item
	// with no matched chunks gets chunked on demand at query time.
	LateChunkThreshold = 2000

	// SnippetRadius is the half-width of snippet extraction windows.
	SnippetRadius = 750
)

// Result budgets applied while serializing.
const (
	MaxChunkContentSize        = 1500
	MaxMatchedChunks           = 5
	MaxContextChunks           = 3
	MaxResultContentSize       = 30_000
	MaxTotalContentSize        = 100_000
	ContentTruncationThreshold = 2000
)

// Options are the per-search knobs. The zero value means defaults.
type Options struct {
	MaxResults         int
	MinRelevance       float64
	IncludeCategories  []string
	IncludeTags        []string
	IncludeSourceTypes []store.SourceType
	SortBy             SortBy
	GroupByCategory    bool
	IncludeHighlights  bool
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = DefaultMaxResults
	}
	if o.MinRelevance <= 0 {
		o.MinRelevance = DefaultMinRelevance
	}
	if o.SortBy == "" {
		o.SortBy = SortByRelevance
	}
	return o
}

// ChunkResult is a serialized chunk inside a search result.
type ChunkResult struct {
	ChunkID       string  `json:"chunk_id"`
	Content       string  `json:"content"`
	Heading       string  `json:"heading"`
	ChunkIndex    int     `json:"chunk_index"`
	StartPosition int     `json:"start_position"`
	EndPosition   int     `json:"end_position"`
	Score         float64 `json:"score"`
}

// ItemSummary is the item projection inside a result. Content is
// truncated to ContentTruncationThreshold during budgeting.
type ItemSummary struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Content    string           `json:"content"`
	SourceType store.SourceType `json:"source_type"`
	SourcePath string           `json:"source_path,omitempty"`
	Categories []string         `json:"categories,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Result is one item-level search result.
type Result struct {
	Item           ItemSummary    `json:"item"`
	RelevanceScore float64        `json:"relevance_score"`
	MatchedFields  []string       `json:"matched_fields,omitempty"`
	Highlights     []string       `json:"highlights,omitempty"`
	MatchedChunks  []*ChunkResult `json:"matched_chunks"`
	ContextChunks  []*ChunkResult `json:"context_chunks"`
}

// Response is the full search response.
type Response struct {
	Query             string               `json:"query"`
	Total             int                  `json:"total"`
	Results           []*Result            `json:"results"`
	GroupedByCategory map[string][]*Result `json:"grouped_by_category,omitempty"`

	// CategoryOrder preserves the grouping order when
	// GroupedByCategory is set; map iteration alone is unordered.
	CategoryOrder []string `json:"category_order,omitempty"`
}

// UncategorizedBucket names the group for items with no category.
const UncategorizedBucket = "Uncategorized"
