package mcp

// SearchKnowledgeInput defines the input schema for search_knowledge.
type SearchKnowledgeInput struct {
	Query             string   `json:"query" jsonschema:"the search query to execute"`
	MaxResults        int      `json:"max_results,omitempty" jsonschema:"maximum number of results, 1-100, default 50"`
	MinRelevance      float64  `json:"min_relevance,omitempty" jsonschema:"minimum relevance score between 0 and 1, default 0.1"`
	Categories        []string `json:"categories,omitempty" jsonschema:"filter by category names (OR logic)"`
	Tags              []string `json:"tags,omitempty" jsonschema:"filter by tag names (OR logic)"`
	SourceTypes       []string `json:"source_types,omitempty" jsonschema:"filter by source type: document, pdf, code, web"`
	SortBy            string   `json:"sort_by,omitempty" jsonschema:"result ordering: relevance, date, or title"`
	GroupByCategory   bool     `json:"group_by_category,omitempty" jsonschema:"partition results by their first category"`
	IncludeHighlights bool     `json:"include_highlights,omitempty" jsonschema:"include short matched-text snippets"`
}

// SearchKnowledgeOutput defines the output schema for search_knowledge.
type SearchKnowledgeOutput struct {
	Query   string                    `json:"query" jsonschema:"the executed query"`
	Total   int                       `json:"total" jsonschema:"number of results returned"`
	Results []ResultOutput            `json:"results" jsonschema:"ranked results"`
	Groups  map[string][]ResultOutput `json:"groups,omitempty" jsonschema:"results partitioned by category when grouping is requested"`
}

// ResultOutput defines a single search result.
type ResultOutput struct {
	ID            string        `json:"id" jsonschema:"item identifier"`
	Title         string        `json:"title" jsonschema:"item title"`
	Score         float64       `json:"score" jsonschema:"relevance score between 0 and 1"`
	SourceType    string        `json:"source_type,omitempty" jsonschema:"item source type"`
	Categories    []string      `json:"categories,omitempty" jsonschema:"assigned categories"`
	Tags          []string      `json:"tags,omitempty" jsonschema:"assigned tags"`
	Content       string        `json:"content,omitempty" jsonschema:"item content, truncated to the result budget"`
	MatchedFields []string      `json:"matched_fields,omitempty" jsonschema:"fields the query matched in"`
	Highlights    []string      `json:"highlights,omitempty" jsonschema:"matched-text snippets"`
	MatchedChunks []ChunkOutput `json:"matched_chunks,omitempty" jsonschema:"chunks the query matched"`
	ContextChunks []ChunkOutput `json:"context_chunks,omitempty" jsonschema:"chunks adjacent to matches"`
}

// ChunkOutput defines a chunk within a search result.
type ChunkOutput struct {
	Heading    string  `json:"heading,omitempty" jsonschema:"section heading the chunk belongs to"`
	ChunkIndex int     `json:"chunk_index" jsonschema:"position within the item, -1 for synthetic snippets"`
	Content    string  `json:"content" jsonschema:"chunk text"`
	Score      float64 `json:"score,omitempty" jsonschema:"chunk relevance score"`
}

// SuggestSearchInput defines the input schema for suggest_search.
type SuggestSearchInput struct {
	PartialQuery string `json:"partial_query" jsonschema:"the partial query to complete"`
}

// SuggestSearchOutput defines the output schema for suggest_search.
type SuggestSearchOutput struct {
	Suggestions []string `json:"suggestions" jsonschema:"completion candidates, prefix matches first"`
}

// AddKnowledgeInput defines the input schema for add_knowledge.
type AddKnowledgeInput struct {
	Title      string   `json:"title" jsonschema:"item title"`
	Content    string   `json:"content" jsonschema:"item content"`
	SourceType string   `json:"source_type,omitempty" jsonschema:"source type: document, pdf, code, web; default document"`
	Categories []string `json:"categories,omitempty" jsonschema:"categories to assign"`
	Tags       []string `json:"tags,omitempty" jsonschema:"tags to assign"`
}

// AddKnowledgeOutput defines the output schema for add_knowledge.
type AddKnowledgeOutput struct {
	ID     string `json:"id" jsonschema:"identifier of the stored item"`
	Chunks int    `json:"chunks" jsonschema:"number of chunks indexed"`
}

// GetKnowledgeInput defines the input schema for get_knowledge.
type GetKnowledgeInput struct {
	ID            string `json:"id" jsonschema:"item identifier"`
	IncludeChunks bool   `json:"include_chunks,omitempty" jsonschema:"include the item's chunks"`
}

// GetKnowledgeOutput defines the output schema for get_knowledge.
type GetKnowledgeOutput struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
	SourceType string        `json:"source_type,omitempty"`
	SourcePath string        `json:"source_path,omitempty"`
	Categories []string      `json:"categories,omitempty"`
	Tags       []string      `json:"tags,omitempty"`
	CreatedAt  string        `json:"created_at"`
	UpdatedAt  string        `json:"updated_at"`
	Chunks     []ChunkOutput `json:"chunks,omitempty"`
}

// ListKnowledgeInput defines the input schema for list_knowledge.
type ListKnowledgeInput struct {
	Category string `json:"category,omitempty" jsonschema:"only items assigned to this category"`
	Tag      string `json:"tag,omitempty" jsonschema:"only items assigned to this tag"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum items to return, default 20"`
	Offset   int    `json:"offset,omitempty" jsonschema:"items to skip for pagination"`
}

// ListKnowledgeOutput defines the output schema for list_knowledge.
type ListKnowledgeOutput struct {
	Items []ItemSummaryOutput `json:"items" jsonschema:"items newest first"`
	Count int                 `json:"count" jsonschema:"number of items returned"`
}

// ItemSummaryOutput is one row of an item listing. Content and link
// sets are omitted; use get_knowledge to fetch them.
type ItemSummaryOutput struct {
	ID         string `json:"id" jsonschema:"item identifier"`
	Title      string `json:"title" jsonschema:"item title"`
	SourceType string `json:"source_type,omitempty" jsonschema:"item source type"`
	SourcePath string `json:"source_path,omitempty" jsonschema:"origin file path, if any"`
	UpdatedAt  string `json:"updated_at" jsonschema:"last modification time, RFC 3339"`
}

// UpdateKnowledgeInput defines the input schema for update_knowledge.
// Omitted fields keep their current values; categories and tags replace
// the existing sets when provided.
type UpdateKnowledgeInput struct {
	ID         string   `json:"id" jsonschema:"item identifier"`
	Title      string   `json:"title,omitempty" jsonschema:"new title"`
	Content    string   `json:"content,omitempty" jsonschema:"new content, rechunked and reindexed"`
	SourceType string   `json:"source_type,omitempty" jsonschema:"new source type: document, pdf, code, web"`
	Categories []string `json:"categories,omitempty" jsonschema:"replacement category set"`
	Tags       []string `json:"tags,omitempty" jsonschema:"replacement tag set"`
}

// UpdateKnowledgeOutput defines the output schema for update_knowledge.
type UpdateKnowledgeOutput struct {
	ID     string `json:"id" jsonschema:"identifier of the updated item"`
	Chunks int    `json:"chunks" jsonschema:"number of chunks after reindexing"`
}

// DeleteKnowledgeInput defines the input schema for delete_knowledge.
type DeleteKnowledgeInput struct {
	ID string `json:"id" jsonschema:"item identifier"`
}

// DeleteKnowledgeOutput defines the output schema for delete_knowledge.
type DeleteKnowledgeOutput struct {
	Deleted bool `json:"deleted" jsonschema:"true if the item existed and was removed"`
}

// KnowledgeStatsInput defines the input schema for knowledge_stats (no parameters).
type KnowledgeStatsInput struct{}

// KnowledgeStatsOutput defines the output schema for knowledge_stats.
type KnowledgeStatsOutput struct {
	Items           int    `json:"items" jsonschema:"stored items"`
	Chunks          int    `json:"chunks" jsonschema:"stored chunks"`
	Categories      int    `json:"categories" jsonschema:"distinct categories"`
	Tags            int    `json:"tags" jsonschema:"distinct tags"`
	Relationships   int    `json:"relationships" jsonschema:"item relationships"`
	IndexedChunks   uint64 `json:"indexed_chunks" jsonschema:"chunks in the inverted index"`
	VectorChunks    int    `json:"vector_chunks" jsonschema:"chunks in the vector index"`
	ChunkIndexReady bool   `json:"chunk_index_ready" jsonschema:"true when chunk-level search is active"`
}
