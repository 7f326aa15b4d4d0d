package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/knowmcp/knowmcp/internal/chunk"
	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/store"
	"github.com/knowmcp/knowmcp/internal/vector"
)

// DefaultItemCacheSize bounds the item lookup cache used during
// phase-2 enrichment.
const DefaultItemCacheSize = 256

// EngineConfig configures the search engine.
type EngineConfig struct {
	EnableKeyword  bool
	EnableSemantic bool
	ItemCacheSize  int
}

// DefaultEngineConfig enables both retrieval sources.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		EnableKeyword:  true,
		EnableSemantic: true,
		ItemCacheSize:  DefaultItemCacheSize,
	}
}

// Engine orchestrates two-phase search and keeps the store and both
// indices in sync through the maintenance hooks. Searches run
// concurrently; writes are serialized by an internal mutex.
type Engine struct {
	store    store.Store
	inverted store.ChunkIndex
	items    store.ItemIndex
	vectors  *vector.Index
	chunker  *chunk.Chunker
	cache    *lru.Cache[string, *store.Item]
	logger   *slog.Logger
	config   EngineConfig

	writeMu sync.Mutex
}

// NewEngine creates a search engine. The item index may be nil when no
// legacy fallback index exists.
func NewEngine(
	st store.Store,
	inverted store.ChunkIndex,
	items store.ItemIndex,
	vectors *vector.Index,
	chunker *chunk.Chunker,
	cfg EngineConfig,
	logger *slog.Logger,
) (*Engine, error) {
	if cfg.ItemCacheSize <= 0 {
		cfg.ItemCacheSize = DefaultItemCacheSize
	}
	cache, err := lru.New[string, *store.Item](cfg.ItemCacheSize)
	if err != nil {
		return nil, knowerrors.InternalError("failed to create item cache", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    st,
		inverted: inverted,
		items:    items,
		vectors:  vectors,
		chunker:  chunker,
		cache:    cache,
		logger:   logger,
		config:   cfg,
	}, nil
}

// Search runs the two-phase pipeline and returns budgeted results.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, knowerrors.New(knowerrors.ErrCodeQueryEmpty,
			"search query must not be empty", nil)
	}
	opts = opts.withDefaults()

	merged, err := e.phaseOne(ctx, query)
	if err != nil {
		return nil, err
	}

	var results []*Result
	if e.inverted.HasChunkIndex() && len(merged) > 0 {
		merged = capPerItem(merged, MaxMatchedChunks)
		results, err = e.aggregate(ctx, query, merged, opts)
	} else {
		results, err = e.fallback(ctx, query, opts)
	}
	if err != nil {
		return nil, err
	}

	results = applyFilters(results, opts)
	results = dropBelowMinRelevance(results, opts.MinRelevance)
	sortResults(results, opts.SortBy)
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}

	resp := &Response{
		Query:   query,
		Results: results,
	}
	applyBudgets(resp)
	resp.Total = len(resp.Results)

	if opts.GroupByCategory {
		groupByCategory(resp)
	}
	return resp, nil
}

// phaseOne runs the keyword and semantic sub-searches in parallel and
// merges the hits. A single failing source degrades to the other
// source's hits; only both failing surfaces an error.
func (e *Engine) phaseOne(ctx context.Context, query string) ([]*mergedChunk, error) {
	var (
		kwHits  []*store.ChunkHit
		semHits []*vector.Hit
		kwErr   error
	)

	g, gctx := errgroup.WithContext(ctx)

	keywordOn := e.config.EnableKeyword && e.inverted.HasChunkIndex()
	if keywordOn {
		g.Go(func() error {
			hits, err := e.inverted.SearchChunks(gctx, query, PhaseOneLimit)
			if err != nil {
				e.logger.Warn("keyword_search_failed", slog.String("error", err.Error()))
				kwErr = err
				return nil
			}
			kwHits = hits
			return nil
		})
	}
	if e.config.EnableSemantic {
		g.Go(func() error {
			semHits = e.vectors.SearchChunks(query, PhaseOneLimit, MinSimilarity)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if kwErr != nil && !e.config.EnableSemantic {
		return nil, knowerrors.New(knowerrors.ErrCodeIndexSearch,
			"chunk search failed", kwErr)
	}

	return mergeHits(kwHits, semHits, KeywordWeight), nil
}

// aggregate groups phase-1 chunks by item and builds enriched results
// with matched and adjacent context chunks.
func (e *Engine) aggregate(ctx context.Context, query string, merged []*mergedChunk, opts Options) ([]*Result, error) {
	type itemGroup struct {
		itemID string
		score  float64
		chunks []*mergedChunk
	}

	groups := make(map[string]*itemGroup)
	var order []string
	for _, m := range merged {
		g, ok := groups[m.itemID]
		if !ok {
			g = &itemGroup{itemID: m.itemID}
			groups[m.itemID] = g
			order = append(order, m.itemID)
		}
		g.chunks = append(g.chunks, m)
		if m.score > g.score {
			g.score = m.score
		}
	}

	var results []*Result
	for _, itemID := range order {
		g := groups[itemID]

		item, err := e.getItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			// Index entry without a store row; rebuild cleans these up
			e.logger.Warn("indexed_item_missing", slog.String("item_id", itemID))
			continue
		}

		result := &Result{
			Item:           itemSummary(item),
			RelevanceScore: g.score,
			MatchedFields:  unionFields(g.chunks),
		}

		seen := make(map[string]struct{})
		for _, m := range g.chunks {
			cr, err := e.chunkResult(ctx, m)
			if err != nil {
				return nil, err
			}
			if cr == nil {
				continue
			}
			seen[cr.ChunkID] = struct{}{}
			result.MatchedChunks = append(result.MatchedChunks, cr)
		}

		result.ContextChunks, err = e.contextChunks(ctx, itemID, result.MatchedChunks, seen)
		if err != nil {
			return nil, err
		}

		if len(result.MatchedChunks) == 0 && len(item.Content) > LateChunkThreshold {
			result.MatchedChunks = e.lateChunk(ctx, item, query, g.score)
		}

		if opts.IncludeHighlights {
			result.Highlights = buildHighlights(query, item, result.MatchedChunks)
		}

		results = append(results, result)
	}
	return results, nil
}

// chunkResult resolves a merged hit to a full chunk from the store.
// Returns nil when the chunk row is gone.
func (e *Engine) chunkResult(ctx context.Context, m *mergedChunk) (*ChunkResult, error) {
	row, err := e.store.GetChunkByID(ctx, m.chunkID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &ChunkResult{
		ChunkID:       row.ID,
		Content:       row.Content,
		Heading:       row.Heading,
		ChunkIndex:    row.ChunkIndex,
		StartPosition: row.StartPosition,
		EndPosition:   row.EndPosition,
		Score:         m.score,
	}, nil
}

// contextChunks gathers the neighbors of every matched chunk,
// deduplicated across the item and capped before budgeting.
func (e *Engine) contextChunks(ctx context.Context, itemID string, matched []*ChunkResult, seen map[string]struct{}) ([]*ChunkResult, error) {
	var out []*ChunkResult
	for _, mc := range matched {
		adjacent, err := e.store.GetAdjacentChunks(ctx, itemID, mc.ChunkIndex)
		if err != nil {
			return nil, err
		}
		for _, adj := range adjacent {
			if _, dup := seen[adj.ID]; dup {
				continue
			}
			seen[adj.ID] = struct{}{}
			out = append(out, &ChunkResult{
				ChunkID:       adj.ID,
				Content:       adj.Content,
				Heading:       adj.Heading,
				ChunkIndex:    adj.ChunkIndex,
				StartPosition: adj.StartPosition,
				EndPosition:   adj.EndPosition,
			})
			if len(out) >= MaxContextChunks {
				return out, nil
			}
		}
	}
	return out, nil
}

// fallback is the item-level search path used when the chunk index is
// absent or phase 1 found nothing. Results carry empty chunk lists
// unless late chunking can fill them.
func (e *Engine) fallback(ctx context.Context, query string, opts Options) ([]*Result, error) {
	if e.items == nil || !e.items.HasIndex() {
		return nil, nil
	}

	hits, err := e.items.SearchItems(ctx, query, PhaseOneLimit)
	if err != nil {
		e.logger.Warn("fallback_search_failed", slog.String("error", err.Error()))
		return nil, nil
	}

	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}

	var results []*Result
	for _, h := range hits {
		item, err := e.getItem(ctx, h.ItemID)
		if err != nil {
			return nil, err
		}
		if item == nil {
			continue
		}

		score := 0.0
		if maxScore > 0 {
			score = h.Score / maxScore
		}

		result := &Result{
			Item:           itemSummary(item),
			RelevanceScore: score,
			MatchedFields:  []string{"title", "content"},
			MatchedChunks:  []*ChunkResult{},
			ContextChunks:  []*ChunkResult{},
		}

		if len(item.Content) > LateChunkThreshold {
			result.MatchedChunks = e.lateChunk(ctx, item, query, score)
		}
		if opts.IncludeHighlights {
			result.Highlights = buildHighlights(query, item, result.MatchedChunks)
		}

		results = append(results, result)
	}
	return results, nil
}

// lateChunk chunks a large item at query time, persists and indexes
// the chunks, and picks the ones containing query tokens. If chunking
// yields nothing it degrades to snippet extraction. Never fails the
// search.
func (e *Engine) lateChunk(ctx context.Context, item *store.Item, query string, score float64) []*ChunkResult {
	chunks := e.chunker.Chunk(item.Content, item.Title)
	if len(chunks) == 0 {
		return extractSnippets(item.Content, query, score)
	}
	for _, c := range chunks {
		c.ItemID = item.ID
	}

	if err := e.store.SaveChunks(ctx, item.ID, chunks); err != nil {
		e.logger.Warn("late_chunk_persist_failed",
			slog.String("item_id", item.ID), slog.String("error", err.Error()))
	} else {
		e.indexChunks(ctx, item.ID, chunks)
	}

	tokens := store.TokenizeText(query)
	var out []*ChunkResult
	for _, c := range chunks {
		if !containsAnyToken(c.Content, tokens) {
			continue
		}
		out = append(out, &ChunkResult{
			ChunkID:       c.ID,
			Content:       c.Content,
			Heading:       c.Heading,
			ChunkIndex:    c.ChunkIndex,
			StartPosition: c.StartPosition,
			EndPosition:   c.EndPosition,
			Score:         score,
		})
		if len(out) >= MaxMatchedChunks {
			break
		}
	}
	if len(out) == 0 {
		return extractSnippets(item.Content, query, score)
	}
	return out
}

// containsAnyToken reports whether content contains any query token,
// case-insensitively.
func containsAnyToken(content string, tokens []string) bool {
	lower := strings.ToLower(content)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// extractSnippets is the last-resort matched-chunk source: windows of
// +-SnippetRadius characters around the first occurrence of each query
// token, with overlapping windows merged. Synthetic chunks carry
// chunk_index -1.
func extractSnippets(content, query string, score float64) []*ChunkResult {
	lower := strings.ToLower(content)

	type window struct{ start, end int }
	var windows []window
	for _, token := range store.TokenizeText(query) {
		pos := strings.Index(lower, token)
		if pos < 0 {
			continue
		}
		start := pos - SnippetRadius
		if start < 0 {
			start = 0
		}
		end := pos + len(token) + SnippetRadius
		if end > len(content) {
			end = len(content)
		}
		windows = append(windows, window{start, end})
	}
	if len(windows) == 0 {
		return nil
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })

	var merged []window
	cur := windows[0]
	for _, w := range windows[1:] {
		if w.start <= cur.end {
			if w.end > cur.end {
				cur.end = w.end
			}
			continue
		}
		merged = append(merged, cur)
		cur = w
	}
	merged = append(merged, cur)

	var out []*ChunkResult
	for _, w := range merged {
		start, end := snapToRunes(content, w.start, w.end)
		out = append(out, &ChunkResult{
			Content:       content[start:end],
			ChunkIndex:    -1,
			StartPosition: start,
			EndPosition:   end,
			Score:         score,
		})
		if len(out) >= MaxMatchedChunks {
			break
		}
	}
	return out
}

// snapToRunes clamps a byte range to UTF-8 rune boundaries.
func snapToRunes(s string, start, end int) (int, int) {
	for start > 0 && start < len(s) && !utf8RuneStart(s[start]) {
		start--
	}
	for end > start && end < len(s) && !utf8RuneStart(s[end]) {
		end--
	}
	return start, end
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// getItem reads through the LRU cache.
func (e *Engine) getItem(ctx context.Context, id string) (*store.Item, error) {
	if item, ok := e.cache.Get(id); ok {
		return item, nil
	}
	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item != nil {
		e.cache.Add(id, item)
	}
	return item, nil
}

func itemSummary(item *store.Item) ItemSummary {
	return ItemSummary{
		ID:         item.ID,
		Title:      item.Title,
		Content:    item.Content,
		SourceType: item.SourceType,
		SourcePath: item.SourcePath,
		Categories: item.Categories,
		Tags:       item.Tags,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}

// unionFields merges matched field names across an item's chunks,
// keeping first-seen order.
func unionFields(chunks []*mergedChunk) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		for _, f := range c.matchedFields {
			if _, dup := seen[f]; !dup {
				seen[f] = struct{}{}
				out = append(out, f)
			}
		}
	}
	return out
}

// IngestItem saves an item, chunks its content, and updates every
// projection. Items with a known ID are updated in place; new items
// are inserted (the store assigns an ID when empty). Returns the
// persisted chunks.
func (e *Engine) IngestItem(ctx context.Context, item *store.Item) ([]*store.Chunk, error) {
	saved := false
	if item.ID != "" {
		updated, err := e.store.UpdateItem(ctx, item)
		if err != nil {
			return nil, err
		}
		saved = updated
	}
	if !saved {
		if err := e.store.SaveItem(ctx, item); err != nil {
			return nil, err
		}
	}

	chunks := e.chunker.Chunk(item.Content, item.Title)
	if err := e.OnItemUpserted(ctx, item, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// RemoveItem deletes an item and clears its index projections.
// Reports whether the item existed.
func (e *Engine) RemoveItem(ctx context.Context, itemID string) (bool, error) {
	found, err := e.store.DeleteItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	if found {
		e.OnItemDeleted(ctx, itemID)
	}
	return found, nil
}

// OnItemUpserted persists chunks and refreshes both index projections.
// A store failure propagates; index failures past the store write are
// logged and left for RebuildAll to repair.
func (e *Engine) OnItemUpserted(ctx context.Context, item *store.Item, chunks []*store.Chunk) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	for _, c := range chunks {
		c.ItemID = item.ID
	}
	if err := e.store.SaveChunks(ctx, item.ID, chunks); err != nil {
		return err
	}

	e.indexChunks(ctx, item.ID, chunks)
	if e.items != nil {
		if err := e.items.AddItem(ctx, item); err != nil {
			e.logger.Warn("item_index_update_failed",
				slog.String("item_id", item.ID), slog.String("error", err.Error()))
		}
	}
	e.cache.Add(item.ID, item)
	return nil
}

// indexChunks pushes a chunk set into both indices, logging failures.
func (e *Engine) indexChunks(ctx context.Context, itemID string, chunks []*store.Chunk) {
	if err := e.inverted.RemoveChunksForItem(ctx, itemID); err != nil {
		e.logger.Warn("inverted_index_clear_failed",
			slog.String("item_id", itemID), slog.String("error", err.Error()))
	}
	if err := e.inverted.AddChunks(ctx, chunks); err != nil {
		e.logger.Warn("inverted_index_update_failed",
			slog.String("item_id", itemID), slog.String("error", err.Error()))
	}
	if err := e.vectors.UpdateChunksForItem(itemID, chunks); err != nil {
		e.logger.Warn("vector_index_update_failed",
			slog.String("item_id", itemID), slog.String("error", err.Error()))
	}
}

// OnItemDeleted removes the item's projections from both indices; the
// store's cascade delete handles the rows. Index failures are logged.
func (e *Engine) OnItemDeleted(ctx context.Context, itemID string) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if err := e.inverted.RemoveChunksForItem(ctx, itemID); err != nil {
		e.logger.Warn("inverted_index_remove_failed",
			slog.String("item_id", itemID), slog.String("error", err.Error()))
	}
	if err := e.vectors.RemoveChunksForItem(itemID); err != nil {
		e.logger.Warn("vector_index_remove_failed",
			slog.String("item_id", itemID), slog.String("error", err.Error()))
	}
	if e.items != nil {
		if err := e.items.RemoveItem(ctx, itemID); err != nil {
			e.logger.Warn("item_index_remove_failed",
				slog.String("item_id", itemID), slog.String("error", err.Error()))
		}
	}
	e.cache.Remove(itemID)
}

// EngineStats is a snapshot of the index projections.
type EngineStats struct {
	IndexedChunks   uint64
	VectorChunks    int
	ChunkIndexReady bool
	ItemIndexReady  bool
}

// Stats reports the current state of both indices.
func (e *Engine) Stats() EngineStats {
	stats := EngineStats{
		VectorChunks:    e.vectors.Size(),
		ChunkIndexReady: e.inverted.HasChunkIndex(),
	}
	if count, err := e.inverted.DocCount(); err == nil {
		stats.IndexedChunks = count
	}
	if e.items != nil {
		stats.ItemIndexReady = e.items.HasIndex()
	}
	return stats
}

// Warm refits the in-memory vector index from the persisted chunks.
// The inverted index survives restarts on disk; the TF-IDF projection
// does not and must be rebuilt before the first search.
func (e *Engine) Warm(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var all []*store.Chunk
	err := e.store.AllChunks(ctx, 500, func(batch []*store.Chunk) error {
		all = append(all, batch...)
		return nil
	})
	if err != nil {
		return err
	}
	if err := e.vectors.FitChunks(all); err != nil {
		return knowerrors.New(knowerrors.ErrCodeIndexWrite,
			"failed to fit vector index", err)
	}
	e.logger.Debug("vector_index_warmed", slog.Int("chunks", len(all)))
	return nil
}

// RebuildAll reloads every chunk from the store in batches and refits
// both indices from scratch.
func (e *Engine) RebuildAll(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var all []*store.Chunk
	err := e.store.AllChunks(ctx, 500, func(batch []*store.Chunk) error {
		all = append(all, batch...)
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.inverted.RebuildChunkIndex(ctx, all); err != nil {
		return knowerrors.New(knowerrors.ErrCodeIndexWrite,
			"failed to rebuild chunk index", err)
	}
	if err := e.vectors.FitChunks(all); err != nil {
		e.logger.Warn("vector_refit_failed", slog.String("error", err.Error()))
	}

	if e.items != nil {
		items, err := e.store.GetAllItemsEager(ctx)
		if err != nil {
			return err
		}
		if err := e.items.Rebuild(ctx, items); err != nil {
			e.logger.Warn("item_index_rebuild_failed", slog.String("error", err.Error()))
		}
	}

	e.cache.Purge()
	e.logger.Info("indexes_rebuilt", slog.Int("chunks", len(all)))
	return nil
}
