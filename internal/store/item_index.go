package store

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// BleveItemIndex is the legacy item-level inverted index. It indexes
// whole items (title plus full content) and backs the fallback search
// path when the chunk index is absent or empty.
type BleveItemIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// itemDocument is the document structure for item-level indexing.
type itemDocument struct {
	ItemID  string `json:"item_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewBleveItemIndex opens or creates the item index at path.
// If path is empty, creates an in-memory index.
func NewBleveItemIndex(path string) (*BleveItemIndex, error) {
	idx, err := openBleveIndex(path, createItemIndexMapping)
	if err != nil {
		return nil, err
	}

	return &BleveItemIndex{
		index: idx,
		path:  path,
	}, nil
}

// createItemIndexMapping creates the Bleve mapping for item documents.
func createItemIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	// The fallback index always uses the default analysis settings.
	if err := addTextAnalysis(indexMapping, DefaultIndexConfig()); err != nil {
		return nil, err
	}

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = TextAnalyzerName
	textField.Store = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("item_id", idField)
	docMapping.AddFieldMappingsAt("title", textField)
	docMapping.AddFieldMappingsAt("content", textField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	return indexMapping, nil
}

// AddItem upserts an item document keyed by item id.
func (b *BleveItemIndex) AddItem(ctx context.Context, item *Item) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("item index is closed")
	}

	doc := itemDocument{
		ItemID:  item.ID,
		Title:   item.Title,
		Content: item.Content,
	}
	if err := b.index.Index(item.ID, doc); err != nil {
		return fmt.Errorf("failed to index item %s: %w", item.ID, err)
	}
	return nil
}

// RemoveItem deletes an item document. Deleting an unindexed id is a
// no-op.
func (b *BleveItemIndex) RemoveItem(ctx context.Context, itemID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("item index is closed")
	}

	if err := b.index.Delete(itemID); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}
	return nil
}

// SearchItems parses the query across title and content and returns
// hits ordered by descending score.
func (b *BleveItemIndex) SearchItems(ctx context.Context, queryStr string, limit int) ([]*ItemHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("item index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*ItemHit{}, nil
	}
	if limit <= 0 {
		limit = DefaultChunkSearchLimit
	}

	titleQuery := bleve.NewMatchQuery(queryStr)
	titleQuery.SetField("title")

	contentQuery := bleve.NewMatchQuery(queryStr)
	contentQuery.SetField("content")

	query := bleve.NewDisjunctionQuery(titleQuery, contentQuery)

	req := bleve.NewSearchRequest(query)
	req.Size = limit
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("item search failed: %w", err)
	}

	hits := make([]*ItemHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		_, terms := extractMatches(hit)
		hits = append(hits, &ItemHit{
			ItemID:       hit.ID,
			Score:        hit.Score,
			MatchedTerms: terms,
		})
	}

	return hits, nil
}

// Rebuild wipes the index and repopulates it from items.
func (b *BleveItemIndex) Rebuild(ctx context.Context, items []*Item) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("item index is closed")
	}

	if err := b.index.Close(); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("failed to close index for rebuild: %w", err)
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			b.closed = true
			b.mu.Unlock()
			return fmt.Errorf("failed to clear index directory: %w", err)
		}
	}

	idx, err := openBleveIndex(b.path, createItemIndexMapping)
	if err != nil {
		b.closed = true
		b.mu.Unlock()
		return fmt.Errorf("failed to recreate index: %w", err)
	}
	b.index = idx
	b.mu.Unlock()

	batch := idx.NewBatch()
	for _, item := range items {
		doc := itemDocument{
			ItemID:  item.ID,
			Title:   item.Title,
			Content: item.Content,
		}
		if err := batch.Index(item.ID, doc); err != nil {
			return fmt.Errorf("failed to index item %s: %w", item.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute rebuild batch: %w", err)
	}
	return nil
}

// HasIndex reports whether the index is open and holds at least one
// document.
func (b *BleveItemIndex) HasIndex() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || b.index == nil {
		return false
	}

	count, err := b.index.DocCount()
	return err == nil && count >= 1
}

// Close closes the index.
func (b *BleveItemIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ ItemIndex = (*BleveItemIndex)(nil)
