package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// TextTokenizerName is the name of the custom text tokenizer.
	TextTokenizerName = "know_text_tokenizer"

	// TextStopFilterName is the name of the custom stop word filter.
	TextStopFilterName = "know_stop"

	// TextAnalyzerName is the name of the custom text analyzer. The
	// same analyzer runs at index and query time.
	TextAnalyzerName = "know_text_analyzer"

	// Constructor types registered with the Bleve registry. The named
	// components above are instantiated from these per mapping, with
	// the IndexConfig values in the constructor config.
	textTokenizerType  = "know_tokenize"
	textStopFilterType = "know_stopwords"
)

func init() {
	_ = registry.RegisterTokenizer(textTokenizerType, textTokenizerConstructor)
	_ = registry.RegisterTokenFilter(textStopFilterType, textStopFilterConstructor)
}

// BleveChunkIndex is the persistent inverted index over chunks, stored
// in the chunks/ subdirectory of the index root.
type BleveChunkIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	config IndexConfig
	closed bool
}

// chunkDocument is the document structure for Bleve indexing.
// chunk_index is float64 because Bleve stores numerics as float64.
type chunkDocument struct {
	ChunkID    string  `json:"chunk_id"`
	ItemID     string  `json:"item_id"`
	ChunkIndex float64 `json:"chunk_index"`
	Heading    string  `json:"heading"`
	Content    string  `json:"content"`
}

// validateIndexIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid, error describing corruption if not.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Index doesn't exist, will be created
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		strings.Contains(errStr, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveChunkIndex opens or creates the chunk index at path.
// If path is empty, creates an in-memory index. A corrupted on-disk
// index is cleared and recreated empty; the caller observes this as
// HasChunkIndex() == false and rebuilds.
func NewBleveChunkIndex(path string, config IndexConfig) (*BleveChunkIndex, error) {
	idx, err := openBleveIndex(path, func() (*mapping.IndexMappingImpl, error) {
		return createChunkIndexMapping(config)
	})
	if err != nil {
		return nil, err
	}

	return &BleveChunkIndex{
		index:  idx,
		path:   path,
		config: config,
	}, nil
}

// openBleveIndex opens or creates a Bleve index with corruption recovery.
func openBleveIndex(path string, mappingFn func() (*mapping.IndexMappingImpl, error)) (bleve.Index, error) {
	indexMapping, err := mappingFn()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	if path == "" {
		// In-memory index for testing
		return bleve.NewMemOnly(indexMapping)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}

	if validErr := validateIndexIntegrity(path); validErr != nil {
		slog.Warn("chunk_index_corrupted",
			slog.String("path", path),
			slog.String("error", validErr.Error()))

		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted at %s and cannot remove: %w (original error: %v)", path, removeErr, validErr)
		}
		slog.Info("chunk_index_cleared",
			slog.String("path", path),
			slog.String("reason", "corruption detected, please rebuild"))
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, indexMapping)
	} else if err != nil && isCorruptionError(err) {
		slog.Warn("chunk_index_open_failed",
			slog.String("path", path),
			slog.String("error", err.Error()))

		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("index corrupted, cannot clear: %w (original: %v)", removeErr, err)
		}
		slog.Info("chunk_index_cleared",
			slog.String("path", path),
			slog.String("reason", "open failed with corruption, please rebuild"))

		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return idx, nil
}

// addTextAnalysis installs the tokenizer, stop filter and analyzer on
// a mapping, configured from config. The analysis chain is stored in
// the index metadata, so a reopened index keeps the settings it was
// built with.
func addTextAnalysis(indexMapping *mapping.IndexMappingImpl, config IndexConfig) error {
	minLen := config.MinTokenLength
	if minLen <= 0 {
		minLen = DefaultIndexConfig().MinTokenLength
	}
	stopWords := config.StopWords
	if stopWords == nil {
		stopWords = DefaultStopWords
	}

	err := indexMapping.AddCustomTokenizer(TextTokenizerName, map[string]interface{}{
		"type":             textTokenizerType,
		"min_token_length": minLen,
	})
	if err != nil {
		return fmt.Errorf("failed to add custom tokenizer: %w", err)
	}

	err = indexMapping.AddCustomTokenFilter(TextStopFilterName, map[string]interface{}{
		"type":       textStopFilterType,
		"stop_words": stopWords,
	})
	if err != nil {
		return fmt.Errorf("failed to add stop filter: %w", err)
	}

	err = indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TextTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			TextStopFilterName,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add custom analyzer: %w", err)
	}
	return nil
}

// createChunkIndexMapping creates the Bleve mapping for chunk documents:
// chunk_id and item_id as stored keywords, chunk_index as stored
// numeric, heading and content tokenized and stored.
func createChunkIndexMapping(config IndexConfig) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	if err := addTextAnalysis(indexMapping, config); err != nil {
		return nil, err
	}

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = true

	numField := bleve.NewNumericFieldMapping()
	numField.Store = true

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = TextAnalyzerName
	textField.Store = true
	textField.IncludeTermVectors = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("chunk_id", idField)
	docMapping.AddFieldMappingsAt("item_id", idField)
	docMapping.AddFieldMappingsAt("chunk_index", numField)
	docMapping.AddFieldMappingsAt("heading", textField)
	docMapping.AddFieldMappingsAt("content", textField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzerName

	return indexMapping, nil
}

// AddChunk upserts a single chunk document.
func (b *BleveChunkIndex) AddChunk(ctx context.Context, chunk *Chunk) error {
	return b.AddChunks(ctx, []*Chunk{chunk})
}

// AddChunks batch-upserts chunk documents by chunk id.
func (b *BleveChunkIndex) AddChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("chunk index is closed")
	}

	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		doc := chunkDocument{
			ChunkID:    chunk.ID,
			ItemID:     chunk.ItemID,
			ChunkIndex: float64(chunk.ChunkIndex),
			Heading:    chunk.Heading,
			Content:    chunk.Content,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return fmt.Errorf("failed to index chunk %s: %w", chunk.ID, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

// RemoveChunksForItem deletes all chunk documents owned by itemID.
func (b *BleveChunkIndex) RemoveChunksForItem(ctx context.Context, itemID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("chunk index is closed")
	}

	ids, err := b.chunkIDsForItem(ctx, itemID)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete chunks for item %s: %w", itemID, err)
	}

	return nil
}

// chunkIDsForItem finds all document ids with the given item_id.
// Caller must hold the lock.
func (b *BleveChunkIndex) chunkIDsForItem(ctx context.Context, itemID string) ([]string, error) {
	termQuery := bleve.NewTermQuery(itemID)
	termQuery.SetField("item_id")

	docCount, _ := b.index.DocCount()
	req := bleve.NewSearchRequest(termQuery)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to find chunks for item %s: %w", itemID, err)
	}

	ids := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// SearchChunks parses the query across heading and content and returns
// hits ordered by descending score.
func (b *BleveChunkIndex) SearchChunks(ctx context.Context, queryStr string, limit int) ([]*ChunkHit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("chunk index is closed")
	}

	if strings.TrimSpace(queryStr) == "" {
		return []*ChunkHit{}, nil
	}
	if limit <= 0 {
		limit = DefaultChunkSearchLimit
	}

	headingQuery := bleve.NewMatchQuery(queryStr)
	headingQuery.SetField("heading")

	contentQuery := bleve.NewMatchQuery(queryStr)
	contentQuery.SetField("content")

	query := bleve.NewDisjunctionQuery(headingQuery, contentQuery)

	req := bleve.NewSearchRequest(query)
	req.Size = limit
	req.Fields = []string{"item_id", "chunk_index", "heading"}
	req.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}

	hits := make([]*ChunkHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		fields, terms := extractMatches(hit)
		hits = append(hits, &ChunkHit{
			ChunkID:       hit.ID,
			ItemID:        stringField(hit, "item_id"),
			ChunkIndex:    intField(hit, "chunk_index"),
			Heading:       stringField(hit, "heading"),
			Score:         hit.Score,
			MatchedFields: fields,
			MatchedTerms:  terms,
		})
	}

	return hits, nil
}

// RebuildChunkIndex wipes the index and repopulates it from chunks.
func (b *BleveChunkIndex) RebuildChunkIndex(ctx context.Context, chunks []*Chunk) error {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("chunk index is closed")
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

	idx, err := openBleveIndex(b.path, func() (*mapping.IndexMappingImpl, error) {
		return createChunkIndexMapping(b.config)
	})
	if err != nil {
		b.closed = true
		b.mu.Unlock()
		return fmt.Errorf("failed to recreate index: %w", err)
	}
	b.index = idx
	b.mu.Unlock()

	return b.AddChunks(ctx, chunks)
}

// HasChunkIndex reports whether the index is open and holds at least
// one document.
func (b *BleveChunkIndex) HasChunkIndex() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed || b.index == nil {
		return false
	}
	if b.path != "" {
		if _, err := os.Stat(b.path); err != nil {
			return false
		}
	}

	count, err := b.index.DocCount()
	return err == nil && count >= 1
}

// DocCount returns the number of indexed chunk documents.
func (b *BleveChunkIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, fmt.Errorf("chunk index is closed")
	}
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveChunkIndex) Close() error {
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

// extractMatches extracts matched field names and terms from a hit.
// Fields and terms are returned sorted for deterministic output.
func extractMatches(hit *search.DocumentMatch) ([]string, []string) {
	fieldSet := make(map[string]struct{})
	termSet := make(map[string]struct{})
	for field, locations := range hit.Locations {
		fieldSet[field] = struct{}{}
		for term := range locations {
			termSet[term] = struct{}{}
		}
	}

	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}
	terms := make([]string, 0, len(termSet))
	for t := range termSet {
		terms = append(terms, t)
	}
	sort.Strings(fields)
	sort.Strings(terms)
	return fields, terms
}

// stringField reads a stored string field from a hit.
func stringField(hit *search.DocumentMatch, name string) string {
	if v, ok := hit.Fields[name].(string); ok {
		return v
	}
	return ""
}

// intField reads a stored numeric field from a hit.
func intField(hit *search.DocumentMatch, name string) int {
	if v, ok := hit.Fields[name].(float64); ok {
		return int(v)
	}
	return 0
}

// Verify interface implementation
var _ ChunkIndex = (*BleveChunkIndex)(nil)

// textTokenizerConstructor creates the text tokenizer for Bleve.
// A mapping loaded back from index metadata arrives with numbers as
// float64, so both forms are accepted.
func textTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	minLen := DefaultIndexConfig().MinTokenLength
	switch v := config["min_token_length"].(type) {
	case int:
		minLen = v
	case float64:
		minLen = int(v)
	}
	return &bleveTextTokenizer{minTokenLength: minLen}, nil
}

// bleveTextTokenizer implements analysis.Tokenizer over TokenizeText.
type bleveTextTokenizer struct {
	minTokenLength int
}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTextTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeTextMin(text, t.minTokenLength)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0

	for _, token := range tokens {
		// Locate token in the original text (case-insensitive)
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(token))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token)

		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}

	return result
}

// textStopFilterConstructor creates the stop word filter for Bleve.
// The word list arrives as []string from a fresh mapping and as
// []interface{} from one loaded back from index metadata.
func textStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	words := DefaultStopWords
	switch v := config["stop_words"].(type) {
	case []string:
		words = v
	case []interface{}:
		words = make([]string, 0, len(v))
		for _, w := range v {
			if s, ok := w.(string); ok {
				words = append(words, s)
			}
		}
	}
	return &bleveTextStopFilter{
		stopWords: BuildStopWordMap(words),
	}, nil
}

// bleveTextStopFilter implements analysis.TokenFilter for stop words.
type bleveTextStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveTextStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		term := strings.ToLower(string(token.Term))
		if _, isStop := f.stopWords[term]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
