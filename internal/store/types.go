// Package store provides the persistence layer for knowledge items and
// chunks: a SQLite metadata store, the Bleve inverted chunk index, and
// the legacy item-level index used by the fallback search path.
package store

import (
	"context"
	"time"
)

// SourceType classifies the origin of a knowledge item.
type SourceType string

const (
	SourceTypeDocument SourceType = "document"
	SourceTypePDF      SourceType = "pdf"
	SourceTypeCode     SourceType = "code"
	SourceTypeWeb      SourceType = "web"
)

// ValidSourceType reports whether s is a recognized source type.
func ValidSourceType(s SourceType) bool {
	switch s {
	case SourceTypeDocument, SourceTypePDF, SourceTypeCode, SourceTypeWeb:
		return true
	}
	return false
}

// Metadata is a free-form key/value map attached to items and chunks.
// Values are restricted to JSON-representable types (string, float64,
// bool, []any, map[string]any) and persisted as a JSON column.
type Metadata map[string]any

// Item is the document unit. Content is extracted plain text.
type Item struct {
	ID         string
	Title      string
	Content    string
	SourceType SourceType
	SourcePath string
	Metadata   Metadata
	Categories []string
	Tags       []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Chunk is the search unit: a bounded contiguous extract of an item's
// content with heading and half-open offsets into the original text.
type Chunk struct {
	ID            string
	ItemID        string
	ChunkIndex    int
	Content       string
	Heading       string
	StartPosition int
	EndPosition   int
	Metadata      Metadata
}

// Relationship is a directed edge between two items.
type Relationship struct {
	ID        string
	SourceID  string
	TargetID  string
	Type      string
	Metadata  Metadata
	CreatedAt time.Time
}

// Category groups items; items and categories are M:N.
type Category struct {
	ID          string
	Name        string
	Description string
}

// Tag labels items; items and tags are M:N.
type Tag struct {
	ID   string
	Name string
}

// QueryOptions filters and paginates QueryItems at the database layer.
type QueryOptions struct {
	Category string
	Tag      string
	Limit    int
	Offset   int
}

// StoreStats holds COUNT aggregates per table.
type StoreStats struct {
	Items         int
	Chunks        int
	Categories    int
	Tags          int
	Relationships int
}

// IntegrityReport lists orphaned rows found by CheckIntegrity.
type IntegrityReport struct {
	OrphanedChunks        int
	OrphanedCategoryLinks int
	OrphanedTagLinks      int
	OrphanedRelationships int
}

// Clean reports whether the store has no orphaned rows.
func (r *IntegrityReport) Clean() bool {
	return r.OrphanedChunks == 0 && r.OrphanedCategoryLinks == 0 &&
		r.OrphanedTagLinks == 0 && r.OrphanedRelationships == 0
}

// Store persists items, chunks, categories, tags, and relationships.
// Get operations return nil (not an error) for missing ids; Update and
// Delete report found=false instead of erroring.
type Store interface {
	// Item operations
	SaveItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id string) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) (bool, error)
	DeleteItem(ctx context.Context, id string) (bool, error)
	QueryItems(ctx context.Context, opts QueryOptions) ([]*Item, error)
	GetAllItemsEager(ctx context.Context) ([]*Item, error)

	// Chunk operations
	SaveChunks(ctx context.Context, itemID string, chunks []*Chunk) error
	GetChunksForItem(ctx context.Context, itemID string) ([]*Chunk, error)
	GetChunkByID(ctx context.Context, id string) (*Chunk, error)
	GetAdjacentChunks(ctx context.Context, itemID string, chunkIndex int) ([]*Chunk, error)
	AllChunks(ctx context.Context, batchSize int, fn func([]*Chunk) error) error

	// Category and tag operations
	AssignCategory(ctx context.Context, itemID, name string) error
	AssignTag(ctx context.Context, itemID, name string) error
	RemoveCategory(ctx context.Context, itemID, name string) error
	RemoveTag(ctx context.Context, itemID, name string) error

	// Relationship operations
	AddRelationship(ctx context.Context, rel *Relationship) error
	RemoveRelationship(ctx context.Context, sourceID, targetID, relType string) (bool, error)
	GetRelatedItems(ctx context.Context, itemID string, maxDepth int) ([]*Item, error)

	// Maintenance
	Stats(ctx context.Context) (*StoreStats, error)
	CheckIntegrity(ctx context.Context) (*IntegrityReport, error)

	// Lifecycle
	Close() error
}

// DefaultChunkSearchLimit is the default limit for chunk index searches.
const DefaultChunkSearchLimit = 50

// ChunkHit is a single inverted-index search result.
type ChunkHit struct {
	ChunkID    string
	ItemID     string
	ChunkIndex int
	Heading    string
	Score      float64

	// MatchedFields lists the document fields the query matched
	// ("heading", "content"); MatchedTerms lists the analyzed query
	// terms found in them. Both feed highlight construction.
	MatchedFields []string
	MatchedTerms  []string
}

// ChunkIndex is the persistent inverted index over chunks.
type ChunkIndex interface {
	// AddChunk upserts a single chunk document by chunk id.
	AddChunk(ctx context.Context, chunk *Chunk) error

	// AddChunks batch-upserts chunk documents.
	AddChunks(ctx context.Context, chunks []*Chunk) error

	// RemoveChunksForItem deletes all documents owned by an item.
	RemoveChunksForItem(ctx context.Context, itemID string) error

	// SearchChunks parses the query across heading and content and
	// returns hits ordered by descending score, size <= limit.
	SearchChunks(ctx context.Context, query string, limit int) ([]*ChunkHit, error)

	// RebuildChunkIndex wipes and repopulates the index.
	RebuildChunkIndex(ctx context.Context, chunks []*Chunk) error

	// HasChunkIndex reports whether the index directory exists, is
	// readable, and contains at least one document.
	HasChunkIndex() bool

	// DocCount returns the number of indexed chunk documents.
	DocCount() (uint64, error)

	Close() error
}

// ItemHit is a single legacy item-level search result.
type ItemHit struct {
	ItemID       string
	Score        float64
	MatchedTerms []string
}

// ItemIndex is the legacy item-level inverted index, used only by the
// fallback search path when the chunk index is absent or empty.
type ItemIndex interface {
	AddItem(ctx context.Context, item *Item) error
	RemoveItem(ctx context.Context, itemID string) error
	SearchItems(ctx context.Context, query string, limit int) ([]*ItemHit, error)
	Rebuild(ctx context.Context, items []*Item) error
	HasIndex() bool
	Close() error
}

// IndexConfig configures the inverted indices.
type IndexConfig struct {
	// StopWords is a list of words to filter out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultIndexConfig returns the default index configuration.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English words filtered from both
// index and query token streams.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "but", "by",
	"for", "if", "in", "into", "is", "it", "no", "not", "of",
	"on", "or", "such", "that", "the", "their", "then", "there",
	"these", "they", "this", "to", "was", "will", "with",
}
