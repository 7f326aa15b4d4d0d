package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
)

// SQLiteStore implements Store on top of modernc.org/sqlite.
// WAL mode allows concurrent readers while a single writer holds the
// connection pool.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Verify interface implementation at compile time
var _ Store = (*SQLiteStore)(nil)

// sqliteDSN builds the connection string for path. Session pragmas
// ride in the DSN so that every connection the pool dials gets them;
// an Exec'd pragma only reaches the connection it happens to run on
// and is lost when database/sql retires that connection.
func sqliteDSN(path string) string {
	base := ":memory:"
	if path != "" {
		base = path
	}
	return "file:" + base +
		"?_pragma=foreign_keys(1)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=synchronous(NORMAL)"
}

// NewSQLiteStore opens or creates the store database at path.
// If path is empty, creates an in-memory database for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, knowerrors.New(knowerrors.ErrCodeStorageOpen,
				fmt.Sprintf("failed to create directory %s", dir), err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageOpen,
			"failed to open database", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Journal mode is a property of the database file, not of the
	// session, so a single Exec is enough.
	if path != "" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			_ = db.Close()
			return nil, knowerrors.New(knowerrors.ErrCodeStorageOpen,
				"failed to enable WAL mode", err)
		}
	}

	s := &SQLiteStore{
		db:   db,
		path: path,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, knowerrors.New(knowerrors.ErrCodeStorageOpen,
			"failed to initialize schema", err)
	}

	return s, nil
}

// initSchema creates the tables if they do not exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_path TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		heading TEXT NOT NULL DEFAULT '',
		start_position INTEGER NOT NULL,
		end_position INTEGER NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		UNIQUE(item_id, chunk_index)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_item ON chunks(item_id);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS item_categories (
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
		PRIMARY KEY (item_id, category_id)
	);

	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS item_tags (
		item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (item_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS relationships (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		UNIQUE(source_id, target_id, type)
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeMetadata(m Metadata) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func decodeMetadata(s string) Metadata {
	if s == "" || s == "{}" {
		return nil
	}
	var m Metadata
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}

// SaveItem inserts an item along with its category and tag
// assignments. Timestamps are filled when zero.
func (s *SQLiteStore) SaveItem(ctx context.Context, item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}

	meta, err := encodeMetadata(item.Metadata)
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "invalid item metadata", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageTx, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, title, content, source_type, source_path, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Title, item.Content, string(item.SourceType), item.SourcePath,
		meta, encodeTime(item.CreatedAt), encodeTime(item.UpdatedAt))
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to insert item %s", item.ID), err)
	}

	for _, name := range item.Categories {
		if err := assignCategoryTx(ctx, tx, item.ID, name); err != nil {
			return err
		}
	}
	for _, name := range item.Tags {
		if err := assignTagTx(ctx, tx, item.ID, name); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageTx, "failed to commit", err)
	}
	return nil
}

// GetItem returns the item with its categories and tags, or nil if the
// id is unknown.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	item, err := s.scanItem(ctx, id)
	if err != nil || item == nil {
		return item, err
	}

	item.Categories, err = s.namesForItem(ctx,
		`SELECT c.name FROM categories c
		 JOIN item_categories ic ON ic.category_id = c.id
		 WHERE ic.item_id = ? ORDER BY c.name`, id)
	if err != nil {
		return nil, err
	}
	item.Tags, err = s.namesForItem(ctx,
		`SELECT t.name FROM tags t
		 JOIN item_tags it ON it.tag_id = t.id
		 WHERE it.item_id = ? ORDER BY t.name`, id)
	if err != nil {
		return nil, err
	}

	return item, nil
}

func (s *SQLiteStore) scanItem(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, source_type, source_path, metadata, created_at, updated_at
		FROM items WHERE id = ?`, id)

	var item Item
	var sourceType, meta, createdAt, updatedAt string
	err := row.Scan(&item.ID, &item.Title, &item.Content, &sourceType,
		&item.SourcePath, &meta, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to get item %s", id), err)
	}

	item.SourceType = SourceType(sourceType)
	item.Metadata = decodeMetadata(meta)
	item.CreatedAt = decodeTime(createdAt)
	item.UpdatedAt = decodeTime(updatedAt)
	return &item, nil
}

func (s *SQLiteStore) namesForItem(ctx context.Context, query, itemID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, itemID)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to query names", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to scan name", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// UpdateItem updates an existing item's row. Returns found=false when
// the id does not exist. Categories and tags are not modified here.
func (s *SQLiteStore) UpdateItem(ctx context.Context, item *Item) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	item.UpdatedAt = time.Now().UTC()
	meta, err := encodeMetadata(item.Metadata)
	if err != nil {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "invalid item metadata", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE items SET title = ?, content = ?, source_type = ?, source_path = ?,
			metadata = ?, updated_at = ?
		WHERE id = ?`,
		item.Title, item.Content, string(item.SourceType), item.SourcePath,
		meta, encodeTime(item.UpdatedAt), item.ID)
	if err != nil {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to update item %s", item.ID), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to read rows affected", err)
	}
	return affected > 0, nil
}

// DeleteItem removes the item; chunks, link rows, and relationships go
// with it via ON DELETE CASCADE. Returns found=false for unknown ids.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to delete item %s", id), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to read rows affected", err)
	}
	return affected > 0, nil
}

// QueryItems returns items filtered by category and tag name, newest
// first, paginated at the database layer.
func (s *SQLiteStore) QueryItems(ctx context.Context, opts QueryOptions) ([]*Item, error) {
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, knowerrors.New(knowerrors.ErrCodeInvalidPagination,
			fmt.Sprintf("limit and offset must be non-negative, got limit=%d offset=%d",
				opts.Limit, opts.Offset), nil)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT i.id, i.title, i.content, i.source_type, i.source_path, i.metadata, i.created_at, i.updated_at FROM items i`)

	var conds []string
	var args []any
	if opts.Category != "" {
		sb.WriteString(` JOIN item_categories ic ON ic.item_id = i.id JOIN categories c ON c.id = ic.category_id`)
		conds = append(conds, "c.name = ?")
		args = append(args, opts.Category)
	}
	if opts.Tag != "" {
		sb.WriteString(` JOIN item_tags it ON it.item_id = i.id JOIN tags t ON t.id = it.tag_id`)
		conds = append(conds, "t.name = ?")
		args = append(args, opts.Tag)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY i.updated_at DESC, i.id ASC")
	if opts.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to query items", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		var item Item
		var sourceType, meta, createdAt, updatedAt string
		if err := rows.Scan(&item.ID, &item.Title, &item.Content, &sourceType,
			&item.SourcePath, &meta, &createdAt, &updatedAt); err != nil {
			return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to scan item", err)
		}
		item.SourceType = SourceType(sourceType)
		item.Metadata = decodeMetadata(meta)
		item.CreatedAt = decodeTime(createdAt)
		item.UpdatedAt = decodeTime(updatedAt)
		items = append(items, &item)
	}
	return items, rows.Err()
}

// GetAllItemsEager loads every item with categories and tags attached
// using three statements total, avoiding per-item queries during
// rebuilds.
func (s *SQLiteStore) GetAllItemsEager(ctx context.Context) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, source_type, source_path, metadata, created_at, updated_at
		FROM items ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to query items", err)
	}
	items, err := scanItems(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	catRows, err := s.db.QueryContext(ctx, `
		SELECT ic.item_id, c.name FROM item_categories ic
		JOIN categories c ON c.id = ic.category_id ORDER BY c.name`)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to query category links", err)
	}
	if err := attachNames(catRows, byID, func(item *Item, name string) {
		item.Categories = append(item.Categories, name)
	}); err != nil {
		return nil, err
	}

	tagRows, err := s.db.QueryContext(ctx, `
		SELECT it.item_id, t.name FROM item_tags it
		JOIN tags t ON t.id = it.tag_id ORDER BY t.name`)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to query tag links", err)
	}
	if err := attachNames(tagRows, byID, func(item *Item, name string) {
		item.Tags = append(item.Tags, name)
	}); err != nil {
		return nil, err
	}

	return items, nil
}

func attachNames(rows *sql.Rows, byID map[string]*Item, attach func(*Item, string)) error {
	defer rows.Close()
	for rows.Next() {
		var itemID, name string
		if err := rows.Scan(&itemID, &name); err != nil {
			return knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to scan link", err)
		}
		if item, ok := byID[itemID]; ok {
			attach(item, name)
		}
	}
	return rows.Err()
}

// SaveChunks replaces all chunks for an item atomically: existing rows
// are deleted and the new set inserted in one transaction.
func (s *SQLiteStore) SaveChunks(ctx context.Context, itemID string, chunks []*Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageTx, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE item_id = ?`, itemID); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to clear chunks for item %s", itemID), err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, item_id, chunk_index, content, heading, start_position, end_position, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to prepare chunk insert", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if chunk.ID == "" {
			chunk.ID = uuid.NewString()
		}
		chunk.ItemID = itemID
		meta, err := encodeMetadata(chunk.Metadata)
		if err != nil {
			return knowerrors.New(knowerrors.ErrCodeStorageQuery, "invalid chunk metadata", err)
		}
		_, err = stmt.ExecContext(ctx, chunk.ID, itemID, chunk.ChunkIndex,
			chunk.Content, chunk.Heading, chunk.StartPosition, chunk.EndPosition, meta)
		if err != nil {
			return knowerrors.New(knowerrors.ErrCodeStorageQuery,
				fmt.Sprintf("failed to insert chunk %s", chunk.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageTx, "failed to commit", err)
	}
	return nil
}

// GetChunksForItem returns the item's chunks ordered by chunk_index.
func (s *SQLiteStore) GetChunksForItem(ctx context.Context, itemID string) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, chunk_index, content, heading, start_position, end_position, metadata
		FROM chunks WHERE item_id = ? ORDER BY chunk_index`, itemID)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to query chunks for item %s", itemID), err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]*Chunk, error) {
	var chunks []*Chunk
	for rows.Next() {
		var chunk Chunk
		var meta string
		if err := rows.Scan(&chunk.ID, &chunk.ItemID, &chunk.ChunkIndex,
			&chunk.Content, &chunk.Heading, &chunk.StartPosition, &chunk.EndPosition, &meta); err != nil {
			return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to scan chunk", err)
		}
		chunk.Metadata = decodeMetadata(meta)
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// GetChunkByID returns the chunk or nil if unknown.
func (s *SQLiteStore) GetChunkByID(ctx context.Context, id string) (*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, item_id, chunk_index, content, heading, start_position, end_position, metadata
		FROM chunks WHERE id = ?`, id)

	var chunk Chunk
	var meta string
	err := row.Scan(&chunk.ID, &chunk.ItemID, &chunk.ChunkIndex,
		&chunk.Content, &chunk.Heading, &chunk.StartPosition, &chunk.EndPosition, &meta)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to get chunk %s", id), err)
	}
	chunk.Metadata = decodeMetadata(meta)
	return &chunk, nil
}

// GetAdjacentChunks returns the chunks at chunk_index-1 and
// chunk_index+1 for the item, in index order. Edge positions yield
// fewer rows.
func (s *SQLiteStore) GetAdjacentChunks(ctx context.Context, itemID string, chunkIndex int) ([]*Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_id, chunk_index, content, heading, start_position, end_position, metadata
		FROM chunks WHERE item_id = ? AND chunk_index IN (?, ?)
		ORDER BY chunk_index`, itemID, chunkIndex-1, chunkIndex+1)
	if err != nil {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to query adjacent chunks for item %s", itemID), err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// AllChunks streams every chunk in batches of batchSize through fn,
// used by index rebuilds. Iteration stops at the first fn error.
func (s *SQLiteStore) AllChunks(ctx context.Context, batchSize int, fn func([]*Chunk) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	offset := 0
	for {
		s.mu.RLock()
		if s.closed {
			s.mu.RUnlock()
			return knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
		}
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, item_id, chunk_index, content, heading, start_position, end_position, metadata
			FROM chunks ORDER BY item_id, chunk_index LIMIT ? OFFSET ?`, batchSize, offset)
		if err != nil {
			s.mu.RUnlock()
			return knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to query chunks", err)
		}
		batch, err := scanChunks(rows)
		rows.Close()
		s.mu.RUnlock()
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		offset += len(batch)
	}
}

func assignCategoryTx(ctx context.Context, tx *sql.Tx, itemID, name string) error {
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (id, name) VALUES (?, ?)`, id, name); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to upsert category %s", name), err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO item_categories (item_id, category_id)
		SELECT ?, id FROM categories WHERE name = ?`, itemID, name); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to link category %s", name), err)
	}
	return nil
}

func assignTagTx(ctx context.Context, tx *sql.Tx, itemID, name string) error {
	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO tags (id, name) VALUES (?, ?)`, id, name); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to upsert tag %s", name), err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO item_tags (item_id, tag_id)
		SELECT ?, id FROM tags WHERE name = ?`, itemID, name); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery,
			fmt.Sprintf("failed to link tag %s", name), err)
	}
	return nil
}

// AssignCategory links the item to the named category, creating the
// category row on first use. Re-assigning is a no-op.
func (s *SQLiteStore) AssignCategory(ctx context.Context, itemID, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return assignCategoryTx(ctx, tx, itemID, name)
	})
}

// AssignTag links the item to the named tag, creating the tag row on
// first use. Re-assigning is a no-op.
func (s *SQLiteStore) AssignTag(ctx context.Context, itemID, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return assignTagTx(ctx, tx, itemID, name)
	})
}

// RemoveCategory unlinks the item from the named category. The
// category row itself is kept.
func (s *SQLiteStore) RemoveCategory(ctx context.Context, itemID, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM item_categories
			WHERE item_id = ? AND category_id IN (SELECT id FROM categories WHERE name = ?)`,
			itemID, name)
		if err != nil {
			return knowerrors.New(knowerrors.ErrCodeStorageQuery,
				fmt.Sprintf("failed to unlink category %s", name), err)
		}
		return nil
	})
}

// RemoveTag unlinks the item from the named tag.
func (s *SQLiteStore) RemoveTag(ctx context.Context, itemID, name string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM item_tags
			WHERE item_id = ? AND tag_id IN (SELECT id FROM tags WHERE name = ?)`,
			itemID, name)
		if err != nil {
			return knowerrors.New(knowerrors.ErrCodeStorageQuery,
				fmt.Sprintf("failed to unlink tag %s", name), err)
		}
		return nil
	})
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageTx, "failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageTx, "failed to commit", err)
	}
	return nil
}

// AddRelationship inserts a directed edge. Duplicate
// (source, target, type) triples are ignored.
func (s *SQLiteStore) AddRelationship(ctx context.Context, rel *Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	meta, err := encodeMetadata(rel.Metadata)
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "invalid relationship metadata", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO relationships (id, source_id, target_id, type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.SourceID, rel.TargetID, rel.Type, meta, encodeTime(rel.CreatedAt))
	if err != nil {
		return knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to insert relationship", err)
	}
	return nil
}

// RemoveRelationship deletes the edge, reporting whether it existed.
func (s *SQLiteStore) RemoveRelationship(ctx context.Context, sourceID, targetID, relType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM relationships WHERE source_id = ? AND target_id = ? AND type = ?`,
		sourceID, targetID, relType)
	if err != nil {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to delete relationship", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to read rows affected", err)
	}
	return affected > 0, nil
}

// GetRelatedItems walks relationship edges in both directions up to
// maxDepth hops from itemID and returns the reachable items, closest
// first. The starting item is excluded.
func (s *SQLiteStore) GetRelatedItems(ctx context.Context, itemID string, maxDepth int) ([]*Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}
	if maxDepth <= 0 {
		maxDepth = 1
	}

	visited := map[string]struct{}{itemID: {}}
	frontier := []string{itemID}
	var order []string

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			rows, err := s.db.QueryContext(ctx, `
				SELECT target_id FROM relationships WHERE source_id = ?
				UNION
				SELECT source_id FROM relationships WHERE target_id = ?
				ORDER BY 1`, id, id)
			if err != nil {
				return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to query relationships", err)
			}
			for rows.Next() {
				var neighbor string
				if err := rows.Scan(&neighbor); err != nil {
					rows.Close()
					return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to scan relationship", err)
				}
				if _, seen := visited[neighbor]; !seen {
					visited[neighbor] = struct{}{}
					next = append(next, neighbor)
					order = append(order, neighbor)
				}
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "relationship iteration failed", err)
			}
			rows.Close()
		}
		frontier = next
	}

	items := make([]*Item, 0, len(order))
	for _, id := range order {
		item, err := s.scanItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// Stats returns per-table row counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	stats := &StoreStats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM items", &stats.Items},
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM categories", &stats.Categories},
		{"SELECT COUNT(*) FROM tags", &stats.Tags},
		{"SELECT COUNT(*) FROM relationships", &stats.Relationships},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "failed to count rows", err)
		}
	}
	return stats, nil
}

// CheckIntegrity counts rows that reference missing items. With
// foreign keys enforced these should always be zero; nonzero counts
// indicate a database written with enforcement off.
func (s *SQLiteStore) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "store is closed", nil)
	}

	report := &IntegrityReport{}
	checks := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM chunks c LEFT JOIN items i ON i.id = c.item_id WHERE i.id IS NULL`,
			&report.OrphanedChunks},
		{`SELECT COUNT(*) FROM item_categories ic LEFT JOIN items i ON i.id = ic.item_id WHERE i.id IS NULL`,
			&report.OrphanedCategoryLinks},
		{`SELECT COUNT(*) FROM item_tags it LEFT JOIN items i ON i.id = it.item_id WHERE i.id IS NULL`,
			&report.OrphanedTagLinks},
		{`SELECT COUNT(*) FROM relationships r
		  LEFT JOIN items si ON si.id = r.source_id
		  LEFT JOIN items ti ON ti.id = r.target_id
		  WHERE si.id IS NULL OR ti.id IS NULL`,
			&report.OrphanedRelationships},
	}
	for _, c := range checks {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, knowerrors.New(knowerrors.ErrCodeStorageQuery, "integrity check failed", err)
		}
	}
	return report, nil
}

// Close closes the database. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
