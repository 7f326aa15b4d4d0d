package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/knowmcp/knowmcp/internal/chunk"
	"github.com/knowmcp/knowmcp/internal/config"
	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
	"github.com/knowmcp/knowmcp/internal/ui"
	"github.com/knowmcp/knowmcp/internal/vector"
)

// appEnv bundles the opened store, indices, and search engine behind a
// single Close. Every command that touches the knowledge base opens
// one and closes it when done.
type appEnv struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	inverted *store.BleveChunkIndex
	items    *store.BleveItemIndex
	engine   *search.Engine
}

// openEnv loads configuration and opens the full storage stack.
func openEnv(ctx context.Context) (*appEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return openEnvWith(ctx, cfg)
}

// openEnvWith opens the storage stack for an already-loaded config and
// warms the in-memory vector projection from the persisted chunks.
func openEnvWith(ctx context.Context, cfg *config.Config) (*appEnv, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}

	inverted, err := store.NewBleveChunkIndex(
		filepath.Join(cfg.Index.Dir, "chunks"), indexConfig(cfg))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	items, err := store.NewBleveItemIndex(filepath.Join(cfg.Index.Dir, "items"))
	if err != nil {
		_ = inverted.Close()
		_ = st.Close()
		return nil, err
	}

	chunker := chunk.NewChunker(chunk.Options{
		MinChunkSize: cfg.Chunking.MinChunkSize,
		MaxChunkSize: cfg.Chunking.MaxChunkSize,
		OverlapRatio: cfg.Chunking.OverlapRatio,
	})

	engine, err := search.NewEngine(st, inverted, items, vector.NewIndex(),
		chunker, engineConfig(cfg), slog.Default())
	if err == nil {
		err = engine.Warm(ctx)
	}
	if err != nil {
		_ = items.Close()
		_ = inverted.Close()
		_ = st.Close()
		return nil, err
	}

	return &appEnv{
		cfg:      cfg,
		store:    st,
		inverted: inverted,
		items:    items,
		engine:   engine,
	}, nil
}

// Close releases the indices and the store.
func (e *appEnv) Close() {
	_ = e.items.Close()
	_ = e.inverted.Close()
	_ = e.store.Close()
}

// indexConfig maps the app config onto the index analysis settings,
// falling back to the built-in defaults for unset fields.
func indexConfig(cfg *config.Config) store.IndexConfig {
	ic := store.DefaultIndexConfig()
	if len(cfg.Index.StopWords) > 0 {
		ic.StopWords = cfg.Index.StopWords
	}
	if cfg.Index.MinTokenLength > 0 {
		ic.MinTokenLength = cfg.Index.MinTokenLength
	}
	return ic
}

func engineConfig(cfg *config.Config) search.EngineConfig {
	ec := search.DefaultEngineConfig()
	ec.EnableKeyword = cfg.Search.EnableKeyword
	ec.EnableSemantic = cfg.Search.EnableSemantic
	return ec
}

// newRenderer builds a renderer for the command's output writer,
// honoring the --no-color flag on top of TTY and CI detection.
func newRenderer(out io.Writer) *ui.Renderer {
	cfg := ui.NewConfig(out)
	if noColor {
		cfg.NoColor = true
	}
	return ui.NewRenderer(cfg)
}
