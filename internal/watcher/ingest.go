package watcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/knowmcp/knowmcp/internal/extract"
	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
)

// Ingestor applies file events to the knowledge base: created and
// modified files are extracted and ingested, deleted files are removed.
// Items are matched to files by their source path.
type Ingestor struct {
	engine   *search.Engine
	store    store.Store
	registry *extract.Registry
	logger   *slog.Logger

	mu     sync.Mutex
	byPath map[string]string // source path -> item id
}

// NewIngestor creates an ingestor. Call LoadExisting before Run so
// re-saved files update their items instead of creating duplicates.
func NewIngestor(engine *search.Engine, st store.Store, registry *extract.Registry, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		engine:   engine,
		store:    st,
		registry: registry,
		logger:   logger,
		byPath:   make(map[string]string),
	}
}

// LoadExisting builds the source-path lookup from the store.
func (in *Ingestor) LoadExisting(ctx context.Context) error {
	items, err := in.store.GetAllItemsEager(ctx)
	if err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	for _, item := range items {
		if item.SourcePath != "" {
			in.byPath[item.SourcePath] = item.ID
		}
	}
	return nil
}

// Run consumes event batches until the context is canceled or the
// channel closes. Per-file failures are logged, never fatal.
func (in *Ingestor) Run(ctx context.Context, events <-chan []FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			for _, event := range batch {
				in.Apply(ctx, event)
			}
		}
	}
}

// Apply processes a single file event.
func (in *Ingestor) Apply(ctx context.Context, event FileEvent) {
	switch event.Operation {
	case OpCreate, OpModify:
		in.ingest(ctx, event.Path)
	case OpDelete, OpRename:
		in.remove(ctx, event.Path)
	}
}

func (in *Ingestor) ingest(ctx context.Context, path string) {
	item, err := in.registry.Extract(path)
	if err != nil {
		in.logger.Warn("extract_failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	in.mu.Lock()
	if id, ok := in.byPath[path]; ok {
		item.ID = id
	}
	in.mu.Unlock()

	chunks, err := in.engine.IngestItem(ctx, item)
	if err != nil {
		in.logger.Warn("ingest_failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}

	in.mu.Lock()
	in.byPath[path] = item.ID
	in.mu.Unlock()

	in.logger.Info("file_ingested",
		slog.String("path", path),
		slog.String("item_id", item.ID),
		slog.Int("chunks", len(chunks)))
}

func (in *Ingestor) remove(ctx context.Context, path string) {
	in.mu.Lock()
	id, ok := in.byPath[path]
	if ok {
		delete(in.byPath, path)
	}
	in.mu.Unlock()

	if !ok {
		return
	}

	found, err := in.engine.RemoveItem(ctx, id)
	if err != nil {
		in.logger.Warn("remove_failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if found {
		in.logger.Info("file_removed",
			slog.String("path", path), slog.String("item_id", id))
	}
}

// TrackedFiles returns the number of files currently mapped to items.
func (in *Ingestor) TrackedFiles() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.byPath)
}
