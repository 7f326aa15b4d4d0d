package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/knowmcp/knowmcp/internal/config"
	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/extract"
	"github.com/knowmcp/knowmcp/internal/logging"
	knowmcp "github.com/knowmcp/knowmcp/internal/mcp"
	"github.com/knowmcp/knowmcp/internal/watcher"
)

// serveLockFile is the single-writer lock taken under the data
// directory while the server runs.
const serveLockFile = "serve.lock"

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP server exposing knowledge search tools to AI clients.

The stdio transport uses stdout exclusively for JSON-RPC frames, so
all logging goes to the log file under ~/.knowmcp/logs/.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "",
		"Transport to serve on (stdio)")

	return cmd
}

func runServe(ctx context.Context, transport string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if transport == "" {
		transport = cfg.Server.Transport
	}

	// Stdout belongs to the protocol from here on; log to file only.
	cleanup, err := logging.SetupMCPModeWithLevel(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	lock, err := acquireServeLock(filepath.Dir(cfg.Storage.Path))
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	env, err := openEnvWith(ctx, cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	server, err := knowmcp.NewServer(env.engine, env.store, cfg, slog.Default())
	if err != nil {
		return err
	}

	if cfg.Watcher.Enabled && len(cfg.Watcher.Paths) > 0 {
		stop, err := startWatcher(ctx, cfg, env)
		if err != nil {
			return err
		}
		defer stop()
	}

	return server.Serve(ctx, transport)
}

// acquireServeLock takes the single-writer lock for the data
// directory. A second serve against the same directory fails fast
// instead of corrupting the indices.
func acquireServeLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, knowerrors.StorageError("failed to create data directory", err)
	}

	lock := flock.New(filepath.Join(dir, serveLockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, knowerrors.StorageError("failed to acquire data directory lock", err)
	}
	if !locked {
		return nil, knowerrors.New(knowerrors.ErrCodeLockHeld,
			"data directory is locked by another knowmcp instance", nil).
			WithDetail("lock_file", lock.Path()).
			WithSuggestion("Stop the other knowmcp serve process or use a different --data-dir")
	}
	return lock, nil
}

// startWatcher wires the file watcher and ingestor for the configured
// source directories. The returned stop function closes the watcher.
func startWatcher(ctx context.Context, cfg *config.Config, env *appEnv) (func(), error) {
	registry := extract.NewDefaultRegistry()

	w, err := watcher.NewWatcher(watcher.Options{
		DebounceWindow: time.Duration(cfg.Watcher.DebounceMS) * time.Millisecond,
	}, registry.Supported, slog.Default())
	if err != nil {
		return nil, err
	}

	ingestor := watcher.NewIngestor(env.engine, env.store, registry, slog.Default())
	if err := ingestor.LoadExisting(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}

	go ingestor.Run(ctx, w.Events())
	go func() {
		if err := w.Start(ctx, cfg.Watcher.Paths); err != nil {
			slog.Error("watcher_stopped", slog.String("error", err.Error()))
		}
	}()

	slog.Info("watcher_started",
		slog.Int("paths", len(cfg.Watcher.Paths)),
		slog.Int("debounce_ms", cfg.Watcher.DebounceMS))

	return func() { _ = w.Stop() }, nil
}
