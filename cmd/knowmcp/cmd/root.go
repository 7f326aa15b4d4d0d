// Package cmd provides the CLI commands for knowmcp.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/knowmcp/knowmcp/internal/config"
	"github.com/knowmcp/knowmcp/internal/logging"
	"github.com/knowmcp/knowmcp/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	dataDir   string
	debugMode bool
	noColor   bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the knowmcp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowmcp",
		Short: "Chunk-aware knowledge search over MCP",
		Long: `Knowmcp indexes personal knowledge (notes, documents, code) into
searchable chunks and serves two-phase chunk-aware search to AI
assistants over the Model Context Protocol.

Running 'knowmcp' with no arguments starts the MCP server on stdio.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runServe(cmd.Context(), "")
		},
	}

	cmd.SetVersionTemplate("knowmcp version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"Override the data directory (default ~/.knowmcp)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Enable debug logging to ~/.knowmcp/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")

	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newRebuildCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads configuration for the current directory and applies
// the --data-dir override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(".")
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.Path = filepath.Join(dataDir, "knowledge.db")
		cfg.Index.Dir = filepath.Join(dataDir, "index")
	}
	return cfg, nil
}

// startDebugLogging enables file logging when --debug is set.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}

	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

// stopDebugLogging flushes and closes the debug log file.
func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
