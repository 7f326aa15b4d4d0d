package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knowmcp/knowmcp/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var logFile string
	var lines int
	var pathOnly bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent server log entries",
		Long: `Show the tail of the server log file. The stdio MCP transport keeps
stdout silent, so this is the place to look when the server
misbehaves.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := logging.FindLogFile(logFile)
			if err != nil {
				return err
			}

			if pathOnly {
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read log file: %w", err)
			}

			entries := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
			if lines > 0 && len(entries) > lines {
				entries = entries[len(entries)-lines:]
			}
			for _, entry := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), entry)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logFile, "file", "", "Log file to read (default: the server log)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVar(&pathOnly, "path", false, "Print only the log file path")

	return cmd
}
