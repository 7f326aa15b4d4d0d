package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the search indices from the store",
		Long: `Rebuild the inverted chunk index, the vector projection, and the
item fallback index from the persisted items and chunks. Use this
after index corruption or a version upgrade that changed the index
layout.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.engine.RebuildAll(ctx); err != nil {
				return err
			}

			stats := env.engine.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt indices: %d chunks indexed\n",
				stats.IndexedChunks)
			return nil
		},
	}

	return cmd
}
