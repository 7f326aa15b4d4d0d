package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
)

// StatsOutput is the JSON output format for the stats command.
type StatsOutput struct {
	Store     *store.StoreStats      `json:"store"`
	Engine    search.EngineStats     `json:"engine"`
	Integrity *store.IntegrityReport `json:"integrity,omitempty"`
}

func newStatsCmd() *cobra.Command {
	var checkIntegrity bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Long: `Display item, chunk, category, and tag counts together with the
state of the search indices. With --integrity, also scan for rows
referencing missing items.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			storeStats, err := env.store.Stats(ctx)
			if err != nil {
				return err
			}

			output := StatsOutput{
				Store:  storeStats,
				Engine: env.engine.Stats(),
			}
			if checkIntegrity {
				output.Integrity, err = env.store.CheckIntegrity(ctx)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(output)
			}

			r := newRenderer(cmd.OutOrStdout())
			r.Stats(output.Store, output.Engine)
			if output.Integrity != nil {
				r.Integrity(output.Integrity)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkIntegrity, "integrity", false, "Scan for orphaned rows")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
