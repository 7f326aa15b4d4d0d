package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/store"
)

func newGetCmd() *cobra.Command {
	var withChunks bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a knowledge item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			item, err := env.store.GetItem(ctx, args[0])
			if err != nil {
				return err
			}
			if item == nil {
				return knowerrors.ValidationError("item not found: "+args[0], nil)
			}

			var chunks []*store.Chunk
			if withChunks {
				chunks, err = env.store.GetChunksForItem(ctx, item.ID)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Item   *store.Item    `json:"item"`
					Chunks []*store.Chunk `json:"chunks,omitempty"`
				}{item, chunks})
			}

			newRenderer(cmd.OutOrStdout()).Item(item, chunks)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withChunks, "chunks", false, "Include the item's chunks")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
