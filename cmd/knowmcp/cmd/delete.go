package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
)

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a knowledge item",
		Long:    `Delete a knowledge item, its chunks, and its index entries.`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			found, err := env.engine.RemoveItem(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				return knowerrors.ValidationError("item not found: "+args[0], nil)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	return cmd
}
