package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <partial-query>",
		Short: "Suggest query completions",
		Long:  `Suggest query completions from indexed titles, categories, and tags.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			partial := strings.Join(args, " ")

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			suggestions, err := env.engine.Suggest(ctx, partial)
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout()).Suggestions(partial, suggestions)
			return nil
		},
	}

	return cmd
}
