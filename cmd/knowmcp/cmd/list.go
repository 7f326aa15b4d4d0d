package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/knowmcp/knowmcp/internal/store"
)

func newListCmd() *cobra.Command {
	var (
		category   string
		tag        string
		limit      int
		offset     int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge items",
		Long: `List knowledge items newest first, optionally filtered by category
or tag. Use get to show a single item in full.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			env, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer env.Close()

			items, err := env.store.QueryItems(ctx, store.QueryOptions{
				Category: category,
				Tag:      tag,
				Limit:    limit,
				Offset:   offset,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				type row struct {
					ID         string `json:"id"`
					Title      string `json:"title"`
					SourceType string `json:"source_type"`
					SourcePath string `json:"source_path,omitempty"`
					UpdatedAt  string `json:"updated_at"`
				}
				rows := make([]row, 0, len(items))
				for _, item := range items {
					rows = append(rows, row{
						ID:         item.ID,
						Title:      item.Title,
						SourceType: string(item.SourceType),
						SourcePath: item.SourcePath,
						UpdatedAt:  item.UpdatedAt.Format(time.RFC3339),
					})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Items []row `json:"items"`
					Count int   `json:"count"`
				}{rows, len(rows)})
			}

			newRenderer(cmd.OutOrStdout()).ItemList(items)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only items in this category")
	cmd.Flags().StringVar(&tag, "tag", "", "Only items with this tag")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum items to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Items to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
