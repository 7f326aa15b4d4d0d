package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/store"
)

func newUpdateCmd() *cobra.Command {
	var (
		title      string
		content    string
		sourceType string
		categories []string
		tags       []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Modify a knowledge item",
		Long: `Modify an existing knowledge item. Changed content is rechunked and
reindexed. --category and --tag replace the item's current sets.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), cmd, args[0], updateFields{
				title:         title,
				content:       content,
				sourceType:    sourceType,
				categories:    categories,
				tags:          tags,
				setCategories: cmd.Flags().Changed("category"),
				setTags:       cmd.Flags().Changed("tag"),
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New content")
	cmd.Flags().StringVar(&sourceType, "type", "",
		"New source type (document, pdf, code, web)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Replacement categories")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Replacement tags")

	return cmd
}

type updateFields struct {
	title         string
	content       string
	sourceType    string
	categories    []string
	tags          []string
	setCategories bool
	setTags       bool
}

func runUpdate(ctx context.Context, cmd *cobra.Command, id string, f updateFields) error {
	if f.title == "" && f.content == "" && f.sourceType == "" && !f.setCategories && !f.setTags {
		return knowerrors.ValidationError("provide at least one field to update", nil)
	}

	env, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	item, err := env.store.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return knowerrors.ValidationError("item not found: "+id, nil)
	}

	if f.title != "" {
		item.Title = f.title
	}
	if f.content != "" {
		item.Content = f.content
	}
	if f.sourceType != "" {
		st := store.SourceType(f.sourceType)
		if !store.ValidSourceType(st) {
			return knowerrors.ValidationError(
				fmt.Sprintf("invalid source type %q", f.sourceType), nil)
		}
		item.SourceType = st
	}

	if f.setCategories {
		if err := replaceItemLinks(ctx, item.ID, item.Categories, f.categories,
			env.store.RemoveCategory, env.store.AssignCategory); err != nil {
			return err
		}
		item.Categories = f.categories
	}
	if f.setTags {
		if err := replaceItemLinks(ctx, item.ID, item.Tags, f.tags,
			env.store.RemoveTag, env.store.AssignTag); err != nil {
			return err
		}
		item.Tags = f.tags
	}

	chunks, err := env.engine.IngestItem(ctx, item)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated %s %q (%d chunks)\n",
		item.ID, item.Title, len(chunks))
	return nil
}

// replaceItemLinks swaps an item's category or tag set for a new one,
// touching only the names that change.
func replaceItemLinks(ctx context.Context, itemID string, current, desired []string,
	remove, assign func(context.Context, string, string) error,
) error {
	want := make(map[string]struct{}, len(desired))
	for _, name := range desired {
		want[name] = struct{}{}
	}
	have := make(map[string]struct{}, len(current))
	for _, name := range current {
		have[name] = struct{}{}
	}

	for _, name := range current {
		if _, keep := want[name]; !keep {
			if err := remove(ctx, itemID, name); err != nil {
				return err
			}
		}
	}
	for _, name := range desired {
		if _, has := have[name]; !has {
			if err := assign(ctx, itemID, name); err != nil {
				return err
			}
		}
	}
	return nil
}
