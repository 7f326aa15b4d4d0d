package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/extract"
	"github.com/knowmcp/knowmcp/internal/store"
)

func newAddCmd() *cobra.Command {
	var (
		title      string
		content    string
		sourceType string
		categories []string
		tags       []string
	)

	cmd := &cobra.Command{
		Use:   "add [file...]",
		Short: "Add files or inline content to the knowledge base",
		Long: `Add knowledge items from files or inline content.

Files are run through the content extractors (markdown, text, code,
HTML) to derive title and content. Inline content is added with
--title and --content instead of file arguments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd.Context(), cmd, args,
				title, content, sourceType, categories, tags)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Item title (overrides the extracted title)")
	cmd.Flags().StringVar(&content, "content", "", "Inline content instead of files")
	cmd.Flags().StringVar(&sourceType, "type", "document",
		"Source type for inline content (document, pdf, code, web)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Categories to assign")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tags to assign")

	return cmd
}

func runAdd(ctx context.Context, cmd *cobra.Command, args []string,
	title, content, sourceType string, categories, tags []string) error {

	if len(args) == 0 && content == "" {
		return knowerrors.ValidationError("provide file arguments or --content", nil)
	}
	if len(args) > 1 && title != "" {
		return knowerrors.ValidationError("--title applies to a single file only", nil)
	}

	env, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()

	if content != "" {
		st := store.SourceType(sourceType)
		if !store.ValidSourceType(st) {
			return knowerrors.ValidationError(
				fmt.Sprintf("invalid source type %q", sourceType), nil)
		}
		if title == "" {
			return knowerrors.ValidationError("--content requires --title", nil)
		}
		item := &store.Item{
			Title:      title,
			Content:    content,
			SourceType: st,
			Categories: categories,
			Tags:       tags,
		}
		chunks, err := env.engine.IngestItem(ctx, item)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added %s %q (%d chunks)\n", item.ID, item.Title, len(chunks))
		return nil
	}

	registry := extract.NewDefaultRegistry()
	for _, path := range args {
		item, err := registry.Extract(path)
		if err != nil {
			return err
		}
		if title != "" {
			item.Title = title
		}
		item.Categories = append(item.Categories, categories...)
		item.Tags = append(item.Tags, tags...)

		chunks, err := env.engine.IngestItem(ctx, item)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "added %s %q (%d chunks)\n", item.ID, item.Title, len(chunks))
	}
	return nil
}
