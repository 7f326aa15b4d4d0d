package cmd

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
	"github.com/knowmcp/knowmcp/internal/search"
	"github.com/knowmcp/knowmcp/internal/store"
)

func newSearchCmd() *cobra.Command {
	var (
		maxResults   int
		minRelevance float64
		categories   []string
		tags         []string
		sourceTypes  []string
		sortBy       string
		group        bool
		highlights   bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Long: `Run a two-phase chunk-aware search over the knowledge base.

Phase 1 retrieves matching chunks from the inverted and vector
indices; phase 2 aggregates them into item results with adjacent
context chunks.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := search.Options{
				MaxResults:        maxResults,
				MinRelevance:      minRelevance,
				IncludeCategories: categories,
				IncludeTags:       tags,
				SortBy:            search.SortBy(sortBy),
				GroupByCategory:   group,
				IncludeHighlights: highlights,
			}
			for _, st := range sourceTypes {
				opts.IncludeSourceTypes = append(opts.IncludeSourceTypes, store.SourceType(st))
			}
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of results")
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "Minimum relevance score (0.0-1.0)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "Filter by categories")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Filter by tags")
	cmd.Flags().StringSliceVar(&sourceTypes, "type", nil, "Filter by source types")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort order (relevance, date, title)")
	cmd.Flags().BoolVar(&group, "group", false, "Group results by category")
	cmd.Flags().BoolVar(&highlights, "highlights", false, "Include highlight snippets")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string,
	opts search.Options, jsonOutput bool) error {

	switch opts.SortBy {
	case "", search.SortByRelevance, search.SortByDate, search.SortByTitle:
	default:
		return knowerrors.ValidationError("invalid sort order: "+string(opts.SortBy), nil)
	}
	for _, st := range opts.IncludeSourceTypes {
		if !store.ValidSourceType(st) {
			return knowerrors.ValidationError("invalid source type: "+string(st), nil)
		}
	}

	env, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	if opts.MaxResults == 0 {
		opts.MaxResults = env.cfg.Search.MaxResults
	}
	if opts.MinRelevance == 0 {
		opts.MinRelevance = env.cfg.Search.MinRelevance
	}

	resp, err := env.engine.Search(ctx, query, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	newRenderer(cmd.OutOrStdout()).SearchResponse(resp)
	return nil
}
