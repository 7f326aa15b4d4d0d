package search

import (
	"sort"

	"github.com/knowmcp/knowmcp/internal/store"
)

// applyFilters keeps results matching every requested filter. An
// unset filter admits everything; within one filter the listed values
// are alternatives.
func applyFilters(results []*Result, opts Options) []*Result {
	if len(opts.IncludeCategories) == 0 &&
		len(opts.IncludeTags) == 0 &&
		len(opts.IncludeSourceTypes) == 0 {
		return results
	}

	out := results[:0]
	for _, r := range results {
		if !matchesAny(r.Item.Categories, opts.IncludeCategories) {
			continue
		}
		if !matchesAny(r.Item.Tags, opts.IncludeTags) {
			continue
		}
		if !matchesSourceType(r.Item.SourceType, opts.IncludeSourceTypes) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesAny(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func matchesSourceType(have store.SourceType, want []store.SourceType) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if have == w {
			return true
		}
	}
	return false
}

// dropBelowMinRelevance cuts results under the relevance floor.
func dropBelowMinRelevance(results []*Result, minRelevance float64) []*Result {
	out := results[:0]
	for _, r := range results {
		if r.RelevanceScore >= minRelevance {
			out = append(out, r)
		}
	}
	return out
}

// sortResults orders results by the requested key. Relevance ties
// break by updated_at descending then id ascending so equal corpora
// always serialize identically.
func sortResults(results []*Result, by SortBy) {
	switch by {
	case SortByDate:
		sort.SliceStable(results, func(i, j int) bool {
			if !results[i].Item.UpdatedAt.Equal(results[j].Item.UpdatedAt) {
				return results[i].Item.UpdatedAt.After(results[j].Item.UpdatedAt)
			}
			return results[i].Item.ID < results[j].Item.ID
		})
	case SortByTitle:
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].Item.Title != results[j].Item.Title {
				return results[i].Item.Title < results[j].Item.Title
			}
			return results[i].Item.ID < results[j].Item.ID
		})
	default:
		sort.SliceStable(results, func(i, j int) bool {
			if results[i].RelevanceScore != results[j].RelevanceScore {
				return results[i].RelevanceScore > results[j].RelevanceScore
			}
			if !results[i].Item.UpdatedAt.Equal(results[j].Item.UpdatedAt) {
				return results[i].Item.UpdatedAt.After(results[j].Item.UpdatedAt)
			}
			return results[i].Item.ID < results[j].Item.ID
		})
	}
}

// groupByCategory partitions the response's results by first category
// name, preserving result order inside each bucket and the order in
// which buckets first appear.
func groupByCategory(resp *Response) {
	groups := make(map[string][]*Result)
	var order []string
	for _, r := range resp.Results {
		name := UncategorizedBucket
		if len(r.Item.Categories) > 0 {
			name = r.Item.Categories[0]
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], r)
	}
	resp.GroupedByCategory = groups
	resp.CategoryOrder = order
}
