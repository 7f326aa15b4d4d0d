package search

import (
	"context"
	"sort"
	"strings"

	knowerrors "github.com/knowmcp/knowmcp/internal/errors"
)

// MaxSuggestions bounds the suggestion list.
const MaxSuggestions = 10

// Suggest returns completion candidates for a partial query, drawn
// from item titles, categories, tags, and chunk headings. Matching is
// case-insensitive prefix-or-substring; output is deduplicated and
// sorted so the same corpus always suggests the same list.
func (e *Engine) Suggest(ctx context.Context, partial string) ([]string, error) {
	partial = strings.TrimSpace(strings.ToLower(partial))
	if partial == "" {
		return nil, knowerrors.New(knowerrors.ErrCodeQueryEmpty,
			"partial query must not be empty", nil)
	}

	items, err := e.store.GetAllItemsEager(ctx)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		text   string
		prefix bool
	}
	seen := make(map[string]struct{})
	var cands []candidate

	add := func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		lower := strings.ToLower(text)
		idx := strings.Index(lower, partial)
		if idx < 0 {
			return
		}
		if _, dup := seen[lower]; dup {
			return
		}
		seen[lower] = struct{}{}
		cands = append(cands, candidate{text: text, prefix: idx == 0})
	}

	for _, item := range items {
		add(item.Title)
		for _, c := range item.Categories {
			add(c)
		}
		for _, t := range item.Tags {
			add(t)
		}
		chunks, err := e.store.GetChunksForItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			add(c.Heading)
		}
	}

	// Prefix matches first, then alphabetical within each class
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].prefix != cands[j].prefix {
			return cands[i].prefix
		}
		return strings.ToLower(cands[i].text) < strings.ToLower(cands[j].text)
	})

	out := make([]string, 0, MaxSuggestions)
	for _, c := range cands {
		out = append(out, c.text)
		if len(out) >= MaxSuggestions {
			break
		}
	}
	return out, nil
}
