package search

import (
	"strings"

	"github.com/knowmcp/knowmcp/internal/store"
)

const (
	// highlightRadius is the context window around a matched term.
	highlightRadius = 60

	// maxHighlights bounds highlights per result.
	maxHighlights = 3
)

// buildHighlights extracts short context windows around the first
// occurrence of each query token, looking in the item title, matched
// chunk contents, then the item body. Deduplicated, at most
// maxHighlights per result.
func buildHighlights(query string, item *store.Item, matched []*ChunkResult) []string {
	tokens := store.TokenizeText(query)
	if len(tokens) == 0 {
		return nil
	}

	sources := []string{item.Title}
	for _, c := range matched {
		sources = append(sources, c.Content)
	}
	sources = append(sources, item.Content)

	var highlights []string
	seen := make(map[string]struct{})
	for _, token := range tokens {
		for _, src := range sources {
			snippet := snippetAround(src, token)
			if snippet == "" {
				continue
			}
			if _, dup := seen[snippet]; dup {
				break
			}
			seen[snippet] = struct{}{}
			highlights = append(highlights, snippet)
			break
		}
		if len(highlights) >= maxHighlights {
			break
		}
	}
	return highlights
}

// snippetAround returns the text within highlightRadius bytes of the
// first occurrence of token in src, trimmed to word boundaries.
func snippetAround(src, token string) string {
	pos := strings.Index(strings.ToLower(src), token)
	if pos < 0 {
		return ""
	}

	start := pos - highlightRadius
	if start < 0 {
		start = 0
	}
	end := pos + len(token) + highlightRadius
	if end > len(src) {
		end = len(src)
	}
	start, end = snapToRunes(src, start, end)

	snippet := src[start:end]
	if start > 0 {
		if cut := strings.IndexByte(snippet, ' '); cut >= 0 {
			snippet = snippet[cut+1:]
		}
	}
	if end < len(src) {
		if cut := strings.LastIndexByte(snippet, ' '); cut >= 0 {
			snippet = snippet[:cut]
		}
	}
	return strings.TrimSpace(snippet)
}
