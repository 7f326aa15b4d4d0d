package search

// applyBudgets enforces the serialization budgets in place: chunk and
// item content truncation, per-result chunk-list caps and content
// ceiling, and the total-content ceiling across results. Truncation
// is silent and never reorders surviving results.
func applyBudgets(resp *Response) {
	total := 0
	kept := resp.Results[:0]

	for _, r := range resp.Results {
		r.Item.Content = truncate(r.Item.Content, ContentTruncationThreshold)

		if len(r.MatchedChunks) > MaxMatchedChunks {
			r.MatchedChunks = r.MatchedChunks[:MaxMatchedChunks]
		}
		if len(r.ContextChunks) > MaxContextChunks {
			r.ContextChunks = r.ContextChunks[:MaxContextChunks]
		}

		size := len(r.Item.Content)
		r.MatchedChunks = capChunks(r.MatchedChunks, &size)
		r.ContextChunks = capChunks(r.ContextChunks, &size)

		if total+size > MaxTotalContentSize {
			break
		}
		total += size
		kept = append(kept, r)
	}

	resp.Results = kept
}

// capChunks truncates each chunk's content and drops trailing chunks
// once the running per-result size would pass the ceiling.
func capChunks(chunks []*ChunkResult, size *int) []*ChunkResult {
	out := chunks[:0]
	for _, c := range chunks {
		c.Content = truncate(c.Content, MaxChunkContentSize)
		if *size+len(c.Content) > MaxResultContentSize {
			break
		}
		*size += len(c.Content)
		out = append(out, c)
	}
	return out
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
