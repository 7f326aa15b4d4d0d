package search

import (
	"sort"

	"github.com/knowmcp/knowmcp/internal/store"
	"github.com/knowmcp/knowmcp/internal/vector"
)

// mergedChunk is a phase-1 hit after combining keyword and semantic
// sources.
type mergedChunk struct {
	chunkID       string
	itemID        string
	chunkIndex    int
	heading       string
	score         float64
	matchedFields []string
	matchedTerms  []string
	inKeyword     bool
	inSemantic    bool
}

// mergeHits combines keyword and semantic hits by chunk id. Keyword
// scores are rescaled to [0,1] by the phase maximum; semantic scores
// are cosine similarities and already live there. A chunk found by
// both sources gets alpha*kw + (1-alpha)*sem; a chunk found by one
// keeps that source's normalized score times its weight.
//
// Output is ordered by score descending with chunk id ascending as
// the tiebreak, so equal corpora always merge identically.
func mergeHits(kwHits []*store.ChunkHit, semHits []*vector.Hit, alpha float64) []*mergedChunk {
	byID := make(map[string]*mergedChunk, len(kwHits)+len(semHits))

	var maxKw float64
	for _, h := range kwHits {
		if h.Score > maxKw {
			maxKw = h.Score
		}
	}

	for _, h := range kwHits {
		norm := 0.0
		if maxKw > 0 {
			norm = h.Score / maxKw
		}
		byID[h.ChunkID] = &mergedChunk{
			chunkID:       h.ChunkID,
			itemID:        h.ItemID,
			chunkIndex:    h.ChunkIndex,
			heading:       h.Heading,
			score:         alpha * norm,
			matchedFields: h.MatchedFields,
			matchedTerms:  h.MatchedTerms,
			inKeyword:     true,
		}
	}

	for _, h := range semHits {
		if existing, ok := byID[h.ChunkID]; ok {
			existing.score += (1 - alpha) * h.Similarity
			existing.inSemantic = true
			continue
		}
		byID[h.ChunkID] = &mergedChunk{
			chunkID:    h.ChunkID,
			itemID:     h.ItemID,
			chunkIndex: h.ChunkIndex,
			heading:    h.Heading,
			score:      (1 - alpha) * h.Similarity,
			inSemantic: true,
		}
	}

	merged := make([]*mergedChunk, 0, len(byID))
	for _, m := range byID {
		merged = append(merged, m)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].chunkID < merged[j].chunkID
	})
	return merged
}

// capPerItem keeps at most limit chunks per item, preserving order.
func capPerItem(chunks []*mergedChunk, limit int) []*mergedChunk {
	counts := make(map[string]int)
	out := chunks[:0]
	for _, c := range chunks {
		if counts[c.itemID] >= limit {
			continue
		}
		counts[c.itemID]++
		out = append(out, c)
	}
	return out
}
