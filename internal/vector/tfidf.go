// Package vector provides the in-memory TF-IDF index over chunks.
// The model is refit wholesale on every corpus change; knowledge bases
// this serves are small enough that a full refit stays cheap, and it
// keeps the vocabulary and IDF exactly consistent with the corpus.
package vector

import (
	"math"
	"sort"
	"sync"

	"github.com/knowmcp/knowmcp/internal/store"
)

const (
	// DefaultTopK is the default number of hits returned by SearchChunks.
	DefaultTopK = 10

	// DefaultMinSimilarity is the default cosine similarity cutoff.
	DefaultMinSimilarity = 0.05
)

// Hit is a single similarity search result.
type Hit struct {
	ChunkID    string
	ItemID     string
	ChunkIndex int
	Heading    string
	Similarity float64
}

// chunkVector pairs a chunk's identity with its sparse TF-IDF vector.
// Vectors are L2-normalized at fit time so cosine similarity reduces
// to a dot product.
type chunkVector struct {
	chunkID    string
	itemID     string
	chunkIndex int
	heading    string
	content    string
	vec        map[int]float64
}

// Index is the TF-IDF cosine-similarity index. Refits take the write
// lock; searches run under the read lock against the last fitted model.
type Index struct {
	mu      sync.RWMutex
	vocab   map[string]int
	idf     []float64
	vectors []chunkVector
	fitted  bool
}

// NewIndex returns an unfitted index. SearchChunks on an unfitted
// index returns no hits.
func NewIndex() *Index {
	return &Index{}
}

// FitChunks rebuilds the vocabulary, IDF weights, and all chunk
// vectors from the given corpus. Fitting an empty corpus leaves the
// index unfitted.
func (x *Index) FitChunks(chunks []*store.Chunk) error {
	model, err := fit(chunks)
	if err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.apply(model)
	return nil
}

// UpdateChunksForItem replaces the item's chunks and refits the whole
// model. A refit failure leaves the previous fitted state intact.
func (x *Index) UpdateChunksForItem(itemID string, newChunks []*store.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	corpus := x.corpusWithout(itemID)
	for _, c := range newChunks {
		corpus = append(corpus, &store.Chunk{
			ID:         c.ID,
			ItemID:     c.ItemID,
			ChunkIndex: c.ChunkIndex,
			Heading:    c.Heading,
			Content:    c.Content,
		})
	}

	model, err := fit(corpus)
	if err != nil {
		return err
	}
	x.apply(model)
	return nil
}

// RemoveChunksForItem removes the item's chunks and refits.
func (x *Index) RemoveChunksForItem(itemID string) error {
	return x.UpdateChunksForItem(itemID, nil)
}

// corpusWithout reconstructs the chunk corpus minus one item's chunks.
// Caller must hold the write lock.
func (x *Index) corpusWithout(itemID string) []*store.Chunk {
	corpus := make([]*store.Chunk, 0, len(x.vectors))
	for i := range x.vectors {
		cv := &x.vectors[i]
		if cv.itemID == itemID {
			continue
		}
		corpus = append(corpus, &store.Chunk{
			ID:         cv.chunkID,
			ItemID:     cv.itemID,
			ChunkIndex: cv.chunkIndex,
			Heading:    cv.heading,
			Content:    cv.content,
		})
	}
	return corpus
}

// fittedModel is the result of a fit, swapped in atomically.
type fittedModel struct {
	vocab   map[string]int
	idf     []float64
	vectors []chunkVector
	fitted  bool
}

func (x *Index) apply(m *fittedModel) {
	x.vocab = m.vocab
	x.idf = m.idf
	x.vectors = m.vectors
	x.fitted = m.fitted
}

// fit computes vocabulary, smoothed IDF, and normalized TF-IDF vectors
// for the corpus. Chunks whose content tokenizes to nothing get a zero
// vector and never match.
func fit(chunks []*store.Chunk) (*fittedModel, error) {
	if len(chunks) == 0 {
		return &fittedModel{}, nil
	}

	tokenized := make([][]string, len(chunks))
	vocab := make(map[string]int)
	docFreq := make(map[int]int)

	for i, chunk := range chunks {
		terms := store.TokenizeText(chunk.Heading + " " + chunk.Content)
		tokenized[i] = terms

		seen := make(map[int]struct{})
		for _, term := range terms {
			id, ok := vocab[term]
			if !ok {
				id = len(vocab)
				vocab[term] = id
			}
			if _, dup := seen[id]; !dup {
				seen[id] = struct{}{}
				docFreq[id]++
			}
		}
	}

	n := float64(len(chunks))
	idf := make([]float64, len(vocab))
	for id, df := range docFreq {
		// Smoothed IDF keeps terms present in every chunk from
		// vanishing entirely.
		idf[id] = math.Log((1+n)/(1+float64(df))) + 1
	}

	vectors := make([]chunkVector, len(chunks))
	for i, chunk := range chunks {
		vec := vectorize(tokenized[i], vocab, idf)
		vectors[i] = chunkVector{
			chunkID:    chunk.ID,
			itemID:     chunk.ItemID,
			chunkIndex: chunk.ChunkIndex,
			heading:    chunk.Heading,
			content:    chunk.Content,
			vec:        vec,
		}
	}

	return &fittedModel{
		vocab:   vocab,
		idf:     idf,
		vectors: vectors,
		fitted:  true,
	}, nil
}

// vectorize builds an L2-normalized sparse TF-IDF vector for a term
// list. Terms outside the vocabulary are ignored.
func vectorize(terms []string, vocab map[string]int, idf []float64) map[int]float64 {
	counts := make(map[int]float64)
	for _, term := range terms {
		if id, ok := vocab[term]; ok {
			counts[id]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	var norm float64
	for id, tf := range counts {
		w := tf * idf[id]
		counts[id] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil
	}
	for id := range counts {
		counts[id] /= norm
	}
	return counts
}

// SearchChunks vectorizes the query and returns up to topK chunks with
// cosine similarity >= minSimilarity, ordered by similarity descending
// with chunk id as the tiebreak. An unfitted index returns no hits.
func (x *Index) SearchChunks(query string, topK int, minSimilarity float64) []*Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.fitted {
		return nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	queryVec := vectorize(store.TokenizeText(query), x.vocab, x.idf)
	if len(queryVec) == 0 {
		return nil
	}

	var hits []*Hit
	for i := range x.vectors {
		cv := &x.vectors[i]
		sim := dot(queryVec, cv.vec)
		if sim >= minSimilarity {
			hits = append(hits, &Hit{
				ChunkID:    cv.chunkID,
				ItemID:     cv.itemID,
				ChunkIndex: cv.chunkIndex,
				Heading:    cv.heading,
				Similarity: sim,
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Fitted reports whether the index holds a fitted model.
func (x *Index) Fitted() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.fitted
}

// Size returns the number of chunk vectors in the fitted model.
func (x *Index) Size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.vectors)
}

// dot computes the dot product of two sparse vectors, iterating the
// smaller one.
func dot(a, b map[int]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for id, va := range a {
		if vb, ok := b[id]; ok {
			sum += va * vb
		}
	}
	return sum
}
